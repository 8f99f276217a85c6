package background

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Configuration struct {
	MaxEvents        int      `json:"max_events" yaml:"max_events"`
	Verbosity        int      `json:"verbosity" yaml:"verbosity"`
	FileIn           string   `json:"file_in" yaml:"file_in"`
	FileOut          string   `json:"file_out" yaml:"file_out"`
	QAPlots          string   `json:"qa_plots" yaml:"qa_plots"`
	Skip             int      `json:"skip" yaml:"skip"`
	UseTowerInfo     bool     `json:"use_towerinfo" yaml:"use_towerinfo"`
	TowerNodePrefix  string   `json:"tower_node_prefix" yaml:"tower_node_prefix"`
	SeedType         SeedType `json:"seed_type" yaml:"seed_type"`
	SeedJetD         float64  `json:"seed_jet_d" yaml:"seed_jet_d"`
	SeedJetPt        float64  `json:"seed_jet_pt" yaml:"seed_jet_pt"`
	DoFlow           FlowMode `json:"do_flow" yaml:"do_flow"`
	BackgroundName   string   `json:"background_name" yaml:"background_name"`
	NoDB             bool     `json:"no_db" yaml:"no_db"`
	DBDriver         string   `json:"db_driver" yaml:"db_driver"`
	Host             string   `json:"host" yaml:"host"`
	User             string   `json:"user" yaml:"user"`
	Passwd           string   `json:"pass" yaml:"pass"`
	DBName           string   `json:"dbname" yaml:"dbname"`
	RunNumber        int      `json:"run_number" yaml:"run_number"`
	EtaBins          int      `json:"eta_bins" yaml:"eta_bins"`
	PhiBins          int      `json:"phi_bins" yaml:"phi_bins"`
	NumWorkers       int      `json:"num_workers" yaml:"num_workers"`
	WriteData        bool     `json:"write_data" yaml:"write_data"`
	CompressionLevel int      `json:"compression_level" yaml:"compression_level"`
}

// DefaultConfiguration matches the settings used for Au+Au reconstruction:
// D-seeded background with calorimeter flow on tower-info input.
func DefaultConfiguration() Configuration {
	return Configuration{
		MaxEvents:        1000000000,
		Verbosity:        0,
		UseTowerInfo:     true,
		TowerNodePrefix:  "TOWERINFO_CALIB",
		SeedType:         SeedTypeD,
		SeedJetD:         3,
		SeedJetPt:        7,
		DoFlow:           FlowCalorimeter,
		BackgroundName:   "TowerBackground",
		NoDB:             false,
		DBDriver:         "mysql",
		Host:             "sphenix-conditions.example.org",
		User:             "phnxreco",
		Passwd:           "",
		DBName:           "calibrations",
		EtaBins:          24,
		PhiBins:          64,
		NumWorkers:       1,
		WriteData:        true,
		CompressionLevel: 4,
	}
}

var configuration = DefaultConfiguration()

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}

// SeedType selects which jet collection provides the background seeds.
type SeedType int

const (
	SeedTypeD SeedType = iota
	SeedTypePt
)

var seedTypeStrings = []string{
	"D",
	"pT",
}

func (s SeedType) String() string {
	if s < SeedTypeD || s > SeedTypePt {
		return "UNKNOWN"
	}
	return seedTypeStrings[s]
}

func ParseSeedType(s string) (SeedType, error) {
	if code, err := strconv.Atoi(s); err == nil && code >= 0 && code < len(seedTypeStrings) {
		return SeedType(code), nil
	}
	for i, v := range seedTypeStrings {
		if strings.EqualFold(v, s) {
			return SeedType(i), nil
		}
	}
	return 0, fmt.Errorf("invalid seed type: %s", s)
}

func (s SeedType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SeedType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var code int
		if errInt := json.Unmarshal(data, &code); errInt != nil {
			return err
		}
		*s = SeedType(code)
		return nil
	}
	parsed, err := ParseSeedType(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s *SeedType) UnmarshalText(text []byte) error {
	parsed, err := ParseSeedType(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s SeedType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FlowMode selects where the second order event plane comes from.
type FlowMode int

const (
	FlowDisabled FlowMode = iota
	FlowCalorimeter
	FlowTruth
	FlowEventPlane
)

var flowModeStrings = []string{
	"off",
	"calo",
	"truth",
	"sepd",
}

func (f FlowMode) String() string {
	if f < FlowDisabled || f > FlowEventPlane {
		return "UNKNOWN"
	}
	return flowModeStrings[f]
}

func ParseFlowMode(s string) (FlowMode, error) {
	if code, err := strconv.Atoi(s); err == nil && code >= 0 && code < len(flowModeStrings) {
		return FlowMode(code), nil
	}
	for i, v := range flowModeStrings {
		if strings.EqualFold(v, s) {
			return FlowMode(i), nil
		}
	}
	return 0, fmt.Errorf("invalid flow mode: %s", s)
}

func (f FlowMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON accepts both the mode name and the numeric do_flow code.
func (f *FlowMode) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var code int
		if errInt := json.Unmarshal(data, &code); errInt != nil {
			return err
		}
		*f = FlowMode(code)
		return nil
	}
	parsed, err := ParseFlowMode(str)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f *FlowMode) UnmarshalText(text []byte) error {
	parsed, err := ParseFlowMode(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f FlowMode) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}
