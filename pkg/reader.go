package background

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// TowerInfoRecord carries one layer of compact towers. Energies are
// indexed by channel; the status lists hold channels.
type TowerInfoRecord struct {
	EtaBins  int       `json:"eta_bins"`
	PhiBins  int       `json:"phi_bins"`
	Energy   []float64 `json:"energy"`
	Hot      []uint32  `json:"hot,omitempty"`
	NoCalib  []uint32  `json:"no_calib,omitempty"`
	NotInstr []uint32  `json:"not_instr,omitempty"`
	BadChi2  []uint32  `json:"bad_chi2,omitempty"`
}

type RawTowerRecord struct {
	EtaBin int     `json:"ieta"`
	PhiBin int     `json:"iphi"`
	Energy float64 `json:"e"`
}

type JetRecord struct {
	ID           int              `json:"id"`
	Pt           float64          `json:"pt"`
	Eta          float64          `json:"eta"`
	Phi          float64          `json:"phi"`
	Constituents []JetConstituent `json:"constituents"`
}

type EventPlaneRecord struct {
	Detector   EventPlaneDetector `json:"detector"`
	ShiftedPsi map[int]float64    `json:"shifted_psi"`
}

// EventRecord is one line of the input stream. Layer maps are keyed by the
// layer name (CEMC, HCALIN, HCALOUT); jets by node name.
type EventRecord struct {
	EventNumber int                         `json:"event"`
	TowerInfo   map[string]*TowerInfoRecord `json:"towerinfo,omitempty"`
	RawTowers   map[string][]RawTowerRecord `json:"towers,omitempty"`
	Jets        map[string][]JetRecord      `json:"jets,omitempty"`
	Truth       []TruthParticle             `json:"truth,omitempty"`
	EventPlanes []EventPlaneRecord          `json:"eventplanes,omitempty"`
}

func layerFromName(name string) (Layer, error) {
	for _, layer := range Layers {
		if layer.String() == name {
			return layer, nil
		}
	}
	return 0, fmt.Errorf("unknown layer %q", name)
}

func setChannels(towers *TowerInfoContainer, channels []uint32, set func(*TowerInfo)) error {
	for _, channel := range channels {
		tower, ok := towers.TowerAtChannel(channel)
		if !ok {
			return fmt.Errorf("channel %d outside %d towers", channel, towers.Size())
		}
		set(tower)
	}
	return nil
}

func (r *TowerInfoRecord) container(layer Layer) (*TowerInfoContainer, error) {
	if r.EtaBins*r.PhiBins != len(r.Energy) {
		return nil, fmt.Errorf("%v: %d energies for %d x %d towers", layer, len(r.Energy), r.EtaBins, r.PhiBins)
	}
	towers := NewTowerInfoContainer(layer, r.EtaBins, r.PhiBins)
	for channel, energy := range r.Energy {
		towers.Towers[channel].Energy = energy
	}
	err := errors.Join(
		setChannels(towers, r.Hot, func(t *TowerInfo) { t.IsHot = true }),
		setChannels(towers, r.NoCalib, func(t *TowerInfo) { t.IsNoCalib = true }),
		setChannels(towers, r.NotInstr, func(t *TowerInfo) { t.IsNotInstr = true }),
		setChannels(towers, r.BadChi2, func(t *TowerInfo) { t.IsBadChi2 = true }),
	)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", layer, err)
	}
	return towers, nil
}

// Populate clears the event scope of the tree and fills it with the
// objects of the record.
func (r *EventRecord) Populate(tree *NodeTree, prefix string) error {
	tree.ClearEvent()

	for name, record := range r.TowerInfo {
		layer, err := layerFromName(name)
		if err != nil {
			return err
		}
		towers, err := record.container(layer)
		if err != nil {
			return err
		}
		tree.AddEventNode(TowerInfoNodeName(prefix, layer), towers)
	}

	rawNames := [NLayers]string{RawTowerEMName, RawTowerIHName, RawTowerOHName}
	for name, records := range r.RawTowers {
		layer, err := layerFromName(name)
		if err != nil {
			return err
		}
		towers := NewRawTowerContainer(layer)
		for _, record := range records {
			towers.AddEnergy(EncodeTowerKey(layer, record.EtaBin, record.PhiBin), record.Energy)
		}
		tree.AddEventNode(rawNames[layer], towers)
	}

	for name, records := range r.Jets {
		jets := &JetContainer{Jets: make([]*Jet, 0, len(records))}
		for _, record := range records {
			jets.Jets = append(jets.Jets, &Jet{
				ID:           record.ID,
				Pt:           record.Pt,
				Eta:          record.Eta,
				Phi:          record.Phi,
				Constituents: record.Constituents,
			})
		}
		tree.AddEventNode(name, jets)
	}

	if r.Truth != nil {
		tree.AddEventNode(TruthInfoName, &TruthInfoContainer{Particles: r.Truth})
	}

	if r.EventPlanes != nil {
		epmap := NewEventPlaneInfoMap()
		for _, record := range r.EventPlanes {
			epmap.Insert(record.Detector, &EventPlaneInfo{ShiftedPsi: record.ShiftedPsi})
		}
		tree.AddEventNode(EventPlaneInfoName, epmap)
	}
	return nil
}

// EventReader decodes a stream of JSON event records, honouring the skip
// and maximum event settings.
type EventReader struct {
	decoder   *json.Decoder
	skip      int
	maxEvents int
	EvtCount  int
	verbosity int
}

func NewEventReader(r io.Reader, skip int, maxEvents int, verbosity int) *EventReader {
	return &EventReader{
		decoder:   json.NewDecoder(r),
		skip:      skip,
		maxEvents: maxEvents,
		EvtCount:  -1,
		verbosity: verbosity,
	}
}

// NextEvent returns io.EOF at the end of the stream or once the maximum
// number of events has been read.
func (f *EventReader) NextEvent() (*EventRecord, error) {
	for {
		record := &EventRecord{}
		if err := f.decoder.Decode(record); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("error decoding event %d: %w", f.EvtCount+1, err)
		}
		f.EvtCount++
		if f.EvtCount >= f.maxEvents {
			if f.verbosity > 0 {
				logger.Info("Max events reached", "eventReader")
			}
			return nil, io.EOF
		}
		if f.EvtCount < f.skip {
			if f.verbosity > 0 {
				message := fmt.Sprintf("Skipping event %d with number %d", f.EvtCount, record.EventNumber)
				logger.Info(message, "eventReader")
			}
			continue
		}
		if f.verbosity > 0 {
			message := fmt.Sprintf("Reading event %d with number %d", f.EvtCount, record.EventNumber)
			logger.Info(message, "eventReader")
		}
		return record, nil
	}
}
