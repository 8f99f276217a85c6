package background

import (
	"fmt"
	"maps"
	"slices"
)

// Layer is one of the three calorimeter layers used for the background.
type Layer int

const (
	LayerEMCal Layer = iota
	LayerIHCal
	LayerOHCal
)

const NLayers = 3

var Layers = [NLayers]Layer{LayerEMCal, LayerIHCal, LayerOHCal}

func (l Layer) String() string {
	switch l {
	case LayerEMCal:
		return "CEMC"
	case LayerIHCal:
		return "HCALIN"
	case LayerOHCal:
		return "HCALOUT"
	default:
		return "Unknown"
	}
}

// TowerKey identifies a tower of the legacy tower containers,
// encoded as calo << 24 | ieta << 12 | iphi.
type TowerKey uint32

func EncodeTowerKey(layer Layer, etaBin int, phiBin int) TowerKey {
	return TowerKey(uint32(layer+1)<<24 | uint32(etaBin&0xfff)<<12 | uint32(phiBin&0xfff))
}

func (k TowerKey) Layer() Layer {
	return Layer(k>>24) - 1
}

func (k TowerKey) EtaBin() int {
	return int((k >> 12) & 0xfff)
}

func (k TowerKey) PhiBin() int {
	return int(k & 0xfff)
}

type RawTower struct {
	Key    TowerKey
	Energy float64
}

// RawTowerContainer is the legacy tower representation: towers keyed by
// tower id, positions resolved through the geometry.
type RawTowerContainer struct {
	Layer  Layer
	Towers map[TowerKey]*RawTower
}

func NewRawTowerContainer(layer Layer) *RawTowerContainer {
	return &RawTowerContainer{
		Layer:  layer,
		Towers: make(map[TowerKey]*RawTower),
	}
}

// AddEnergy adds energy to the tower with the given key, creating it if needed.
func (c *RawTowerContainer) AddEnergy(key TowerKey, energy float64) {
	tower, ok := c.Towers[key]
	if !ok {
		tower = &RawTower{Key: key}
		c.Towers[key] = tower
	}
	tower.Energy += energy
}

func (c *RawTowerContainer) GetTower(key TowerKey) (*RawTower, bool) {
	tower, ok := c.Towers[key]
	return tower, ok
}

func (c *RawTowerContainer) Size() int {
	return len(c.Towers)
}

// SortedKeys gives a stable iteration order, needed to keep the floating
// point sums reproducible between runs.
func (c *RawTowerContainer) SortedKeys() []TowerKey {
	return slices.Sorted(maps.Keys(c.Towers))
}

type TowerInfo struct {
	Energy     float64
	IsHot      bool
	IsNoCalib  bool
	IsNotInstr bool
	IsBadChi2  bool
}

func (t TowerInfo) IsBad() bool {
	return t.IsHot || t.IsNoCalib || t.IsNotInstr || t.IsBadChi2
}

// TowerInfoContainer is the compact representation: one entry per channel,
// channel = ieta * nphi + iphi.
type TowerInfoContainer struct {
	Layer   Layer
	EtaBins int
	PhiBins int
	Towers  []TowerInfo
}

func NewTowerInfoContainer(layer Layer, etaBins int, phiBins int) *TowerInfoContainer {
	return &TowerInfoContainer{
		Layer:   layer,
		EtaBins: etaBins,
		PhiBins: phiBins,
		Towers:  make([]TowerInfo, etaBins*phiBins),
	}
}

func (c *TowerInfoContainer) Size() int {
	return len(c.Towers)
}

func (c *TowerInfoContainer) TowerAtChannel(channel uint32) (*TowerInfo, bool) {
	if int(channel) >= len(c.Towers) {
		return nil, false
	}
	return &c.Towers[channel], true
}

func (c *TowerInfoContainer) Channel(etaBin int, phiBin int) uint32 {
	return uint32(etaBin*c.PhiBins + phiBin)
}

func (c *TowerInfoContainer) EncodeKey(channel uint32) uint32 {
	etaBin := int(channel) / c.PhiBins
	phiBin := int(channel) % c.PhiBins
	return uint32(etaBin)<<16 | uint32(phiBin)
}

func (c *TowerInfoContainer) TowerEtaBin(key uint32) int {
	return int(key >> 16)
}

func (c *TowerInfoContainer) TowerPhiBin(key uint32) int {
	return int(key & 0xffff)
}

// JetSource tells which tower collection a jet constituent points into.
type JetSource int

const (
	SrcHcalInTower          JetSource = 5
	SrcHcalOutTower         JetSource = 7
	SrcCemcTowerRetower     JetSource = 13
	SrcHcalInTowerInfo      JetSource = 26
	SrcHcalOutTowerInfo     JetSource = 27
	SrcCemcTowerInfoRetower JetSource = 28
)

// Layer maps a constituent source to its calorimeter layer.
func (s JetSource) Layer() (Layer, bool) {
	switch s {
	case SrcHcalInTower, SrcHcalInTowerInfo:
		return LayerIHCal, true
	case SrcHcalOutTower, SrcHcalOutTowerInfo:
		return LayerOHCal, true
	case SrcCemcTowerRetower, SrcCemcTowerInfoRetower:
		return LayerEMCal, true
	}
	return 0, false
}

type JetConstituent struct {
	Source JetSource `json:"src"`
	// Index is a channel for tower-info sources and a TowerKey otherwise.
	Index uint32 `json:"index"`
}

type JetProperty int

const (
	PropSeedD JetProperty = iota
	PropSeedItr
)

func (p JetProperty) String() string {
	switch p {
	case PropSeedD:
		return "SeedD"
	case PropSeedItr:
		return "SeedItr"
	default:
		return fmt.Sprintf("prop_%d", int(p))
	}
}

type Jet struct {
	ID           int
	Pt           float64
	Eta          float64
	Phi          float64
	Properties   map[JetProperty]float64
	Constituents []JetConstituent
}

func (j *Jet) SetProperty(prop JetProperty, value float64) {
	if j.Properties == nil {
		j.Properties = make(map[JetProperty]float64)
	}
	j.Properties[prop] = value
}

func (j *Jet) Property(prop JetProperty) (float64, bool) {
	value, ok := j.Properties[prop]
	return value, ok
}

type JetContainer struct {
	Jets []*Jet
}

func (c *JetContainer) Size() int {
	return len(c.Jets)
}

type TruthParticle struct {
	TrackID int     `json:"track_id"`
	PID     int     `json:"pid"`
	Px      float64 `json:"px"`
	Py      float64 `json:"py"`
	Pz      float64 `json:"pz"`
	E       float64 `json:"e"`
	Primary bool    `json:"primary"`
	// Embedded is non-zero for particles embedded on top of the
	// underlying event.
	Embedded int `json:"embedded"`
}

type TruthInfoContainer struct {
	Particles []TruthParticle
}

func (c *TruthInfoContainer) PrimaryParticles() []TruthParticle {
	primaries := make([]TruthParticle, 0, len(c.Particles))
	for _, particle := range c.Particles {
		if particle.Primary {
			primaries = append(primaries, particle)
		}
	}
	return primaries
}

type EventPlaneDetector int

const (
	EPDetectorSEPDSouth EventPlaneDetector = iota
	EPDetectorSEPDNorth
	EPDetectorSEPDNorthSouth
	EPDetectorMBDSouth
	EPDetectorMBDNorth
	EPDetectorMBDNorthSouth
)

type EventPlaneInfo struct {
	// ShiftedPsi holds the flattened event plane angle per harmonic.
	ShiftedPsi map[int]float64
}

func (e *EventPlaneInfo) GetShiftedPsi(order int) float64 {
	return e.ShiftedPsi[order]
}

type EventPlaneInfoMap struct {
	entries map[EventPlaneDetector]*EventPlaneInfo
}

func NewEventPlaneInfoMap() *EventPlaneInfoMap {
	return &EventPlaneInfoMap{entries: make(map[EventPlaneDetector]*EventPlaneInfo)}
}

func (m *EventPlaneInfoMap) Insert(detector EventPlaneDetector, info *EventPlaneInfo) {
	m.entries[detector] = info
}

func (m *EventPlaneInfoMap) Empty() bool {
	return len(m.entries) == 0
}

func (m *EventPlaneInfoMap) Get(detector EventPlaneDetector) (*EventPlaneInfo, bool) {
	info, ok := m.entries[detector]
	return info, ok && info != nil
}
