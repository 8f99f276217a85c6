package background

import (
	"fmt"
	"math"
)

// TowerSample is one tower resolved to the background grid.
type TowerSample struct {
	Layer  Layer
	EtaBin int
	PhiBin int
	Eta    float64
	Energy float64
	Masked bool
}

// ET is the transverse energy of the sample at its geometric eta.
func (s TowerSample) ET() float64 {
	return s.Energy / math.Cosh(s.Eta)
}

// TowerSource hides whether towers come from the legacy or the compact
// containers.
type TowerSource interface {
	Layer() Layer
	// Len is the number of samples reachable through Sample.
	Len() int
	Sample(i int) (TowerSample, bool)
	// Constituent resolves a jet constituent index (a channel or a tower
	// key depending on the representation).
	Constituent(index uint32) (TowerSample, bool)
}

type rawTowerSource struct {
	layer  Layer
	towers *RawTowerContainer
	geom   Geometry
	keys   []TowerKey
}

// NewRawTowerSource binds legacy towers to the geometry that converts their
// position into bins.
func NewRawTowerSource(layer Layer, towers *RawTowerContainer, geom Geometry) TowerSource {
	return &rawTowerSource{
		layer:  layer,
		towers: towers,
		geom:   geom,
		keys:   towers.SortedKeys(),
	}
}

func (s *rawTowerSource) Layer() Layer {
	return s.layer
}

func (s *rawTowerSource) Len() int {
	return len(s.keys)
}

func (s *rawTowerSource) Sample(i int) (TowerSample, bool) {
	if i < 0 || i >= len(s.keys) {
		return TowerSample{}, false
	}
	return s.Constituent(uint32(s.keys[i]))
}

func (s *rawTowerSource) Constituent(index uint32) (TowerSample, bool) {
	tower, ok := s.towers.GetTower(TowerKey(index))
	if !ok || tower == nil {
		return TowerSample{}, false
	}
	position, ok := s.geom.TowerPosition(tower.Key)
	if !ok {
		return TowerSample{}, false
	}
	return TowerSample{
		Layer:  s.layer,
		EtaBin: s.geom.EtaBin(position.Eta),
		PhiBin: s.geom.PhiBin(position.Phi),
		Eta:    position.Eta,
		Energy: tower.Energy,
	}, true
}

type towerInfoSource struct {
	layer  Layer
	towers *TowerInfoContainer
	geom   Geometry
}

// NewTowerInfoSource binds compact towers to the geometry used for their
// eta; bins come straight from the channel key.
func NewTowerInfoSource(layer Layer, towers *TowerInfoContainer, geom Geometry) TowerSource {
	return &towerInfoSource{
		layer:  layer,
		towers: towers,
		geom:   geom,
	}
}

func (s *towerInfoSource) Layer() Layer {
	return s.layer
}

func (s *towerInfoSource) Len() int {
	return s.towers.Size()
}

func (s *towerInfoSource) Sample(i int) (TowerSample, bool) {
	if i < 0 {
		return TowerSample{}, false
	}
	return s.Constituent(uint32(i))
}

func (s *towerInfoSource) Constituent(index uint32) (TowerSample, bool) {
	tower, ok := s.towers.TowerAtChannel(index)
	if !ok {
		return TowerSample{}, false
	}
	key := s.towers.EncodeKey(index)
	etaBin := s.towers.TowerEtaBin(key)
	phiBin := s.towers.TowerPhiBin(key)
	return TowerSample{
		Layer:  s.layer,
		EtaBin: etaBin,
		PhiBin: phiBin,
		Eta:    s.geom.EtaCenter(etaBin),
		Energy: tower.Energy,
		Masked: tower.IsBad(),
	}, true
}

// towerSources collects the three layers of one event.
type towerSources [NLayers]TowerSource

// loadTowerSources pulls the three tower collections out of the node tree.
// The retowered EMCal shares the inner HCal geometry.
func loadTowerSources(tree *NodeTree, useTowerInfo bool, prefix string, geomIH Geometry, geomOH Geometry) (towerSources, error) {
	var sources towerSources
	geoms := [NLayers]Geometry{geomIH, geomIH, geomOH}
	if useTowerInfo {
		for _, layer := range Layers {
			name := TowerInfoNodeName(prefix, layer)
			towers, err := MustFindNode[*TowerInfoContainer](tree, name)
			if err != nil {
				return sources, err
			}
			if towers == nil {
				return sources, &ErrMissingNode{Name: name}
			}
			sources[layer] = NewTowerInfoSource(layer, towers, geoms[layer])
		}
	} else {
		names := [NLayers]string{RawTowerEMName, RawTowerIHName, RawTowerOHName}
		for _, layer := range Layers {
			towers, err := MustFindNode[*RawTowerContainer](tree, names[layer])
			if err != nil {
				return sources, err
			}
			if towers == nil {
				return sources, &ErrMissingNode{Name: names[layer]}
			}
			sources[layer] = NewRawTowerSource(layer, towers, geoms[layer])
		}
	}
	return sources, nil
}

// constituent resolves a jet constituent through the source of its layer.
func (s towerSources) constituent(c JetConstituent) (TowerSample, error) {
	layer, ok := c.Source.Layer()
	if !ok {
		return TowerSample{}, fmt.Errorf("unknown constituent source %d", c.Source)
	}
	sample, ok := s[layer].Constituent(c.Index)
	if !ok {
		return TowerSample{}, fmt.Errorf("no %v tower for constituent %d", layer, c.Index)
	}
	return sample, nil
}
