package background

import (
	"fmt"
	"slices"
)

// TowerBackground is the per-event background record published on the
// node tree. It is created once per job and overwritten every event.
type TowerBackground struct {
	UE                 [NLayers][]float64
	V2                 float64
	Psi2               float64
	NStripsUsedForFlow int
	NTowersUsedForBkg  int
	FlowFailure        bool
}

func NewTowerBackground() *TowerBackground {
	return &TowerBackground{}
}

func (b *TowerBackground) SetUEParameters(layer Layer, ue []float64) {
	b.UE[layer] = slices.Clone(ue)
}

func (b *TowerBackground) UEParameters(layer Layer) []float64 {
	return b.UE[layer]
}

// UEAt returns 0 outside the stored eta range.
func (b *TowerBackground) UEAt(layer Layer, etaBin int) float64 {
	if etaBin < 0 || etaBin >= len(b.UE[layer]) {
		return 0
	}
	return b.UE[layer][etaBin]
}

func (b *TowerBackground) SetFlow(flow FlowResult) {
	b.V2 = flow.V2
	b.Psi2 = flow.Psi2
	b.NStripsUsedForFlow = flow.NStrips
	b.FlowFailure = flow.Failure
}

func (b *TowerBackground) Clone() *TowerBackground {
	clone := *b
	for _, layer := range Layers {
		clone.UE[layer] = slices.Clone(b.UE[layer])
	}
	return &clone
}

func (b *TowerBackground) String() string {
	return fmt.Sprintf("TowerBackground{v2: %g, Psi2: %g, nStrips: %d, nTowers: %d, flowFailure: %t}",
		b.V2, b.Psi2, b.NStripsUsedForFlow, b.NTowersUsedForBkg, b.FlowFailure)
}
