package background

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// EnergyGrid holds the summed tower energy of each layer on the common
// eta x phi binning, with a parallel masked flag and contribution count.
type EnergyGrid struct {
	etaBins int
	phiBins int
	energy  [NLayers]*mat.Dense
	masked  [NLayers][]bool
	counts  [NLayers][]int
}

// NewEnergyGrid allocates the grid once; the binning never changes
// afterwards.
func NewEnergyGrid(etaBins int, phiBins int) (*EnergyGrid, error) {
	if etaBins <= 0 || phiBins <= 0 {
		return nil, fmt.Errorf("invalid grid size %d x %d", etaBins, phiBins)
	}
	g := &EnergyGrid{etaBins: etaBins, phiBins: phiBins}
	for _, layer := range Layers {
		g.energy[layer] = mat.NewDense(etaBins, phiBins, nil)
		g.masked[layer] = make([]bool, etaBins*phiBins)
		g.counts[layer] = make([]int, etaBins*phiBins)
	}
	return g, nil
}

func (g *EnergyGrid) EtaBins() int {
	return g.etaBins
}

func (g *EnergyGrid) PhiBins() int {
	return g.phiBins
}

func (g *EnergyGrid) Reset() {
	for _, layer := range Layers {
		g.energy[layer].Zero()
		clear(g.masked[layer])
		clear(g.counts[layer])
	}
}

func (g *EnergyGrid) contains(etaBin int, phiBin int) bool {
	return etaBin >= 0 && etaBin < g.etaBins && phiBin >= 0 && phiBin < g.phiBins
}

// Add sums a tower into its bin. A bin is masked as soon as one of the
// towers summed into it is masked.
func (g *EnergyGrid) Add(sample TowerSample) error {
	if !g.contains(sample.EtaBin, sample.PhiBin) {
		return fmt.Errorf("%v tower at bin (%d, %d) outside %d x %d grid",
			sample.Layer, sample.EtaBin, sample.PhiBin, g.etaBins, g.phiBins)
	}
	dense := g.energy[sample.Layer]
	dense.Set(sample.EtaBin, sample.PhiBin, dense.At(sample.EtaBin, sample.PhiBin)+sample.Energy)
	index := sample.EtaBin*g.phiBins + sample.PhiBin
	g.masked[sample.Layer][index] = g.masked[sample.Layer][index] || sample.Masked
	g.counts[sample.Layer][index]++
	return nil
}

func (g *EnergyGrid) Energy(layer Layer, etaBin int, phiBin int) float64 {
	return g.energy[layer].At(etaBin, phiBin)
}

func (g *EnergyGrid) Masked(layer Layer, etaBin int, phiBin int) bool {
	return g.masked[layer][etaBin*g.phiBins+phiBin]
}

// Contributions is the number of towers summed into a bin this event.
func (g *EnergyGrid) Contributions(layer Layer, etaBin int, phiBin int) int {
	return g.counts[layer][etaBin*g.phiBins+phiBin]
}

// Row returns the energies of one eta strip. The slice aliases the grid.
func (g *EnergyGrid) Row(layer Layer, etaBin int) []float64 {
	return g.energy[layer].RawRowView(etaBin)
}

// LayerEnergy is the total energy deposited in a layer.
func (g *EnergyGrid) LayerEnergy(layer Layer) float64 {
	return mat.Sum(g.energy[layer])
}

// Accumulate resets the grid and fills it from the three layers.
func (g *EnergyGrid) Accumulate(sources towerSources, verbosity int) error {
	g.Reset()
	for _, layer := range Layers {
		source := sources[layer]
		if source == nil {
			return &ErrMissingNode{Name: layer.String()}
		}
		for i := 0; i < source.Len(); i++ {
			sample, ok := source.Sample(i)
			if !ok {
				continue
			}
			if err := g.Add(sample); err != nil {
				return err
			}
			if verbosity > 2 && sample.Energy > 1 {
				message := fmt.Sprintf("%v tower eta bin / phi bin / E = %d / %d / %.6g",
					layer, sample.EtaBin, sample.PhiBin, sample.Energy)
				logger.Info(message, "accumulator")
			}
		}
	}
	return nil
}
