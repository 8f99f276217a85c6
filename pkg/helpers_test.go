package background

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const testPrefix = "TOWERINFO_CALIB"

// testEvent is a compact-tower event on a uniform binning with both seed
// jet collections present and empty.
type testEvent struct {
	tree   *NodeTree
	geomIH *UniformGeometry
	geomOH *UniformGeometry
	towers [NLayers]*TowerInfoContainer
	jets   *JetContainer
}

func newTestEvent(t *testing.T, etaBins int, phiBins int) *testEvent {
	t.Helper()
	geomIH, err := NewUniformGeometry(LayerIHCal, etaBins, phiBins, -1.1, 1.1, -math.Pi)
	require.NoError(t, err)
	geomOH, err := NewUniformGeometry(LayerOHCal, etaBins, phiBins, -1.1, 1.1, -math.Pi)
	require.NoError(t, err)

	tree := NewNodeTree()
	require.NoError(t, RunGeometry{IHCal: geomIH, OHCal: geomOH}.Publish(tree))

	ev := &testEvent{tree: tree, geomIH: geomIH, geomOH: geomOH, jets: &JetContainer{}}
	for _, layer := range Layers {
		ev.towers[layer] = NewTowerInfoContainer(layer, etaBins, phiBins)
		tree.AddEventNode(TowerInfoNodeName(testPrefix, layer), ev.towers[layer])
	}
	tree.AddEventNode(RawSeedJetsTowerInfoName, ev.jets)
	tree.AddEventNode(SubSeedJetsTowerInfoName, ev.jets)
	return ev
}

func (ev *testEvent) set(layer Layer, eta int, phi int, energy float64) {
	towers := ev.towers[layer]
	towers.Towers[towers.Channel(eta, phi)].Energy = energy
}

func (ev *testEvent) mask(layer Layer, eta int, phi int) {
	towers := ev.towers[layer]
	towers.Towers[towers.Channel(eta, phi)].IsHot = true
}

func (ev *testEvent) maskLayer(layer Layer) {
	for i := range ev.towers[layer].Towers {
		ev.towers[layer].Towers[i].IsNoCalib = true
	}
}

func (ev *testEvent) addJet(jet *Jet) {
	ev.jets.Jets = append(ev.jets.Jets, jet)
}

// eventContext accumulates the event and marks the given seeds, as the
// estimator does before the flow stage.
func (ev *testEvent) eventContext(t *testing.T, seeds ...Seed) *EventContext {
	t.Helper()
	sources, err := loadTowerSources(ev.tree, true, testPrefix, ev.geomIH, ev.geomOH)
	require.NoError(t, err)
	grid, err := NewEnergyGrid(ev.geomIH.EtaBins(), ev.geomIH.PhiBins())
	require.NoError(t, err)
	require.NoError(t, grid.Accumulate(sources, 0))

	ctx := &EventContext{
		Tree:     ev.tree,
		Grid:     grid,
		Geometry: ev.geomIH,
		Seeds:    &SeedList{},
		Profile:  newFlowProfile(grid.PhiBins()),
	}
	for _, seed := range seeds {
		ctx.Seeds.Add(seed.Eta, seed.Phi)
	}
	ctx.markSeeds()
	return ctx
}

func newTestEstimator(t *testing.T, ev *testEvent, mode FlowMode) *Estimator {
	t.Helper()
	estimator := NewEstimator()
	estimator.SetFlow(mode)
	require.NoError(t, estimator.InitRun(ev.tree))
	return estimator
}
