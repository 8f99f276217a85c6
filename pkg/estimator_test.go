package background

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimatorTwoByFourScenario(t *testing.T) {
	ev := newTestEvent(t, 2, 4)
	for phi := 0; phi < 4; phi++ {
		ev.set(LayerEMCal, 0, phi, 10)
		ev.mask(LayerEMCal, 1, phi)
	}
	ev.maskLayer(LayerIHCal)
	ev.maskLayer(LayerOHCal)

	estimator := newTestEstimator(t, ev, FlowCalorimeter)
	require.NoError(t, estimator.ProcessEvent(ev.tree))
	result := estimator.Background()

	assert.Empty(t, estimator.Seeds())
	assert.False(t, result.FlowFailure)
	assert.Equal(t, 1, result.NStripsUsedForFlow)
	assert.Equal(t, 4, result.NTowersUsedForBkg)
	assert.Equal(t, 0.0, result.Psi2)

	phis := []float64{-3 * math.Pi / 4, -math.Pi / 4, math.Pi / 4, 3 * math.Pi / 4}
	var qx, qy, sumCos float64
	for i, phi := range phis {
		assert.InDelta(t, phi, ev.geomIH.PhiCenter(i), 1e-12)
		qx += 10 * math.Cos(2*phi)
		qy += 10 * math.Sin(2*phi)
		sumCos += 10 * math.Cos(2*(phi-result.Psi2))
	}
	assert.InDelta(t, 0, qx, 1e-12)
	assert.InDelta(t, 0, qy, 1e-12)
	assert.InDelta(t, sumCos/40, result.V2, 1e-12)
	assert.InDelta(t, 0, result.V2, 1e-12)

	assert.InDelta(t, 10, result.UEAt(LayerEMCal, 0), 1e-9)
	assert.Equal(t, 0.0, result.UEAt(LayerEMCal, 1))
	assert.Equal(t, []float64{0, 0}, result.UEParameters(LayerIHCal))
	assert.Equal(t, []float64{0, 0}, result.UEParameters(LayerOHCal))
}

// fillRepeatableEvent builds an event with seeds, masked towers and flow.
func fillRepeatableEvent(ev *testEvent) {
	for _, layer := range Layers {
		for eta := 0; eta < ev.geomIH.EtaBins(); eta++ {
			for phi := 0; phi < ev.geomIH.PhiBins(); phi++ {
				energy := 0.3*float64(layer+1) + 0.05*float64(eta) + 0.2*math.Cos(2*(ev.geomIH.PhiCenter(phi)-0.7))
				ev.set(layer, eta, phi, energy+0.01*math.Sin(float64(7*eta+3*phi)))
			}
		}
	}
	ev.mask(LayerOHCal, 3, 10)
	ev.mask(LayerEMCal, 20, 40)

	ev.set(LayerEMCal, 12, 5, 40)
	ev.set(LayerIHCal, 12, 5, 8)
	ev.addJet(&Jet{ID: 1, Pt: 45, Eta: ev.geomIH.EtaCenter(12), Phi: ev.geomIH.PhiCenter(5), Constituents: []JetConstituent{
		emConstituent(ev, 12, 5), ihConstituent(ev, 12, 5), emConstituent(ev, 12, 6), emConstituent(ev, 12, 4),
		emConstituent(ev, 11, 5), emConstituent(ev, 13, 5),
	}})
	ev.addJet(&Jet{ID: 2, Pt: 8, Eta: 0.5, Phi: 2, Constituents: []JetConstituent{
		emConstituent(ev, 17, 50), emConstituent(ev, 17, 51),
	}})
	ev.addJet(&Jet{ID: 3, Pt: 3, Eta: -0.5, Phi: -2})
}

func TestEstimatorIsRepeatable(t *testing.T) {
	first := newTestEvent(t, 24, 64)
	fillRepeatableEvent(first)
	estimator := newTestEstimator(t, first, FlowCalorimeter)

	require.NoError(t, estimator.ProcessEvent(first.tree))
	once := estimator.Background().Clone()
	require.Equal(t, 1, len(estimator.Seeds()))
	require.NoError(t, estimator.ProcessEvent(first.tree))
	twice := estimator.Background().Clone()

	second := newTestEvent(t, 24, 64)
	fillRepeatableEvent(second)
	fresh := newTestEstimator(t, second, FlowCalorimeter)
	require.NoError(t, fresh.ProcessEvent(second.tree))

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("same estimator, second pass differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(once, fresh.Background()); diff != "" {
		t.Errorf("fresh estimator differs (-first +fresh):\n%s", diff)
	}
	assert.False(t, once.FlowFailure)
	assert.Less(t, once.NStripsUsedForFlow, 3*24)
}

func TestEstimatorDoesNotLeakStateBetweenEvents(t *testing.T) {
	busy := newTestEvent(t, 24, 64)
	fillRepeatableEvent(busy)
	estimator := newTestEstimator(t, busy, FlowCalorimeter)
	require.NoError(t, estimator.ProcessEvent(busy.tree))

	quiet := newTestEvent(t, 24, 64)
	// Same tree, new event content.
	busy.tree.ClearEvent()
	for _, layer := range Layers {
		busy.tree.AddEventNode(TowerInfoNodeName(testPrefix, layer), quiet.towers[layer])
	}
	busy.tree.AddEventNode(RawSeedJetsTowerInfoName, &JetContainer{})
	require.NoError(t, estimator.ProcessEvent(busy.tree))

	result := estimator.Background()
	assert.Empty(t, estimator.Seeds())
	assert.Equal(t, 3*24, result.NStripsUsedForFlow)
	assert.Equal(t, 3*24*64, result.NTowersUsedForBkg)
	assert.Equal(t, 0.0, result.V2)
	for _, layer := range Layers {
		for _, ue := range result.UEParameters(layer) {
			assert.Equal(t, 0.0, ue)
		}
	}
}

func TestEstimatorLegacyTowersMatchTowerInfo(t *testing.T) {
	ev := newTestEvent(t, 8, 16)
	names := [NLayers]string{RawTowerEMName, RawTowerIHName, RawTowerOHName}
	for _, layer := range Layers {
		raw := NewRawTowerContainer(layer)
		for eta := 0; eta < 8; eta++ {
			for phi := 0; phi < 16; phi++ {
				energy := 1 + 0.1*float64(eta) + 0.3*math.Cos(2*(ev.geomIH.PhiCenter(phi)+0.2))
				ev.set(layer, eta, phi, energy)
				raw.AddEnergy(EncodeTowerKey(layer, eta, phi), energy)
			}
		}
		ev.tree.AddEventNode(names[layer], raw)
	}
	ev.tree.AddEventNode(SubSeedJetsTowerName, &JetContainer{Jets: []*Jet{{ID: 1, Pt: 20, Eta: 0.1, Phi: 0.3}}})
	ev.tree.AddEventNode(SubSeedJetsTowerInfoName, &JetContainer{Jets: []*Jet{{ID: 1, Pt: 20, Eta: 0.1, Phi: 0.3}}})

	compact := NewEstimator()
	compact.SetSeedType(SeedTypePt)
	compact.SetFlow(FlowCalorimeter)
	compact.SetBackgroundName("TowerInfoBackground")
	require.NoError(t, compact.InitRun(ev.tree))
	require.NoError(t, compact.ProcessEvent(ev.tree))

	legacy := NewEstimator()
	legacy.SetUseTowerInfo(false)
	legacy.SetSeedType(SeedTypePt)
	legacy.SetFlow(FlowCalorimeter)
	legacy.SetBackgroundName("TowerBackground")
	require.NoError(t, legacy.InitRun(ev.tree))
	require.NoError(t, legacy.ProcessEvent(ev.tree))

	assert.Len(t, legacy.Seeds(), 1)
	if diff := cmp.Diff(compact.Background(), legacy.Background()); diff != "" {
		t.Errorf("legacy towers differ (-towerinfo +legacy):\n%s", diff)
	}
}

func TestInitRunRejectsExistingBackground(t *testing.T) {
	ev := newTestEvent(t, 2, 4)
	newTestEstimator(t, ev, FlowDisabled)

	again := NewEstimator()
	err := again.InitRun(ev.tree)
	var exists *ErrNodeExists
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "JETBACKGROUND/TowerBackground", exists.Name)
	assert.True(t, IsFatal(err))

	published, ok := FindNode[*TowerBackground](ev.tree, "JETBACKGROUND/TowerBackground")
	require.True(t, ok)
	assert.NotNil(t, published)
	_, ok = FindNode[*TowerBackground](ev.tree, "TowerBackground")
	assert.False(t, ok)

	other := NewEstimator()
	other.SetBackgroundName("TowerBackground_Sub2")
	require.NoError(t, other.InitRun(ev.tree))
}

func TestProcessEventFatalConditions(t *testing.T) {
	t.Run("before init run", func(t *testing.T) {
		ev := newTestEvent(t, 2, 4)
		err := NewEstimator().ProcessEvent(ev.tree)
		assert.True(t, IsFatal(err))
	})

	t.Run("missing seed jets", func(t *testing.T) {
		ev := newTestEvent(t, 2, 4)
		estimator := newTestEstimator(t, ev, FlowDisabled)
		delete(ev.tree.event, RawSeedJetsTowerInfoName)
		err := estimator.ProcessEvent(ev.tree)
		var missing *ErrMissingNode
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, RawSeedJetsTowerInfoName, missing.Name)
	})

	t.Run("missing geometry", func(t *testing.T) {
		ev := newTestEvent(t, 2, 4)
		estimator := newTestEstimator(t, ev, FlowDisabled)
		delete(ev.tree.run, TowerGeomOHName)
		err := estimator.ProcessEvent(ev.tree)
		var geomErr *ErrMissingGeometry
		require.ErrorAs(t, err, &geomErr)
		assert.Equal(t, LayerOHCal, geomErr.Layer)
		assert.True(t, IsFatal(err))
	})

	t.Run("missing towers", func(t *testing.T) {
		ev := newTestEvent(t, 2, 4)
		estimator := newTestEstimator(t, ev, FlowDisabled)
		delete(ev.tree.event, TowerInfoNodeName(testPrefix, LayerEMCal))
		err := estimator.ProcessEvent(ev.tree)
		assert.True(t, IsFatal(err))
	})
}

func TestProcessEventSetsJetProperties(t *testing.T) {
	ev := newTestEvent(t, 24, 64)
	fillRepeatableEvent(ev)
	estimator := newTestEstimator(t, ev, FlowDisabled)
	require.NoError(t, estimator.ProcessEvent(ev.tree))

	for _, jet := range ev.jets.Jets {
		_, hasD := jet.Property(PropSeedD)
		_, hasItr := jet.Property(PropSeedItr)
		assert.True(t, hasD, "jet %d", jet.ID)
		assert.True(t, hasItr, "jet %d", jet.ID)
	}
	itr, _ := ev.jets.Jets[0].Property(PropSeedItr)
	assert.Equal(t, 1.0, itr)

	result := estimator.Background()
	assert.Equal(t, 0.0, result.Psi2)
	assert.Equal(t, 0.0, result.V2)
	assert.Equal(t, 0, result.NStripsUsedForFlow)
	assert.False(t, result.FlowFailure)
}

func TestNewEstimatorFromConfiguration(t *testing.T) {
	config := DefaultConfiguration()
	config.SeedType = SeedTypePt
	config.SeedJetPt = 12
	config.DoFlow = FlowTruth
	config.BackgroundName = "TowerInfoBackground_Sub2"
	config.Verbosity = 2

	estimator := NewEstimatorFromConfiguration(config)
	assert.Equal(t, SeedTypePt, estimator.seedType)
	assert.Equal(t, 12.0, estimator.seedJetPt)
	assert.Equal(t, FlowTruth, estimator.doFlow)
	assert.Equal(t, "TowerInfoBackground_Sub2", estimator.backgroundName)
	assert.Equal(t, 2, estimator.Verbosity())
	assert.True(t, estimator.useTowerInfo)
}
