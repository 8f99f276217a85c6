package background

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventRecordJSON = `{
	"event": 42,
	"towerinfo": {
		"CEMC": {"eta_bins": 2, "phi_bins": 2, "energy": [1, 2, 3, 4], "hot": [3]},
		"HCALIN": {"eta_bins": 2, "phi_bins": 2, "energy": [0, 0, 0, 0.5], "no_calib": [0, 1]}
	},
	"towers": {"HCALOUT": [{"ieta": 1, "iphi": 0, "e": 2}, {"ieta": 1, "iphi": 0, "e": 0.5}]},
	"jets": {"AntiKt_TowerInfo_HIRecoSeedsRaw_r02": [{"id": 3, "pt": 12, "eta": 0.1, "phi": 2.5, "constituents": [{"src": 28, "index": 3}]}]},
	"truth": [{"track_id": 1, "pid": 211, "px": 1, "py": 0, "pz": 0, "e": 1, "primary": true}],
	"eventplanes": [{"detector": 2, "shifted_psi": {"2": 0.35}}]
}`

func TestEventRecordPopulate(t *testing.T) {
	reader := NewEventReader(strings.NewReader(eventRecordJSON), 0, 10, 0)
	record, err := reader.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, 42, record.EventNumber)

	tree := NewNodeTree()
	tree.AddEventNode("stale", &JetContainer{})
	require.NoError(t, record.Populate(tree, "TOWERINFO_CALIB"))

	_, ok := FindNode[*JetContainer](tree, "stale")
	assert.False(t, ok)

	emcal, ok := FindNode[*TowerInfoContainer](tree, "TOWERINFO_CALIB_CEMC_RETOWER")
	require.True(t, ok)
	assert.Equal(t, 4, emcal.Size())
	tower, _ := emcal.TowerAtChannel(3)
	assert.Equal(t, 4.0, tower.Energy)
	assert.True(t, tower.IsHot)
	assert.True(t, tower.IsBad())

	ihcal, ok := FindNode[*TowerInfoContainer](tree, "TOWERINFO_CALIB_HCALIN")
	require.True(t, ok)
	tower, _ = ihcal.TowerAtChannel(1)
	assert.True(t, tower.IsNoCalib)

	ohcal, ok := FindNode[*RawTowerContainer](tree, RawTowerOHName)
	require.True(t, ok)
	raw, ok := ohcal.GetTower(EncodeTowerKey(LayerOHCal, 1, 0))
	require.True(t, ok)
	assert.Equal(t, 2.5, raw.Energy)

	jets, ok := FindNode[*JetContainer](tree, RawSeedJetsTowerInfoName)
	require.True(t, ok)
	require.Len(t, jets.Jets, 1)
	assert.Equal(t, SrcCemcTowerInfoRetower, jets.Jets[0].Constituents[0].Source)

	truth, ok := FindNode[*TruthInfoContainer](tree, TruthInfoName)
	require.True(t, ok)
	assert.Len(t, truth.PrimaryParticles(), 1)

	epmap, ok := FindNode[*EventPlaneInfoMap](tree, EventPlaneInfoName)
	require.True(t, ok)
	info, ok := epmap.Get(EPDetectorSEPDNorthSouth)
	require.True(t, ok)
	assert.Equal(t, 0.35, info.GetShiftedPsi(2))
}

func TestEventRecordPopulateErrors(t *testing.T) {
	tree := NewNodeTree()

	record := &EventRecord{TowerInfo: map[string]*TowerInfoRecord{"FEMC": {EtaBins: 1, PhiBins: 1, Energy: []float64{1}}}}
	assert.Error(t, record.Populate(tree, testPrefix))

	record = &EventRecord{TowerInfo: map[string]*TowerInfoRecord{"CEMC": {EtaBins: 2, PhiBins: 2, Energy: []float64{1}}}}
	assert.Error(t, record.Populate(tree, testPrefix))

	record = &EventRecord{TowerInfo: map[string]*TowerInfoRecord{"CEMC": {EtaBins: 1, PhiBins: 1, Energy: []float64{1}, BadChi2: []uint32{7}}}}
	assert.Error(t, record.Populate(tree, testPrefix))
}

func TestEventReaderSkipAndMax(t *testing.T) {
	var stream strings.Builder
	for i := 0; i < 6; i++ {
		stream.WriteString(`{"event": ` + string(rune('0'+i)) + "}\n")
	}

	reader := NewEventReader(strings.NewReader(stream.String()), 2, 4, 0)
	var numbers []int
	for {
		record, err := reader.NextEvent()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		numbers = append(numbers, record.EventNumber)
	}
	assert.Equal(t, []int{2, 3}, numbers)

	reader = NewEventReader(strings.NewReader(`{"event": 1} {"event": `), 0, 10, 0)
	_, err := reader.NextEvent()
	require.NoError(t, err)
	_, err = reader.NextEvent()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}
