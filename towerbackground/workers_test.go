package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	background "github.com/sphenix-collaboration/towerbackground_go/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger(t *testing.T) {
	t.Helper()
	saved := logger
	logger = NewLogger(io.Discard, io.Discard, slog.LevelDebug)
	t.Cleanup(func() { logger = saved })
}

func TestProcessWorkerResultsKeepsInputOrder(t *testing.T) {
	quietLogger(t)
	qa := background.NewQAHistograms(2)
	bkg := background.NewTowerBackground()

	results := make(chan WorkerResult, 4)
	results <- WorkerResult{Seq: 3, EventNumber: 13, Err: fmt.Errorf("bad tower: %w", background.ErrAbortRun)}
	results <- WorkerResult{Seq: 1, EventNumber: 11, Err: fmt.Errorf("event content")}
	results <- WorkerResult{Seq: 2, EventNumber: 12, Background: bkg}
	results <- WorkerResult{Seq: 0, EventNumber: 10, Background: bkg}
	close(results)

	evtsProcessed, err := processWorkerResults(results, eventSinks{qa: qa})
	assert.Equal(t, 2, evtsProcessed)
	assert.Equal(t, 2, qa.NEvents)
	assert.True(t, background.IsFatal(err))
}

func towerInfoJSON(energies ...float64) string {
	values := make([]string, len(energies))
	for i, e := range energies {
		values[i] = fmt.Sprintf("%g", e)
	}
	return fmt.Sprintf(`{"eta_bins": 2, "phi_bins": 4, "energy": [%s]}`, strings.Join(values, ", "))
}

func writeEvents(t *testing.T, nEvents int, badEvent int) string {
	t.Helper()
	var lines strings.Builder
	for evt := 0; evt < nEvents; evt++ {
		emcal := towerInfoJSON(1, 2, 3, 4, 1, 2, 3, 4)
		if evt == badEvent {
			emcal = `{"eta_bins": 2, "phi_bins": 4, "energy": [1]}`
		}
		fmt.Fprintf(&lines, `{"event": %d, "towerinfo": {"CEMC": %s, "HCALIN": %s, "HCALOUT": %s}, "jets": {%q: []}}`+"\n",
			100+evt, emcal, towerInfoJSON(0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5),
			towerInfoJSON(1, 1, 1, 1, 1, 1, 1, 1), background.RawSeedJetsTowerInfoName)
	}
	fname := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(fname, []byte(lines.String()), 0o644))
	return fname
}

func testRunConfiguration(t *testing.T, fileIn string) background.Configuration {
	config := background.DefaultConfiguration()
	config.FileIn = fileIn
	config.NoDB = true
	config.EtaBins = 2
	config.PhiBins = 4
	config.NumWorkers = 3
	config.WriteData = false
	t.Cleanup(func() { background.SetConfiguration(background.DefaultConfiguration()) })
	return config
}

func TestRunWorkersDiscardsBadEvents(t *testing.T) {
	quietLogger(t)
	config := testRunConfiguration(t, writeEvents(t, 6, 2))
	geometry, err := loadGeometry(config)
	require.NoError(t, err)
	fileReader, err := NewFileReader(config.FileIn, config)
	require.NoError(t, err)
	defer fileReader.Close()

	qa := background.NewQAHistograms(2)
	evtsProcessed, err := runWorkers(context.Background(), config, geometry, fileReader, eventSinks{qa: qa})
	require.NoError(t, err)
	assert.Equal(t, 5, evtsProcessed)
	assert.Equal(t, 5, qa.NEvents)
	assert.Equal(t, 0, qa.NFlowFailed)
}

func TestRunWritesOutputAndPlots(t *testing.T) {
	quietLogger(t)
	config := testRunConfiguration(t, writeEvents(t, 4, -1))
	outDir := t.TempDir()
	config.WriteData = true
	config.FileOut = filepath.Join(outDir, "background.h5")
	config.QAPlots = filepath.Join(outDir, "qa")
	config.MaxEvents = 3

	require.NoError(t, run(context.Background(), config))

	_, err := os.Stat(config.FileOut)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(config.QAPlots, "ue.png"))
	assert.NoError(t, err)
}

func TestRunFailsWithoutInput(t *testing.T) {
	quietLogger(t)
	config := testRunConfiguration(t, filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, run(context.Background(), config))
}
