package main

import (
	"os"
	"path/filepath"
	"testing"

	background "github.com/sphenix-collaboration/towerbackground_go/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()
	fname := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(fname, []byte(content), 0o644))
	return fname
}

func TestLoadConfigurationJSON(t *testing.T) {
	fname := writeFile(t, "config.json", `{
		"file_in": "events.json.gz",
		"file_out": "background.h5",
		"no_db": true,
		"seed_type": "pT",
		"do_flow": "truth",
		"num_workers": 3
	}`)

	config, err := LoadConfiguration(fname)
	require.NoError(t, err)
	assert.Equal(t, "events.json.gz", config.FileIn)
	assert.True(t, config.NoDB)
	assert.Equal(t, background.SeedTypePt, config.SeedType)
	assert.Equal(t, background.FlowTruth, config.DoFlow)
	assert.Equal(t, 3, config.NumWorkers)
	assert.Equal(t, 7.0, config.SeedJetPt)
}

func TestLoadConfigurationYAML(t *testing.T) {
	fname := writeFile(t, "config.yml", "run_number: 54912\ndb_driver: sqlite\ndbname: conditions.db\ndo_flow: 3\n")

	config, err := LoadConfiguration(fname)
	require.NoError(t, err)
	assert.Equal(t, 54912, config.RunNumber)
	assert.Equal(t, "sqlite", config.DBDriver)
	assert.Equal(t, background.FlowEventPlane, config.DoFlow)
	assert.Equal(t, background.SeedTypeD, config.SeedType)
}

func TestLoadConfigurationErrors(t *testing.T) {
	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfiguration(writeFile(t, "bad.json", `{"seed_type": "kt"}`))
	assert.Error(t, err)

	_, err = LoadConfiguration(writeFile(t, "bad.yaml", "do_flow: [1, 2]\n"))
	assert.Error(t, err)
}
