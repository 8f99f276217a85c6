package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	background "github.com/sphenix-collaboration/towerbackground_go/pkg"
	"gopkg.in/yaml.v3"
)

// LoadConfiguration reads a JSON file, or YAML for .yaml / .yml, on top of
// the default configuration.
func LoadConfiguration(filename string) (background.Configuration, error) {
	config := background.DefaultConfiguration()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return config, fmt.Errorf("error parsing %s: %w", filename, err)
	}
	return config, nil
}

func printConfiguration(config background.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("QA plots: %s", config.QAPlots), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("DB driver: %s", config.DBDriver), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("Eta / phi bins without DB: %d / %d", config.EtaBins, config.PhiBins), "config")
	logger.Info(fmt.Sprintf("Use tower info: %t", config.UseTowerInfo), "config")
	logger.Info(fmt.Sprintf("Tower node prefix: %s", config.TowerNodePrefix), "config")
	logger.Info(fmt.Sprintf("Seed type: %v", config.SeedType), "config")
	logger.Info(fmt.Sprintf("Seed jet D: %g", config.SeedJetD), "config")
	logger.Info(fmt.Sprintf("Seed jet pT: %g", config.SeedJetPt), "config")
	logger.Info(fmt.Sprintf("Flow: %v", config.DoFlow), "config")
	logger.Info(fmt.Sprintf("Background name: %s", config.BackgroundName), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Write data: %t", config.WriteData), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
}
