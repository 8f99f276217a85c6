package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	background "github.com/sphenix-collaboration/towerbackground_go/pkg"
	"github.com/spf13/cobra"
)

var configuration background.Configuration

var (
	logger         Logger
	VerbosityLevel int
)

var (
	configFilename string
	verbosityFlag  int
	maxEventsFlag  int
	workersFlag    int
)

func init() {
	logger = NewLogger(os.Stdout, os.Stderr, slog.LevelDebug)
}

var rootCmd = &cobra.Command{
	Use:   "towerbackground",
	Short: "Calorimeter underlying event and flow estimation for heavy-ion jets",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Estimate the tower background of every event in the input file",
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configuration, err = LoadConfiguration(configFilename)
		if err != nil {
			message := fmt.Errorf("Error reading configuration file: %w", err)
			logger.Error(message.Error())
			return message
		}
		if cmd.Flags().Changed("verbosity") {
			configuration.Verbosity = verbosityFlag
		}
		if cmd.Flags().Changed("max-events") {
			configuration.MaxEvents = maxEventsFlag
		}
		if cmd.Flags().Changed("workers") {
			configuration.NumWorkers = workersFlag
		}
		return run(cmd.Context(), configuration)
	},
}

func init() {
	runCmd.Flags().StringVar(&configFilename, "config", "", "Configuration file path (JSON or YAML)")
	runCmd.Flags().IntVar(&verbosityFlag, "verbosity", 0, "Verbosity level, overrides the configuration")
	runCmd.Flags().IntVar(&maxEventsFlag, "max-events", 0, "Maximum number of events, overrides the configuration")
	runCmd.Flags().IntVar(&workersFlag, "workers", 1, "Number of workers, overrides the configuration")
	runCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(runCmd)
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadGeometry(config background.Configuration) (background.RunGeometry, error) {
	if config.NoDB {
		return background.DefaultRunGeometry(config)
	}
	dbConn, err := background.OpenDatabase(config)
	if err != nil {
		return background.RunGeometry{}, fmt.Errorf("Error connection to database: %w", err)
	}
	defer dbConn.Close()
	return background.LoadGeometry(dbConn, config.RunNumber)
}

func run(ctx context.Context, config background.Configuration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	background.SetConfiguration(config)
	background.SetLogger(logger)

	VerbosityLevel = config.Verbosity
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", configFilename)
		logger.Info(message, "main")
		printConfiguration(config, logger)
	}

	geometry, err := loadGeometry(config)
	if err != nil {
		logger.Error(err.Error())
		return err
	}

	fileReader, err := NewFileReader(config.FileIn, config)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	defer fileReader.Close()

	var sinks eventSinks
	if config.WriteData {
		writer, err := background.NewWriter(config.FileOut, config.CompressionLevel)
		if err != nil {
			logger.Error(err.Error())
			return err
		}
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error(err.Error())
			}
		}()
		info := background.RunInfo{
			RunNumber: config.RunNumber,
			JobID:     uuid.New(),
			SeedType:  config.SeedType,
			FlowMode:  config.DoFlow,
			SeedJetD:  config.SeedJetD,
			SeedJetPt: config.SeedJetPt,
		}
		if err := writer.WriteRunInfo(info); err != nil {
			logger.Error(err.Error())
			return err
		}
		if VerbosityLevel > 0 {
			logger.Info(fmt.Sprintf("Job ID: %s", info.JobID), "main")
		}
		sinks.writer = writer
	}
	if config.QAPlots != "" {
		sinks.qa = background.NewQAHistograms(geometry.IHCal.EtaBins())
	}

	start := time.Now()
	evtsProcessed, err := runWorkers(ctx, config, geometry, fileReader, sinks)
	if err != nil {
		message := fmt.Errorf("aborting run after %d events: %w", evtsProcessed, err)
		logger.Error(message.Error())
		return message
	}

	if sinks.qa != nil && evtsProcessed > 0 {
		if err := os.MkdirAll(config.QAPlots, 0o755); err != nil {
			logger.Error(err.Error())
			return err
		}
		if err := sinks.qa.SavePlots(config.QAPlots); err != nil {
			logger.Error(err.Error())
			return err
		}
	}

	message := fmt.Sprintf("Total events processed: %d in %d ms", evtsProcessed, time.Since(start).Milliseconds())
	logger.Info(message, "main")
	return nil
}
