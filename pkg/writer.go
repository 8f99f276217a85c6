package background

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmbenlloch/go-hdf5"
)

// RunInfo describes the job that produced an output file.
type RunInfo struct {
	RunNumber int
	JobID     uuid.UUID
	SeedType  SeedType
	FlowMode  FlowMode
	SeedJetD  float64
	SeedJetPt float64
}

// Writer stores the background record of every event in an HDF5 file.
// The UE arrays are created with the first event, when the number of eta
// bins is known.
type Writer struct {
	File            *hdf5.File
	Filename        string
	FirstEvt        bool
	RunGroup        *hdf5.Group
	BackgroundGroup *hdf5.Group
	EventTable      *hdf5.Dataset
	RunInfoTable    *hdf5.Dataset
	UEArrays        [NLayers]*hdf5.Dataset
	EvtCounter      int
	compression     int
	etaBins         int
}

var ueArrayNames = [NLayers]string{"ue_emcal", "ue_ihcal", "ue_ohcal"}

func NewWriter(filename string, compression int) (*Writer, error) {
	writer := &Writer{Filename: filename, compression: compression}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Creating file: %s", filename), "hdf5writer")
	}

	var err error
	if writer.File, err = openFile(filename); err != nil {
		return nil, err
	}
	if writer.RunGroup, err = createGroup(writer.File, "Run"); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.BackgroundGroup, err = createGroup(writer.File, "Background"); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.RunInfoTable, err = createTable(writer.RunGroup, "runInfo", RunInfoHDF5{}, compression); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.EventTable, err = createTable(writer.BackgroundGroup, "events", EventDataHDF5{}, compression); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	return writer, nil
}

func (w *Writer) WriteRunInfo(info RunInfo) error {
	entry := RunInfoHDF5{
		run_number:  int32(info.RunNumber),
		job_id:      convertToHdf5String(info.JobID.String()),
		seed_type:   convertToHdf5String(info.SeedType.String()),
		flow_mode:   convertToHdf5String(info.FlowMode.String()),
		seed_jet_d:  info.SeedJetD,
		seed_jet_pt: info.SeedJetPt,
	}
	return writeEntryToTable(w.RunInfoTable, entry, 0)
}

func (w *Writer) WriteEvent(eventNumber int, background *TowerBackground) error {
	if !w.FirstEvt {
		w.etaBins = len(background.UE[LayerIHCal])
		for _, layer := range Layers {
			dset, err := create2dArray(w.BackgroundGroup, ueArrayNames[layer], w.etaBins, w.compression)
			if err != nil {
				return err
			}
			w.UEArrays[layer] = dset
		}
		w.FirstEvt = true
	}

	entry := EventDataHDF5{
		evt_number: int32(eventNumber),
		v2:         background.V2,
		psi2:       background.Psi2,
		n_strips:   int32(background.NStripsUsedForFlow),
		n_towers:   int32(background.NTowersUsedForBkg),
	}
	if background.FlowFailure {
		entry.flow_failure = 1
	}
	if err := writeEntryToTable(w.EventTable, entry, w.EvtCounter); err != nil {
		return fmt.Errorf("event %d: %w", eventNumber, err)
	}

	for _, layer := range Layers {
		ue := background.UE[layer]
		if len(ue) != w.etaBins {
			return fmt.Errorf("event %d: %v has %d eta bins, file has %d", eventNumber, layer, len(ue), w.etaBins)
		}
		data := make([]float64, w.etaBins)
		copy(data, ue)
		if err := write2dArray(w.UEArrays[layer], &data, w.EvtCounter, w.etaBins); err != nil {
			return fmt.Errorf("event %d: %w", eventNumber, err)
		}
	}

	w.EvtCounter++
	return nil
}

func (w *Writer) Close() error {
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Closing file %s", w.Filename), "hdf5writer")
	}
	var errs []error

	if w.EventTable != nil {
		if err := w.EventTable.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing event table: %w", err))
		}
	}
	if w.RunInfoTable != nil {
		if err := w.RunInfoTable.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing run info table: %w", err))
		}
	}
	for _, layer := range Layers {
		if w.UEArrays[layer] == nil {
			continue
		}
		if err := w.UEArrays[layer].Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s: %w", ueArrayNames[layer], err))
		}
	}
	if w.RunGroup != nil {
		if err := w.RunGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing run group: %w", err))
		}
	}
	if w.BackgroundGroup != nil {
		if err := w.BackgroundGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing background group: %w", err))
		}
	}
	if w.File != nil {
		if err := w.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing file: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
