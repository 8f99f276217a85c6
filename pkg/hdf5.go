package background

import (
	"fmt"

	"github.com/jmbenlloch/go-hdf5"
)

type EventDataHDF5 struct {
	evt_number   int32
	v2           float64
	psi2         float64
	n_strips     int32
	n_towers     int32
	flow_failure int8
}

type RunInfoHDF5 struct {
	run_number  int32
	job_id      [STRLEN]byte
	seed_type   [STRLEN]byte
	flow_mode   [STRLEN]byte
	seed_jet_d  float64
	seed_jet_pt float64
}

const STRLEN = 40

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fname, Err: err}
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{GroupName: groupName, Err: err}
	}
	return g, nil
}

// create2dArray makes an extendible events x columns array of doubles.
func create2dArray(group *hdf5.Group, name string, nColumns int, compression int) (*hdf5.Dataset, error) {
	dimsArray := []uint{0, uint(nColumns)}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDimsArray := []uint{uint(unlimitedDims), uint(nColumns)}
	chunks := []uint{1024, uint(nColumns)}

	fileSpace, err := hdf5.CreateSimpleDataspace(dimsArray, maxDimsArray)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()

	if err := plist.SetChunk(chunks); err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	if err := plist.SetDeflate(compression); err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	dset, err := group.CreateDatasetWith(name, hdf5.T_NATIVE_DOUBLE, fileSpace, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

func createTable(group *hdf5.Group, name string, datatype interface{}, compression int) (*hdf5.Dataset, error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	fileSpace, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()

	chunks := []uint{32768}
	if err := plist.SetChunk(chunks); err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	if err := plist.SetDeflate(compression); err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	dset, err := group.CreateDatasetWith(name, dtype, fileSpace, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

func writeEntryToTable[T any](dataset *hdf5.Dataset, data T, evtCounter int) error {
	array := []T{data}
	return writeArrayToTable(dataset, &array, evtCounter)
}

func writeArrayToTable[T any](dataset *hdf5.Dataset, data *[]T, evtCounter int) error {
	length := uint(len(*data))
	dims := []uint{length}
	dataspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return fmt.Errorf("error creating memory dataspace: %w", err)
	}
	defer dataspace.Close()

	// extend
	rowsInFile := uint(evtCounter)
	newsize := []uint{rowsInFile + length}
	if err := dataset.Resize(newsize); err != nil {
		return fmt.Errorf("error extending table: %w", err)
	}
	filespace := dataset.Space()
	defer filespace.Close()

	start := []uint{rowsInFile}
	count := []uint{length}
	if err := filespace.SelectHyperslab(start, nil, count, nil); err != nil {
		return fmt.Errorf("error selecting table rows: %w", err)
	}

	if err := dataset.WriteSubset(data, dataspace, filespace); err != nil {
		return fmt.Errorf("error writing table rows: %w", err)
	}
	return nil
}

func write2dArray(dataset *hdf5.Dataset, data *[]float64, evtCounter int, nColumns int) error {
	// extend
	newsize := []uint{uint(evtCounter) + 1, uint(nColumns)}
	if err := dataset.Resize(newsize); err != nil {
		return fmt.Errorf("error extending array: %w", err)
	}
	filespace := dataset.Space()
	defer filespace.Close()

	start := []uint{uint(evtCounter), 0}
	count := []uint{1, uint(nColumns)}
	if err := filespace.SelectHyperslab(start, nil, count, nil); err != nil {
		return fmt.Errorf("error selecting array row: %w", err)
	}

	dataspace, err := hdf5.CreateSimpleDataspace(count, nil)
	if err != nil {
		return fmt.Errorf("error creating memory dataspace: %w", err)
	}
	defer dataspace.Close()

	if err := dataset.WriteSubset(data, dataspace, filespace); err != nil {
		return fmt.Errorf("error writing array row: %w", err)
	}
	return nil
}
