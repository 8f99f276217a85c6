package main

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	background "github.com/sphenix-collaboration/towerbackground_go/pkg"
)

// FileReader feeds event records from a JSON lines file, optionally
// gzipped.
type FileReader struct {
	File   *os.File
	gz     *gzip.Reader
	reader *background.EventReader
}

func NewFileReader(filename string, config background.Configuration) (*FileReader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, &background.ErrOpenFile{Filename: filename, Err: err}
	}
	f := &FileReader{File: file}

	var input io.Reader = file
	if strings.HasSuffix(filename, ".gz") {
		f.gz, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, &background.ErrOpenFile{Filename: filename, Err: err}
		}
		input = f.gz
	}
	f.reader = background.NewEventReader(input, config.Skip, config.MaxEvents, config.Verbosity)
	return f, nil
}

func (f *FileReader) getNextEvent() (*background.EventRecord, error) {
	return f.reader.NextEvent()
}

func (f *FileReader) Close() error {
	if f.gz != nil {
		if err := f.gz.Close(); err != nil {
			f.File.Close()
			return fmt.Errorf("error closing gzip stream: %w", err)
		}
	}
	return f.File.Close()
}
