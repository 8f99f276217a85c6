package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	background "github.com/sphenix-collaboration/towerbackground_go/pkg"
)

type WorkerData struct {
	Seq    int
	Record *background.EventRecord
}

type WorkerResult struct {
	Seq         int
	EventNumber int
	Background  *background.TowerBackground
	Err         error
}

// eventWorker owns the node tree and estimator used by one goroutine.
type eventWorker struct {
	id        int
	tree      *background.NodeTree
	estimator *background.Estimator
	prefix    string
}

func newEventWorker(id int, config background.Configuration, geometry background.RunGeometry) (*eventWorker, error) {
	tree := background.NewNodeTree()
	if err := geometry.Publish(tree); err != nil {
		return nil, err
	}
	estimator := background.NewEstimatorFromConfiguration(config)
	if err := estimator.InitRun(tree); err != nil {
		return nil, err
	}
	return &eventWorker{
		id:        id,
		tree:      tree,
		estimator: estimator,
		prefix:    config.TowerNodePrefix,
	}, nil
}

func (w *eventWorker) processEvent(job WorkerData) (result WorkerResult) {
	result = WorkerResult{Seq: job.Seq, EventNumber: job.Record.EventNumber}
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("worker %d recovered from panic on event %d: %v", w.id, result.EventNumber, r)
			result.Background = nil
		}
	}()

	if err := job.Record.Populate(w.tree, w.prefix); err != nil {
		result.Err = fmt.Errorf("error populating event %d: %w", result.EventNumber, err)
		return result
	}
	if err := w.estimator.ProcessEvent(w.tree); err != nil {
		result.Err = fmt.Errorf("error processing event %d: %w", result.EventNumber, err)
		return result
	}
	result.Background = w.estimator.Background().Clone()
	return result
}

func worker(ctx context.Context, w *eventWorker, jobs <-chan WorkerData, results chan<- WorkerResult) {
	for job := range jobs {
		if VerbosityLevel > 1 {
			message := fmt.Sprintf("Worker %d processing event %d", w.id, job.Record.EventNumber)
			logger.Info(message, "worker")
		}
		select {
		case results <- w.processEvent(job):
		case <-ctx.Done():
			return
		}
	}
}

func sendEventsToWorkers(ctx context.Context, fileReader *FileReader, jobs chan<- WorkerData) error {
	defer close(jobs)
	for seq := 0; ; seq++ {
		record, err := fileReader.getNextEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("error reading event: %w", err)
		}
		select {
		case jobs <- WorkerData{Seq: seq, Record: record}:
		case <-ctx.Done():
			return nil
		}
	}
}

// processWorkerResults hands results to the sinks in input order. A fatal
// error stops the job; other failed events are discarded.
func processWorkerResults(results <-chan WorkerResult, sinks eventSinks) (int, error) {
	pending := make(map[int]WorkerResult)
	next := 0
	evtsProcessed := 0
	for result := range results {
		pending[result.Seq] = result
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if ready.Err != nil {
				if background.IsFatal(ready.Err) {
					return evtsProcessed, ready.Err
				}
				logger.Error(ready.Err.Error())
				logger.Error(fmt.Sprintf("discarding event %d", ready.EventNumber))
				continue
			}
			if err := sinks.consume(ready.EventNumber, ready.Background); err != nil {
				return evtsProcessed, err
			}
			evtsProcessed++
		}
	}
	return evtsProcessed, nil
}

// eventSinks receives the background of every successful event.
type eventSinks struct {
	writer *background.Writer
	qa     *background.QAHistograms
}

func (s eventSinks) consume(eventNumber int, record *background.TowerBackground) error {
	if s.writer != nil {
		if err := s.writer.WriteEvent(eventNumber, record); err != nil {
			return err
		}
	}
	if s.qa != nil {
		s.qa.Fill(record)
	}
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("event %d: %v", eventNumber, record)
		logger.Info(message, "main")
	}
	return nil
}

// runWorkers processes the whole input with one estimator per worker.
func runWorkers(ctx context.Context, config background.Configuration, geometry background.RunGeometry,
	fileReader *FileReader, sinks eventSinks) (int, error) {
	nWorkers := max(config.NumWorkers, 1)

	workers := make([]*eventWorker, nWorkers)
	for i := range workers {
		w, err := newEventWorker(i, config, geometry)
		if err != nil {
			return 0, err
		}
		workers[i] = w
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan WorkerData, nWorkers)
	results := make(chan WorkerResult, nWorkers)

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, w, jobs, results)
		}()
	}

	readErr := make(chan error, 1)
	go func() {
		readErr <- sendEventsToWorkers(ctx, fileReader, jobs)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	evtsProcessed, err := processWorkerResults(results, sinks)
	if err != nil {
		cancel()
		for range results {
		}
		<-readErr
		return evtsProcessed, err
	}
	return evtsProcessed, <-readErr
}
