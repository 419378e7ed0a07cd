// Package worker runs reel renders in the background with bounded
// concurrency and records their progress in a job store.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelbot/jobs"
	"reelbot/logging"
	"reelbot/reel"
)

// Generator produces one reel.
type Generator interface {
	Generate(ctx context.Context, req reel.Request) (*reel.Result, error)
}

// Processor executes reel requests, at most maxConcurrent at a time.
type Processor struct {
	gen    Generator
	store  jobs.Store
	logger *slog.Logger
	sem    chan struct{}
	now    func() time.Time

	// admit serializes the active-ID check with the queued write.
	admit sync.Mutex

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor creates a processor. maxConcurrent below 1 is treated as 1.
func NewProcessor(gen Generator, store jobs.Store, logger *slog.Logger, maxConcurrent int) *Processor {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	base, cancel := context.WithCancel(context.Background())
	return &Processor{
		gen:    gen,
		store:  store,
		logger: logging.WithComponent(logger, "worker"),
		sem:    make(chan struct{}, maxConcurrent),
		now:    func() time.Time { return time.Now().UTC() },
		base:   base,
		cancel: cancel,
	}
}

// Submit records a queued job and renders it in the background. The render
// outlives ctx; it is bounded by Shutdown instead.
func (p *Processor) Submit(ctx context.Context, req reel.Request, source string) (jobs.Job, error) {
	job, err := p.enqueue(ctx, &req, source)
	if err != nil {
		return jobs.Job{}, err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(p.base, job)
	}()
	return job, nil
}

// Process records a job and renders it before returning the final record.
// A render failure is reported in the job, not as an error.
func (p *Processor) Process(ctx context.Context, req reel.Request, source string) (jobs.Job, error) {
	job, err := p.enqueue(ctx, &req, source)
	if err != nil {
		return jobs.Job{}, err
	}
	p.wg.Add(1)
	defer p.wg.Done()
	return p.run(ctx, job), nil
}

// Wait blocks until every submitted job has finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Shutdown waits for in-flight jobs. If ctx ends first the remaining renders
// are cancelled and ctx's error is returned.
func (p *Processor) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Processor) enqueue(ctx context.Context, req *reel.Request, source string) (jobs.Job, error) {
	if strings.TrimSpace(req.ID) == "" {
		req.ID = uuid.New().String()
	}
	if err := reel.ValidateID(req.ID); err != nil {
		return jobs.Job{}, err
	}

	p.admit.Lock()
	defer p.admit.Unlock()
	existing, err := p.store.Get(ctx, req.ID)
	switch {
	case err == nil && !existing.Done():
		return jobs.Job{}, fmt.Errorf("job %s: %w", req.ID, jobs.ErrJobActive)
	case err != nil && !errors.Is(err, jobs.ErrJobNotFound):
		return jobs.Job{}, fmt.Errorf("failed to look up job %s: %w", req.ID, err)
	}

	now := p.now()
	job := jobs.Job{
		ID:        req.ID,
		Status:    jobs.StatusQueued,
		Source:    source,
		Request:   *req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.store.Put(ctx, job); err != nil {
		return jobs.Job{}, fmt.Errorf("failed to record job %s: %w", job.ID, err)
	}
	return job, nil
}

func (p *Processor) run(ctx context.Context, job jobs.Job) jobs.Job {
	logger := logging.WithReelID(p.logger, job.ID).With("source", job.Source)

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return p.finish(ctx, logger, job, nil, ctx.Err())
	}

	job.Status = jobs.StatusRunning
	job.UpdatedAt = p.now()
	p.save(ctx, logger, job)
	logger.Info("reel render started")

	result, err := p.gen.Generate(ctx, job.Request)
	return p.finish(ctx, logger, job, result, err)
}

func (p *Processor) finish(ctx context.Context, logger *slog.Logger, job jobs.Job, result *reel.Result, err error) jobs.Job {
	job.UpdatedAt = p.now()
	if err != nil {
		job.Status = jobs.StatusFailed
		job.Error = err.Error()
		var se *reel.StageError
		if errors.As(err, &se) {
			job.Stage = string(se.Stage)
		}
		logger.Error("reel render failed", "stage", job.Stage, "error", err)
	} else {
		job.Status = jobs.StatusSucceeded
		job.Result = result
		logger.Info("reel render finished", "output", result.Output, "duration", result.TotalDuration)
	}

	// The status write must land even when the render was cancelled.
	p.save(context.WithoutCancel(ctx), logger, job)
	return job
}

func (p *Processor) save(ctx context.Context, logger *slog.Logger, job jobs.Job) {
	if err := p.store.Put(ctx, job); err != nil {
		logger.Warn("failed to update job status", "status", job.Status, "error", err)
	}
}

// BatchSummary counts the outcome of one directory sweep.
type BatchSummary struct {
	Found     int
	Succeeded int
	Failed    int
}

// ProcessFromDirectory renders every *.json request in dir concurrently.
// Processed files are renamed with a .done or .failed suffix so later sweeps
// skip them. A request without an id takes the file's base name.
func (p *Processor) ProcessFromDirectory(ctx context.Context, dir string) (BatchSummary, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return BatchSummary{}, fmt.Errorf("failed to list requests in %s: %w", dir, err)
	}
	summary := BatchSummary{Found: len(files)}
	if len(files) == 0 {
		p.logger.Debug("no reel requests found", "dir", dir)
		return summary, nil
	}
	p.logger.Info("processing reel requests", "dir", dir, "count", len(files))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, file := range files {
		wg.Add(1)
		go func(file string) {
			defer wg.Done()
			ok := p.processFile(ctx, file)

			mu.Lock()
			defer mu.Unlock()
			if ok {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
		}(file)
	}
	wg.Wait()

	p.logger.Info("reel requests processed", "dir", dir,
		"succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

func (p *Processor) processFile(ctx context.Context, file string) bool {
	logger := p.logger.With("file", filepath.Base(file))
	ok := false
	defer func() {
		suffix := ".failed"
		if ok {
			suffix = ".done"
		}
		if ctx.Err() != nil && !ok {
			// leave it for the next sweep
			return
		}
		if err := os.Rename(file, file+suffix); err != nil {
			logger.Warn("failed to mark request file", "error", err)
		}
	}()

	req, err := readRequest(file)
	if err != nil {
		logger.Error("invalid reel request", "error", err)
		return false
	}
	job, err := p.Process(ctx, req, "batch")
	if err != nil {
		logger.Error("failed to process reel request", "error", err)
		return false
	}
	ok = job.Status == jobs.StatusSucceeded
	return ok
}

func readRequest(file string) (reel.Request, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return reel.Request{}, fmt.Errorf("failed to read %s: %w", file, err)
	}
	var req reel.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return reel.Request{}, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	if strings.TrimSpace(req.ID) == "" {
		req.ID = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	if err := reel.ValidateID(req.ID); err != nil {
		return reel.Request{}, fmt.Errorf("%s: %w", file, err)
	}
	return req, nil
}
