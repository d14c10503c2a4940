package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"dealflow/internal/pipeline"
	"dealflow/internal/store"
)

var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// PipelineRunner is the part of *pipeline.Runner the manager needs.
type PipelineRunner interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// RunManager runs at most one pipeline at a time in the background and
// records each run in the store.
type RunManager struct {
	Store *store.Store
	// NewRunner builds the pipeline for one run id.
	NewRunner func(runID string) PipelineRunner
	// Reload, when set, re-imports the outputs after a successful run.
	Reload func(ctx context.Context) error
	Logger *slog.Logger

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Start launches a run and returns its id, or ErrRunInProgress.
func (m *RunManager) Start(startedBy string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != "" {
		return m.current, ErrRunInProgress
	}

	id := uuid.NewString()
	if err := m.Store.CreateRun(context.Background(), id, startedBy, time.Now()); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.current = id
	m.cancel = cancel
	m.wg.Add(1)
	go m.run(ctx, id)
	return id, nil
}

// Current returns the id of the active run, if any.
func (m *RunManager) Current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != ""
}

func (m *RunManager) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *RunManager) run(ctx context.Context, id string) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.current = ""
		m.cancel = nil
		m.mu.Unlock()
	}()
	log := m.logger().With("run_id", id)

	sum, err := m.NewRunner(id).Run(ctx)
	if err == nil && m.Reload != nil {
		if rerr := m.Reload(ctx); rerr != nil {
			log.Error("re-import after run failed", "error", rerr)
			err = rerr
		}
	}

	// the run context may be cancelled by now
	if ferr := m.Store.FinishRun(context.Background(), id, time.Now(), sum, err); ferr != nil {
		log.Error("record run outcome failed", "error", ferr)
	}
}

// Shutdown cancels the active run and waits for it to finish.
func (m *RunManager) Shutdown() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Wait blocks until the active run, if any, has finished.
func (m *RunManager) Wait() {
	m.wg.Wait()
}
