package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"glosser/internal/checkpoint"
	"glosser/internal/llm"
	"glosser/internal/logging"
	"glosser/internal/prompt"
	"glosser/internal/records"
)

// ErrJobNotFound reports an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// ManagerOptions wires a Manager's collaborators.
type ManagerOptions struct {
	DataDir        string
	DefaultBackend string
	Settings       Settings
	Registry       *llm.Registry
	Prompts        *prompt.Builder
	Outputs        *records.Store
	Checkpoints    *checkpoint.Store
	Logger         *slog.Logger
}

// Manager starts and controls annotation jobs, keyed by job id. Each media
// id is guarded by a file lock so two processes cannot annotate the same
// media concurrently.
type Manager struct {
	opts   ManagerOptions
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	engine *Engine
	lock   *flock.Flock
	done   chan struct{}
	err    error
}

// NewManager validates options and constructs a Manager.
func NewManager(opts ManagerOptions) (*Manager, error) {
	switch {
	case opts.DataDir == "":
		return nil, errors.New("manager: data dir required")
	case opts.Registry == nil:
		return nil, errors.New("manager: backend registry required")
	case opts.Prompts == nil:
		return nil, errors.New("manager: prompt builder required")
	case opts.Outputs == nil:
		return nil, errors.New("manager: output store required")
	case opts.Checkpoints == nil:
		return nil, errors.New("manager: checkpoint store required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		opts:   opts,
		logger: logger,
		jobs:   make(map[string]*job),
	}, nil
}

// Start launches a job and returns its id. With Resume set, the newest
// checkpoint for the media is picked up and the job keeps its original id;
// without a checkpoint the job simply starts fresh.
func (m *Manager) Start(ctx context.Context, spec JobSpec) (string, error) {
	if spec.MediaID == "" {
		return "", errors.New("start: media id required")
	}
	if spec.BackendID == "" {
		spec.BackendID = m.opts.DefaultBackend
	}
	client, err := m.opts.Registry.Client(spec.BackendID)
	if err != nil {
		return "", fmt.Errorf("start: %w", err)
	}

	jobID := uuid.NewString()
	if spec.Resume {
		cp, err := m.opts.Checkpoints.FindByMedia(ctx, spec.MediaID)
		switch {
		case err == nil:
			jobID = cp.JobID
			if spec.SourcePath == "" {
				spec.SourcePath = cp.SourcePath
			}
		case errors.Is(err, checkpoint.ErrNotFound):
			spec.Resume = false
		default:
			return "", fmt.Errorf("start: %w", err)
		}
	}
	if spec.SourcePath == "" {
		return "", errors.New("start: source path required")
	}

	lock := flock.New(filepath.Join(m.opts.DataDir, spec.MediaID+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return "", fmt.Errorf("start: acquire media lock: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("start: media %s is already being annotated", spec.MediaID)
	}

	eng, err := New(Options{
		JobID:       jobID,
		Spec:        spec,
		Settings:    m.opts.Settings,
		Client:      client,
		Prompts:     m.opts.Prompts,
		Outputs:     m.opts.Outputs,
		Checkpoints: m.opts.Checkpoints,
		Logger:      m.logger,
	})
	if err != nil {
		_ = lock.Unlock()
		return "", err
	}

	j := &job{engine: eng, lock: lock, done: make(chan struct{})}
	m.mu.Lock()
	m.jobs[jobID] = j
	m.mu.Unlock()

	go func() {
		j.err = eng.Run(ctx)
		_ = lock.Unlock()
		close(j.done)
	}()
	return jobID, nil
}

// Pause requests a cooperative pause of a running job.
func (m *Manager) Pause(jobID string) error {
	j, err := m.lookup(jobID)
	if err != nil {
		return err
	}
	j.engine.Pause()
	return nil
}

// Resume clears a pause and lets the job continue.
func (m *Manager) Resume(jobID string) error {
	j, err := m.lookup(jobID)
	if err != nil {
		return err
	}
	j.engine.Resume()
	return nil
}

// Cancel requests cooperative cancellation. In-flight backend calls are not
// aborted; the job drains, saves, and ends in CANCELLED.
func (m *Manager) Cancel(jobID string) error {
	j, err := m.lookup(jobID)
	if err != nil {
		return err
	}
	j.engine.Cancel()
	return nil
}

// Status reports a job's progress.
func (m *Manager) Status(jobID string) (Status, error) {
	j, err := m.lookup(jobID)
	if err != nil {
		return Status{}, err
	}
	return j.engine.Status(), nil
}

// Wait blocks until the job reaches a terminal state and returns its run
// error, if any.
func (m *Manager) Wait(jobID string) error {
	j, err := m.lookup(jobID)
	if err != nil {
		return err
	}
	<-j.done
	return j.err
}

func (m *Manager) lookup(jobID string) (*job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return j, nil
}
