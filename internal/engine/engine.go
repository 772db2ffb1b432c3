package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"glosser/internal/checkpoint"
	"glosser/internal/llm"
	"glosser/internal/logging"
	"glosser/internal/prompt"
	"glosser/internal/records"
	"glosser/internal/subtitles"
)

// State is the lifecycle state of a job.
type State string

const (
	StateInit      State = "init"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCancelled State = "cancelled"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// FatalInputError reports an unusable line source. It is the only failure
// that aborts a whole job: there is no partial work to preserve.
type FatalInputError struct {
	Path   string
	Reason string
}

func (e *FatalInputError) Error() string {
	return fmt.Sprintf("line source %s: %s", e.Path, e.Reason)
}

// Settings tunes one job run.
type Settings struct {
	BatchSize     int
	Workers       int
	SaveInterval  int
	MaxRetries    int
	ContextWindow int
}

func (s Settings) withDefaults() Settings {
	if s.BatchSize < 1 {
		s.BatchSize = 1
	}
	if s.Workers < 1 {
		s.Workers = 1
	}
	if s.SaveInterval < 1 {
		s.SaveInterval = 1
	}
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	}
	if s.ContextWindow < 0 {
		s.ContextWindow = 0
	}
	return s
}

// JobSpec describes what to annotate.
type JobSpec struct {
	MediaID    string
	Episode    int
	SourcePath string
	BackendID  string
	Resume     bool
}

// Status is a point-in-time view of a job.
type Status struct {
	JobID     string
	MediaID   string
	State     State
	Completed int
	Total     int
	InFlight  int
	LastError string
}

// Options wires an Engine's collaborators.
type Options struct {
	JobID       string
	Spec        JobSpec
	Settings    Settings
	Client      llm.Client
	Prompts     *prompt.Builder
	Outputs     *records.Store
	Checkpoints *checkpoint.Store
	Logger      *slog.Logger
}

// Engine runs one annotation job. Construct with New, drive with Run, and
// control from other goroutines with Pause, Resume, and Cancel.
type Engine struct {
	jobID       string
	spec        JobSpec
	settings    Settings
	client      llm.Client
	prompts     *prompt.Builder
	outputs     *records.Store
	checkpoints *checkpoint.Store
	logger      *slog.Logger

	mu             sync.Mutex
	cond           *sync.Cond
	state          State
	pauseReq       bool
	cancelReq      bool
	inFlight       int
	total          int
	results        []*records.AnnotationRecord
	completed      map[int]bool
	completedCount int
	lastSaveCount  int
	lastErr        string
}

// New validates options and constructs an Engine in INIT.
func New(opts Options) (*Engine, error) {
	switch {
	case opts.JobID == "":
		return nil, errors.New("engine: job id required")
	case opts.Spec.MediaID == "":
		return nil, errors.New("engine: media id required")
	case opts.Spec.SourcePath == "":
		return nil, errors.New("engine: source path required")
	case opts.Client == nil:
		return nil, errors.New("engine: backend client required")
	case opts.Prompts == nil:
		return nil, errors.New("engine: prompt builder required")
	case opts.Outputs == nil:
		return nil, errors.New("engine: output store required")
	case opts.Checkpoints == nil:
		return nil, errors.New("engine: checkpoint store required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		jobID:       opts.JobID,
		spec:        opts.Spec,
		settings:    opts.Settings.withDefaults(),
		client:      opts.Client,
		prompts:     opts.Prompts,
		outputs:     opts.Outputs,
		checkpoints: opts.Checkpoints,
		logger:      logger.With(logging.FieldJobID, opts.JobID),
		state:       StateInit,
		completed:   make(map[int]bool),
	}
	e.cond = sync.NewCond(&e.mu)
	return e, nil
}

// Run executes the job to a terminal state. It returns an error only for
// fatal input problems; pause blocks inside Run, and cancellation ends the
// run with state CANCELLED and a nil error.
func (e *Engine) Run(ctx context.Context) error {
	lines, err := subtitles.ParseSRT(e.spec.SourcePath)
	if err != nil {
		return e.fail(&FatalInputError{Path: e.spec.SourcePath, Reason: err.Error()})
	}
	if len(lines) == 0 {
		return e.fail(&FatalInputError{Path: e.spec.SourcePath, Reason: "no usable subtitle lines"})
	}

	e.mu.Lock()
	e.total = len(lines)
	e.results = make([]*records.AnnotationRecord, e.total)
	if e.settings.BatchSize > e.total {
		e.settings.BatchSize = e.total
	}
	e.mu.Unlock()

	if e.spec.Resume {
		e.restore(ctx)
	}

	units := e.buildUnits(lines)
	e.logger.Info("job starting",
		logging.FieldBackend, e.client.ID(),
		logging.String("media_id", e.spec.MediaID),
		logging.Int("total", e.total),
		logging.Int("remaining", e.total-e.completedCount),
		logging.Int("batch_size", e.settings.BatchSize),
		logging.Int("workers", e.settings.Workers))

	e.mu.Lock()
	e.state = StateRunning
	e.mu.Unlock()

	// Wake the dispatcher if the caller's context dies while parked.
	stop := context.AfterFunc(ctx, e.Cancel)
	defer stop()

	unitCh := make(chan batchUnit)
	var wg sync.WaitGroup
	for w := 0; w < e.settings.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range unitCh {
				e.processUnit(ctx, unit)
				e.mu.Lock()
				e.inFlight--
				e.cond.Broadcast()
				e.mu.Unlock()
			}
		}()
	}

	for _, unit := range units {
		if !e.awaitDispatch() {
			break
		}
		e.mu.Lock()
		e.inFlight++
		e.mu.Unlock()
		unitCh <- unit
	}
	close(unitCh)
	wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelReq {
		e.saveLocked(context.Background())
		e.state = StateCancelled
		e.logger.Info("job cancelled", logging.Int("completed", e.completedCount), logging.Int("total", e.total))
		return nil
	}
	if e.completedCount >= e.total {
		e.saveLocked(context.Background())
		if err := e.checkpoints.Delete(context.Background(), e.jobID); err != nil {
			e.logger.Warn("delete checkpoint", logging.Error(err))
		}
		e.state = StateCompleted
		e.logger.Info("job completed", logging.Int("total", e.total))
		return nil
	}
	// Every dispatched unit yields one record per line, so an incomplete,
	// uncancelled job means a dispatch bug; surface it rather than looping.
	e.saveLocked(context.Background())
	e.state = StateFailed
	e.lastErr = fmt.Sprintf("job stalled at %d/%d lines", e.completedCount, e.total)
	return nil
}

// Pause requests a cooperative pause. In-flight units drain first; the
// engine saves and parks until Resume or Cancel.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.pauseReq = true
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Resume clears a pause request and wakes the dispatcher.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.pauseReq = false
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Cancel requests cooperative cancellation. In-flight units drain, a final
// save runs, and the job ends in CANCELLED. Safe to call at any time.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.cancelReq = true
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Status reports the job's current progress.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		JobID:     e.jobID,
		MediaID:   e.spec.MediaID,
		State:     e.state,
		Completed: e.completedCount,
		Total:     e.total,
		InFlight:  e.inFlight,
		LastError: e.lastErr,
	}
}

// awaitDispatch blocks between unit dispatches while paused and reports
// whether dispatching may continue. Pause is observed here only, never
// pre-emptively: in-flight units drain before the engine parks.
func (e *Engine) awaitDispatch() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		if e.cancelReq {
			return false
		}
		if !e.pauseReq {
			if e.state == StatePaused {
				e.state = StateRunning
				e.logger.Info("job resumed", logging.Int("completed", e.completedCount))
			}
			return true
		}
		if e.state != StatePaused {
			for e.inFlight > 0 && !e.cancelReq {
				e.cond.Wait()
			}
			if e.cancelReq {
				return false
			}
			e.saveLocked(context.Background())
			e.state = StatePaused
			e.logger.Info("job paused", logging.Int("completed", e.completedCount), logging.Int("total", e.total))
		}
		e.cond.Wait()
	}
}

func (e *Engine) fail(err error) error {
	e.mu.Lock()
	e.state = StateFailed
	e.lastErr = err.Error()
	e.mu.Unlock()
	e.logger.Error("job failed", logging.Error(err))
	return err
}

// restore pre-populates completed indices and results from a prior
// checkpoint and its paired output file. Only indices backed by an actual
// record count as completed; a checkpoint without its records triggers
// re-annotation of the affected lines.
func (e *Engine) restore(ctx context.Context) {
	cp, err := e.checkpoints.Load(ctx, e.jobID)
	if err != nil {
		if !errors.Is(err, checkpoint.ErrNotFound) {
			e.logger.Warn("load checkpoint", logging.Error(err))
		}
		return
	}
	recs, err := e.outputs.ReadRecords(e.spec.MediaID)
	if err != nil {
		e.logger.Warn("load prior records, starting fresh", logging.Error(err))
		return
	}
	byIndex := make(map[int]records.AnnotationRecord, len(recs))
	for _, rec := range recs {
		if idx, ok := rec.LineIndex(); ok {
			byIndex[idx] = rec
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, idx := range cp.CompletedIndices {
		if idx < 0 || idx >= e.total {
			continue
		}
		rec, ok := byIndex[idx]
		if !ok {
			continue
		}
		e.results[idx] = &rec
		e.completed[idx] = true
		e.completedCount++
	}
	e.lastSaveCount = e.completedCount
	e.logger.Info("resumed from checkpoint",
		logging.Int("completed", e.completedCount),
		logging.Int("total", e.total))
}

// saveLocked writes the current results and a matching checkpoint. Callers
// hold e.mu, which also serializes store writes to a single path. Save
// failures are recorded, not fatal: the job keeps its in-memory progress.
func (e *Engine) saveLocked(ctx context.Context) {
	recs := make([]records.AnnotationRecord, 0, e.completedCount)
	for _, rec := range e.results {
		if rec != nil {
			recs = append(recs, *rec)
		}
	}
	if err := e.outputs.WriteRecords(e.spec.MediaID, recs); err != nil {
		e.lastErr = err.Error()
		e.logger.Error("write records", logging.Error(err))
		return
	}

	indices := make([]int, 0, len(e.completed))
	for idx := range e.completed {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	cp := &checkpoint.Checkpoint{
		JobID:            e.jobID,
		MediaID:          e.spec.MediaID,
		SourcePath:       e.spec.SourcePath,
		BackendID:        e.client.ID(),
		TotalLines:       e.total,
		BatchSize:        e.settings.BatchSize,
		SaveInterval:     e.settings.SaveInterval,
		CompletedIndices: indices,
	}
	if err := e.checkpoints.Save(ctx, cp); err != nil {
		e.lastErr = err.Error()
		e.logger.Error("save checkpoint", logging.Error(err))
		return
	}
	e.lastSaveCount = e.completedCount
	e.logger.Debug("incremental save",
		logging.Int("completed", e.completedCount),
		logging.Int("total", e.total))
}

// batchUnit is a group of not-yet-completed lines submitted as one backend
// call, with precomputed neighbor context for the single-line fallback.
type batchUnit struct {
	lines   []subtitles.Line
	context map[int][]string
}

func (e *Engine) buildUnits(lines []subtitles.Line) []batchUnit {
	e.mu.Lock()
	defer e.mu.Unlock()

	var units []batchUnit
	for start := 0; start < len(lines); start += e.settings.BatchSize {
		end := start + e.settings.BatchSize
		if end > len(lines) {
			end = len(lines)
		}
		unit := batchUnit{context: make(map[int][]string)}
		for idx := start; idx < end; idx++ {
			if e.completed[idx] {
				continue
			}
			unit.lines = append(unit.lines, lines[idx])
			unit.context[idx] = contextWindow(lines, idx, e.settings.ContextWindow)
		}
		if len(unit.lines) > 0 {
			units = append(units, unit)
		}
	}
	return units
}

// contextWindow collects the texts of up to window neighbors on each side
// of idx, excluding the line itself.
func contextWindow(lines []subtitles.Line, idx, window int) []string {
	if window <= 0 {
		return nil
	}
	start := idx - window
	if start < 0 {
		start = 0
	}
	end := idx + window + 1
	if end > len(lines) {
		end = len(lines)
	}
	context := make([]string, 0, end-start-1)
	for i := start; i < end; i++ {
		if i == idx {
			continue
		}
		context = append(context, lines[i].Text)
	}
	return context
}
