// Package job runs the background embedding job over a folder and owns the state
// that clustering queries read: one vector store, one progress tracker and the list
// of files that failed.
package job

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/ruiji/internal/cluster"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/fileid"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/progress"
	"github.com/hyperjump/ruiji/internal/vector"
	"github.com/hyperjump/ruiji/pkg/utils"
)

// State is the lifecycle state of a Session.
type State int

const (
	Idle State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Failure is a file the job could not embed.
type Failure struct {
	Path string
	Err  error
}

// RunRecorder persists run history. storage.SQLiteStorage implements it.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.JobRun) error
	UpdateRun(ctx context.Context, run *models.JobRun) error
}

// Status is a point-in-time view of the session.
type Status struct {
	State    State
	RunID    string
	Root     string
	Stale    bool
	Failed   int
	Progress progress.Snapshot
}

// Session runs at most one embedding job at a time.
type Session struct {
	embedder    embedding.Embedder
	store       *vector.Store
	tracker     *progress.Tracker
	logger      *zap.Logger
	recorder    RunRecorder
	pairs       cluster.PairSource
	created     cluster.TimeFunc
	defaultExts []string

	baseCtx    context.Context
	baseCancel context.CancelFunc
	computeSF  singleflight.Group

	mu       sync.Mutex
	state    State
	runID    string
	root     string
	exts     []string
	failures []Failure
	byID     map[string]string
	stale    bool
	done     chan struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for job events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRecorder records every run in r.
func WithRecorder(r RunRecorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithDefaultExtensions sets the allow-list every job starts from.
func WithDefaultExtensions(exts []string) Option {
	return func(s *Session) { s.defaultExts = NormalizeExtensions(exts) }
}

// WithPairSource replaces the brute-force pair scan used by Clusters.
func WithPairSource(p cluster.PairSource) Option {
	return func(s *Session) { s.pairs = p }
}

// WithCreationTime replaces the creation-time lookup used for ByCreationTime.
func WithCreationTime(fn cluster.TimeFunc) Option {
	return func(s *Session) { s.created = fn }
}

// WithTracker sets the progress tracker (tests use one with a fake clock).
func WithTracker(t *progress.Tracker) Option {
	return func(s *Session) { s.tracker = t }
}

// NewSession creates an idle session that embeds images with embedder.
func NewSession(embedder embedding.Embedder, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		embedder:    embedder,
		store:       vector.NewStore(embedder.Dimensions()),
		logger:      zap.NewNop(),
		pairs:       cluster.BruteForce{},
		created:     cluster.CreationTime,
		defaultExts: DefaultExtensions,
		baseCtx:     ctx,
		baseCancel:  cancel,
		byID:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracker == nil {
		s.tracker = progress.NewTracker()
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Start validates root and launches a job over it in the background. The allow-list
// is the configured defaults plus extra. It returns the run id.
func (s *Session) Start(root string, extra []string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: not a directory: %s", ErrInvalidPath, absRoot)
	}
	exts := MergeExtensions(s.defaultExts, extra)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		return "", ErrJobRunning
	}
	if err := s.baseCtx.Err(); err != nil {
		return "", fmt.Errorf("session closed: %w", err)
	}
	s.state = Running
	s.runID = uuid.New().String()
	s.root = absRoot
	s.exts = exts
	s.failures = nil
	s.byID = make(map[string]string)
	s.stale = false
	s.done = make(chan struct{})
	s.store.Clear()
	s.tracker.Reset(0)

	go s.run(s.baseCtx, s.runID, absRoot, exts, s.done)
	return s.runID, nil
}

func (s *Session) run(ctx context.Context, runID, root string, exts []string, done chan struct{}) {
	defer close(done)
	startedAt := time.Now()
	s.logger.Info("job started", zap.String("run_id", runID), zap.String("root", root), zap.Strings("extensions", exts))

	files, err := Discover(ctx, root, exts, s.logger)
	if err != nil {
		s.logger.Warn("discovery failed", zap.String("root", root), zap.Error(err))
	}
	s.tracker.Reset(len(files))

	run := &models.JobRun{
		ID:         runID,
		Root:       root,
		Extensions: exts,
		Total:      len(files),
		Status:     models.RunRunning,
		StartedAt:  startedAt,
	}
	s.record(func(r RunRecorder) error { return r.CreateRun(context.Background(), run) })

	cancelled := false
	for _, path := range files {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if err := s.embedFile(ctx, path); err != nil {
			s.logger.Warn("embedding failed", zap.String("path", path), zap.Error(err))
			s.mu.Lock()
			s.failures = append(s.failures, Failure{Path: path, Err: err})
			s.mu.Unlock()
			run.Failed++
		} else {
			s.logger.Debug("embedded", zap.String("path", path))
		}
		s.tracker.Advance()
		run.Processed++
	}
	s.tracker.Finish()

	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunCompleted
	if cancelled {
		run.Status = models.RunCancelled
	}
	s.record(func(r RunRecorder) error { return r.UpdateRun(context.Background(), run) })

	s.mu.Lock()
	s.state = Completed
	s.mu.Unlock()
	s.logger.Info("job finished",
		zap.String("run_id", runID),
		zap.Int("total", run.Total),
		zap.Int("processed", run.Processed),
		zap.Int("failed", run.Failed),
		zap.String("status", string(run.Status)),
		zap.Duration("elapsed", finished.Sub(startedAt)),
	)
}

func (s *Session) record(fn func(RunRecorder) error) {
	if s.recorder == nil {
		return
	}
	if err := fn(s.recorder); err != nil {
		s.logger.Warn("run history update failed", zap.Error(err))
	}
}

func (s *Session) embedFile(ctx context.Context, path string) error {
	vec, err := s.embedder.Embed(ctx, path)
	if err != nil {
		return err
	}
	norm := utils.NormalizeL2(vec)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return fmt.Errorf("degenerate embedding (norm %v)", norm)
	}
	if err := s.store.Put(path, vec); err != nil {
		return err
	}
	s.mu.Lock()
	s.byID[fileid.ImageID(path)] = path
	s.mu.Unlock()
	return nil
}

// Status returns the current state and progress.
func (s *Session) Status() Status {
	snap := s.tracker.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:    s.state,
		RunID:    s.runID,
		Root:     s.root,
		Stale:    s.stale,
		Failed:   len(s.failures),
		Progress: snap,
	}
}

// Failures returns the files of the current run that could not be embedded.
func (s *Session) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Failure, len(s.failures))
	copy(out, s.failures)
	return out
}

// Root returns the absolute root of the current (or last) job, or "" before the first.
func (s *Session) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Extensions returns the allow-list of the current (or last) job.
func (s *Session) Extensions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.exts...)
}

// Store exposes the vector store. Callers must treat it as read-only.
func (s *Session) Store() *vector.Store {
	return s.store
}

// Lookup resolves an image id (see fileid.ImageID) to the path of an embedded image.
func (s *Session) Lookup(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	return p, ok
}

// Clusters groups the images embedded so far. It may run while a job is in
// progress and then reflects a partial store. The result must not be modified.
func (s *Session) Clusters(threshold float64) ([]cluster.Cluster, error) {
	_, clusters, err := s.RootedClusters(threshold)
	return clusters, err
}

// RootedClusters is Clusters plus the root of the job whose store was grouped.
func (s *Session) RootedClusters(threshold float64) (string, []cluster.Cluster, error) {
	root, snap := s.view()
	clusters, err := s.compute(snap, threshold)
	if err != nil {
		return "", nil, err
	}
	return root, clusters, nil
}

// Unclustered returns the embedded images that belong to no cluster at threshold.
func (s *Session) Unclustered(threshold float64, sortBy cluster.SortBy) ([]string, error) {
	_, paths, err := s.RootedUnclustered(threshold, sortBy)
	return paths, err
}

// RootedUnclustered is Unclustered plus the root of the job whose store was read.
func (s *Session) RootedUnclustered(threshold float64, sortBy cluster.SortBy) (string, []string, error) {
	root, snap := s.view()
	clusters, err := s.compute(snap, threshold)
	if err != nil {
		return "", nil, err
	}
	return root, cluster.Unclustered(snap, clusters, sortBy, s.created), nil
}

// view pairs the current root with a store snapshot. Start swaps the root and
// clears the store under s.mu, so the two always belong to the same job.
func (s *Session) view() (string, *vector.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root, s.store.Snapshot()
}

// compute coalesces concurrent requests for the same snapshot and threshold.
// Nothing is cached once the call returns.
func (s *Session) compute(snap *vector.Snapshot, threshold float64) ([]cluster.Cluster, error) {
	key := fmt.Sprintf("%d/%d/%g", snap.Generation, snap.Len(), threshold)
	v, err, _ := s.computeSF.Do(key, func() (interface{}, error) {
		return cluster.Compute(snap, threshold, s.pairs)
	})
	if err != nil {
		return nil, err
	}
	return v.([]cluster.Cluster), nil
}

// MarkStale records that files under the root changed after the job started.
// It has no effect before the first job.
func (s *Session) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		s.stale = true
	}
}

// Wait blocks until the current job finishes or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops an in-flight job at the next file boundary and waits for it.
// The session cannot start new jobs afterwards.
func (s *Session) Close() error {
	s.baseCancel()
	return s.Wait(context.Background())
}
