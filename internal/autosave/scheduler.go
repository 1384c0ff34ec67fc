// Package autosave debounces local edits into full-record writes against the
// remote store.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"notespace/client/internal/content"
	"notespace/client/internal/metrics"
)

const (
	DefaultDelay      = 300 * time.Millisecond
	DefaultRetryDelay = 5 * time.Second
)

// Writer persists a full document record.
type Writer interface {
	SaveDocument(ctx context.Context, id content.ID, rec content.Record) (content.Document, error)
}

// Cache receives every scheduled and every written snapshot.
type Cache interface {
	Put(ctx context.Context, id content.ID, c content.Content) error
}

// Broadcaster announces a written snapshot to other sessions.
type Broadcaster interface {
	Broadcast(c content.Content) error
}

// RecordFunc builds the save body for a snapshot at write time, so title and
// parent changes made since scheduling are carried.
type RecordFunc func(c content.Content) content.Record

type Config struct {
	DocumentID  content.ID
	Delay       time.Duration
	RetryDelay  time.Duration
	Writer      Writer
	Cache       Cache
	Broadcaster Broadcaster
	Record      RecordFunc
	// OnSaved, if set, is called with the stored document after each write.
	OnSaved func(content.Document)
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Scheduler coalesces bursts of changes into one write, keeps at most one
// write in flight, skips writes of content already stored and retries a
// failed write once.
type Scheduler struct {
	cfg    Config
	logger *slog.Logger
	wg     sync.WaitGroup

	mu          sync.Mutex
	pending     *content.Content
	lastWritten *content.Content
	generation  int
	inFlight    bool
	stopped     bool
	timer       *time.Timer
	retry       *time.Timer

	// revision counts metadata changes; writtenRev is the revision the last
	// successful write carried.
	revision   int
	writtenRev int
}

func New(cfg Config) *Scheduler {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Record == nil {
		cfg.Record = func(c content.Content) content.Record { return content.Record{Content: c} }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:    cfg,
		logger: logger.With("component", "autosave", "document", cfg.DocumentID),
	}
}

// Schedule caches c immediately and (re)starts the debounce timer.
func (s *Scheduler) Schedule(ctx context.Context, c content.Content) {
	snapshot := c.Clone()
	if s.cfg.Cache != nil {
		if err := s.cfg.Cache.Put(ctx, s.cfg.DocumentID, snapshot); err != nil {
			s.logger.Warn("cache snapshot", "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = &snapshot
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Delay, s.fire)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped || s.pending == nil {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		s.mu.Unlock()
		s.cfg.Metrics.AutosaveSkipped("in_flight")
		s.logger.Debug("write in flight, dropping debounce firing")
		return
	}
	if s.storedLocked(*s.pending) {
		s.pending = nil
		s.mu.Unlock()
		s.cfg.Metrics.AutosaveSkipped("unchanged")
		return
	}
	snapshot := *s.pending
	revision := s.revision
	s.inFlight = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.write(snapshot, revision, false)
}

// storedLocked reports whether c with the current metadata is what the
// remote store holds.
func (s *Scheduler) storedLocked(c content.Content) bool {
	return s.lastWritten != nil && s.writtenRev == s.revision && content.Equal(c, *s.lastWritten)
}

// write runs detached from any caller context; a dispatched write is never
// cancelled.
func (s *Scheduler) write(snapshot content.Content, revision int, isRetry bool) {
	defer s.wg.Done()
	ctx := context.Background()

	doc, err := s.cfg.Writer.SaveDocument(ctx, s.cfg.DocumentID, s.cfg.Record(snapshot))
	if err != nil {
		s.cfg.Metrics.AutosaveWrite(false)
		s.mu.Lock()
		s.inFlight = false
		stopped := s.stopped
		generation := s.generation
		if !isRetry && !stopped {
			s.retry = time.AfterFunc(s.cfg.RetryDelay, func() { s.retryWrite(snapshot, revision, generation) })
		}
		s.mu.Unlock()

		if isRetry {
			s.logger.Error("autosave retry failed, keeping local copy", "error", err)
			return
		}
		if !stopped {
			s.cfg.Metrics.AutosaveRetry()
			s.logger.Warn("autosave failed, retrying", "error", err, "delay", s.cfg.RetryDelay)
		}
		return
	}

	s.mu.Lock()
	s.inFlight = false
	s.generation++
	s.lastWritten = &snapshot
	s.writtenRev = revision
	if s.pending != nil && s.storedLocked(*s.pending) {
		s.pending = nil
	}
	s.mu.Unlock()
	s.cfg.Metrics.AutosaveWrite(true)

	if s.cfg.Cache != nil {
		if err := s.cfg.Cache.Put(ctx, s.cfg.DocumentID, snapshot); err != nil {
			s.logger.Warn("cache written snapshot", "error", err)
		}
	}
	if s.cfg.Broadcaster != nil {
		if err := s.cfg.Broadcaster.Broadcast(snapshot); err != nil {
			s.logger.Debug("broadcast skipped", "error", err)
		}
	}
	if s.cfg.OnSaved != nil {
		s.cfg.OnSaved(doc)
	}
}

// retryWrite repeats a failed write unless a newer write has succeeded or
// another write is in flight.
func (s *Scheduler) retryWrite(snapshot content.Content, revision, generation int) {
	s.mu.Lock()
	if s.stopped || s.inFlight || s.generation != generation {
		s.mu.Unlock()
		s.cfg.Metrics.AutosaveSkipped("retry_superseded")
		return
	}
	s.inFlight = true
	s.wg.Add(1)
	s.mu.Unlock()

	s.write(snapshot, revision, true)
}

// MarkSaved records c as already stored remotely, so scheduling identical
// content does not write it again.
func (s *Scheduler) MarkSaved(c content.Content) {
	snapshot := c.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWritten = &snapshot
	s.writtenRev = s.revision
	if s.pending != nil && s.storedLocked(*s.pending) {
		s.pending = nil
	}
}

// Touch marks the record metadata (title, parent) as changed, so the next
// firing writes even if the content is unchanged.
func (s *Scheduler) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision++
}

// Replace adopts c as the stored state and discards any pending snapshot.
// Used when another session's write supersedes local edits.
func (s *Scheduler) Replace(c content.Content) {
	snapshot := c.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = nil
	s.lastWritten = &snapshot
	s.writtenRev = s.revision
}

// Pending returns content that has been scheduled but not yet stored.
func (s *Scheduler) Pending() (content.Content, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return content.Content{}, false
	}
	if s.storedLocked(*s.pending) {
		return content.Content{}, false
	}
	return s.pending.Clone(), true
}

// Stop cancels the debounce and retry timers and reports content that was
// never stored. A write already in flight runs to completion.
func (s *Scheduler) Stop() (content.Content, bool) {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.retry != nil {
		s.retry.Stop()
	}
	s.mu.Unlock()
	return s.Pending()
}

// Wait blocks until no write is in flight.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
