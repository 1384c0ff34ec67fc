// Package editor runs one open document: it loads and renders the content,
// feeds local edits to autosave, applies snapshots from other sessions and
// keeps the remote cursor overlay current.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"notespace/client/internal/autosave"
	"notespace/client/internal/cache"
	"notespace/client/internal/channel"
	"notespace/client/internal/content"
	"notespace/client/internal/cursor"
	"notespace/client/internal/metrics"
	"notespace/client/internal/rbac"
)

type State string

const (
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateFailed    State = "failed"
	StateUnmounted State = "unmounted"
)

var ErrNotReady = errors.New("document is not ready")

// Store is the remote document store.
type Store interface {
	GetDocument(ctx context.Context, id content.ID) (content.Document, error)
	SaveDocument(ctx context.Context, id content.ID, rec content.Record) (content.Document, error)
	// Beacon saves rec without blocking the caller.
	Beacon(id content.ID, rec content.Record, done func(error))
}

type Cache interface {
	Get(ctx context.Context, id content.ID) (cache.Entry, bool, error)
	Put(ctx context.Context, id content.ID, c content.Content) error
}

// Channel is the sync channel for the open document.
type Channel interface {
	Connect(ctx context.Context, id content.ID, token string) error
	Send(msg channel.Message) error
	OnMessage(h channel.Handler)
	OnStateChange(fn func(channel.State))
	State() channel.State
	Close() error
}

type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// ParentRenamer rewrites the reference to doc held by its parent.
type ParentRenamer interface {
	RenameInParent(ctx context.Context, doc content.Document, title string) error
}

type Config struct {
	DocumentID content.ID
	// UserID and SharedRole decide whether the session may edit.
	UserID     content.ID
	SharedRole string

	Store  Store
	Cache  Cache
	Blocks BlockEditor
	// Channel, Tokens, Parents and Layout are optional.
	Channel Channel
	Tokens  TokenSource
	Parents ParentRenamer
	Layout  cursor.Layout

	AutosaveDelay       time.Duration
	RetryDelay          time.Duration
	OverlaySyncInterval time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Status is a point-in-time view of an open document.
type Status struct {
	State   State
	Role    rbac.Role
	Source  content.Source
	Title   string
	Channel channel.State
	Pending bool
	Cursors int
	Err     error
}

type Editor struct {
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	overlay   *cursor.Overlay
	projector *cursor.Projector
	resize    chan struct{}
	applying  atomic.Bool

	mu        sync.Mutex
	state     State
	err       error
	doc       content.Document
	current   content.Content
	source    content.Source
	role      rbac.Role
	scheduler *autosave.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(cfg Config) *Editor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.Blocks == nil {
		cfg.Blocks = NewMemoryEditor()
	}
	return &Editor{
		cfg:       cfg,
		logger:    logger.With("component", "editor", "document", cfg.DocumentID),
		now:       now,
		overlay:   cursor.NewOverlay(),
		projector: cursor.NewProjector(cfg.Layout),
		resize:    make(chan struct{}, 1),
		state:     StateLoading,
	}
}

// Mount loads the document and makes it editable. A failed fetch leaves the
// editor in StateFailed; a failed channel connection only disables sync.
func (e *Editor) Mount(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateLoading || e.ctx != nil {
		e.mu.Unlock()
		return fmt.Errorf("mount: editor is %s", e.state)
	}
	e.ctx, e.cancel = context.WithCancel(context.WithoutCancel(ctx))
	e.mu.Unlock()

	id := e.cfg.DocumentID
	doc, err := e.cfg.Store.GetDocument(ctx, id)
	if err != nil {
		e.fail(err)
		return fmt.Errorf("load document %s: %w", id, err)
	}

	var cached json.RawMessage
	if e.cfg.Cache != nil {
		entry, ok, err := e.cfg.Cache.Get(ctx, id)
		if err != nil {
			e.logger.Warn("read local cache", "error", err)
		} else if ok {
			cached = entry.Content
		}
	}
	now := e.now()
	resolved, source := content.Resolve(cached, doc.Content, now)
	role := rbac.ForDocument(doc.Owner, e.cfg.UserID, e.cfg.SharedRole)
	writable := rbac.Can(role, rbac.ActionWrite)

	e.cfg.Blocks.OnChange(e.changed)
	if err := e.render(resolved); err != nil {
		e.fail(err)
		return fmt.Errorf("render document %s: %w", id, err)
	}
	e.cfg.Blocks.SetReadOnly(!writable)
	if e.cfg.Cache != nil {
		if err := e.cfg.Cache.Put(ctx, id, resolved); err != nil {
			e.logger.Warn("write local cache", "error", err)
		}
	}

	var scheduler *autosave.Scheduler
	if writable {
		var broadcaster autosave.Broadcaster
		if e.cfg.Channel != nil {
			broadcaster = channelBroadcaster{e.cfg.Channel}
		}
		scheduler = autosave.New(autosave.Config{
			DocumentID:  id,
			Delay:       e.cfg.AutosaveDelay,
			RetryDelay:  e.cfg.RetryDelay,
			Writer:      e.cfg.Store,
			Cache:       e.cfg.Cache,
			Broadcaster: broadcaster,
			Record:      e.record,
			OnSaved:     e.saved,
			Logger:      e.cfg.Logger,
			Metrics:     e.cfg.Metrics,
		})
		stored, _ := content.Resolve(nil, doc.Content, now)
		scheduler.MarkSaved(stored)
	}

	e.mu.Lock()
	e.doc = doc
	e.current = resolved
	e.source = source
	e.role = role
	e.scheduler = scheduler
	e.state = StateReady
	runCtx := e.ctx
	e.mu.Unlock()

	e.logger.Info("document mounted", "source", source, "role", role, "blocks", len(resolved.Blocks))

	if e.cfg.Layout != nil {
		go e.overlay.Run(runCtx, e.cfg.Layout, e.resize, e.cfg.OverlaySyncInterval)
	}
	e.connect(ctx, runCtx)
	return nil
}

func (e *Editor) connect(ctx, runCtx context.Context) {
	if e.cfg.Channel == nil {
		return
	}
	token := ""
	if e.cfg.Tokens != nil {
		t, err := e.cfg.Tokens.AccessToken(ctx)
		if err != nil {
			e.logger.Warn("no token for sync channel, editing locally", "error", err)
			return
		}
		token = t
	}
	e.cfg.Channel.OnMessage(e.receive)
	e.cfg.Channel.OnStateChange(e.channelState)
	if err := e.cfg.Channel.Connect(runCtx, e.cfg.DocumentID, token); err != nil {
		e.logger.Warn("sync channel unavailable, editing locally", "error", err)
	}
}

// channelState drops remote cursors once the channel is lost; peers announce
// themselves again after a reconnect.
func (e *Editor) channelState(s channel.State) {
	if s == channel.StateError || s == channel.StateDisconnected {
		e.overlay.Clear()
	}
}

func (e *Editor) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateFailed
	e.err = err
	e.logger.Error("document failed to load", "error", err)
}

// render replaces the block editor content without treating it as a local
// edit.
func (e *Editor) render(c content.Content) error {
	e.applying.Store(true)
	defer e.applying.Store(false)
	return e.cfg.Blocks.Render(c)
}

func (e *Editor) changed() {
	if e.applying.Load() {
		return
	}
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	if ctx == nil {
		return
	}
	err := e.HandleChange(ctx)
	if err != nil && !errors.Is(err, ErrReadOnly) && !errors.Is(err, ErrNotReady) {
		e.logger.Warn("handle change", "error", err)
	}
}

// HandleChange reads the block editor content and schedules it for saving.
func (e *Editor) HandleChange(ctx context.Context) error {
	e.mu.Lock()
	state, scheduler := e.state, e.scheduler
	e.mu.Unlock()
	if state != StateReady {
		return ErrNotReady
	}
	if scheduler == nil {
		return ErrReadOnly
	}

	snapshot, err := e.cfg.Blocks.Save()
	if err != nil {
		return fmt.Errorf("read editor content: %w", err)
	}
	snapshot.Time = e.now().UnixMilli()
	if snapshot.Version == "" {
		snapshot.Version = content.EditorVersion
	}

	e.mu.Lock()
	e.current = snapshot.Clone()
	e.mu.Unlock()
	scheduler.Schedule(ctx, snapshot)
	return nil
}

// SetTitle renames the document. The parent's reference is rewritten right
// away; the document itself is saved through autosave.
func (e *Editor) SetTitle(ctx context.Context, title string) error {
	e.mu.Lock()
	if e.state != StateReady {
		e.mu.Unlock()
		return ErrNotReady
	}
	scheduler := e.scheduler
	if scheduler == nil {
		e.mu.Unlock()
		return ErrReadOnly
	}
	if e.doc.Title == title {
		e.mu.Unlock()
		return nil
	}
	e.doc.Title = title
	doc := e.doc
	current := e.current.Clone()
	e.mu.Unlock()

	var renameErr error
	if e.cfg.Parents != nil {
		if err := e.cfg.Parents.RenameInParent(ctx, doc, title); err != nil {
			e.logger.Warn("rename in parent", "error", err)
			renameErr = fmt.Errorf("rename in parent: %w", err)
		}
	}
	scheduler.Touch()
	scheduler.Schedule(ctx, current)
	return renameErr
}

func (e *Editor) record(c content.Content) content.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return content.NewRecord(e.doc, c)
}

// saved keeps the local title and parent; only store-managed fields are
// taken from the response.
func (e *Editor) saved(doc content.Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !doc.UpdatedAt.IsZero() {
		e.doc.UpdatedAt = doc.UpdatedAt
	}
}

func (e *Editor) receive(msg channel.Message) {
	switch msg.Type {
	case channel.TypeDocumentUpdate:
		if msg.Content != nil {
			e.applyRemote(*msg.Content)
		}
	case channel.TypeCursorConnect, channel.TypeCursorUpdate:
		position, logical := e.project(msg.Position)
		e.overlay.Apply(cursor.Update{
			CursorID: msg.CursorID,
			UserID:   msg.UserID.String(),
			Username: msg.Username,
			Position: position,
			Logical:  logical,
		})
	case channel.TypeCursorDisconnect:
		e.overlay.Remove(msg.CursorID)
	}
}

// applyRemote shows a snapshot written by another session. It replaces any
// pending local edit and is not saved again.
func (e *Editor) applyRemote(c content.Content) {
	e.mu.Lock()
	if e.state != StateReady {
		e.mu.Unlock()
		return
	}
	scheduler, ctx := e.scheduler, e.ctx
	e.mu.Unlock()

	if err := e.render(c); err != nil {
		e.logger.Warn("apply remote update", "error", err)
		return
	}
	e.mu.Lock()
	e.current = c.Clone()
	e.mu.Unlock()
	if scheduler != nil {
		scheduler.Replace(c)
	}
	if e.cfg.Cache != nil {
		if err := e.cfg.Cache.Put(ctx, e.cfg.DocumentID, c); err != nil {
			e.logger.Warn("cache remote update", "error", err)
		}
	}
	e.logger.Debug("applied remote update", "blocks", len(c.Blocks))
}

// project converts an inbound position to overlay coordinates. Logical
// positions outside the rendered blocks hide the cursor. Without a local
// layout a logical position is kept unplaced; the sender's x and y are not
// trusted because it may have had no layout either.
func (e *Editor) project(p *channel.Position) (*cursor.Point, *cursor.Logical) {
	if p == nil {
		return nil, nil
	}
	if p.BlockIndex == nil {
		return &cursor.Point{X: p.X, Y: p.Y}, nil
	}
	logical := &cursor.Logical{Block: *p.BlockIndex, Offset: p.Offset}
	if e.cfg.Layout == nil {
		return nil, logical
	}
	pt, ok := e.projector.ToScreen(*p.BlockIndex, p.Offset)
	if !ok {
		return nil, nil
	}
	return &pt, logical
}

// MoveCursor publishes the local caret. A block index outside the document
// hides the cursor for other sessions.
func (e *Editor) MoveCursor(blockIndex int, offset float64) error {
	if e.cfg.Channel == nil {
		return channel.ErrNotConnected
	}
	msg := channel.Message{Type: channel.TypeCursorUpdate}

	e.mu.Lock()
	blocks := len(e.current.Blocks)
	e.mu.Unlock()
	if blockIndex >= 0 && blockIndex < blocks {
		index := blockIndex
		position := &channel.Position{BlockIndex: &index, Offset: offset}
		if e.cfg.Layout != nil {
			pt, ok := e.projector.ToScreen(blockIndex, offset)
			if ok {
				position.X, position.Y = pt.X, pt.Y
			} else {
				position = nil
			}
		}
		msg.Position = position
	}
	return e.cfg.Channel.Send(msg)
}

// HideCursor tells other sessions the local caret left the document.
func (e *Editor) HideCursor() error {
	if e.cfg.Channel == nil {
		return channel.ErrNotConnected
	}
	return e.cfg.Channel.Send(channel.Message{Type: channel.TypeCursorUpdate})
}

// Resized asks the overlay to follow a layout change.
func (e *Editor) Resized() {
	select {
	case e.resize <- struct{}{}:
	default:
	}
}

func (e *Editor) Cursors() []cursor.Remote {
	return e.overlay.Cursors()
}

func (e *Editor) Overlay() *cursor.Overlay {
	return e.overlay
}

// Content returns the latest known snapshot.
func (e *Editor) Content() content.Content {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Clone()
}

func (e *Editor) Document() content.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc
}

func (e *Editor) Title() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Title
}

func (e *Editor) Status() Status {
	e.mu.Lock()
	status := Status{
		State:  e.state,
		Role:   e.role,
		Source: e.source,
		Title:  e.doc.Title,
		Err:    e.err,
	}
	scheduler := e.scheduler
	e.mu.Unlock()

	if scheduler != nil {
		_, status.Pending = scheduler.Pending()
	}
	status.Channel = channel.StateDisconnected
	if e.cfg.Channel != nil {
		status.Channel = e.cfg.Channel.State()
	}
	status.Cursors = e.overlay.Len()
	return status
}

// Unmount stops autosave, hands unsaved content to a beacon save and
// detaches from the sync channel. It does not wait for the beacon.
func (e *Editor) Unmount() {
	e.mu.Lock()
	if e.state == StateUnmounted {
		e.mu.Unlock()
		return
	}
	e.state = StateUnmounted
	scheduler, doc, cancel := e.scheduler, e.doc, e.cancel
	e.mu.Unlock()

	if scheduler != nil {
		if pending, ok := scheduler.Stop(); ok {
			e.logger.Info("flushing unsaved content on unmount")
			e.cfg.Store.Beacon(e.cfg.DocumentID, content.NewRecord(doc, pending), nil)
		}
	}
	if e.cfg.Channel != nil {
		if err := e.cfg.Channel.Close(); err != nil {
			e.logger.Debug("close sync channel", "error", err)
		}
	}
	e.overlay.Clear()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until autosave writes dispatched before Unmount have returned.
func (e *Editor) Wait() {
	e.mu.Lock()
	scheduler := e.scheduler
	e.mu.Unlock()
	if scheduler != nil {
		scheduler.Wait()
	}
}

// channelBroadcaster announces saved snapshots on the sync channel.
type channelBroadcaster struct {
	ch Channel
}

func (b channelBroadcaster) Broadcast(c content.Content) error {
	return b.ch.Send(channel.Message{Type: channel.TypeDocumentUpdate, Content: &c})
}
