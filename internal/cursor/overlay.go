package cursor

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Logical is a caret position in block terms.
type Logical struct {
	Block  int
	Offset float64
}

// Remote is one collaborator's cursor. Position is only meaningful when
// Placed is set; a cursor known only by its logical position is kept but not
// drawn.
type Remote struct {
	ID        string
	UserID    string
	Username  string
	Position  Point
	Placed    bool
	Logical   *Logical
	Color     string
	UpdatedAt time.Time
}

// Update is an inbound cursor report. With neither Position nor Logical set
// the cursor left the document.
type Update struct {
	CursorID string
	UserID   string
	Username string
	Position *Point
	Logical  *Logical
}

// Overlay is the set of remote cursors drawn over one document, keyed by
// cursor id. It is safe for concurrent use.
type Overlay struct {
	mu      sync.RWMutex
	cursors map[string]*Remote
	bounds  Rect
	now     func() time.Time
}

func NewOverlay() *Overlay {
	return &Overlay{cursors: make(map[string]*Remote), now: time.Now}
}

// Apply folds an update into the set. Unknown ids with a position add one
// entry; known ids move; a nil position removes the entry.
func (o *Overlay) Apply(u Update) {
	if u.CursorID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if u.Position == nil && u.Logical == nil {
		delete(o.cursors, u.CursorID)
		return
	}
	existing, ok := o.cursors[u.CursorID]
	if !ok {
		existing = &Remote{
			ID:     u.CursorID,
			UserID: u.UserID,
			Color:  ColorFor(u.UserID),
		}
		o.cursors[u.CursorID] = existing
	}
	existing.Position, existing.Placed = Point{}, false
	if u.Position != nil {
		existing.Position, existing.Placed = *u.Position, true
	}
	existing.Logical = nil
	if u.Logical != nil {
		logical := *u.Logical
		existing.Logical = &logical
	}
	if u.Username != "" {
		existing.Username = u.Username
	}
	existing.UpdatedAt = o.now()
}

func (o *Overlay) Remove(cursorID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cursors, cursorID)
}

// Clear drops every cursor; used when the channel goes away.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cursors = make(map[string]*Remote)
}

func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.cursors)
}

// Cursors returns a snapshot ordered by cursor id.
func (o *Overlay) Cursors() []Remote {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Remote, 0, len(o.cursors))
	for _, c := range o.cursors {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Bounds is the overlay size, matching the editor container.
func (o *Overlay) Bounds() Rect {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.bounds
}

// Sync copies the container geometry from layout.
func (o *Overlay) Sync(layout Layout) {
	frame := layout.Container()
	o.mu.Lock()
	o.bounds = Rect{Width: frame.Width, Height: frame.Height}
	o.mu.Unlock()
}

// Run keeps the overlay bounds in step with layout on every resize signal and
// every interval until ctx is done.
func (o *Overlay) Run(ctx context.Context, layout Layout, resize <-chan struct{}, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	o.Sync(layout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-resize:
			o.Sync(layout)
		case <-ticker.C:
			o.Sync(layout)
		}
	}
}
