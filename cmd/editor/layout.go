package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"notespace/client/internal/content"
	"notespace/client/internal/cursor"
	"notespace/client/internal/render"
)

// measuredLayout is the geometry of the document as laid out by a headless
// browser. It is re-measured after local and remote changes.
type measuredLayout struct {
	width  int64
	logger *slog.Logger

	mu     sync.RWMutex
	layout cursor.StaticLayout
}

func (m *measuredLayout) Container() cursor.Rect {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.layout.Frame
}

func (m *measuredLayout) Blocks() []cursor.Rect {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.layout.Rects
}

// Measure lays out c and stores the result. On failure the previous geometry
// is kept.
func (m *measuredLayout) Measure(ctx context.Context, doc content.Document, c content.Content) error {
	page, err := render.DefaultRegistry().Page(doc, c, time.Now())
	if err != nil {
		return err
	}
	layout, err := render.MeasureLayout(ctx, page, m.width)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.layout = layout
	m.mu.Unlock()
	m.logger.Debug("layout measured", "blocks", len(layout.Rects), "width", layout.Frame.Width)
	return nil
}
