package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"notespace/client/internal/content"
	"notespace/client/internal/cursor"
	"notespace/client/internal/editor"
	"notespace/client/internal/logging"
)

type memoryStore struct {
	mu   sync.Mutex
	doc  content.Document
	recs []content.Record
}

func (m *memoryStore) GetDocument(_ context.Context, id content.ID) (content.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc, nil
}

func (m *memoryStore) SaveDocument(_ context.Context, id content.ID, rec content.Record) (content.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	m.doc.Title = rec.Title
	return m.doc, nil
}

func (m *memoryStore) Beacon(id content.ID, rec content.Record, done func(error)) {
	_, err := m.SaveDocument(context.Background(), id, rec)
	if done != nil {
		done(err)
	}
}

func (m *memoryStore) saves() []content.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]content.Record(nil), m.recs...)
}

func newTestSession(t *testing.T) (*openSession, *memoryStore, *bytes.Buffer) {
	t.Helper()
	store := &memoryStore{doc: content.Document{
		ID:      "1",
		Title:   "Notes",
		Content: []byte(`{"time":1,"blocks":[{"type":"paragraph","data":{"text":"first"}}],"version":"2.30.7"}`),
	}}
	blocks := editor.NewMemoryEditor()
	ed := editor.New(editor.Config{
		DocumentID:    "1",
		Store:         store,
		Blocks:        blocks,
		AutosaveDelay: 10 * time.Millisecond,
		RetryDelay:    20 * time.Millisecond,
		Logger:        logging.NewNop(),
	})
	if err := ed.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() {
		ed.Unmount()
		ed.Wait()
	})
	var out bytes.Buffer
	return &openSession{editor: ed, blocks: blocks, out: &out, measuring: make(chan struct{}, 1)}, store, &out
}

func TestOpenSessionCommands(t *testing.T) {
	s, store, out := newTestSession(t)
	ctx := context.Background()

	script := "append second\nset 0 changed\ntitle Renamed\nshow\nstatus\nquit\nappend never\n"
	if err := s.run(ctx, strings.NewReader(script)); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := out.String()
	for _, want := range []string{"# Renamed", "changed\n\nsecond\n", "state=ready role=owner"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if n := len(s.editor.Content().Blocks); n != 2 {
		t.Fatalf("blocks = %d, want 2", n)
	}

	saved := func() bool {
		saves := store.saves()
		if len(saves) == 0 {
			return false
		}
		last := saves[len(saves)-1]
		return last.Title == "Renamed" && len(last.Content.Blocks) == 2
	}
	deadline := time.Now().Add(2 * time.Second)
	for !saved() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !saved() {
		t.Fatalf("edits were not autosaved: %+v", store.saves())
	}
}

func TestOpenSessionRejectsBadInput(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := context.Background()

	tests := []struct {
		line string
		want string
	}{
		{"set 9 text", "out of range"},
		{"set x text", "block index"},
		{"cursor 0 1", "not connected"},
		{"dance", "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := s.exec(ctx, tt.line)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("exec(%q) error = %v, want %q", tt.line, err, tt.want)
			}
		})
	}
}

func TestPrintCursorsMarksUnplaced(t *testing.T) {
	var out bytes.Buffer
	printCursors(&out, []cursor.Remote{
		{ID: "a", Username: "ana", Placed: true, Position: cursor.Point{X: 12, Y: 40}},
		{ID: "b", Username: "bo", Logical: &cursor.Logical{Block: 2, Offset: 5}},
	})
	got := out.String()
	if !strings.Contains(got, "(12, 40)") {
		t.Fatalf("placed cursor missing coordinates:\n%s", got)
	}
	if !strings.Contains(got, "block 2 offset 5") {
		t.Fatalf("unplaced cursor missing block position:\n%s", got)
	}
	if strings.Contains(got, "(0, 0)") {
		t.Fatalf("unplaced cursor printed at the origin:\n%s", got)
	}
}
