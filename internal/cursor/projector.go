// Package cursor maps logical caret positions to overlay coordinates and
// tracks the remote cursors drawn over a document.
package cursor

import "sort"

type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Bottom() float64 { return r.Top + r.Height }

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout exposes the rendered geometry of a document: the editor container
// and one rectangle per block, in block order. Coordinates share one origin.
type Layout interface {
	Container() Rect
	Blocks() []Rect
}

// StaticLayout is a Layout with fixed geometry.
type StaticLayout struct {
	Frame Rect
	Rects []Rect
}

func (s StaticLayout) Container() Rect { return s.Frame }
func (s StaticLayout) Blocks() []Rect  { return s.Rects }

// Projector converts between (block index, character offset) and
// container-relative points. The character offset is used as a pixel
// offset, so projection is approximate horizontally.
type Projector struct {
	layout Layout
}

func NewProjector(layout Layout) *Projector {
	return &Projector{layout: layout}
}

// ToScreen returns false when blockIndex is not a rendered block; callers
// hide the cursor rather than guess a position.
func (p *Projector) ToScreen(blockIndex int, offset float64) (Point, bool) {
	if p == nil || p.layout == nil {
		return Point{}, false
	}
	blocks := p.layout.Blocks()
	if blockIndex < 0 || blockIndex >= len(blocks) {
		return Point{}, false
	}
	container := p.layout.Container()
	block := blocks[blockIndex]
	return Point{
		X: block.Left - container.Left + offset,
		Y: block.Top - container.Top,
	}, true
}

// ToLogical finds the block under a container-relative point. Points above
// the first block map to it; points below the last block map to the last.
func (p *Projector) ToLogical(pt Point) (int, float64, bool) {
	if p == nil || p.layout == nil {
		return 0, 0, false
	}
	blocks := p.layout.Blocks()
	if len(blocks) == 0 {
		return 0, 0, false
	}
	container := p.layout.Container()
	y := pt.Y + container.Top
	index := sort.Search(len(blocks), func(i int) bool {
		return blocks[i].Bottom() > y
	})
	if index == len(blocks) {
		index = len(blocks) - 1
	}
	offset := pt.X + container.Left - blocks[index].Left
	if offset < 0 {
		offset = 0
	}
	return index, offset, true
}
