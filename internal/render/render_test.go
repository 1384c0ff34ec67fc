package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"notespace/client/internal/content"
)

func block(blockType string, data map[string]any) content.Block {
	return content.Block{Type: blockType, Data: data}
}

func TestBlockHTML(t *testing.T) {
	tests := []struct {
		name     string
		block    content.Block
		expected string
	}{
		{
			name:     "paragraph keeps inline formatting",
			block:    block(content.TypeParagraph, map[string]any{"text": "Hello <b>world</b>"}),
			expected: "<p>Hello <b>world</b></p>",
		},
		{
			name:     "paragraph drops unsafe markup",
			block:    block(content.TypeParagraph, map[string]any{"text": `x<img src=a onerror="alert(1)">`}),
			expected: "<p>x</p>",
		},
		{
			name:     "header level",
			block:    block(content.TypeHeader, map[string]any{"text": "Section", "level": float64(3)}),
			expected: "<h3>Section</h3>",
		},
		{
			name:     "ordered list",
			block:    block(content.TypeList, map[string]any{"style": "ordered", "items": []any{"one", "two"}}),
			expected: `<ol><li class="depth-0">one</li><li class="depth-0">two</li></ol>`,
		},
		{
			name: "nested list items",
			block: block(content.TypeList, map[string]any{"style": "unordered", "items": []any{
				map[string]any{"content": "parent", "items": []any{map[string]any{"content": "child"}}},
			}}),
			expected: `<li class="depth-1">child</li>`,
		},
		{
			name:     "checklist",
			block:    block(content.TypeChecklist, map[string]any{"items": []any{map[string]any{"text": "done", "checked": true}}}),
			expected: `<input type="checkbox" disabled checked> done`,
		},
		{
			name:     "table with headings",
			block:    block(content.TypeTable, map[string]any{"withHeadings": true, "content": []any{[]any{"A", "B"}, []any{"1", "2"}}}),
			expected: "<tr><th>A</th><th>B</th></tr>\n<tr><td>1</td><td>2</td></tr>",
		},
		{
			name:     "nested document link",
			block:    content.NestedDocument("12", "Child <page>"),
			expected: `<a href="/documents/12">Child &lt;page&gt;</a>`,
		},
		{
			name:     "image",
			block:    block(content.TypeImage, map[string]any{"file": map[string]any{"url": "/uploads/a.png"}, "caption": "Cat", "stretched": true}),
			expected: `<figure class="stretched"><img src="/uploads/a.png" alt="Cat"><figcaption>Cat</figcaption></figure>`,
		},
		{
			name:     "task with deadline",
			block:    block(content.TypeTask, map[string]any{"text": "Ship", "checked": true, "deadline": "2024-03-01T10:00:00Z"}),
			expected: `<time datetime="2024-03-01T10:00:00Z">due Mar 1, 2024</time>`,
		},
	}

	r := DefaultRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.HTML(content.Content{Blocks: []content.Block{tt.block}})
			if err != nil {
				t.Fatalf("HTML() error = %v", err)
			}
			if !strings.Contains(out, tt.expected) {
				t.Errorf("HTML() = %v, want %v", out, tt.expected)
			}
		})
	}
}

func TestUnknownBlocksAreSkipped(t *testing.T) {
	c := content.Content{Blocks: []content.Block{
		block("warning", map[string]any{"title": "x"}),
		content.Paragraph("kept"),
	}}
	out, err := DefaultRegistry().HTML(c)
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if strings.Count(out, "ce-block") != 1 || !strings.Contains(out, `data-index="1"`) {
		t.Errorf("HTML() = %v", out)
	}
}

type upperRenderer struct{}

func (upperRenderer) HTML(b content.Block) (string, error) {
	text, _ := b.Data["text"].(string)
	return strings.ToUpper(text), nil
}

func (upperRenderer) Markdown(b content.Block) (string, error) {
	return upperRenderer{}.HTML(b)
}

func TestRegisterOverridesRenderer(t *testing.T) {
	r := DefaultRegistry()
	r.Register(content.TypeParagraph, upperRenderer{})
	out, _ := r.Markdown(content.Content{Blocks: []content.Block{content.Paragraph("quiet")}})
	if out != "QUIET\n" {
		t.Errorf("Markdown() = %q", out)
	}
}

func TestMarkdown(t *testing.T) {
	c := content.Content{Blocks: []content.Block{
		block(content.TypeHeader, map[string]any{"text": "Plan", "level": float64(2)}),
		content.Paragraph("Fish &amp; <i>chips</i>"),
		block(content.TypeList, map[string]any{"style": "ordered", "items": []any{"a", "b"}}),
		block(content.TypeTask, map[string]any{"text": "Call", "assignees": []any{map[string]any{"id": "1", "name": "Ana"}}}),
		block(content.TypeTable, map[string]any{"content": []any{[]any{"x", "y|z"}}}),
	}}
	out, err := DefaultRegistry().Markdown(c)
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	want := strings.Join([]string{
		"## Plan",
		"Fish & chips",
		"1. a\n2. b",
		"- [ ] Call @Ana",
		"|  |  |\n| --- | --- |\n| x | y\\|z |",
	}, "\n\n") + "\n"
	if out != want {
		t.Errorf("Markdown() =\n%s\nwant\n%s", out, want)
	}
}

func TestPage(t *testing.T) {
	doc := content.Document{
		Title:     "Roadmap",
		Path:      []content.PathItem{{ID: "1", Title: "Root"}, {ID: "2", Title: "Roadmap"}},
		UpdatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	c := content.Content{Blocks: []content.Block{
		content.Paragraph("This is the content."),
		block(content.TypeTask, map[string]any{"text": "t", "checked": true}),
	}}
	html, err := DefaultRegistry().Page(doc, c, time.Now())
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	for _, want := range []string{"<title>Roadmap</title>", "Root / Roadmap", "Updated Mar 1, 2024", "1/1 tasks done", "<p>This is the content.</p>"} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(html, "&lt;p&gt;") {
		t.Error("block HTML was escaped")
	}
}

func TestExportMarkdown(t *testing.T) {
	res, err := DefaultRegistry().Export(context.Background(), content.Document{Title: "My Notes"},
		content.Content{Blocks: []content.Block{content.Paragraph("hi")}}, FormatMarkdown, time.Now())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Filename != "My-Notes.md" || string(res.Data) != "# My Notes\n\nhi\n" {
		t.Errorf("Export() = %q %q", res.Filename, res.Data)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("md"); err != nil || f != FormatMarkdown {
		t.Errorf("ParseFormat(md) = %v, %v", f, err)
	}
	if _, err := ParseFormat("docx"); err == nil {
		t.Error("docx should be rejected")
	}
}

func TestParseMeasured(t *testing.T) {
	layout, err := parseMeasured(`{"container":{"left":5,"top":10,"width":800,"height":600},"blocks":[{"left":5,"top":10,"width":800,"height":24}]}`)
	if err != nil {
		t.Fatalf("parseMeasured() error = %v", err)
	}
	if layout.Frame.Width != 800 || len(layout.Rects) != 1 || layout.Rects[0].Height != 24 {
		t.Errorf("layout = %+v", layout)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Document v1.2", "My-Document-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "document"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"é", "%C3%A9"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
