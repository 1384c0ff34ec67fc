// Package render turns document content into HTML, Markdown and PDF, and
// measures rendered block geometry for cursor projection.
package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"notespace/client/internal/content"
)

// BlockRenderer renders one block type.
type BlockRenderer interface {
	HTML(b content.Block) (string, error)
	Markdown(b content.Block) (string, error)
}

// Registry dispatches blocks to renderers by type. Blocks of unregistered
// types are skipped.
type Registry struct {
	renderers map[string]BlockRenderer
}

func NewRegistry() *Registry {
	return &Registry{renderers: make(map[string]BlockRenderer)}
}

// DefaultRegistry knows every block type the editor produces.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(content.TypeHeader, headerRenderer{})
	r.Register(content.TypeParagraph, paragraphRenderer{})
	r.Register(content.TypeList, listRenderer{})
	r.Register(content.TypeChecklist, checklistRenderer{})
	r.Register(content.TypeImage, imageRenderer{})
	r.Register(content.TypeTable, tableRenderer{})
	r.Register(content.TypeNestedDocument, nestedDocumentRenderer{})
	r.Register(content.TypeTask, taskRenderer{})
	return r
}

func (r *Registry) Register(blockType string, br BlockRenderer) {
	r.renderers[blockType] = br
}

// HTML renders c as a sequence of block elements, each wrapped the way the
// editor wraps blocks.
func (r *Registry) HTML(c content.Content) (string, error) {
	var out strings.Builder
	for i, block := range c.Blocks {
		br, ok := r.renderers[block.Type]
		if !ok {
			continue
		}
		body, err := br.HTML(block)
		if err != nil {
			return "", fmt.Errorf("render block %d: %w", i, err)
		}
		fmt.Fprintf(&out, "<div class=\"ce-block\" data-index=\"%d\">%s</div>\n", i, body)
	}
	return out.String(), nil
}

func (r *Registry) Markdown(c content.Content) (string, error) {
	var parts []string
	for i, block := range c.Blocks {
		br, ok := r.renderers[block.Type]
		if !ok {
			continue
		}
		md, err := br.Markdown(block)
		if err != nil {
			return "", fmt.Errorf("render block %d: %w", i, err)
		}
		parts = append(parts, md)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, "\n\n") + "\n", nil
}

// Block text carries the editor's inline markup; only inline formatting
// survives.
var (
	inlinePolicy = newInlinePolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

func newInlinePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "s", "code", "mark", "br")
	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.RequireNoFollowOnLinks(true)
	return p
}

func inline(text string) string {
	return inlinePolicy.Sanitize(text)
}

// plain strips markup for text output.
func plain(text string) string {
	text = strings.ReplaceAll(text, "<br>", "\n")
	return html.UnescapeString(strictPolicy.Sanitize(text))
}

type headerRenderer struct{}

func (headerRenderer) HTML(b content.Block) (string, error) {
	data, err := content.Payload[content.HeaderData](b)
	if err != nil {
		return "", err
	}
	level := clampLevel(data.Level)
	return fmt.Sprintf("<h%d>%s</h%d>", level, inline(data.Text), level), nil
}

func (headerRenderer) Markdown(b content.Block) (string, error) {
	data, err := content.Payload[content.HeaderData](b)
	if err != nil {
		return "", err
	}
	return strings.Repeat("#", clampLevel(data.Level)) + " " + plain(data.Text), nil
}

func clampLevel(level int) int {
	if level < 1 {
		return 2
	}
	if level > 6 {
		return 6
	}
	return level
}

type paragraphRenderer struct{}

func (paragraphRenderer) HTML(b content.Block) (string, error) {
	data, err := content.Payload[content.ParagraphData](b)
	if err != nil {
		return "", err
	}
	return "<p>" + inline(data.Text) + "</p>", nil
}

func (paragraphRenderer) Markdown(b content.Block) (string, error) {
	data, err := content.Payload[content.ParagraphData](b)
	if err != nil {
		return "", err
	}
	return plain(data.Text), nil
}

type listRenderer struct{}

// listItems accepts both plain string items and nested {content, items}
// objects, flattening nesting into indentation depth.
func listItems(items []any, depth int, visit func(text string, depth int)) {
	for _, item := range items {
		switch v := item.(type) {
		case string:
			visit(v, depth)
		case map[string]any:
			text, _ := v["content"].(string)
			visit(text, depth)
			if nested, ok := v["items"].([]any); ok {
				listItems(nested, depth+1, visit)
			}
		}
	}
}

func (listRenderer) HTML(b content.Block) (string, error) {
	data, err := content.Payload[content.ListData](b)
	if err != nil {
		return "", err
	}
	tag := "ul"
	if data.Style == "ordered" {
		tag = "ol"
	}
	var out strings.Builder
	out.WriteString("<" + tag + ">")
	listItems(data.Items, 0, func(text string, depth int) {
		fmt.Fprintf(&out, "<li class=\"depth-%d\">%s</li>", depth, inline(text))
	})
	out.WriteString("</" + tag + ">")
	return out.String(), nil
}

func (listRenderer) Markdown(b content.Block) (string, error) {
	data, err := content.Payload[content.ListData](b)
	if err != nil {
		return "", err
	}
	var lines []string
	n := 0
	listItems(data.Items, 0, func(text string, depth int) {
		marker := "-"
		if data.Style == "ordered" {
			n++
			marker = fmt.Sprintf("%d.", n)
		}
		lines = append(lines, strings.Repeat("  ", depth)+marker+" "+plain(text))
	})
	return strings.Join(lines, "\n"), nil
}

type checklistRenderer struct{}

func (checklistRenderer) HTML(b content.Block) (string, error) {
	data, err := content.Payload[content.ChecklistData](b)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	out.WriteString(`<ul class="checklist">`)
	for _, item := range data.Items {
		checked := ""
		if item.Checked {
			checked = " checked"
		}
		fmt.Fprintf(&out, `<li><input type="checkbox" disabled%s> %s</li>`, checked, inline(item.Text))
	}
	out.WriteString("</ul>")
	return out.String(), nil
}

func (checklistRenderer) Markdown(b content.Block) (string, error) {
	data, err := content.Payload[content.ChecklistData](b)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(data.Items))
	for _, item := range data.Items {
		lines = append(lines, checkbox(item.Checked)+" "+plain(item.Text))
	}
	return strings.Join(lines, "\n"), nil
}

func checkbox(checked bool) string {
	if checked {
		return "- [x]"
	}
	return "- [ ]"
}

type imageRenderer struct{}

func (imageRenderer) HTML(b content.Block) (string, error) {
	data, err := content.Payload[content.ImageData](b)
	if err != nil {
		return "", err
	}
	var classes []string
	if data.WithBorder {
		classes = append(classes, "with-border")
	}
	if data.WithBackground {
		classes = append(classes, "with-background")
	}
	if data.Stretched {
		classes = append(classes, "stretched")
	}
	caption := ""
	if data.Caption != "" {
		caption = "<figcaption>" + inline(data.Caption) + "</figcaption>"
	}
	return fmt.Sprintf(`<figure class="%s"><img src="%s" alt="%s">%s</figure>`,
		strings.Join(classes, " "),
		html.EscapeString(data.File.URL),
		html.EscapeString(plain(data.Caption)),
		caption), nil
}

func (imageRenderer) Markdown(b content.Block) (string, error) {
	data, err := content.Payload[content.ImageData](b)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("![%s](%s)", plain(data.Caption), data.File.URL), nil
}

type tableRenderer struct{}

func (tableRenderer) HTML(b content.Block) (string, error) {
	data, err := content.Payload[content.TableData](b)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	out.WriteString("<table>\n")
	for i, row := range data.Content {
		cell := "td"
		if i == 0 && data.WithHeadings {
			cell = "th"
		}
		out.WriteString("<tr>")
		for _, value := range row {
			fmt.Fprintf(&out, "<%s>%s</%s>", cell, inline(value), cell)
		}
		out.WriteString("</tr>\n")
	}
	out.WriteString("</table>")
	return out.String(), nil
}

func (tableRenderer) Markdown(b content.Block) (string, error) {
	data, err := content.Payload[content.TableData](b)
	if err != nil {
		return "", err
	}
	if len(data.Content) == 0 {
		return "", nil
	}
	width := 0
	for _, row := range data.Content {
		width = max(width, len(row))
	}
	line := func(row []string) string {
		cells := make([]string, width)
		for i := range cells {
			if i < len(row) {
				cells[i] = strings.ReplaceAll(plain(row[i]), "|", `\|`)
			}
		}
		return "| " + strings.Join(cells, " | ") + " |"
	}
	rows := data.Content
	var lines []string
	if data.WithHeadings {
		lines = append(lines, line(rows[0]))
		rows = rows[1:]
	} else {
		lines = append(lines, line(nil))
	}
	lines = append(lines, "|"+strings.Repeat(" --- |", width))
	for _, row := range rows {
		lines = append(lines, line(row))
	}
	return strings.Join(lines, "\n"), nil
}

type nestedDocumentRenderer struct{}

func (nestedDocumentRenderer) HTML(b content.Block) (string, error) {
	data, err := content.Payload[content.NestedDocumentData](b)
	if err != nil {
		return "", err
	}
	if data.ID == "" {
		return `<p class="nested-document pending">New document</p>`, nil
	}
	return fmt.Sprintf(`<p class="nested-document"><a href="/documents/%s">%s</a></p>`,
		html.EscapeString(data.ID.String()), html.EscapeString(titleOr(data.Title))), nil
}

func (nestedDocumentRenderer) Markdown(b content.Block) (string, error) {
	data, err := content.Payload[content.NestedDocumentData](b)
	if err != nil {
		return "", err
	}
	if data.ID == "" {
		return "", nil
	}
	return fmt.Sprintf("[%s](/documents/%s)", titleOr(data.Title), data.ID), nil
}

func titleOr(title string) string {
	if title == "" {
		return "Untitled"
	}
	return title
}

type taskRenderer struct{}

func (taskRenderer) HTML(b content.Block) (string, error) {
	data, err := content.Payload[content.TaskData](b)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	class := "task"
	if data.Checked {
		class += " done"
	}
	checked := ""
	if data.Checked {
		checked = " checked"
	}
	fmt.Fprintf(&out, `<div class="%s"><input type="checkbox" disabled%s> <span>%s</span>`, class, checked, inline(data.Text))
	if deadline, ok := data.DeadlineAt(); ok {
		fmt.Fprintf(&out, ` <time datetime="%s">due %s</time>`, deadline.Format("2006-01-02T15:04:05Z07:00"), deadline.Format("Jan 2, 2006"))
	}
	if len(data.Assignees) > 0 {
		names := make([]string, 0, len(data.Assignees))
		for _, a := range data.Assignees {
			names = append(names, html.EscapeString(a.Name))
		}
		fmt.Fprintf(&out, ` <span class="assignees">%s</span>`, strings.Join(names, ", "))
	}
	if data.Description != "" {
		fmt.Fprintf(&out, `<p class="description">%s</p>`, inline(data.Description))
	}
	out.WriteString("</div>")
	return out.String(), nil
}

func (taskRenderer) Markdown(b content.Block) (string, error) {
	data, err := content.Payload[content.TaskData](b)
	if err != nil {
		return "", err
	}
	line := checkbox(data.Checked) + " " + plain(data.Text)
	if deadline, ok := data.DeadlineAt(); ok {
		line += " (due " + deadline.Format("2006-01-02") + ")"
	}
	for _, a := range data.Assignees {
		if a.Name != "" {
			line += " @" + a.Name
		}
	}
	return line, nil
}
