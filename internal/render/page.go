package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"notespace/client/internal/content"
)

// PageData holds data for the standalone document page.
type PageData struct {
	Title       string
	Path        []content.PathItem
	ContentHTML template.HTML
	UpdatedAt   time.Time
	Tasks       content.TaskSummary
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .ce-block { margin: 0.4rem 0; }
    .checklist { list-style: none; padding-left: 0; }
    .task.done span { text-decoration: line-through; color: #888; }
    .nested-document a { text-decoration: none; border-bottom: 1px dashed #333; }
    figure.stretched img { width: 100%; }
    figure.with-border img { border: 1px solid #ccc; }
    figure.with-background { background: #f5f5f5; padding: 1rem; }
    table { border-collapse: collapse; }
    td, th { border: 1px solid #ccc; padding: 0.3rem 0.6rem; }
  </style>
</head>
<body>
  {{if .Path}}<nav class="meta">{{range $i, $p := .Path}}{{if $i}} / {{end}}{{$p.Title}}{{end}}</nav>{{end}}
  <h1>{{.Title}}</h1>
  <div class="meta">{{if not .UpdatedAt.IsZero}}Updated {{formatDate .UpdatedAt "Jan 2, 2006"}}{{end}}{{if .Tasks.Total}} | {{.Tasks.Completed}}/{{.Tasks.Total}} tasks done{{end}}</div>
  <div class="codex-editor">
{{.ContentHTML}}  </div>
</body>
</html>`

// Page renders doc with c as a standalone HTML page.
func (r *Registry) Page(doc content.Document, c content.Content, now time.Time) (string, error) {
	body, err := r.HTML(c)
	if err != nil {
		return "", err
	}
	data := PageData{
		Title:       titleOr(doc.Title),
		Path:        doc.Path,
		ContentHTML: template.HTML(body),
		UpdatedAt:   doc.UpdatedAt,
		Tasks:       content.Summarize(c, now),
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return buf.String(), nil
}
