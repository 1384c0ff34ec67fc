package render

import (
	"context"
	"fmt"
	"time"

	"notespace/client/internal/content"
)

type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatHTML, FormatMarkdown, FormatPDF:
		return Format(s), nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Export renders doc with c in the requested format.
func (r *Registry) Export(ctx context.Context, doc content.Document, c content.Content, format Format, now time.Time) (Result, error) {
	switch format {
	case FormatHTML:
		page, err := r.Page(doc, c, now)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Data:     []byte(page),
			Filename: sanitizeFilename(doc.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatMarkdown:
		body, err := r.Markdown(c)
		if err != nil {
			return Result{}, err
		}
		md := "# " + titleOr(doc.Title) + "\n\n" + body
		return Result{
			Data:     []byte(md),
			Filename: sanitizeFilename(doc.Title) + ".md",
			MimeType: "text/markdown; charset=utf-8",
		}, nil
	case FormatPDF:
		page, err := r.Page(doc, c, now)
		if err != nil {
			return Result{}, err
		}
		return PDF(ctx, page, doc.Title)
	default:
		return Result{}, fmt.Errorf("unsupported format: %s", format)
	}
}
