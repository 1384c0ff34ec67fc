package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"notespace/client/internal/cursor"
)

var ErrBrowserMissing = errors.New("headless browser not installed")

const browserTimeout = 30 * time.Second

// Result is an exported file.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// percentEncodeForDataURL encodes a string for use in a data URL. Spaces
// become %20, not +.
func percentEncodeForDataURL(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == '~':
			result.WriteRune(r)
		case r == ' ':
			result.WriteString("%20")
		default:
			for _, b := range []byte(string(r)) {
				fmt.Fprintf(&result, "%%%02X", b)
			}
		}
	}
	return result.String()
}

func dataURL(html string) string {
	return "data:text/html;charset=utf-8," + percentEncodeForDataURL(html)
}

func browserInstalled() bool {
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// newBrowser starts a headless browser tab bound to ctx.
func newBrowser(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if !browserInstalled() {
		return nil, nil, ErrBrowserMissing
	}
	ctx, cancelTimeout := context.WithTimeout(ctx, browserTimeout)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)

	return taskCtx, func() {
		cancelTask()
		cancelAlloc()
		cancelTimeout()
	}, nil
}

// PDF prints page HTML to a letter-sized PDF.
func PDF(ctx context.Context, html, title string) (Result, error) {
	taskCtx, cancel, err := newBrowser(ctx)
	if err != nil {
		return Result{}, err
	}
	defer cancel()

	var pdfData []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL(html)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.5).
				WithPaperHeight(11.0).
				WithMarginTop(0.75).
				WithMarginBottom(0.75).
				WithMarginLeft(0.75).
				WithMarginRight(0.75).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return Result{}, fmt.Errorf("print pdf: %w", err)
	}
	return Result{
		Data:     pdfData,
		Filename: sanitizeFilename(title) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

const measureScript = `(() => {
  const box = (el) => {
    const r = el.getBoundingClientRect();
    return {left: r.left, top: r.top, width: r.width, height: r.height};
  };
  const container = document.querySelector('.codex-editor') || document.body;
  return JSON.stringify({
    container: box(container),
    blocks: Array.from(document.querySelectorAll('.ce-block')).map(box),
  });
})()`

type measured struct {
	Container cursor.Rect   `json:"container"`
	Blocks    []cursor.Rect `json:"blocks"`
}

// MeasureLayout renders page HTML at the given viewport width and returns
// the container and block rectangles.
func MeasureLayout(ctx context.Context, html string, width int64) (cursor.StaticLayout, error) {
	taskCtx, cancel, err := newBrowser(ctx)
	if err != nil {
		return cursor.StaticLayout{}, err
	}
	defer cancel()

	if width <= 0 {
		width = 1280
	}
	var raw string
	err = chromedp.Run(taskCtx,
		chromedp.EmulateViewport(width, 800),
		chromedp.Navigate(dataURL(html)),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(measureScript, &raw),
	)
	if err != nil {
		return cursor.StaticLayout{}, fmt.Errorf("measure layout: %w", err)
	}
	return parseMeasured(raw)
}

func parseMeasured(raw string) (cursor.StaticLayout, error) {
	var m measured
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return cursor.StaticLayout{}, fmt.Errorf("decode layout: %w", err)
	}
	return cursor.StaticLayout{Frame: m.Container, Rects: m.Blocks}, nil
}

// sanitizeFilename creates a safe filename from a title.
func sanitizeFilename(title string) string {
	var result strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result.WriteRune(r)
		case r == ' ':
			result.WriteRune('-')
		case r == '-', r == '_':
			result.WriteRune(r)
		}
	}
	name := result.String()
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "document"
	}
	return name
}
