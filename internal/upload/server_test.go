package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"notespace/client/internal/api"
	"notespace/client/internal/logging"
	"notespace/client/internal/metrics"
	"notespace/client/internal/session"
)

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := NewDiskStorage(dir)
	if err != nil {
		t.Fatalf("NewDiskStorage: %v", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	srv := httptest.NewServer(NewServer(storage, cfg).Handler())
	t.Cleanup(srv.Close)
	return srv, dir
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadImageRoundTrip(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv, dir := newTestServer(t, Config{BaseURL: "/uploads/", Metrics: metrics.New(reg), Gatherer: reg})

	client := api.New(srv.URL, session.NewMemoryStore(session.Tokens{}), api.WithLogger(logging.NewNop()))
	png := []byte("\x89PNG fake image bytes")
	file, err := client.UploadImage(context.Background(), srv.URL+"/api/upload-image", "my cat.png", "image/png", bytes.NewReader(png))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !strings.HasPrefix(file.URL, "/uploads/") || !strings.HasSuffix(file.URL, "-my-cat.png") {
		t.Fatalf("url = %q", file.URL)
	}
	if file.Name != "my cat.png" || file.Size != int64(len(png)) || file.Type != "image/png" {
		t.Fatalf("file = %+v", file)
	}

	stored, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(file.URL, "/uploads/")))
	if err != nil || !bytes.Equal(stored, png) {
		t.Fatalf("stored file = %q, %v", stored, err)
	}

	resp, err := http.Get(srv.URL + file.URL)
	if err != nil {
		t.Fatalf("GET upload: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !bytes.Equal(body, png) {
		t.Fatalf("GET upload = %d %q", resp.StatusCode, body)
	}
	if resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
	}

	metricsResp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer metricsResp.Body.Close()
	text, _ := io.ReadAll(metricsResp.Body)
	if !strings.Contains(string(text), `editor_upload_images_total{result="ok"} 1`) {
		t.Errorf("metrics missing upload counter:\n%s", text)
	}
}

func TestUploadRejections(t *testing.T) {
	srv, _ := newTestServer(t, Config{BaseURL: "/uploads", MaxBytes: 1024})

	tests := []struct {
		name        string
		field       string
		contentType string
		size        int
		wantStatus  int
		wantMessage string
	}{
		{"missing file field", "image", "image/png", 10, http.StatusBadRequest, "file not found"},
		{"not an image", "file", "text/plain", 10, http.StatusBadRequest, "file must be an image"},
		{"too large", "file", "image/png", 4096, http.StatusRequestEntityTooLarge, "file is too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.field, "a.png", tt.contentType, bytes.Repeat([]byte("x"), tt.size))
			resp, err := http.Post(srv.URL+"/api/upload-image", contentType, body)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var out struct {
				Success int    `json:"success"`
				Message string `json:"message"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Success != 0 || out.Message != tt.wantMessage {
				t.Fatalf("body = %+v", out)
			}
		})
	}
}

func TestUploadFailureSurfacesThroughClient(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	client := api.New(srv.URL, session.NewMemoryStore(session.Tokens{}), api.WithLogger(logging.NewNop()))

	_, err := client.UploadImage(context.Background(), srv.URL+"/api/upload-image", "notes.txt", "text/plain", strings.NewReader("hi"))
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Message != "file must be an image" {
		t.Fatalf("err = %v", err)
	}
}

func TestMissingUploadIs404(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	for _, path := range []string{"/uploads/nope.png", "/uploads/.hidden"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}
}

func TestMiddlewareSetsHeaders(t *testing.T) {
	srv, _ := newTestServer(t, Config{CORSOrigin: "http://localhost:3000"})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/upload-image", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("CORS origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") != "abc123" {
		t.Errorf("request id = %q", resp.Header.Get("X-Request-ID"))
	}
}

func TestStoredName(t *testing.T) {
	tests := []struct {
		input  string
		suffix string
	}{
		{"photo one.jpg", "-photo-one.jpg"},
		{"../../etc/passwd", "-passwd"},
		{`C:\Users\me\pic.png`, "-pic.png"},
		{"", "-image"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := storedName(tt.input)
			if !strings.HasSuffix(got, tt.suffix) || strings.ContainsAny(got, `/\`) {
				t.Errorf("storedName(%q) = %q", tt.input, got)
			}
		})
	}
}
