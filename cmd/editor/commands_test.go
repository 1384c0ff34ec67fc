package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"notespace/client/internal/logging"
	"notespace/client/internal/upload"
	"notespace/client/internal/workspace"
)

// resetFlags puts every flag of the command tree back to its default;
// rootCmd is shared by all tests in the package.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCLI executes the editor command line against api, signed in with an
// opaque access token, and returns what the command printed.
func runCLI(t *testing.T, api http.Handler, stdin string, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	t.Setenv("EDITOR_CONFIG", "")
	t.Setenv("EDITOR_API_URL", srv.URL)
	t.Setenv("EDITOR_TOKEN_STORE", "memory")
	t.Setenv("EDITOR_ACCESS_TOKEN", "test-token")
	t.Setenv("EDITOR_REFRESH_TOKEN", "")
	t.Setenv("EDITOR_LOG_LEVEL", "error")
	t.Setenv("EDITOR_METRICS_ADDR", "")

	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func authorized(t *testing.T, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("%s %s: authorization = %q", r.Method, r.URL.Path, got)
		}
		next(w, r)
	}
}

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestListPicksCollection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /documents/{$}", authorized(t, reply(`[{"id":1,"title":"Everything","owner_username":"ana"}]`)))
	mux.HandleFunc("GET /documents/favorites/", authorized(t, reply(`[{"id":2,"title":"Starred","is_favorite":true}]`)))
	mux.HandleFunc("GET /documents/shared_with_me/", authorized(t, reply(`[{"id":3,"title":"From a friend"}]`)))

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"list"}, "Everything"},
		{[]string{"list", "--favorites"}, "Starred"},
		{[]string{"list", "--shared"}, "From a friend"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := runCLI(t, mux, "", tt.args...)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if !strings.Contains(out, tt.want) || !strings.HasPrefix(out, "ID") {
				t.Fatalf("output:\n%s", out)
			}
		})
	}

	if _, err := runCLI(t, mux, "", "list", "--favorites", "--shared"); err == nil {
		t.Fatal("combined filters should be rejected")
	}
}

func TestSearchPassesQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /documents/search/", authorized(t, func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "road map" {
			t.Errorf("q = %q", q)
		}
		reply(`[{"id":4,"title":"Road map 2025"}]`)(w, r)
	}))

	out, err := runCLI(t, mux, "", "search", "road map")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Road map 2025") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestHistoryAndStats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /documents/5/history/", authorized(t, reply(`[
		{"id":1,"document":5,"user":2,"user_details":{"id":2,"username":"ana"},"action_type":"update","action_label":"Edited content","created_at":"2024-03-01T10:00:00Z"},
		{"id":2,"document":5,"user":3,"action_type":"share","created_at":"2024-03-02T10:00:00Z"}
	]`)))
	mux.HandleFunc("GET /documents/5/statistics/", authorized(t, reply(`{
		"created_at":"2024-03-01T10:00:00Z","editor_count":3,"nested_documents_count":2,
		"tasks_count":4,"completed_tasks_count":1,"completion_percentage":25,"most_active_user":"ana"
	}`)))

	out, err := runCLI(t, mux, "", "history", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{"ana", "Edited content", "share"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, mux, "", "stats", "5")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"1/4 done (25%)", "most active", "nested documents"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestFavoriteReportsNewState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /documents/5/toggle_favorite/", authorized(t, reply(`{"id":5,"title":"Doc","is_favorite":true}`)))

	out, err := runCLI(t, mux, "", "favorite", "5")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out) != "added to favorites" {
		t.Fatalf("output = %q", out)
	}
}

func TestShareGrantsAndLists(t *testing.T) {
	var shares atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /documents/5/share/", authorized(t, func(w http.ResponseWriter, r *http.Request) {
		shares.Add(1)
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["user"] != float64(9) || body["role"] != "editor" || body["include_children"] != true {
			t.Errorf("share body = %v", body)
		}
		reply(`{"id":1,"document":5,"user":9,"user_details":{"id":9,"username":"bo"},"role":"editor","include_children":true}`)(w, r)
	}))
	mux.HandleFunc("GET /documents/5/access_rights/", authorized(t, reply(`[
		{"id":1,"document":5,"user":9,"user_details":{"id":9,"username":"bo"},"role":"editor","include_children":true},
		{"id":2,"document":5,"user":11,"role":"viewer"}
	]`)))

	out, err := runCLI(t, mux, "", "share", "5", "9", "--role", "editor", "--children")
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if strings.TrimSpace(out) != "shared with bo as editor" {
		t.Fatalf("output = %q", out)
	}

	_, err = runCLI(t, mux, "", "share", "5", "9", "--role", "owner")
	if !errors.Is(err, workspace.ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
	if shares.Load() != 1 {
		t.Fatalf("share requests = %d, an invalid role must not reach the server", shares.Load())
	}

	out, err = runCLI(t, mux, "", "share", "list", "5")
	if err != nil {
		t.Fatalf("share list: %v", err)
	}
	if !strings.Contains(out, "bo") || !strings.Contains(out, "11") || !strings.Contains(out, "viewer") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestRegisterReadsPasswordFromStdin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("registration must be anonymous")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "ana" || body["email"] != "ana@example.com" || body["password"] != "correct horse" || body["password_confirm"] != "correct horse" {
			t.Errorf("register body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
	})

	out, err := runCLI(t, mux, "correct horse\n", "register", "ana", "--email", "ana@example.com")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "ana@example.com") {
		t.Fatalf("output = %q", out)
	}

	if _, err := runCLI(t, mux, "short\n", "register", "ana", "--email", "ana@example.com"); err == nil {
		t.Fatal("a short password should fail validation")
	}
}

func TestVerifyAndResend(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	mux := http.NewServeMux()
	record := func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		paths = append(paths, r.URL.Path+" "+body["email"]+" "+body["otp"])
		mu.Unlock()
	}
	mux.HandleFunc("POST /verify-email/", record)
	mux.HandleFunc("POST /resend-verification/", record)

	if _, err := runCLI(t, mux, "", "verify", "ana@example.com", "123456"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := runCLI(t, mux, "", "verify", "resend", "ana@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	want := []string{
		"/verify-email/ ana@example.com 123456",
		"/resend-verification/ ana@example.com ",
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(paths, "|") != strings.Join(want, "|") {
		t.Fatalf("requests = %q", paths)
	}
}

func TestNotificationsRead(t *testing.T) {
	var marked atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/12/mark_as_read/", authorized(t, func(w http.ResponseWriter, r *http.Request) {
		marked.Store(true)
	}))

	if _, err := runCLI(t, mux, "", "notifications", "read", "12"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !marked.Load() {
		t.Fatal("notification was not marked as read")
	}
}

func TestUploadSendsImage(t *testing.T) {
	storage, err := upload.NewDiskStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStorage: %v", err)
	}
	uploads := httptest.NewServer(upload.NewServer(storage, upload.Config{BaseURL: "/uploads", Logger: logging.NewNop()}).Handler())
	t.Cleanup(uploads.Close)

	image := filepath.Join(t.TempDir(), "my pixel.png")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")
	if err := os.WriteFile(image, png, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := runCLI(t, http.NotFoundHandler(), "", "upload", image, "--endpoint", uploads.URL+"/api/upload-image")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	url := strings.TrimSpace(out)
	if !strings.HasPrefix(url, "/uploads/") || !strings.HasSuffix(url, "my-pixel.png") {
		t.Fatalf("url = %q", url)
	}
}
