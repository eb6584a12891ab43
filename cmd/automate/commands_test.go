package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/automate/internal/api"
	"github.com/kalambet/automate/internal/config"
	"github.com/kalambet/automate/internal/settings"
	"github.com/kalambet/automate/internal/storage"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	Auth        string
	ContentType string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.RequestURI(),
			Body:        body.String(),
			Auth:        r.Header.Get("Authorization"),
			ContentType: r.Header.Get("Content-Type"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestSettingsShow(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /settings": `{"shortCut":"Ctrl+Shift+X","theme":"dark"}`,
	})

	s, err := fetchSettings(ctx, ts.client())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Shortcut() != "Ctrl+Shift+X" || s["theme"] != "dark" {
		t.Errorf("settings = %v", s)
	}

	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
}

func TestSubmitSettings_Saved(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /settings": `{"changes":1,"lastInsertRowid":0}`,
	})

	fields := url.Values{"shortCut": {"Ctrl+Shift+X"}, "theme": {"dark"}}
	ack, err := submitSettings(ctx, ts.client(), fields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack == nil || ack.Changes != 1 {
		t.Fatalf("ack = %+v, want changes 1", ack)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/settings" {
		t.Errorf("request = %s %s, want POST /settings", r.Method, r.Path)
	}
	if r.ContentType != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", r.ContentType)
	}
	got, err := url.ParseQuery(r.Body)
	if err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if got.Get("shortCut") != "Ctrl+Shift+X" || got.Get("theme") != "dark" {
		t.Errorf("body = %v", got)
	}
}

func TestSubmitSettings_NotSaved(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /settings": `{}`,
	})

	ack, err := submitSettings(ctx, ts.client(), url.Values{"shortCut": {"Alt+Tab"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack != nil {
		t.Errorf("ack = %+v, want nil for an unsaved submission", ack)
	}
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldOut, oldColor := userOut, noColor
	userOut, noColor = &buf, true
	t.Cleanup(func() { userOut, noColor = oldOut, oldColor })
	return &buf
}

func TestPrintSaveOutcome(t *testing.T) {
	tests := []struct {
		name    string
		ack     *storage.WriteAck
		wantErr bool
		want    string
	}{
		{"saved", &storage.WriteAck{Changes: 1}, false, "Saved settings (1 row changed)"},
		{"refused", nil, true, "Shortcut Alt+Tab is not available"},
		{"no row", &storage.WriteAck{Changes: 0}, true, "no settings row was updated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureOutput(t)

			err := printSaveOutcome("Alt+Tab", tt.ack)
			if tt.wantErr != errors.Is(err, errNotSaved) {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", out.String(), tt.want)
			}
		})
	}
}

func TestPrintShortcutStatus(t *testing.T) {
	out := captureOutput(t)
	printShortcutStatus(api.ShortcutStatus{Canonical: "Alt+Tab", Owner: "system"})
	if !strings.Contains(out.String(), "Shortcut Alt+Tab is held by system") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	printShortcutStatus(api.ShortcutStatus{Canonical: "Control+Shift+X", Registerable: true})
	if !strings.Contains(out.String(), "Available") || strings.Contains(out.String(), "held by") {
		t.Errorf("output = %q", out.String())
	}
}

func TestBuildSubmission_Layering(t *testing.T) {
	base := settings.Payload{"shortCut": "Ctrl+A", "theme": "light", "language": "en"}
	fromFile := settings.Payload{"theme": "dark", "delay": "250"}

	v, err := buildSubmission(base, fromFile, []string{"language=de", "note=a=b"}, "Ctrl+B", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"shortCut": "Ctrl+B",
		"theme":    "dark",
		"language": "de",
		"delay":    "250",
		"note":     "a=b",
	}
	for k, w := range want {
		if got := v.Get(k); got != w {
			t.Errorf("%s = %q, want %q", k, got, w)
		}
	}
	if len(v) != len(want) {
		t.Errorf("got %d fields, want %d", len(v), len(want))
	}

	v, err = buildSubmission(base, nil, nil, "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Get("shortCut") != "Ctrl+A" {
		t.Errorf("shortCut = %q, want stored value kept", v.Get("shortCut"))
	}
}

func TestBuildSubmission_BadField(t *testing.T) {
	for _, f := range []string{"novalue", "=x", " =x"} {
		if _, err := buildSubmission(nil, nil, []string{f}, "", false); err == nil {
			t.Errorf("%q: expected error", f)
		}
	}
}

func TestReadTOMLSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	doc := `shortCut = "CmdOrCtrl+Shift+Space"
theme = "dark"
delay = 250
ratio = 0.5
autostart = true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := readTOMLSettings(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := settings.Payload{
		"shortCut":  "CmdOrCtrl+Shift+Space",
		"theme":     "dark",
		"delay":     "250",
		"ratio":     "0.5",
		"autostart": "true",
	}
	if len(p) != len(want) {
		t.Fatalf("got %v, want %v", p, want)
	}
	for k, w := range want {
		if p[k] != w {
			t.Errorf("%s = %q, want %q", k, p[k], w)
		}
	}
}

func TestReadTOMLSettings_RejectsNested(t *testing.T) {
	dir := t.TempDir()
	for name, doc := range map[string]string{
		"table.toml": "[window]\nwidth = 800\n",
		"array.toml": "langs = [\"en\", \"de\"]\n",
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := readTOMLSettings(path)
		if !errors.Is(err, settings.ErrNotFlat) {
			t.Errorf("%s: err = %v, want ErrNotFlat", name, err)
		}
	}

	if _, err := readTOMLSettings(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSettingsSet_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"settings", "set"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestShortcutCheck(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /shortcuts/check": `{"accelerator":"ctrl+shift+x","canonical":"Control+Shift+X","registerable":true}`,
	})

	st, err := checkShortcut(ctx, ts.client(), "ctrl+shift+x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Registerable || st.Canonical != "Control+Shift+X" {
		t.Errorf("status = %+v", st)
	}
	if got := ts.requests[0].Path; got != "/shortcuts/check?accelerator=ctrl%2Bshift%2Bx" {
		t.Errorf("path = %q, accelerator must be query-escaped", got)
	}
}

func TestStatusCommand_Running(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	resp, err := ts.client().get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := ts.client().get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"auth_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	_, err := fetchSettings(ctx, client)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Hotkey.Owner = "automate"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4000" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4000 in ShowAll output")
	}
}

func TestPIDFile(t *testing.T) {
	path := pidFilePath(filepath.Join(t.TempDir(), "nested"))
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error after removal")
	}
}

func TestShortcutLabel(t *testing.T) {
	if got := shortcutLabel(""); got != "(none)" {
		t.Errorf("shortcutLabel(\"\") = %q", got)
	}
	if got := shortcutLabel("Ctrl+X"); got != "Ctrl+X" {
		t.Errorf("shortcutLabel = %q", got)
	}
}
