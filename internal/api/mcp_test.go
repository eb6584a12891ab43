package api

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/automate/internal/hotkey"
	"github.com/kalambet/automate/internal/settings"
	"github.com/kalambet/automate/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := hotkey.NewRegistryForPlatform("linux")
	if err := registry.Reserve("Alt+Tab"); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	return MCPDeps{
		Action:   settings.NewUpdateAction(registry.For(testOwner), store),
		Config:   store,
		Registry: registry,
		Owner:    testOwner,
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tools ---

func TestMCPTool_UpdateSettings_Saves(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpUpdateSettings(deps)

	req := makeCallToolRequest("update_settings", map[string]interface{}{
		"fields": `{"shortCut":"Ctrl+Shift+X","theme":"dark"}`,
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "Saved") {
		t.Errorf("text = %q, want Saved", toolText(t, result))
	}

	rec, err := store.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if rec.Content != `{"shortCut":"Ctrl+Shift+X","theme":"dark"}` {
		t.Errorf("stored = %q", rec.Content)
	}
	if got := deps.Registry.Claimed(testOwner); len(got) != 1 {
		t.Errorf("Claimed = %v, want the new shortcut", got)
	}
}

func TestMCPTool_UpdateSettings_TakenShortcut(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpUpdateSettings(deps)

	req := makeCallToolRequest("update_settings", map[string]interface{}{
		"fields": `{"shortCut":"alt+tab","theme":"dark"}`,
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("taken shortcut should not be a tool error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "Not saved") {
		t.Errorf("text = %q, want Not saved", toolText(t, result))
	}

	rec, _ := store.GetConfig(context.Background())
	if rec.Content != "{}" {
		t.Errorf("stored = %q, want untouched {}", rec.Content)
	}
}

func TestMCPTool_UpdateSettings_BadInput(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpUpdateSettings(deps)

	for _, args := range []map[string]interface{}{
		{},
		{"fields": `{"shortCut":{"key":"X"}}`},
		{"fields": `not json`},
		{"fields": `{"shortCut":"Ctrl+"}`},
	} {
		result, err := handler(context.Background(), makeCallToolRequest("update_settings", args))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Errorf("args %v: expected tool error, got %q", args, toolText(t, result))
		}
	}
}

func TestMCPTool_GetSettings(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	if _, err := store.Execute(context.Background(), settings.UpdateStatement, storage.ModeUpdate,
		map[string]any{"content": `{"shortCut":"Ctrl+K","theme":"light"}`}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	result, err := mcpGetSettings(deps)(context.Background(), makeCallToolRequest("get_settings", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != `{"shortCut":"Ctrl+K","theme":"light"}` {
		t.Errorf("text = %q", got)
	}
}

func TestMCPTool_GetSettings_MissingRow(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	if _, err := store.DB().Exec("DELETE FROM config"); err != nil {
		t.Fatalf("DELETE: %v", err)
	}

	result, err := mcpGetSettings(deps)(context.Background(), makeCallToolRequest("get_settings", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Errorf("expected tool error, got %q", toolText(t, result))
	}
}

func TestMCPTool_CheckShortcut(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpCheckShortcut(deps)

	tests := []struct {
		accel   string
		want    string
		isError bool
	}{
		{"Ctrl+Shift+X", "available", false},
		{"Alt+Tab", "taken", false},
		{"Ctrl+", "", true},
	}

	for _, tt := range tests {
		result, err := handler(context.Background(), makeCallToolRequest("check_shortcut", map[string]interface{}{
			"accelerator": tt.accel,
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError != tt.isError {
			t.Errorf("%q: IsError = %v, want %v (%s)", tt.accel, result.IsError, tt.isError, toolText(t, result))
			continue
		}
		if !tt.isError && !strings.Contains(toolText(t, result), tt.want) {
			t.Errorf("%q: text = %q, want %q", tt.accel, toolText(t, result), tt.want)
		}
	}
}

// --- resources ---

func TestMCPResource_Settings(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	contents, err := mcpResourceSettings(deps)(context.Background(), makeReadResourceRequest("settings://current"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 resource content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.Text != "{}" {
		t.Errorf("text = %q, want {}", tc.Text)
	}
	if tc.MIMEType != "application/json" {
		t.Errorf("MIMEType = %q", tc.MIMEType)
	}
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	s := NewMCPServer(deps, "test")

	tools := s.ListTools()
	for _, name := range []string{"get_settings", "update_settings", "check_shortcut"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestMCPTool_UpdateSettings_ClaimFails(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	// The action checks on behalf of another owner that already holds the
	// shortcut, so the write goes through but the daemon cannot claim it.
	if err := deps.Registry.Register("recorder", "Ctrl+Shift+X"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	deps.Action = settings.NewUpdateAction(deps.Registry.For("recorder"), store)

	result, err := mcpUpdateSettings(deps)(context.Background(), makeCallToolRequest("update_settings", map[string]interface{}{
		"fields": `{"shortCut":"Ctrl+Shift+X"}`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("saved settings reported as tool error: %s", toolText(t, result))
	}
	text := toolText(t, result)
	if !strings.Contains(text, "Saved settings") || !strings.Contains(text, "not claimed") {
		t.Errorf("text = %q, want saved with an unclaimed warning", text)
	}
	if got := deps.Registry.Claimed(testOwner); len(got) != 0 {
		t.Errorf("Claimed = %v, want none", got)
	}
}

func TestMCPTool_WithoutRegistry(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Registry = nil

	result, err := mcpCheckShortcut(deps)(context.Background(), makeCallToolRequest("check_shortcut", map[string]interface{}{
		"accelerator": "Ctrl+X",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Errorf("expected tool error, got %q", toolText(t, result))
	}

	result, err = mcpUpdateSettings(deps)(context.Background(), makeCallToolRequest("update_settings", map[string]interface{}{
		"fields": `{"shortCut":"Ctrl+Shift+X"}`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError || !strings.Contains(toolText(t, result), "Saved settings") {
		t.Errorf("text = %q, want saved", toolText(t, result))
	}
}
