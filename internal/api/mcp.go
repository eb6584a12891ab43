package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/automate/internal/hotkey"
	"github.com/kalambet/automate/internal/settings"
)

// MCPDeps holds dependencies for the MCP server. Registry may be nil, in
// which case saved shortcuts are not claimed and check_shortcut fails.
type MCPDeps struct {
	Action   *settings.UpdateAction
	Config   ConfigReader
	Registry *hotkey.Registry
	Owner    string
}

// NewMCPServer creates an MCP server exposing the settings tools and resource.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"automate",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("automate: read and update desktop automation settings and check global shortcut availability."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_settings",
			mcp.WithDescription("Return the current application settings as a JSON object."),
		),
		mcpGetSettings(deps),
	)

	s.AddTool(
		mcp.NewTool("update_settings",
			mcp.WithDescription("Replace the application settings. The new settings are saved only if the requested global shortcut (field shortCut) is free."),
			mcp.WithString("fields", mcp.Description(`Flat JSON object of settings, e.g. {"shortCut":"Ctrl+Shift+X","theme":"dark"}`), mcp.Required()),
		),
		mcpUpdateSettings(deps),
	)

	s.AddTool(
		mcp.NewTool("check_shortcut",
			mcp.WithDescription("Report whether a global shortcut could be registered right now."),
			mcp.WithString("accelerator", mcp.Description("Shortcut such as CmdOrCtrl+Shift+X"), mcp.Required()),
		),
		mcpCheckShortcut(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"settings://current",
			"Current Settings",
			mcp.WithResourceDescription("Stored application settings as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSettings(deps),
	)

	return s
}

func loadSettings(ctx context.Context, cfg ConfigReader) (string, error) {
	rec, err := cfg.GetConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load settings: %w", err)
	}
	p, err := settings.Decode(rec.Content)
	if err != nil {
		return "", fmt.Errorf("stored settings are unreadable: %w", err)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func mcpGetSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := loadSettings(ctx, deps.Config)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(text), nil
	}
}

func mcpUpdateSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		fields, err := req.RequireString("fields")
		if err != nil {
			return mcpError("fields is required"), nil
		}

		p, err := settings.FromJSON([]byte(fields))
		if err != nil {
			return mcpError(fmt.Sprintf("invalid fields: %v", err)), nil
		}

		res, err := deps.Action.Submit(ctx, p)
		if err != nil {
			return mcpError(fmt.Sprintf("update failed: %v", err)), nil
		}
		if !res.Persisted() {
			return mcpText(fmt.Sprintf("Not saved: shortcut %q is not available", p.Shortcut())), nil
		}

		saved := fmt.Sprintf("Saved settings (%d row changed)", res.Ack.Changes)
		if deps.Registry == nil {
			return mcpText(saved), nil
		}
		if err := deps.Registry.Rebind(deps.Owner, p.Shortcut()); err != nil {
			slog.Warn("saved settings but could not claim shortcut", "shortcut", p.Shortcut(), "error", err)
			return mcpText(fmt.Sprintf("%s; shortcut %q not claimed: %v", saved, p.Shortcut(), err)), nil
		}
		return mcpText(saved), nil
	}
}

func mcpCheckShortcut(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		accel, err := req.RequireString("accelerator")
		if err != nil {
			return mcpError("accelerator is required"), nil
		}

		if deps.Registry == nil {
			return mcpError("shortcut registry unavailable"), nil
		}

		ok, err := deps.Registry.For(deps.Owner).IsShortcutRegisterable(ctx, accel)
		if errors.Is(err, hotkey.ErrInvalidAccelerator) {
			return mcpError(err.Error()), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("check failed: %v", err)), nil
		}
		if !ok {
			return mcpText(fmt.Sprintf("%s is taken", accel)), nil
		}
		return mcpText(fmt.Sprintf("%s is available", accel)), nil
	}
}

func mcpResourceSettings(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		text, err := loadSettings(ctx, deps.Config)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     text,
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
