// Package settings implements the gated settings update: a submitted
// payload is persisted only when its requested global shortcut is free.
package settings

import (
	"context"
	"log/slog"

	"github.com/kalambet/automate/internal/storage"
)

// UpdateStatement overwrites the single configuration row.
const UpdateStatement = "UPDATE config SET content = @content WHERE id = 1"

// ShortcutRegistry reports whether a global shortcut can be claimed
// without conflicting with an existing registration.
type ShortcutRegistry interface {
	IsShortcutRegisterable(ctx context.Context, candidate string) (bool, error)
}

// ConfigStore runs a parameterised write against the configuration store.
type ConfigStore interface {
	Execute(ctx context.Context, statement string, mode storage.Mode, params map[string]any) (storage.WriteAck, error)
}

// Result is the outcome of Submit. The zero value means nothing was written.
type Result struct {
	Ack *storage.WriteAck
}

// Persisted reports whether Submit wrote the payload.
func (r Result) Persisted() bool {
	return r.Ack != nil
}

// UpdateAction performs one gated configuration update per Submit call.
// It holds no state between calls and does not serialise concurrent ones.
type UpdateAction struct {
	shortcuts ShortcutRegistry
	store     ConfigStore
}

func NewUpdateAction(shortcuts ShortcutRegistry, store ConfigStore) *UpdateAction {
	return &UpdateAction{shortcuts: shortcuts, store: store}
}

// Submit checks the payload's shortcut and, only if it is registerable,
// writes the whole payload to the configuration row. Errors from either
// collaborator are returned as is.
func (a *UpdateAction) Submit(ctx context.Context, p Payload) (Result, error) {
	candidate := p.Shortcut()

	ok, err := a.shortcuts.IsShortcutRegisterable(ctx, candidate)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		slog.Debug("settings not saved: shortcut unavailable", "shortcut", candidate)
		return Result{}, nil
	}

	content, err := p.Encode()
	if err != nil {
		return Result{}, err
	}

	ack, err := a.store.Execute(ctx, UpdateStatement, storage.ModeUpdate, map[string]any{"content": content})
	if err != nil {
		return Result{}, err
	}
	slog.Debug("settings saved", "shortcut", candidate, "changes", ack.Changes)
	return Result{Ack: &ack}, nil
}
