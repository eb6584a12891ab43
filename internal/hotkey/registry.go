package hotkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
)

// ErrConflict is returned when a shortcut is already held by another owner.
var ErrConflict = errors.New("shortcut already registered")

// SystemOwner holds shortcuts reserved by the operating system or user config.
const SystemOwner = "system"

// Registry tracks which owner holds each global shortcut. Keys are
// canonical accelerators, so spelling variants of one shortcut collide.
type Registry struct {
	platform string

	mu     sync.Mutex
	claims map[string]string // canonical accelerator -> owner
}

// NewRegistry creates a Registry for the current platform.
func NewRegistry() *Registry {
	return NewRegistryForPlatform(runtime.GOOS)
}

// NewRegistryForPlatform creates a Registry that resolves CommandOrControl
// as it would on platform.
func NewRegistryForPlatform(platform string) *Registry {
	return &Registry{
		platform: platform,
		claims:   make(map[string]string),
	}
}

// Platform reports the platform accelerators are resolved for.
func (r *Registry) Platform() string {
	return r.platform
}

// Register claims accel for owner. Registering a shortcut the owner
// already holds is a no-op.
func (r *Registry) Register(owner, accel string) error {
	key, err := Canonical(accel, r.platform)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if holder, ok := r.claims[key]; ok && holder != owner {
		return fmt.Errorf("%w: %s is held by %s", ErrConflict, key, holder)
	}
	r.claims[key] = owner
	return nil
}

// Unregister releases accel if owner holds it.
func (r *Registry) Unregister(owner, accel string) error {
	key, err := Canonical(accel, r.platform)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.claims[key] == owner {
		delete(r.claims, key)
	}
	return nil
}

// UnregisterAll releases every shortcut owner holds.
func (r *Registry) UnregisterAll(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(owner)
}

// Rebind replaces all of owner's shortcuts with accel. On conflict the
// previous claims are left untouched.
func (r *Registry) Rebind(owner, accel string) error {
	key, err := Canonical(accel, r.platform)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if holder, ok := r.claims[key]; ok && holder != owner {
		return fmt.Errorf("%w: %s is held by %s", ErrConflict, key, holder)
	}
	r.releaseLocked(owner)
	r.claims[key] = owner
	slog.Debug("shortcut rebound", "owner", owner, "accelerator", key)
	return nil
}

func (r *Registry) releaseLocked(owner string) {
	for key, holder := range r.claims {
		if holder == owner {
			delete(r.claims, key)
		}
	}
}

// Reserve claims accels for SystemOwner.
func (r *Registry) Reserve(accels ...string) error {
	for _, a := range accels {
		if err := r.Register(SystemOwner, a); err != nil {
			return fmt.Errorf("reserving %q: %w", a, err)
		}
	}
	return nil
}

// Owner returns who holds accel, or "" when it is free.
func (r *Registry) Owner(accel string) (string, error) {
	key, err := Canonical(accel, r.platform)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claims[key], nil
}

// Claimed lists the canonical shortcuts owner holds, sorted.
func (r *Registry) Claimed(owner string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for key, holder := range r.claims {
		if holder == owner {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// For returns a Checker that answers on behalf of owner.
func (r *Registry) For(owner string) *Checker {
	return &Checker{registry: r, owner: owner}
}

// Checker reports whether its owner could register a shortcut right now.
type Checker struct {
	registry *Registry
	owner    string
}

// Owner returns the owner the checker answers for.
func (c *Checker) Owner() string {
	return c.owner
}

// IsShortcutRegisterable returns true when candidate is free or already
// held by the checker's owner. An empty candidate is never registerable.
func (c *Checker) IsShortcutRegisterable(ctx context.Context, candidate string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if candidate == "" {
		return false, nil
	}

	holder, err := c.registry.Owner(candidate)
	if err != nil {
		return false, err
	}
	return holder == "" || holder == c.owner, nil
}
