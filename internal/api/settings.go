package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/automate/internal/hotkey"
	"github.com/kalambet/automate/internal/settings"
	"github.com/kalambet/automate/internal/storage"
)

const maxSettingsBodySize = 1 << 20 // 1MB

// ConfigReader loads the stored configuration row.
type ConfigReader interface {
	GetConfig(ctx context.Context) (storage.ConfigRecord, error)
}

// AppDeps holds dependencies for the app handler. Registry may be nil, in
// which case saved shortcuts are not claimed and /shortcuts/check answers 503.
type AppDeps struct {
	Action   *settings.UpdateAction
	Config   ConfigReader
	Registry *hotkey.Registry
	Owner    string // registry owner the daemon's own shortcut is held under
	Token    string
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/settings", handleGetSettings(deps))
		r.Post("/settings", handleSubmitSettings(deps))
		r.Get("/shortcuts/check", handleCheckShortcut(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleGetSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Config.GetConfig(r.Context())
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "configuration row missing")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load settings: %v", err)
			return
		}

		p, err := settings.Decode(rec.Content)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "stored settings are unreadable: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleSubmitSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxSettingsBodySize)
		defer r.Body.Close()

		p, err := readPayload(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid settings submission: %v", err)
			return
		}

		res, err := deps.Action.Submit(r.Context(), p)
		if errors.Is(err, hotkey.ErrInvalidAccelerator) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			slog.Error("settings submission failed", "shortcut", p.Shortcut(), "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save settings: %v", err)
			return
		}

		if !res.Persisted() {
			writeJSON(w, http.StatusOK, struct{}{})
			return
		}

		// The check passed, so claim the new shortcut for the daemon. Another
		// submission may have raced us to it; the write stands either way.
		if deps.Registry != nil {
			if err := deps.Registry.Rebind(deps.Owner, p.Shortcut()); err != nil {
				slog.Warn("saved settings but could not claim shortcut", "shortcut", p.Shortcut(), "error", err)
			}
		}
		writeJSON(w, http.StatusOK, res.Ack)
	}
}

func handleCheckShortcut(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Registry == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "shortcut registry unavailable")
			return
		}

		accel := r.URL.Query().Get("accelerator")
		if accel == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "accelerator is required")
			return
		}

		canonical, err := hotkey.Canonical(accel, deps.Registry.Platform())
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		owner, err := deps.Registry.Owner(canonical)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}

		writeJSON(w, http.StatusOK, ShortcutStatus{
			Accelerator:  accel,
			Canonical:    canonical,
			Registerable: owner == "" || owner == deps.Owner,
			Owner:        owner,
		})
	}
}

// ShortcutStatus answers GET /shortcuts/check.
type ShortcutStatus struct {
	Accelerator  string `json:"accelerator"`
	Canonical    string `json:"canonical"`
	Registerable bool   `json:"registerable"`
	Owner        string `json:"owner,omitempty"`
}

// readPayload accepts url-encoded and multipart forms or a flat JSON object.
func readPayload(r *http.Request) (settings.Payload, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, errors.New("missing or malformed Content-Type")
	}

	switch mediaType {
	case "application/json":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return settings.FromJSON(body)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return settings.FromForm(r.PostForm), nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxSettingsBodySize); err != nil {
			return nil, err
		}
		return settings.FromForm(r.MultipartForm.Value), nil
	default:
		return nil, errors.New("unsupported Content-Type " + mediaType)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
