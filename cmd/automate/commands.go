package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/kalambet/automate/internal/api"
	"github.com/kalambet/automate/internal/config"
	"github.com/kalambet/automate/internal/settings"
	"github.com/kalambet/automate/internal/storage"
)

var errNotSaved = errors.New("settings not saved")

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or update application settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored settings as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		s, err := fetchSettings(cmd.Context(), client)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Submit new settings",
	Long: `Submit new settings. They are saved only if the shortcut is free.

Fields start from the stored settings unless --replace is given, then the
--file values are applied, then each --field, then --shortcut.

Examples:
  automate settings set --shortcut "CmdOrCtrl+Shift+Space"
  automate settings set --field theme=dark --field language=en
  automate settings set --file ./settings.toml --replace`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fieldArgs, _ := cmd.Flags().GetStringArray("field")
		shortcut, _ := cmd.Flags().GetString("shortcut")
		file, _ := cmd.Flags().GetString("file")
		replace, _ := cmd.Flags().GetBool("replace")

		if len(fieldArgs) == 0 && file == "" && !cmd.Flags().Changed("shortcut") {
			return fmt.Errorf("one of --field, --file, or --shortcut is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		base := settings.Payload{}
		if !replace {
			if base, err = fetchSettings(cmd.Context(), client); err != nil {
				return err
			}
		}

		var fromFile settings.Payload
		if file != "" {
			if fromFile, err = readTOMLSettings(file); err != nil {
				return err
			}
		}

		fields, err := buildSubmission(base, fromFile, fieldArgs, shortcut, cmd.Flags().Changed("shortcut"))
		if err != nil {
			return err
		}

		ack, err := submitSettings(cmd.Context(), client, fields)
		if err != nil {
			return err
		}
		return printSaveOutcome(fields.Get(settings.ShortcutField), ack)
	},
}

func init() {
	settingsSetCmd.Flags().StringArray("field", nil, "setting as key=value (repeatable)")
	settingsSetCmd.Flags().String("shortcut", "", "global shortcut, e.g. CmdOrCtrl+Shift+Space")
	settingsSetCmd.Flags().String("file", "", "TOML file with flat key = value settings")
	settingsSetCmd.Flags().Bool("replace", false, "do not start from the stored settings")
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

func fetchSettings(ctx context.Context, c *apiClient) (settings.Payload, error) {
	resp, err := c.get(ctx, "/settings")
	if err != nil {
		return nil, err
	}
	var p settings.Payload
	if err := decodeJSON(resp, &p); err != nil {
		return nil, err
	}
	if p == nil {
		p = settings.Payload{}
	}
	return p, nil
}

// buildSubmission layers the stored settings, file values, --field pairs
// and the shortcut flag, later sources winning.
func buildSubmission(base, fromFile settings.Payload, fieldArgs []string, shortcut string, shortcutSet bool) (url.Values, error) {
	v := url.Values{}
	for k, val := range base {
		v.Set(k, val)
	}
	for k, val := range fromFile {
		v.Set(k, val)
	}
	for _, f := range fieldArgs {
		k, val, ok := strings.Cut(f, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --field %q, want key=value", f)
		}
		v.Set(k, val)
	}
	if shortcutSet {
		v.Set(settings.ShortcutField, shortcut)
	}
	return v, nil
}

// submitSettings posts the form and returns nil when the server declined
// to save it.
func submitSettings(ctx context.Context, c *apiClient, fields url.Values) (*storage.WriteAck, error) {
	resp, err := c.postForm(ctx, "/settings", fields)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := decodeJSON(resp, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var ack storage.WriteAck
	if v, ok := raw["changes"]; ok {
		if err := json.Unmarshal(v, &ack.Changes); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}
	if id, ok := raw["lastInsertRowid"]; ok {
		if err := json.Unmarshal(id, &ack.LastInsertRowID); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}
	return &ack, nil
}

// readTOMLSettings loads a flat TOML document. Scalars are rendered as
// strings; tables and arrays are rejected.
func readTOMLSettings(path string) (settings.Payload, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	p := make(settings.Payload, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			p[k] = val
		case bool, int64, float64:
			p[k] = fmt.Sprint(val)
		case time.Time:
			p[k] = val.Format(time.RFC3339)
		default:
			return nil, fmt.Errorf("reading %s: key %q: %w", path, k, settings.ErrNotFlat)
		}
	}
	return p, nil
}

// --- shortcut ---

var shortcutCmd = &cobra.Command{
	Use:   "shortcut",
	Short: "Inspect global shortcuts",
}

var shortcutCheckCmd = &cobra.Command{
	Use:   "check <accelerator>",
	Short: "Check whether a shortcut is free",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		st, err := checkShortcut(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}

		printShortcutStatus(st)
		return nil
	},
}

func init() {
	shortcutCmd.AddCommand(shortcutCheckCmd)
}

func checkShortcut(ctx context.Context, c *apiClient, accel string) (api.ShortcutStatus, error) {
	var st api.ShortcutStatus
	resp, err := c.get(ctx, "/shortcuts/check?accelerator="+url.QueryEscape(accel))
	if err != nil {
		return st, err
	}
	err = decodeJSON(resp, &st)
	return st, err
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
			if verbose {
				fmt.Printf("      %s (env %s)\n", k.Help, k.EnvVar)
			}
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		printStep("Restart automate for the change to take effect")
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolP("verbose", "v", false, "show help text and environment variables")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
