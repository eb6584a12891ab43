package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kalambet/automate/internal/hotkey"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Hotkey  HotkeyConfig
}

type ServerConfig struct {
	Port       int
	MaxConns   int
	MCPEnabled bool
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type HotkeyConfig struct {
	// Owner is the name the daemon registers its own shortcut under.
	Owner string
	// Reserved is a comma-separated list of shortcuts nobody may claim.
	Reserved string
}

// ReservedList splits Reserved into individual accelerators.
func (h HotkeyConfig) ReservedList() []string {
	var out []string
	for _, s := range strings.Split(h.Reserved, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:     4100,
			MaxConns: 64,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Hotkey: HotkeyConfig{
			Owner:    "automate",
			Reserved: defaultReserved(),
		},
	}
}

// Load reads configuration from the platform-native backend, an optional
// .env file, and environment variables.
//
// On macOS the backend is UserDefaults (domain: com.automate.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/automate/config.json.
// A .env file next to it is loaded without overriding variables already
// set in the environment. AUTOMATE_* variables override backend values.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), filepath.Join(configDir(), ".env"))
}

func loadWith(b ConfigBackend, envFile string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range 1-65535", c.Server.Port)
	}
	if c.Server.MaxConns < 0 {
		return fmt.Errorf("invalid config: server.max_conns must not be negative")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("invalid config: storage.data_dir is empty")
	}
	if c.Hotkey.Owner == "" {
		return fmt.Errorf("invalid config: hotkey.owner is empty")
	}
	if c.Hotkey.Owner == hotkey.SystemOwner {
		return fmt.Errorf("invalid config: hotkey.owner %q is reserved", hotkey.SystemOwner)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid config: log.level %q (want debug, info, warn or error)", c.Log.Level)
	}
	return nil
}
