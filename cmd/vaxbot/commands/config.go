package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"vaxbot/lib/configutil"
	"vaxbot/services/hunter"
)

// Config is read from a vaxbot.json5 found in the working directory
// or any of its parents. Everything in it is optional.
type Config struct {
	// where the session/booking database lives, defaults to
	// <user config dir>/vaxbot/state.db
	StatePath string `json:"state_path"`
	// when set, a mail is sent after a confirmed booking
	Smtp *hunter.SmtpConfig `json:"smtp"`
}

func loadConfig() Config {
	config, err := configutil.ReadRecursively[Config]("vaxbot.json5")
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read vaxbot.json5", "err", err)
	}

	if config.StatePath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		config.StatePath = filepath.Join(dir, "vaxbot", "state.db")
	}
	return config
}

func ensureStateDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
