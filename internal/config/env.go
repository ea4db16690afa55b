package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by the probe.
const EnvPrefix = "PGCACHEHIT"

// ReadEnv loads variables from PGCACHEHIT_ENV_FILE, or ./.env when unset.
// Variables already present in the environment win.
// It returns os.ErrNotExist when the file is missing.
func ReadEnv() error {
	filename := strings.TrimSpace(os.Getenv(EnvPrefix + "_ENV_FILE"))
	if filename == "" {
		filename = "./.env"
	}
	if _, err := os.Stat(filename); err != nil {
		return err
	}
	return godotenv.Load(filename)
}
