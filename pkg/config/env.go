package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when no env file is named and it exists.
const DefaultEnvFile = ".env"

// LoadEnvFile loads KEY=VALUE pairs into the process environment before
// viper reads it. Variables that are already set are not overridden. An
// empty path loads DefaultEnvFile if present; a named file must exist.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("checking %s: %w", DefaultEnvFile, err)
		}
		path = DefaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}

	return nil
}
