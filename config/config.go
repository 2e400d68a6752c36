package config

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
)

// LoadEnv reads KEY=VALUE pairs from the given files (default .env) into
// the process environment. Variables already set win; a missing file is
// not an error.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("config: load %s: %v", f, err)
		}
	}
}
