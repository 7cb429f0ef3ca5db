package fixture

import (
	"fmt"
	"io"

	"github.com/joho/godotenv"
)

// LoadEnvFiles reads dotenv files. Later files override earlier ones.
func LoadEnvFiles(paths ...string) (map[string]string, error) {
	env := make(map[string]string)
	for _, p := range paths {
		vals, err := godotenv.Read(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", p, err)
		}
		for k, v := range vals {
			env[k] = v
		}
		logger.Debug("Read %d variables from %s", len(vals), p)
	}
	return env, nil
}

// ParseEnv parses dotenv content from r.
func ParseEnv(r io.Reader) (map[string]string, error) {
	env, err := godotenv.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}
	return env, nil
}
