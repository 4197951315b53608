package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	session "github.com/sessionkeys/starknet-session/go"
	"github.com/sessionkeys/starknet-session/go/internal/logger"
)

// Environment variables read by Load
const (
	EnvAddr           = "SESSIOND_ADDR"
	EnvDefaultVersion = "SESSIOND_DEFAULT_VERSION"
	EnvLogLevel       = "LOG_LEVEL"
	EnvStage          = "STAGE"
)

// Config holds the sessiond settings
type Config struct {
	Addr           string
	DefaultVersion session.ProtocolVersion
	Logger         logger.Config
}

// Load reads settings from the process environment, falling back to the given
// dotenv files (".env" when none are given) and then to defaults. Missing dotenv
// files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	fileEnv := map[string]string{}
	for _, file := range files {
		values, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		for k, v := range values {
			fileEnv[k] = v
		}
	}

	get := func(key, defaultValue string) string {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
		if value := strings.TrimSpace(fileEnv[key]); value != "" {
			return value
		}
		return defaultValue
	}

	version, err := session.ParseProtocolVersion(get(EnvDefaultVersion, string(session.V2)))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvDefaultVersion, err)
	}

	return &Config{
		Addr:           get(EnvAddr, ":8080"),
		DefaultVersion: version,
		Logger: logger.Config{
			Level: get(EnvLogLevel, "info"),
			Stage: get(EnvStage, "dev"),
		},
	}, nil
}
