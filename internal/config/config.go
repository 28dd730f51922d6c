// Package config resolves runtime settings from defaults, optional dotenv
// files and STUDYPLAN_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"studyplan/internal/util"
)

const envPrefix = "STUDYPLAN"

// Config holds the settings of the studyplan server.
type Config struct {
	Env         string
	Addr        string
	DBPath      string
	StaticDir   string
	LogLevel    string
	CORSOrigins []string
}

// Load reads <dir>/.env and <dir>/config/.env.<env> when present, then
// resolves every key with environment variables taking precedence.
func Load(dir string) (Config, error) {
	env := strings.ToLower(util.EnvOrDefault(envPrefix+"_ENV", "dev"))

	for _, path := range []string{
		filepath.Join(dir, "config", ".env."+env),
		filepath.Join(dir, ".env"),
	} {
		if err := loadDotEnv(path); err != nil {
			return Config{}, err
		}
	}

	v := viper.New()
	v.SetDefault("env", env)
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "data/studyplan.db")
	v.SetDefault("static_dir", "web/dist")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_origins", "http://localhost:5173,http://127.0.0.1:5173,http://localhost:3000")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cfg := Config{
		Env:         v.GetString("env"),
		Addr:        v.GetString("addr"),
		DBPath:      v.GetString("db_path"),
		StaticDir:   v.GetString("static_dir"),
		LogLevel:    v.GetString("log_level"),
		CORSOrigins: util.SplitList(v.GetString("cors_origins")),
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Level parses LogLevel into a slog level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// loadDotEnv loads the file if it exists; variables already set win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}
