// Package config resolves ambient settings — where the control directory
// lives and who commits are authored as — the way the teacher resolves
// settings: layered viper sources with built-in defaults at the bottom.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/dabstractor/jin/internal/jinerr"
)

// Config is the resolved ambient configuration for one invocation.
type Config struct {
	// JinDir is the control-directory path ("<root>/.jin" by default).
	JinDir string

	// AuthorName/AuthorEmail are used for commit signatures.
	AuthorName  string
	AuthorEmail string

	// Color controls whether CLI output uses ANSI styling by default.
	Color bool
}

const (
	defaultAuthorName  = "jin"
	defaultAuthorEmail = "jin@localhost"
)

// Load resolves configuration rooted at projectRoot, in precedence order:
// the JIN_DIR environment variable, ~/.config/jin/config.toml, then
// built-in defaults.
func Load(projectRoot string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("jin")
	v.AutomaticEnv()

	v.SetDefault("author.name", defaultAuthorName)
	v.SetDefault("author.email", defaultAuthorEmail)
	v.SetDefault("color", true)
	v.SetDefault("dir", filepath.Join(projectRoot, ".jin"))

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "jin"))
		v.SetConfigName("config")
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("%w: read user config: %v", jinerr.ErrIO, err)
			}
		}
	}

	dir := v.GetString("dir")
	if env := os.Getenv("JIN_DIR"); env != "" {
		dir = env
	}

	return &Config{
		JinDir:      dir,
		AuthorName:  v.GetString("author.name"),
		AuthorEmail: v.GetString("author.email"),
		Color:       v.GetBool("color"),
	}, nil
}
