package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the project-level config file name.
	ProjectConfigFile = "orizon-prover.yaml"
	// UserConfigDir is the user-level config directory under $HOME.
	UserConfigDir = ".config/orizon"
	// UserConfigFile is the user-level config file name.
	UserConfigFile = "prover.yaml"
)

// Loader loads configuration with layered precedence.
type Loader struct {
	logger *slog.Logger
	home   string
	cwd    string
}

// NewLoader creates a loader rooted at the user's home and working
// directories.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return &Loader{logger: logger, home: home, cwd: cwd}
}

// Load merges, in increasing precedence:
//  1. defaults
//  2. user config (~/.config/orizon/prover.yaml)
//  3. project config (orizon-prover.yaml in the working directory or a parent)
//  4. explicit, when non-empty; a missing explicit file is an error
func (l *Loader) Load(explicit string) (*Config, error) {
	config := DefaultConfig()

	if l.home != "" {
		path := filepath.Join(l.home, UserConfigDir, UserConfigFile)
		if user, err := LoadFromFile(path); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", path))
			config.Merge(user)
		} else if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	if path := l.findProjectConfig(); path != "" {
		if project, err := LoadFromFile(path); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", path))
			config.Merge(project)
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	if explicit != "" {
		cfg, err := LoadFromFile(explicit)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config", slog.String("path", explicit))
		config.Merge(cfg)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// findProjectConfig searches the working directory and its parents.
func (l *Loader) findProjectConfig() string {
	if l.cwd == "" {
		return ""
	}

	dir := l.cwd
	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
