package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ModelPath     string // a .meta file, or a directory of them
	InstancesPath string // the instantiation file (flat or YAML)
	BaseDir       string // root for all resolved relative paths

	LogFormat   string
	LogLevel    string
	WorkerCount int
	DryRun      bool
	NoColor     bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("ModelPath is a required configuration field and cannot be empty")
	}
	if cfg.InstancesPath == "" {
		return nil, errors.New("InstancesPath is a required configuration field and cannot be empty")
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = "."
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return &cfg, nil
}
