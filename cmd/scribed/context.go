package main

import (
	"fmt"
	"log/slog"

	"scribed/internal/config"
	"scribed/internal/logging"
)

// commandContext carries lazily loaded configuration shared by subcommands.
type commandContext struct {
	configFlag *string

	cfg        *config.Config
	configPath string
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads the configuration once, honoring the --config flag.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolvedPath, _, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.configPath = resolvedPath
	return cfg, nil
}

// newLogger builds the configured logger, falling back to a nop logger when
// construction fails so CLI output is never blocked on logging.
func (c *commandContext) newLogger() *slog.Logger {
	if c.cfg == nil {
		return logging.NewNop()
	}
	logger, err := logging.NewFromConfig(c.cfg)
	if err != nil {
		return logging.NewNop()
	}
	return logger
}
