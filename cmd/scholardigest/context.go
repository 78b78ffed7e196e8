package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scholardigest/internal/config"
	"scholardigest/internal/logging"
	"scholardigest/internal/pipeline"
	"scholardigest/internal/storage"
	"scholardigest/internal/watermark"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
				cfg.Logging.Level = level
				if err := cfg.Validate(); err != nil {
					c.configErr = fmt.Errorf("--log-level: %w", err)
					return
				}
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// withStore opens the record store for the duration of fn.
func (c *commandContext) withStore(cmd *cobra.Command, fn func(*config.Config, *slog.Logger, *storage.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	store, err := storage.Open(commandCtx(cmd), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, logger, store)
}

// withLock runs fn under the run lock, for commands that write the store or
// the watermark.
func (c *commandContext) withLock(fn func(*config.Config, *slog.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	lock, err := pipeline.AcquireLock(cfg.LockPath())
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			return fmt.Errorf("%w; wait for it to finish or remove a stale %s", err, cfg.LockPath())
		}
		return err
	}
	defer lock.Release()
	return fn(cfg, logger)
}

func (c *commandContext) withLockedStore(cmd *cobra.Command, fn func(*config.Config, *slog.Logger, *storage.Store) error) error {
	return c.withLock(func(*config.Config, *slog.Logger) error {
		return c.withStore(cmd, fn)
	})
}

func newWatermark(cfg *config.Config, logger *slog.Logger) *watermark.Store {
	return watermark.New(cfg.WatermarkPath(), logger)
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
