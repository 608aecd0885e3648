package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dealdesk/internal/config"
	"dealdesk/internal/history"
	"dealdesk/internal/logging"
	"dealdesk/internal/notifications"
	"dealdesk/internal/services/entrytool"
	"dealdesk/internal/workflow"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = strings.ToLower(level)
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

// newLogger writes to the command's stderr and the configured log file.
func (c *commandContext) newLogger(stderr io.Writer) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	var paths []string
	if cfg.Paths.LogDir != "" {
		paths = append(paths, filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: paths,
		Writer:      stderr,
	})
}

// runtime bundles the collaborators a controller-driven command needs.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	client     *entrytool.Client
	store      *history.Store
	controller *workflow.Controller
}

func (c *commandContext) newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		client: entrytool.NewFromConfig(cfg, entrytool.WithLogger(logger)),
	}

	opts := append(workflow.OptionsFromConfig(cfg),
		workflow.WithLogger(logger),
		workflow.WithNotifier(notifications.NewService(cfg)),
	)
	store, err := history.OpenFromConfig(cfg)
	switch {
	case err == nil:
		rt.store = store
		opts = append(opts, workflow.WithRecorder(store))
	case errors.Is(err, history.ErrDisabled):
	default:
		logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
			logging.String(logging.FieldErrorHint, "check history.path or delete the journal"),
			logging.String(logging.FieldImpact, "attempts in this run will not be journaled"),
			logging.Error(err),
		)
	}

	rt.controller = workflow.NewController(rt.client, opts...)
	return rt, nil
}

func (r *runtime) Close() {
	if r == nil || r.store == nil {
		return
	}
	_ = r.store.Close()
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
