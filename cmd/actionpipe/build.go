package main

import (
	"fmt"
	"io"
	"os"

	"github.com/actionpipe/actionpipe/config"
	"github.com/actionpipe/actionpipe/engine"
	"github.com/actionpipe/actionpipe/logging"
	"github.com/actionpipe/actionpipe/pipeline"
	"github.com/actionpipe/actionpipe/registry"
	"github.com/actionpipe/actionpipe/script"
)

// buildEngine assembles an engine from a loaded configuration. The
// returned closers release the Lua states of scripted handlers and
// conditions; close them after the engine.
func buildEngine(cfg config.Config) (*engine.Engine, []io.Closer, error) {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(level),
		Prefix: cfg.Logging.Prefix,
	})

	defaultMode, err := pipeline.ParseMode(cfg.Engine.DefaultMode)
	if err != nil {
		return nil, nil, err
	}

	eng := engine.New(
		engine.WithLogger(log),
		engine.WithDefaultMode(defaultMode),
		engine.WithMaxHandlersPerAction(cfg.Engine.MaxHandlersPerAction),
	)

	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	for _, action := range cfg.Actions {
		if action.Mode != "" {
			mode, err := pipeline.ParseMode(action.Mode)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			eng.SetActionExecutionMode(action.Name, mode)
		}

		if d, _ := config.ParseDuration(action.Debounce); d > 0 {
			eng.SetDebounce(action.Name, d)
		}
		if d, _ := config.ParseDuration(action.Throttle); d > 0 {
			eng.SetThrottle(action.Name, d)
		}

		for _, hc := range action.Handlers {
			h, hClosers, err := buildHandler(action.Name, hc)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			closers = append(closers, hClosers...)

			opts, optCloser, err := entryOptions(hc)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			closers = append(closers, optCloser...)
			if _, err := eng.Register(action.Name, h, opts...); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("register %s/%s: %w", action.Name, hc.ID, err)
			}
		}
	}

	return eng, closers, nil
}

// buildHandler loads the handler's Lua chunk, inline or from file.
func buildHandler(action string, hc config.HandlerConfig) (*script.Handler, []io.Closer, error) {
	source := hc.Script
	if source == "" && hc.ScriptFile != "" {
		data, err := os.ReadFile(hc.ScriptFile)
		if err != nil {
			return nil, nil, fmt.Errorf("handler %s/%s: %w", action, hc.ID, err)
		}
		source = string(data)
	}
	if source == "" {
		return nil, nil, fmt.Errorf("handler %s/%s: no script or script_file", action, hc.ID)
	}

	h, err := script.NewHandler(source)
	if err != nil {
		return nil, nil, fmt.Errorf("handler %s/%s: %w", action, hc.ID, err)
	}
	return h, []io.Closer{closerFunc(h.Close)}, nil
}

// entryOptions maps a handler declaration onto registry entry options.
func entryOptions(hc config.HandlerConfig) ([]registry.EntryOption, []io.Closer, error) {
	var opts []registry.EntryOption
	var closers []io.Closer

	if hc.ID != "" {
		opts = append(opts, registry.WithID(hc.ID))
	}
	opts = append(opts, registry.WithPriority(hc.Priority))
	if hc.Once {
		opts = append(opts, registry.Once())
	}
	if hc.Category != "" {
		opts = append(opts, registry.WithCategory(hc.Category))
	}
	if len(hc.Tags) > 0 {
		opts = append(opts, registry.WithTags(hc.Tags...))
	}
	if d, err := config.ParseDuration(hc.Timeout); err != nil {
		return nil, nil, err
	} else if d > 0 {
		opts = append(opts, registry.WithTimeout(d))
	}
	if hc.Condition != "" {
		cond, err := script.NewCondition(hc.Condition)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, closerFunc(cond.Close))
		opts = append(opts, registry.WithCondition(cond.Predicate()))
	}

	return opts, closers, nil
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
