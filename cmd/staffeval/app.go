package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spboyer/staffeval/internal/audit"
	"github.com/spboyer/staffeval/internal/execution"
	"github.com/spboyer/staffeval/internal/interview"
	"github.com/spboyer/staffeval/internal/memory"
	"github.com/spboyer/staffeval/internal/projectconfig"
	"github.com/spboyer/staffeval/internal/store"
)

// app is a wired service plus everything that must be released with it.
type app struct {
	cfg     *projectconfig.ProjectConfig
	svc     *interview.Service
	closers []func() error
}

// openApp loads configuration and wires the service. Local commands need a
// database so sessions survive between invocations; serve may run in
// memory.
func openApp(opts *rootOptions, requireStorage bool) (*app, error) {
	cfg, err := projectconfig.Load(opts.configDir)
	if err != nil {
		return nil, err
	}
	if opts.dbPath != "" {
		cfg.Storage.Path = opts.dbPath
	}
	if requireStorage && cfg.Storage.Path == "" {
		return nil, errors.New("a database is required: set storage.path in .staffeval.yaml or pass --db")
	}

	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)

	client, err := openClient(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Shutdown(ctx)
	})

	var mem memory.Writer = memory.Nop{}
	if cfg.Memory.NATSURL != "" {
		w, err := memory.DialNATS(cfg.Memory.NATSURL, cfg.Memory.SubjectPrefix)
		if err != nil {
			slog.Warn("memory collaborator unavailable, continuing without it", "url", cfg.Memory.NATSURL, "error", err)
		} else {
			mem = w
			a.closers = append(a.closers, w.Close)
		}
	}

	archiver, err := openArchiver(cfg)
	if err != nil {
		return nil, err
	}

	a.svc = interview.New(interview.Config{
		Store:          st,
		Client:         client,
		Generation:     cfg.BaseGeneration(),
		RetryDelay:     cfg.RetryDelay(),
		ArbiterModels:  cfg.Verdict.ArbiterModels,
		ModeratorModel: cfg.Verdict.ModeratorModel,
		Memory:         mem,
		Archiver:       archiver,
		EventLogDir:    cfg.Events.LogDir,
	})
	ok = true
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openStore(cfg *projectconfig.ProjectConfig) (store.Store, error) {
	if cfg.Storage.Path == "" {
		return store.NewMemoryStore(), nil
	}
	st, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Storage.Path, err)
	}
	return st, nil
}

func openClient(cfg *projectconfig.ProjectConfig) (execution.StreamClient, error) {
	switch cfg.Backend.Kind {
	case projectconfig.BackendOpenAI:
		return execution.NewOpenAIClient(execution.OpenAIConfig{
			BaseURL:           cfg.Backend.BaseURL,
			APIKey:            cfg.APIKey(),
			Timeout:           time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
			RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		}), nil
	case projectconfig.BackendCopilot:
		return execution.NewCopilotClient(cfg.Backend.DefaultModel, nil), nil
	case projectconfig.BackendMock:
		return execution.NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
	}
}

func openArchiver(cfg *projectconfig.ProjectConfig) (audit.Archiver, error) {
	switch {
	case cfg.Audit.BlobServiceURL != "":
		a, err := audit.NewBlobArchiver(cfg.Audit.BlobServiceURL, cfg.Audit.BlobContainer, nil)
		if err != nil {
			return nil, fmt.Errorf("configuring audit archive: %w", err)
		}
		return a, nil
	case cfg.Audit.Dir != "":
		return audit.NewDirArchiver(cfg.Audit.Dir), nil
	default:
		return audit.Nop{}, nil
	}
}
