package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vango-dev/persist/internal/config"
	"github.com/vango-dev/persist/internal/errors"
	"github.com/vango-dev/persist/pkg/kvdb"
	"github.com/vango-dev/persist/pkg/metrics"
	"github.com/vango-dev/persist/pkg/storage"
	"github.com/vango-dev/persist/pkg/webstorage"
)

const (
	backendLocal = "local"
	backendDB    = "db"
)

type globalFlags struct {
	config     string
	dir        string
	backend    string
	noColor    bool
	jsonErrors bool
}

// env is the storage environment a command runs against.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	backend string

	window *webstorage.FileWindow
	db     *kvdb.Store
}

func openEnv(flags *globalFlags) (*env, error) {
	if flags.backend != backendLocal && flags.backend != backendDB {
		return nil, errors.New("P010").
			WithDetail("Unknown backend " + flags.backend).
			WithSuggestion("Use --backend local or --backend db")
	}

	cfg, err := config.Resolve(flags.config)
	if err != nil {
		return nil, err
	}
	if flags.dir != "" {
		abs, err := filepath.Abs(flags.dir)
		if err != nil {
			return nil, errors.New("P010").Wrap(err)
		}
		cfg.Dir = abs
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dir := cfg.DirPath()
	window, err := webstorage.OpenFileWindow(dir,
		webstorage.WithFileQuota(cfg.Quota),
		webstorage.WithFileLogger(logger),
		webstorage.WithOriginURL(cfg.Origin),
	)
	if err != nil {
		return nil, errors.New("P001").Wrap(err)
	}

	return &env{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.Default(),
		backend: flags.backend,
		window:  window,
		db: kvdb.NewStore(cfg.Database.Name, cfg.Database.Store,
			kvdb.WithDir(dir),
			kvdb.WithLogger(logger),
		),
	}, nil
}

func (e *env) Close() error {
	dbErr := e.db.Close()
	if err := e.window.Close(); err != nil {
		return err
	}
	return dbErr
}

func (e *env) options() []storage.Option {
	return []storage.Option{
		storage.WithLogger(e.logger),
		storage.WithMetrics(e.metrics),
		storage.WithWindow(e.window),
		storage.WithDatabase(e.db),
		storage.ListenExternalChanges(),
	}
}

// read returns the value stored under key in the selected backend. The
// database backend delivers reads to listeners, so it waits for them.
func (e *env) read(ctx context.Context, key string) (any, bool, error) {
	if e.backend == backendLocal {
		v, ok := storage.LocalStorage[any](e.options()...).GetValue(key)
		return v, ok, nil
	}

	s := storage.DatabaseStorage[any](e.options()...)
	var (
		value any
		found bool
	)
	id := s.AddListener(key, func(v any) {
		value, found = v, true
	})
	defer s.RemoveListener(key, id)

	s.GetValue(key)
	if w, ok := s.(interface{ Wait(context.Context) error }); ok {
		if err := w.Wait(ctx); err != nil {
			return nil, false, err
		}
	}
	return value, found, nil
}

func (e *env) write(ctx context.Context, key string, value any) error {
	if e.backend == backendLocal {
		storage.LocalStorage[any](e.options()...).SetValue(key, value)
		return nil
	}

	var txErr error
	s := storage.DatabaseStorage[any](append(e.options(), storage.WithErrorHandler(func(op, key string, err error) {
		txErr = errors.New("P004").WithDetail(op + " " + key).Wrap(err)
	}))...)
	s.SetValue(key, value)
	return e.wait(ctx, s, &txErr)
}

func (e *env) remove(ctx context.Context, key string) error {
	if e.backend == backendLocal {
		storage.LocalStorage[any](e.options()...).DeleteValue(key)
		return nil
	}

	var txErr error
	s := storage.DatabaseStorage[any](append(e.options(), storage.WithErrorHandler(func(op, key string, err error) {
		txErr = errors.New("P004").WithDetail(op + " " + key).Wrap(err)
	}))...)
	s.DeleteValue(key)
	return e.wait(ctx, s, &txErr)
}

func (e *env) wait(ctx context.Context, s storage.Storage[any], txErr *error) error {
	if w, ok := s.(interface{ Wait(context.Context) error }); ok {
		if err := w.Wait(ctx); err != nil {
			return err
		}
	}
	return *txErr
}

func (e *env) keys(ctx context.Context) ([]string, error) {
	if e.backend == backendLocal {
		return e.window.LocalStorage().Keys(), nil
	}
	keys, _, err := e.db.Keys(ctx).Wait(ctx)
	if err != nil {
		return nil, errors.New("P004").Wrap(err)
	}
	return keys, nil
}
