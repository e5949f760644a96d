package kvdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DriverName is the database/sql driver the store opens.
const DriverName = "sqlite"

// Default database and object store names.
const (
	DefaultDatabase    = "persist"
	DefaultObjectStore = "persist"
)

const tracerName = "github.com/vango-dev/persist/pkg/kvdb"

var (
	// ErrClosed is returned for transactions issued after Close.
	ErrClosed = errors.New("kvdb: store closed")

	// ErrUnavailable is returned when no database engine is linked in.
	ErrUnavailable = errors.New("kvdb: database engine unavailable")

	// ErrInvalidName is returned for database or object store names that
	// cannot be used.
	ErrInvalidName = errors.New("kvdb: invalid name")
)

// Available reports whether the SQLite driver is registered.
func Available() bool {
	return slices.Contains(sql.Drivers(), DriverName)
}

// Option configures a Store.
type Option func(*options)

type options struct {
	dir    string
	logger *slog.Logger
	tracer trace.Tracer
}

// WithDir sets the directory holding the database file.
// Default: DefaultDir().
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracer sets the tracer used for transaction spans. Default: the
// global provider's tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// DefaultDir returns the per-user directory for database files.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "persist")
	}
	return ".persist"
}

// Store is one object store inside one named database.
type Store struct {
	database string
	name     string
	dir      string
	logger   *slog.Logger
	tracer   trace.Tracer

	openOnce sync.Once
	db       *sql.DB
	openErr  error

	mu     sync.Mutex
	queue  []*txn
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// txn is one queued unit of work.
type txn struct {
	ctx  context.Context
	op   string
	key  string
	run  func(ctx context.Context, db *sql.DB) error
	fail func(err error)
}

// NewStore creates a handle on the object store storeName in database
// dbName. Nothing is opened until the first transaction runs.
func NewStore(dbName, storeName string, opts ...Option) *Store {
	o := &options{dir: DefaultDir()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	s := &Store{
		database: dbName,
		name:     storeName,
		dir:      o.dir,
		logger:   o.logger.With("component", "kvdb", "database", dbName, "store", storeName),
		tracer:   o.tracer,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.worker()
	return s
}

// Database returns the database name.
func (s *Store) Database() string {
	return s.database
}

// Name returns the object store name.
func (s *Store) Name() string {
	return s.name
}

// Path returns the database file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, s.database+".db")
}

// Get reads the value stored under key. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) *Result[[]byte] {
	r := newResult[[]byte]()
	table := quoteIdent(s.name)
	s.enqueue(&txn{
		ctx: ctx,
		op:  "get",
		key: key,
		run: func(ctx context.Context, db *sql.DB) error {
			var value []byte
			err := db.QueryRowContext(ctx, `SELECT value FROM `+table+` WHERE key = ?`, key).Scan(&value)
			if errors.Is(err, sql.ErrNoRows) {
				r.resolve(nil, false, nil)
				return nil
			}
			if err != nil {
				return err
			}
			r.resolve(value, true, nil)
			return nil
		},
		fail: func(err error) { r.resolve(nil, false, err) },
	})
	return r
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value []byte) *Result[struct{}] {
	r := newResult[struct{}]()
	table := quoteIdent(s.name)
	value = slices.Clone(value)
	if value == nil {
		value = []byte{}
	}
	s.enqueue(&txn{
		ctx: ctx,
		op:  "put",
		key: key,
		run: func(ctx context.Context, db *sql.DB) error {
			err := inTx(ctx, db, func(tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO `+table+` (key, value) VALUES (?, ?)
					 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
					key, value)
				return err
			})
			if err != nil {
				return err
			}
			r.resolve(struct{}{}, true, nil)
			return nil
		},
		fail: func(err error) { r.resolve(struct{}{}, false, err) },
	})
	return r
}

// Delete removes key. ok reports whether it was present.
func (s *Store) Delete(ctx context.Context, key string) *Result[struct{}] {
	r := newResult[struct{}]()
	table := quoteIdent(s.name)
	s.enqueue(&txn{
		ctx: ctx,
		op:  "delete",
		key: key,
		run: func(ctx context.Context, db *sql.DB) error {
			var n int64
			err := inTx(ctx, db, func(tx *sql.Tx) error {
				res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE key = ?`, key)
				if err != nil {
					return err
				}
				n, err = res.RowsAffected()
				return err
			})
			if err != nil {
				return err
			}
			r.resolve(struct{}{}, n > 0, nil)
			return nil
		},
		fail: func(err error) { r.resolve(struct{}{}, false, err) },
	})
	return r
}

// Keys lists every key in the object store in ascending order.
func (s *Store) Keys(ctx context.Context) *Result[[]string] {
	r := newResult[[]string]()
	table := quoteIdent(s.name)
	s.enqueue(&txn{
		ctx: ctx,
		op:  "keys",
		run: func(ctx context.Context, db *sql.DB) error {
			rows, err := db.QueryContext(ctx, `SELECT key FROM `+table+` ORDER BY key`)
			if err != nil {
				return err
			}
			defer rows.Close()

			keys := []string{}
			for rows.Next() {
				var k string
				if err := rows.Scan(&k); err != nil {
					return err
				}
				keys = append(keys, k)
			}
			if err := rows.Err(); err != nil {
				return err
			}
			r.resolve(keys, true, nil)
			return nil
		},
		fail: func(err error) { r.resolve(nil, false, err) },
	})
	return r
}

// Clear removes every key from the object store.
func (s *Store) Clear(ctx context.Context) *Result[struct{}] {
	r := newResult[struct{}]()
	table := quoteIdent(s.name)
	s.enqueue(&txn{
		ctx: ctx,
		op:  "clear",
		run: func(ctx context.Context, db *sql.DB) error {
			if err := inTx(ctx, db, func(tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, `DELETE FROM `+table)
				return err
			}); err != nil {
				return err
			}
			r.resolve(struct{}{}, true, nil)
			return nil
		},
		fail: func(err error) { r.resolve(struct{}{}, false, err) },
	})
	return r
}

// Wait blocks until every transaction issued before the call has completed.
func (s *Store) Wait(ctx context.Context) error {
	r := newResult[struct{}]()
	s.enqueue(&txn{
		ctx:  context.WithoutCancel(ctx),
		op:   "barrier",
		run:  func(context.Context, *sql.DB) error { r.resolve(struct{}{}, true, nil); return nil },
		fail: func(error) { r.resolve(struct{}{}, true, nil) },
	})
	_, _, err := r.Wait(ctx)
	return err
}

// Close completes the queued transactions and closes the database. Later
// transactions fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.signal()

	<-s.done
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) enqueue(t *txn) {
	if t.ctx == nil {
		t.ctx = context.Background()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.fail(ErrClosed)
		return
	}
	s.queue = append(s.queue, t)
	s.mu.Unlock()
	s.signal()
}

func (s *Store) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) worker() {
	defer close(s.done)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			<-s.wake
			continue
		}
		t := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.execute(t)
	}
}

func (s *Store) execute(t *txn) {
	if t.op == "barrier" {
		_ = t.run(t.ctx, nil)
		return
	}

	ctx, span := s.tracer.Start(t.ctx, "kvdb."+t.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "sqlite"),
			attribute.String("kvdb.database", s.database),
			attribute.String("kvdb.store", s.name),
		),
	)
	if t.key != "" {
		span.SetAttributes(attribute.String("kvdb.key", t.key))
	}
	defer span.End()

	err := ctx.Err()
	var db *sql.DB
	if err == nil {
		db, err = s.open()
	}
	if err == nil {
		err = t.run(ctx, db)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug("transaction failed", "op", t.op, "key", t.key, "error", err)
		t.fail(err)
		return
	}
	span.SetStatus(codes.Ok, "")
}

// open opens the database on first use and creates the object store.
func (s *Store) open() (*sql.DB, error) {
	s.openOnce.Do(func() {
		s.db, s.openErr = s.openDB()
		if s.openErr != nil {
			s.logger.Warn("open failed", "path", s.Path(), "error", s.openErr)
		}
	})
	return s.db, s.openErr
}

func (s *Store) openDB() (*sql.DB, error) {
	if !Available() {
		return nil, ErrUnavailable
	}
	if err := checkName(s.database); err != nil {
		return nil, err
	}
	if strings.ContainsAny(s.database, `/\`) || s.database == "." || s.database == ".." {
		return nil, fmt.Errorf("%w: database %q", ErrInvalidName, s.database)
	}
	if err := checkName(s.name); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open(DriverName, s.Path()+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + quoteIdent(s.name) + ` (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating object store %q: %w", s.name, err)
	}

	s.logger.Debug("database opened", "path", s.Path())
	return db, nil
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var (
	defaultOnce  sync.Once
	defaultStore *Store
)

// Default returns the process-wide store for DefaultDatabase and
// DefaultObjectStore in DefaultDir. It is created on first use and never
// closed.
func Default() *Store {
	defaultOnce.Do(func() {
		defaultStore = NewStore(DefaultDatabase, DefaultObjectStore)
	})
	return defaultStore
}
