package storage

import (
	"context"
	"time"

	"github.com/vango-dev/persist/pkg/kvdb"
)

// DatabaseAdapter is a Storage over a kvdb.Store. Reads and writes are
// asynchronous: GetValue always reports absent and delivers the stored
// value to the key's listeners once the read completes.
type DatabaseAdapter[T any] struct {
	db      *kvdb.Store
	diag    diagnostics
	onError func(op, key string, err error)

	listeners listenerRegistry[T]
}

var _ SelfUpdateStorage[int] = (*DatabaseAdapter[int])(nil)

// DatabaseStorage returns a Storage over the database store set with
// WithDatabase, or kvdb.Default(). When no database engine is available it
// returns NoopSelfUpdateStorage.
func DatabaseStorage[T any](opts ...Option) SelfUpdateStorage[T] {
	o := newOptions(opts)
	d := newDiagnostics(BackendDB, o)
	if !kvdb.Available() {
		d.unavailable("no database engine")
		return NoopSelfUpdateStorage[T]()
	}
	db := o.db
	if !o.dbSet {
		db = kvdb.Default()
	}
	if db == nil {
		d.unavailable("no database")
		return NoopSelfUpdateStorage[T]()
	}

	s := &DatabaseAdapter[T]{db: db, diag: d, onError: o.onError}
	if s.onError == nil {
		s.onError = func(op, key string, err error) {
			s.diag.warn("P004", key, err)
		}
	}
	return s
}

// GetValue starts a read of key and returns absent. When the read finds a
// value, every listener registered for key receives it.
func (s *DatabaseAdapter[T]) GetValue(key string) (T, bool) {
	start := time.Now()
	s.db.Get(context.Background(), key).Then(func(raw []byte, ok bool, err error) {
		s.diag.metrics.ObserveOp(BackendDB, "get", start)
		if err != nil {
			s.onError("get", key, err)
			return
		}
		if !ok {
			return
		}
		value, ok, err := decode[T](string(raw))
		if !ok {
			s.diag.warn("P003", key, err)
			return
		}
		for _, fn := range s.listeners.forKey(key) {
			fn(value)
			s.diag.metrics.Notified(BackendDB)
		}
	})

	var zero T
	return zero, false
}

// SetValue starts a write of value under key.
func (s *DatabaseAdapter[T]) SetValue(key string, value T) {
	raw, err := encode(value)
	if err != nil {
		s.diag.warn("P002", key, err)
		return
	}
	start := time.Now()
	s.db.Put(context.Background(), key, []byte(raw)).Then(func(_ struct{}, _ bool, err error) {
		s.diag.metrics.ObserveOp(BackendDB, "set", start)
		if err != nil {
			s.onError("put", key, err)
		}
	})
}

// DeleteValue starts a delete of key.
func (s *DatabaseAdapter[T]) DeleteValue(key string) {
	start := time.Now()
	s.db.Delete(context.Background(), key).Then(func(_ struct{}, _ bool, err error) {
		s.diag.metrics.ObserveOp(BackendDB, "delete", start)
		if err != nil {
			s.onError("delete", key, err)
		}
	})
}

// AddListener registers fn for values read from key.
func (s *DatabaseAdapter[T]) AddListener(key string, fn func(T)) ListenerID {
	id, _ := s.listeners.add(key, fn)
	s.diag.metrics.ListenerAdded(BackendDB)
	return id
}

// RemoveListener removes the listener registered for key under id.
func (s *DatabaseAdapter[T]) RemoveListener(key string, id ListenerID) {
	if removed, _ := s.listeners.remove(key, id); removed {
		s.diag.metrics.ListenerRemoved(BackendDB)
	}
}

// Wait blocks until every read and write issued so far has completed and
// its listeners have run.
func (s *DatabaseAdapter[T]) Wait(ctx context.Context) error {
	return s.db.Wait(ctx)
}

// Database returns the underlying store.
func (s *DatabaseAdapter[T]) Database() *kvdb.Store {
	return s.db
}
