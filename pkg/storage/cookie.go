package storage

import (
	"errors"
	"time"

	"github.com/vango-dev/persist/pkg/cookies"
)

// CookieAdapter is a Storage over document cookies. Values are stored as
// percent-encoded JSON. It does not report external changes.
type CookieAdapter[T any] struct {
	jar  *cookies.Cookies
	opts cookies.Options
	diag diagnostics
}

var _ Storage[int] = (*CookieAdapter[int])(nil)

// CookieStorage returns a Storage over the document's cookies. Cookies
// are written with path "/" and the cookies.Forever expiry
// unless configured otherwise. Without a document it returns NoopStorage.
func CookieStorage[T any](opts ...Option) Storage[T] {
	o := newOptions(opts)
	d := newDiagnostics(BackendCookie, o)
	if o.document == nil {
		d.unavailable("no cookie document")
		return NoopStorage[T]()
	}
	return &CookieAdapter[T]{
		jar:  cookies.New(o.document),
		opts: o.cookie,
		diag: d,
	}
}

// GetValue returns the decoded value of the cookie named key.
func (s *CookieAdapter[T]) GetValue(key string) (T, bool) {
	defer s.diag.metrics.ObserveOp(BackendCookie, "get", time.Now())

	var zero T
	raw, ok, err := s.jar.GetItem(key)
	if err != nil {
		s.diag.warn("P003", key, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	value, ok, err := decode[T](raw)
	if !ok {
		s.diag.warn("P003", key, err)
	}
	return value, ok
}

// SetValue writes value as the cookie named key.
func (s *CookieAdapter[T]) SetValue(key string, value T) {
	defer s.diag.metrics.ObserveOp(BackendCookie, "set", time.Now())

	raw, err := encode(value)
	if err != nil {
		s.diag.warn("P002", key, err)
		return
	}
	if err := s.jar.SetItem(key, raw, s.opts); err != nil {
		s.diag.warn(cookieCode(err), key, err)
	}
}

// DeleteValue expires the cookie named key.
func (s *CookieAdapter[T]) DeleteValue(key string) {
	defer s.diag.metrics.ObserveOp(BackendCookie, "delete", time.Now())

	if _, err := s.jar.RemoveItem(key, s.opts); err != nil {
		s.diag.warn(cookieCode(err), key, err)
	}
}

func cookieCode(err error) string {
	if errors.Is(err, cookies.ErrMalformed) {
		return "P002"
	}
	return "P006"
}
