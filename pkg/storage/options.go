package storage

import (
	"log/slog"
	"time"

	"github.com/vango-dev/persist/pkg/cookies"
	"github.com/vango-dev/persist/pkg/kvdb"
	"github.com/vango-dev/persist/pkg/metrics"
	"github.com/vango-dev/persist/pkg/webstorage"
)

// Option configures a storage backend. Options that do not apply to a
// backend are ignored.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	window    webstorage.Window
	windowSet bool
	listen    bool

	document    cookies.Document
	documentSet bool
	cookie      cookies.Options

	db      *kvdb.Store
	dbSet   bool
	onError func(op, key string, err error)
}

func newOptions(opts []Option) *options {
	o := &options{
		cookie: cookies.Options{
			Expires: cookies.Forever,
			Path:    "/",
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if !o.windowSet {
		o.window = webstorage.Default()
	}
	if !o.documentSet {
		o.document = cookies.Default()
	}
	return o
}

// WithLogger sets the logger for diagnostics. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records operations on m. Default: no metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithWindow sets the window whose storage areas are used.
// Default: webstorage.Default().
func WithWindow(w webstorage.Window) Option {
	return func(o *options) {
		o.window = w
		o.windowSet = true
	}
}

// ListenExternalChanges subscribes local and session storage to the
// window's storage events while listeners are registered. Without it,
// listeners can be registered but never fire.
func ListenExternalChanges() Option {
	return func(o *options) {
		o.listen = true
	}
}

// WithDocument sets the cookie document. Default: cookies.Default().
func WithDocument(doc cookies.Document) Option {
	return func(o *options) {
		o.document = doc
		o.documentSet = true
	}
}

// WithCookiePath sets the cookie path. Default: "/".
func WithCookiePath(path string) Option {
	return func(o *options) {
		o.cookie.Path = path
	}
}

// WithCookieDomain sets the cookie domain. Default: none (host only).
func WithCookieDomain(domain string) Option {
	return func(o *options) {
		o.cookie.Domain = domain
	}
}

// WithCookieSecure restricts cookies to https.
func WithCookieSecure() Option {
	return func(o *options) {
		o.cookie.Secure = true
	}
}

// WithCookieExpires sets an absolute cookie expiry. Default: cookies.Forever.
func WithCookieExpires(t time.Time) Option {
	return func(o *options) {
		o.cookie.Expires = t
		o.cookie.MaxAge = 0
	}
}

// WithCookieMaxAge sets a relative cookie lifetime instead of an expiry.
func WithCookieMaxAge(d time.Duration) Option {
	return func(o *options) {
		o.cookie.MaxAge = d
	}
}

// WithDatabase sets the database store. Default: kvdb.Default().
func WithDatabase(db *kvdb.Store) Option {
	return func(o *options) {
		o.db = db
		o.dbSet = true
	}
}

// WithErrorHandler sets the handler for failed database transactions.
// Default: a P004 warning on the logger.
func WithErrorHandler(fn func(op, key string, err error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}
