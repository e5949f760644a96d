package cookies

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Forever is the expiry used for cookies that should never expire.
var Forever = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// epoch is the expiry written to remove a cookie.
var epoch = time.Unix(0, 0).UTC()

var (
	// ErrEmptyName is returned when a cookie name is empty.
	ErrEmptyName = errors.New("cookies: empty name")

	// ErrReservedName is returned for names that collide with attributes.
	ErrReservedName = errors.New("cookies: reserved name")
)

// Options are the attributes written with a cookie.
type Options struct {
	// Expires is the absolute expiry. Zero means a session cookie.
	Expires time.Time

	// MaxAge is a relative lifetime. When positive it is written as
	// max-age instead of Expires.
	MaxAge time.Duration

	// Path limits the cookie to a path prefix. Empty means the current path.
	Path string

	// Domain widens the cookie to a domain and its subdomains.
	Domain string

	// Secure restricts the cookie to https.
	Secure bool
}

// Cookies reads and writes single cookies on a Document.
type Cookies struct {
	doc Document
}

// New returns cookie helpers for doc.
func New(doc Document) *Cookies {
	return &Cookies{doc: doc}
}

// Document returns the underlying document.
func (c *Cookies) Document() Document {
	return c.doc
}

// pair is one name=value entry of the cookie string, still encoded.
type pair struct {
	name  string
	value string
}

func (c *Cookies) pairs() []pair {
	raw := c.doc.Cookie()
	if raw == "" {
		return nil
	}

	fields := strings.Split(raw, ";")
	out := make([]pair, 0, len(fields))
	for _, field := range fields {
		name, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		out = append(out, pair{
			name:  strings.TrimSpace(name),
			value: strings.TrimSpace(value),
		})
	}
	return out
}

func (c *Cookies) lookup(key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	name, err := EncodeName(key)
	if err != nil {
		return "", false, err
	}
	for _, p := range c.pairs() {
		if p.name == name {
			return p.value, true, nil
		}
	}
	return "", false, nil
}

// HasItem reports whether a cookie named key is visible.
func (c *Cookies) HasItem(key string) (bool, error) {
	_, ok, err := c.lookup(key)
	return ok, err
}

// GetItem returns the decoded value of the cookie named key. A cookie with
// an empty value reads as absent.
func (c *Cookies) GetItem(key string) (string, bool, error) {
	raw, ok, err := c.lookup(key)
	if err != nil || !ok {
		return "", false, err
	}
	value, err := Decode(raw)
	if err != nil {
		return "", false, err
	}
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// SetItem writes the cookie key=value with the given attributes.
func (c *Cookies) SetItem(key, value string, opts Options) error {
	if err := checkName(key); err != nil {
		return err
	}
	name, err := EncodeName(key)
	if err != nil {
		return err
	}
	encoded, err := Encode(value)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(encoded)
	switch {
	case opts.MaxAge > 0:
		b.WriteString("; max-age=")
		b.WriteString(strconv.FormatInt(maxAgeSeconds(opts.MaxAge), 10))
	case !opts.Expires.IsZero():
		b.WriteString("; expires=")
		b.WriteString(opts.Expires.UTC().Format(http.TimeFormat))
	}
	writeScope(&b, opts)
	if opts.Secure {
		b.WriteString("; secure")
	}
	return c.doc.SetCookie(b.String())
}

// RemoveItem expires the cookie named key. Path and Domain must match the
// ones it was written with. It reports whether a cookie was removed.
func (c *Cookies) RemoveItem(key string, opts Options) (bool, error) {
	ok, err := c.HasItem(key)
	if err != nil || !ok {
		return false, err
	}
	name, err := EncodeName(key)
	if err != nil {
		return false, err
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteString("=; expires=")
	b.WriteString(epoch.Format(http.TimeFormat))
	writeScope(&b, opts)
	if err := c.doc.SetCookie(b.String()); err != nil {
		return false, err
	}
	return true, nil
}

// Keys returns the decoded names of the visible cookies. Names that do not
// decode are skipped.
func (c *Cookies) Keys() []string {
	pairs := c.pairs()
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if name, err := Decode(p.name); err == nil && name != "" {
			keys = append(keys, name)
		}
	}
	return keys
}

// maxAgeSeconds rounds d up to whole seconds so a positive lifetime never
// becomes max-age=0.
func maxAgeSeconds(d time.Duration) int64 {
	return int64((d + time.Second - 1) / time.Second)
}

func writeScope(b *strings.Builder, opts Options) {
	if opts.Domain != "" {
		b.WriteString("; domain=")
		b.WriteString(opts.Domain)
	}
	if opts.Path != "" {
		b.WriteString("; path=")
		b.WriteString(opts.Path)
	}
}

func checkName(key string) error {
	if key == "" {
		return ErrEmptyName
	}
	switch strings.ToLower(key) {
	case "expires", "max-age", "path", "domain", "secure":
		return fmt.Errorf("%w: %q", ErrReservedName, key)
	}
	return nil
}
