package cookies

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Document is a cookie jar seen through a single string property.
// Implementations must be safe for concurrent use.
type Document interface {
	// Cookie returns the visible cookies as "name=value" pairs joined by "; ".
	Cookie() string

	// SetCookie applies one cookie line with optional attributes, e.g.
	// "theme=dark; expires=Fri, 31 Dec 9999 23:59:59 GMT; path=/".
	SetCookie(line string) error
}

// JarDocument is a Document backed by an RFC 6265 cookie jar for one URL.
type JarDocument struct {
	u   *url.URL
	jar *cookiejar.Jar

	// mu serializes writers so a line is applied atomically.
	mu sync.Mutex
}

var _ Document = (*JarDocument)(nil)

// NewJarDocument creates an empty document for the page at rawURL. Domain
// attributes are checked against the public suffix list.
func NewJarDocument(rawURL string) (*JarDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing document url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("document url must be http or https, got %q", u.Scheme)
	}
	if u.Path == "" {
		u.Path = "/"
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &JarDocument{u: u, jar: jar}, nil
}

// URL returns the page URL the document belongs to.
func (d *JarDocument) URL() *url.URL {
	u := *d.u
	return &u
}

// Jar exposes the underlying jar, e.g. to share it with an http.Client.
func (d *JarDocument) Jar() http.CookieJar {
	return d.jar
}

// Cookie returns the cookies the jar would send to the document URL.
func (d *JarDocument) Cookie() string {
	list := d.jar.Cookies(d.u)
	parts := make([]string, 0, len(list))
	for _, c := range list {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// SetCookie parses line as a Set-Cookie header value and stores it.
func (d *JarDocument) SetCookie(line string) error {
	c, err := http.ParseSetCookie(line)
	if err != nil {
		return fmt.Errorf("parsing cookie line: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.jar.SetCookies(d.u, []*http.Cookie{c})
	return nil
}

var (
	defaultMu  sync.RWMutex
	defaultDoc Document
	defaultSet bool
)

// Default returns the process-wide document. In a browser build it is
// document.cookie; elsewhere it is nil until SetDefault installs one.
func Default() Document {
	defaultMu.RLock()
	if defaultSet {
		d := defaultDoc
		defaultMu.RUnlock()
		return d
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if !defaultSet {
		defaultDoc = platformDocument()
		defaultSet = true
	}
	return defaultDoc
}

// SetDefault replaces the process-wide document.
func SetDefault(d Document) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultDoc = d
	defaultSet = true
}
