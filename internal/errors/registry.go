package errors

import (
	"sort"
	"sync"
)

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
	DocURL     string
}

var (
	registryMu sync.RWMutex

	// registry maps error codes to their templates.
	registry = map[string]ErrorTemplate{
		"P001": {
			Category:   CategoryStorage,
			Message:    "Storage backend unavailable",
			Detail:     "The requested storage backend does not exist in this environment. No data will be persisted.",
			Suggestion: "Install a window or cookie document with SetDefault, or pass one explicitly with storage.WithWindow / storage.WithDocument.",
			DocURL:     "https://vango.dev/docs/persist/errors/P001",
		},
		"P002": {
			Category: CategorySerialization,
			Message:  "Value could not be encoded",
			Detail:   "The value has no JSON representation or contains text that cannot be percent-encoded.",
			DocURL:   "https://vango.dev/docs/persist/errors/P002",
		},
		"P003": {
			Category: CategorySerialization,
			Message:  "Value could not be decoded",
			Detail:   "The stored text is not valid JSON for the requested type and the raw text cannot be used instead.",
			DocURL:   "https://vango.dev/docs/persist/errors/P003",
		},
		"P004": {
			Category: CategoryDatabase,
			Message:  "Database transaction failed",
			Detail:   "A write, delete or read transaction against the key-value database did not complete.",
			DocURL:   "https://vango.dev/docs/persist/errors/P004",
		},
		"P005": {
			Category:   CategoryStorage,
			Message:    "Storage area rejected the write",
			Detail:     "The storage area is full or closed.",
			Suggestion: "Store less data under this origin or raise the area quota.",
			DocURL:     "https://vango.dev/docs/persist/errors/P005",
		},
		"P006": {
			Category: CategoryCookie,
			Message:  "Cookie rejected",
			Detail:   "The cookie name is empty or reserved, or the cookie line could not be parsed.",
			DocURL:   "https://vango.dev/docs/persist/errors/P006",
		},
		"P010": {
			Category:   CategoryConfig,
			Message:    "Invalid configuration",
			Suggestion: "Check persist.json and the PERSIST_* environment variables.",
			DocURL:     "https://vango.dev/docs/persist/errors/P010",
		},
	}
)

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = template
}
