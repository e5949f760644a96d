package storage

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/persist/pkg/cookies"
	"github.com/vango-dev/persist/pkg/kvdb"
	"github.com/vango-dev/persist/pkg/metrics"
	"github.com/vango-dev/persist/pkg/webstorage"
)

type prefs struct {
	Theme    string   `json:"theme"`
	FontSize int      `json:"fontSize"`
	Tags     []string `json:"tags,omitempty"`
}

type theme string

// syncBuffer is a bytes.Buffer safe for the database worker to log into.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, nil)), buf
}

func newWindow(t *testing.T) *webstorage.MemoryWindow {
	t.Helper()
	w := webstorage.NewOrigin("https://example.com").OpenWindow()
	t.Cleanup(w.Close)
	return w
}

func newDocument(t *testing.T) *cookies.JarDocument {
	t.Helper()
	doc, err := cookies.NewJarDocument("https://example.com/")
	require.NoError(t, err)
	return doc
}

func newDatabase(t *testing.T) *kvdb.Store {
	t.Helper()
	db := kvdb.NewStore("persist", "persist", kvdb.WithDir(t.TempDir()))
	t.Cleanup(func() { db.Close() })
	return db
}

func roundTrip[T any](t *testing.T, newStorage func() Storage[T], value T) {
	t.Helper()
	s := newStorage()
	s.SetValue("k", value)

	got, ok := s.GetValue("k")
	require.True(t, ok)
	assert.Equal(t, value, got)

	s.DeleteValue("k")
	_, ok = s.GetValue("k")
	assert.False(t, ok)
}

func TestSyncBackends_RoundTrip(t *testing.T) {
	backends := map[string]func(t *testing.T) []Option{
		"local":   func(t *testing.T) []Option { return []Option{WithWindow(newWindow(t))} },
		"session": func(t *testing.T) []Option { return []Option{WithWindow(newWindow(t))} },
		"cookie":  func(t *testing.T) []Option { return []Option{WithDocument(newDocument(t))} },
	}
	constructors := map[string]func(opts ...Option) func() Storage[prefs]{
		"local": func(opts ...Option) func() Storage[prefs] {
			return func() Storage[prefs] { return LocalStorage[prefs](opts...) }
		},
		"session": func(opts ...Option) func() Storage[prefs] {
			return func() Storage[prefs] { return SessionStorage[prefs](opts...) }
		},
		"cookie": func(opts ...Option) func() Storage[prefs] {
			return func() Storage[prefs] { return CookieStorage[prefs](opts...) }
		},
	}

	for name, optsFor := range backends {
		t.Run(name, func(t *testing.T) {
			roundTrip(t, constructors[name](optsFor(t)...), prefs{Theme: "dark", FontSize: 14, Tags: []string{"a b", "ü;="}})
			roundTrip(t, constructors[name](optsFor(t)...), prefs{})
		})
	}
}

func TestLocalStorage_RoundTripTypes(t *testing.T) {
	w := newWindow(t)

	roundTrip(t, func() Storage[string] { return LocalStorage[string](WithWindow(w)) }, "dark")
	roundTrip(t, func() Storage[string] { return LocalStorage[string](WithWindow(w)) }, "")
	roundTrip(t, func() Storage[int] { return LocalStorage[int](WithWindow(w)) }, 42)
	roundTrip(t, func() Storage[bool] { return LocalStorage[bool](WithWindow(w)) }, false)
	roundTrip(t, func() Storage[[]int] { return LocalStorage[[]int](WithWindow(w)) }, []int{1, 2, 3})
	roundTrip(t, func() Storage[map[string]float64] { return LocalStorage[map[string]float64](WithWindow(w)) }, map[string]float64{"x": 1.5})
}

func TestLocalStorage_StoresJSON(t *testing.T) {
	w := newWindow(t)
	s := LocalStorage[prefs](WithWindow(w))

	s.SetValue("prefs", prefs{Theme: "dark", FontSize: 12})

	raw, ok := w.LocalStorage().GetItem("prefs")
	require.True(t, ok)
	assert.JSONEq(t, `{"theme":"dark","fontSize":12}`, raw)
}

func TestLocalStorage_SharedAcrossWindows(t *testing.T) {
	origin := webstorage.NewOrigin("https://example.com")
	a, b := origin.OpenWindow(), origin.OpenWindow()
	defer a.Close()
	defer b.Close()

	LocalStorage[int](WithWindow(a)).SetValue("n", 7)
	got, ok := LocalStorage[int](WithWindow(b)).GetValue("n")
	require.True(t, ok)
	assert.Equal(t, 7, got)

	_, ok = SessionStorage[int](WithWindow(b)).GetValue("n")
	assert.False(t, ok)
}

func TestLocalStorage_RawFallback(t *testing.T) {
	w := newWindow(t)
	require.NoError(t, w.LocalStorage().SetItem("k", "not json"))

	got, ok := LocalStorage[string](WithWindow(w)).GetValue("k")
	require.True(t, ok)
	assert.Equal(t, "not json", got)

	named, ok := LocalStorage[theme](WithWindow(w)).GetValue("k")
	require.True(t, ok)
	assert.Equal(t, theme("not json"), named)

	anything, ok := LocalStorage[any](WithWindow(w)).GetValue("k")
	require.True(t, ok)
	assert.Equal(t, "not json", anything)
}

func TestLocalStorage_DecodeFailureIsAbsent(t *testing.T) {
	w := newWindow(t)
	logger, logs := testLogger()
	require.NoError(t, w.LocalStorage().SetItem("k", "not json"))

	_, ok := LocalStorage[int](WithWindow(w), WithLogger(logger)).GetValue("k")
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "code=P003")
	assert.Contains(t, logs.String(), "key=k")
}

func TestLocalStorage_QuotaExceeded(t *testing.T) {
	w := webstorage.NewOrigin("https://example.com", webstorage.WithQuota(16)).OpenWindow()
	defer w.Close()
	logger, logs := testLogger()
	s := LocalStorage[string](WithWindow(w), WithLogger(logger))

	assert.NotPanics(t, func() { s.SetValue("k", strings.Repeat("x", 64)) })
	_, ok := s.GetValue("k")
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "code=P005")
}

func TestLocalStorage_EncodeFailure(t *testing.T) {
	w := newWindow(t)
	logger, logs := testLogger()
	s := LocalStorage[any](WithWindow(w), WithLogger(logger))

	s.SetValue("k", make(chan int))
	_, ok := s.GetValue("k")
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "code=P002")
}

func TestLocalStorage_Unavailable(t *testing.T) {
	logger, logs := testLogger()

	s := LocalStorage[int](WithWindow(nil), WithLogger(logger))
	_, isSelfUpdate := s.(SelfUpdateStorage[int])
	assert.False(t, isSelfUpdate)

	s.SetValue("k", 1)
	_, ok := s.GetValue("k")
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "code=P001")
	assert.Contains(t, logs.String(), "backend=local")

	SessionStorage[int](WithWindow(nil), WithLogger(logger))
	assert.Contains(t, logs.String(), "backend=session")
}

// arealess is a window without storage areas, like a browser with storage
// disabled.
type arealess struct{}

func (arealess) LocalStorage() webstorage.Area   { return nil }
func (arealess) SessionStorage() webstorage.Area { return nil }
func (arealess) AddStorageListener(func(webstorage.StorageEvent)) func() {
	return func() {}
}

func TestLocalStorage_WindowWithoutAreas(t *testing.T) {
	logger, logs := testLogger()

	s := LocalStorage[int](WithWindow(arealess{}), WithLogger(logger))
	_, ok := s.GetValue("k")
	assert.False(t, ok)

	SessionStorage[int](WithWindow(arealess{}), WithLogger(logger))
	assert.Equal(t, 2, strings.Count(logs.String(), "code=P001"))
}

func TestLocalStorage_DefaultWindow(t *testing.T) {
	w := newWindow(t)
	webstorage.SetDefault(w)
	t.Cleanup(func() { webstorage.SetDefault(nil) })

	LocalStorage[int]().SetValue("n", 3)
	raw, ok := w.LocalStorage().GetItem("n")
	require.True(t, ok)
	assert.Equal(t, "3", raw)
}

func TestAreaAdapter_ExternalChanges(t *testing.T) {
	origin := webstorage.NewOrigin("https://example.com")
	reader, writer := origin.OpenWindow(), origin.OpenWindow()
	defer reader.Close()
	defer writer.Close()

	s := LocalStorage[prefs](WithWindow(reader), ListenExternalChanges()).(*AreaAdapter[prefs])

	var mu sync.Mutex
	var first, second []prefs
	s.AddListener("prefs", func(p prefs) { mu.Lock(); first = append(first, p); mu.Unlock() })
	s.AddListener("prefs", func(p prefs) { mu.Lock(); second = append(second, p); mu.Unlock() })
	s.AddListener("other", func(prefs) { t.Error("listener for another key fired") })

	LocalStorage[prefs](WithWindow(writer)).SetValue("prefs", prefs{Theme: "light"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []prefs{{Theme: "light"}}, first)
	assert.Equal(t, []prefs{{Theme: "light"}}, second)
}

func TestAreaAdapter_OwnWritesDoNotNotify(t *testing.T) {
	w := newWindow(t)
	s := LocalStorage[int](WithWindow(w), ListenExternalChanges()).(*AreaAdapter[int])

	s.AddListener("n", func(int) { t.Error("own write notified") })
	s.SetValue("n", 1)
	s.DeleteValue("n")
}

func TestAreaAdapter_RemovedKeyNotifiesZero(t *testing.T) {
	origin := webstorage.NewOrigin("https://example.com")
	reader, writer := origin.OpenWindow(), origin.OpenWindow()
	defer reader.Close()
	defer writer.Close()

	require.NoError(t, writer.LocalStorage().SetItem("n", "5"))

	s := LocalStorage[int](WithWindow(reader), ListenExternalChanges()).(*AreaAdapter[int])
	var got []int
	s.AddListener("n", func(v int) { got = append(got, v) })

	writer.LocalStorage().RemoveItem("n")
	assert.Equal(t, []int{0}, got)
}

func TestAreaAdapter_RawExternalValue(t *testing.T) {
	origin := webstorage.NewOrigin("https://example.com")
	reader, writer := origin.OpenWindow(), origin.OpenWindow()
	defer reader.Close()
	defer writer.Close()

	s := LocalStorage[string](WithWindow(reader), ListenExternalChanges()).(*AreaAdapter[string])
	var got []string
	s.AddListener("k", func(v string) { got = append(got, v) })

	require.NoError(t, writer.LocalStorage().SetItem("k", "plain text"))
	assert.Equal(t, []string{"plain text"}, got)
}

func TestAreaAdapter_ClearIsIgnored(t *testing.T) {
	origin := webstorage.NewOrigin("https://example.com")
	reader, writer := origin.OpenWindow(), origin.OpenWindow()
	defer reader.Close()
	defer writer.Close()

	require.NoError(t, writer.LocalStorage().SetItem("k", "1"))
	s := LocalStorage[int](WithWindow(reader), ListenExternalChanges()).(*AreaAdapter[int])
	s.AddListener("k", func(int) { t.Error("clear notified") })

	writer.LocalStorage().Clear()
}

func TestAreaAdapter_FiltersByArea(t *testing.T) {
	w := newWindow(t)
	frame := w.OpenFrame()
	defer frame.Close()

	local := LocalStorage[int](WithWindow(w), ListenExternalChanges()).(*AreaAdapter[int])
	session := SessionStorage[int](WithWindow(w), ListenExternalChanges()).(*AreaAdapter[int])

	var localGot, sessionGot []int
	local.AddListener("n", func(v int) { localGot = append(localGot, v) })
	session.AddListener("n", func(v int) { sessionGot = append(sessionGot, v) })

	SessionStorage[int](WithWindow(frame)).SetValue("n", 1)
	assert.Empty(t, localGot)
	assert.Equal(t, []int{1}, sessionGot)

	LocalStorage[int](WithWindow(frame)).SetValue("n", 2)
	assert.Equal(t, []int{2}, localGot)
	assert.Equal(t, []int{1}, sessionGot)
}

func TestAreaAdapter_RemoveListener(t *testing.T) {
	origin := webstorage.NewOrigin("https://example.com")
	reader, writer := origin.OpenWindow(), origin.OpenWindow()
	defer reader.Close()
	defer writer.Close()

	s := LocalStorage[int](WithWindow(reader), ListenExternalChanges()).(*AreaAdapter[int])
	var a, b []int
	idA := s.AddListener("n", func(v int) { a = append(a, v) })
	idB := s.AddListener("n", func(v int) { b = append(b, v) })
	require.NotEqual(t, idA, idB)
	assert.True(t, s.Connected())
	assert.Equal(t, 1, reader.ListenerCount())

	// Wrong key or unknown id removes nothing.
	s.RemoveListener("other", idA)
	s.RemoveListener("n", 999)

	s.RemoveListener("n", idA)
	require.NoError(t, writer.LocalStorage().SetItem("n", "1"))
	assert.Empty(t, a)
	assert.Equal(t, []int{1}, b)
	assert.True(t, s.Connected())

	s.RemoveListener("n", idB)
	assert.False(t, s.Connected())
	assert.Equal(t, 0, reader.ListenerCount())

	// Adding again reconnects.
	s.AddListener("n", func(v int) { a = append(a, v) })
	assert.True(t, s.Connected())
	require.NoError(t, writer.LocalStorage().SetItem("n", "2"))
	assert.Equal(t, []int{2}, a)
}

func TestAreaAdapter_WithoutListenOption(t *testing.T) {
	origin := webstorage.NewOrigin("https://example.com")
	reader, writer := origin.OpenWindow(), origin.OpenWindow()
	defer reader.Close()
	defer writer.Close()

	s := LocalStorage[int](WithWindow(reader)).(*AreaAdapter[int])
	s.AddListener("n", func(int) { t.Error("notified without ListenExternalChanges") })
	assert.False(t, s.Connected())
	assert.Equal(t, 0, reader.ListenerCount())

	require.NoError(t, writer.LocalStorage().SetItem("n", "1"))
}

func TestAreaAdapter_FileWindowAcrossHandles(t *testing.T) {
	dir := t.TempDir()
	reader, err := webstorage.OpenFileWindow(dir)
	require.NoError(t, err)
	defer reader.Close()
	writer, err := webstorage.OpenFileWindow(dir)
	require.NoError(t, err)
	defer writer.Close()

	s := LocalStorage[string](WithWindow(reader), ListenExternalChanges()).(*AreaAdapter[string])
	got := make(chan string, 4)
	s.AddListener("theme", func(v string) { got <- v })

	LocalStorage[string](WithWindow(writer)).SetValue("theme", "dark")

	require.Eventually(t, func() bool {
		select {
		case v := <-got:
			return v == "dark"
		default:
			return false
		}
	}, testTimeout, testTick)
}

func TestCookieStorage_Theme(t *testing.T) {
	doc := newDocument(t)
	s := CookieStorage[string](WithDocument(doc))

	s.SetValue("theme", "dark")
	assert.Contains(t, doc.Cookie(), "theme=%22dark%22")

	got, ok := s.GetValue("theme")
	require.True(t, ok)
	assert.Equal(t, "dark", got)

	s.DeleteValue("theme")
	_, ok = s.GetValue("theme")
	assert.False(t, ok)
	assert.NotContains(t, doc.Cookie(), "theme=")
}

// lineDocument records cookie lines written to a jar document.
type lineDocument struct {
	*cookies.JarDocument
	lines []string
}

func (d *lineDocument) SetCookie(line string) error {
	d.lines = append(d.lines, line)
	return d.JarDocument.SetCookie(line)
}

func TestCookieStorage_WritesAttributes(t *testing.T) {
	jar, err := cookies.NewJarDocument("https://example.com/app/")
	require.NoError(t, err)
	doc := &lineDocument{JarDocument: jar}

	CookieStorage[int](WithDocument(doc)).SetValue("n", 1)
	require.Len(t, doc.lines, 1)
	assert.Equal(t, "n=1; expires=Fri, 31 Dec 9999 23:59:59 GMT; path=/", doc.lines[0])

	s := CookieStorage[int](WithDocument(doc), WithCookiePath("/app"), WithCookieSecure(), WithCookieMaxAge(time.Minute))
	s.SetValue("m", 2)
	assert.Equal(t, "m=2; max-age=60; path=/app; secure", doc.lines[1])

	s.DeleteValue("m")
	assert.Equal(t, "m=; expires=Thu, 01 Jan 1970 00:00:00 GMT; path=/app", doc.lines[2])
}

func TestCookieStorage_RawFallback(t *testing.T) {
	doc := newDocument(t)
	require.NoError(t, doc.SetCookie("legacy=hello%20world; path=/"))

	got, ok := CookieStorage[string](WithDocument(doc)).GetValue("legacy")
	require.True(t, ok)
	assert.Equal(t, "hello world", got)
}

func TestCookieStorage_Diagnostics(t *testing.T) {
	doc := newDocument(t)
	logger, logs := testLogger()
	s := CookieStorage[string](WithDocument(doc), WithLogger(logger))

	s.SetValue("expires", "x")
	assert.Contains(t, logs.String(), "code=P006")

	s.SetValue("\xff", "x")
	assert.Contains(t, logs.String(), "code=P002")

	require.NoError(t, doc.SetCookie("broken=%E0%A4%A; path=/"))
	_, ok := s.GetValue("broken")
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "code=P003")
}

func TestCookieStorage_Unavailable(t *testing.T) {
	logger, logs := testLogger()

	s := CookieStorage[int](WithDocument(nil), WithLogger(logger))
	s.SetValue("k", 1)
	_, ok := s.GetValue("k")
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "code=P001")
	assert.Contains(t, logs.String(), "backend=cookie")
}

func TestDatabaseStorage_GetNotifiesListeners(t *testing.T) {
	ctx := context.Background()
	s := DatabaseStorage[prefs](WithDatabase(newDatabase(t))).(*DatabaseAdapter[prefs])

	var got []prefs
	var mu sync.Mutex
	s.AddListener("prefs", func(p prefs) { mu.Lock(); got = append(got, p); mu.Unlock() })
	s.AddListener("prefs", func(p prefs) { mu.Lock(); got = append(got, p); mu.Unlock() })

	s.SetValue("prefs", prefs{Theme: "dark"})
	_, ok := s.GetValue("prefs")
	assert.False(t, ok, "database reads are asynchronous")

	require.NoError(t, s.Wait(ctx))
	mu.Lock()
	assert.Equal(t, []prefs{{Theme: "dark"}, {Theme: "dark"}}, got)
	mu.Unlock()
}

func TestDatabaseStorage_AbsentKeyIsSilent(t *testing.T) {
	ctx := context.Background()
	s := DatabaseStorage[int](WithDatabase(newDatabase(t))).(*DatabaseAdapter[int])
	s.AddListener("n", func(int) { t.Error("absent key notified") })

	s.GetValue("n")
	s.SetValue("n", 1)
	s.DeleteValue("n")
	s.GetValue("n")
	require.NoError(t, s.Wait(ctx))
}

func TestDatabaseStorage_NullValueNotifiesZero(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)
	_, _, err := db.Put(ctx, "p", []byte("null")).Wait(ctx)
	require.NoError(t, err)

	s := DatabaseStorage[*prefs](WithDatabase(db)).(*DatabaseAdapter[*prefs])
	calls := 0
	s.AddListener("p", func(p *prefs) {
		calls++
		assert.Nil(t, p)
	})
	s.GetValue("p")
	require.NoError(t, s.Wait(ctx))
	assert.Equal(t, 1, calls)
}

func TestDatabaseStorage_RemoveListener(t *testing.T) {
	ctx := context.Background()
	s := DatabaseStorage[int](WithDatabase(newDatabase(t))).(*DatabaseAdapter[int])

	var a, b int
	idA := s.AddListener("n", func(v int) { a = v })
	s.AddListener("n", func(v int) { b = v })
	s.RemoveListener("n", idA)

	s.SetValue("n", 9)
	s.GetValue("n")
	require.NoError(t, s.Wait(ctx))
	assert.Equal(t, 0, a)
	assert.Equal(t, 9, b)
}

func TestDatabaseStorage_ErrorHandler(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)
	require.NoError(t, db.Close())

	var mu sync.Mutex
	var ops []string
	s := DatabaseStorage[int](WithDatabase(db), WithErrorHandler(func(op, key string, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.ErrorIs(t, err, kvdb.ErrClosed)
		ops = append(ops, op+":"+key)
	})).(*DatabaseAdapter[int])

	s.SetValue("n", 1)
	s.GetValue("n")
	s.DeleteValue("n")
	require.NoError(t, s.Wait(ctx))

	mu.Lock()
	assert.Equal(t, []string{"put:n", "get:n", "delete:n"}, ops)
	mu.Unlock()
}

func TestDatabaseStorage_DefaultErrorHandlerLogs(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)
	require.NoError(t, db.Close())
	logger, logs := testLogger()

	s := DatabaseStorage[int](WithDatabase(db), WithLogger(logger)).(*DatabaseAdapter[int])
	s.SetValue("n", 1)
	require.NoError(t, s.Wait(ctx))
	assert.Contains(t, logs.String(), "code=P004")
	assert.Same(t, db, s.Database())
}

func TestDatabaseStorage_NilDatabase(t *testing.T) {
	logger, logs := testLogger()

	s := DatabaseStorage[int](WithDatabase(nil), WithLogger(logger))
	assert.Equal(t, ListenerID(0), s.AddListener("k", func(int) {}))
	s.RemoveListener("k", 0)
	_, ok := s.GetValue("k")
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "code=P001")
}

func TestNoopStorage(t *testing.T) {
	s := NoopStorage[string]()
	s.SetValue("k", "v")
	_, ok := s.GetValue("k")
	assert.False(t, ok)
	s.DeleteValue("k")

	su := NoopSelfUpdateStorage[string]()
	su.AddListener("k", func(string) { t.Error("noop notified") })
	su.SetValue("k", "v")
	v, ok := su.GetValue("k")
	assert.False(t, ok)
	assert.Empty(t, v)
	su.RemoveListener("k", 1)
}

func TestWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(reg))
	w := newWindow(t)

	s := LocalStorage[int](WithWindow(w), WithMetrics(m))
	s.SetValue("n", 1)
	s.GetValue("n")
	LocalStorage[int](WithWindow(nil), WithMetrics(m), WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]int{}
	for _, f := range families {
		counts[f.GetName()] = len(f.GetMetric())
	}
	assert.Equal(t, 2, counts["persist_operations_total"])
	assert.Equal(t, 1, counts["persist_fallbacks_total"])
}
