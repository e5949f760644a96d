package storage

type noopStorage[T any] struct{}

func (noopStorage[T]) GetValue(string) (T, bool) {
	var zero T
	return zero, false
}

func (noopStorage[T]) SetValue(string, T) {}

func (noopStorage[T]) DeleteValue(string) {}

type noopSelfUpdateStorage[T any] struct {
	noopStorage[T]
}

func (noopSelfUpdateStorage[T]) AddListener(string, func(T)) ListenerID { return 0 }

func (noopSelfUpdateStorage[T]) RemoveListener(string, ListenerID) {}

// NoopStorage returns a Storage that stores nothing.
func NoopStorage[T any]() Storage[T] {
	return noopStorage[T]{}
}

// NoopSelfUpdateStorage returns a SelfUpdateStorage that stores nothing and
// never notifies.
func NoopSelfUpdateStorage[T any]() SelfUpdateStorage[T] {
	return noopSelfUpdateStorage[T]{}
}
