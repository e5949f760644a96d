package storage

import (
	"encoding/json"
	"reflect"
)

func encode[T any](value T) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decode parses raw as JSON. When that fails and T can hold a string, raw
// itself is returned and err still reports the parse failure.
func decode[T any](raw string) (value T, ok bool, err error) {
	if err = json.Unmarshal([]byte(raw), &value); err == nil {
		return value, true, nil
	}
	if v, ok := rawValue[T](raw); ok {
		return v, true, err
	}
	var zero T
	return zero, false, err
}

// rawValue converts raw to T when T is a string kind or an interface that
// accepts a string.
func rawValue[T any](raw string) (T, bool) {
	if v, ok := any(raw).(T); ok {
		return v, true
	}
	var v T
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() == reflect.String {
		rv.SetString(raw)
		return v, true
	}
	return v, false
}
