// Package errors provides the coded diagnostics emitted by persist.
//
// Every warning the storage adapters log and every error the CLI prints
// carries a stable code from the registry:
//
//	P001  storage backend unavailable
//	P002  value could not be encoded
//	P003  value could not be decoded
//	P004  database transaction failed
//	P005  storage area rejected a write
//	P006  cookie rejected
//	P010  invalid configuration
//
// Adapters never return these errors to their callers; they log them and
// degrade. The CLI formats them for the terminal:
//
//	err := errors.New("P010").WithDetail("port must be positive")
//	errors.FprintError(os.Stderr, err)
package errors
