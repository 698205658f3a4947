package storage

import "fmt"

// Store backends selectable by name, shared with the CLI's -store flag.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// NewStore builds the named backend. An empty kind selects the in-memory
// store; the sqlite backend is only available in builds carrying the sqlite
// tag.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend %q (want %s or %s)", kind, BackendMemory, BackendSQLite)
	}
}

// CloseIfSupported closes backends that hold external resources and is a
// no-op for the rest.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
