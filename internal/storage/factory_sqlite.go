//go:build sqlite

package storage

// DefaultStoreKind is the backend used when none is configured.
func DefaultStoreKind() string { return BackendSQLite }

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}
