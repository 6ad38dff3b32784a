//go:build sqlite

package storage

import "fmt"

const defaultStoreKind = "sqlite"

func newSQLiteStore(path string) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	return NewSQLiteStore(path), nil
}
