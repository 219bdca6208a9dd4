// internal/store/store.go
package store

import "errors"

// Collection names. Each collection maps to a directory of one JSON file
// per record under the store's base directory.
const (
	CollectionUsers  = "users"
	CollectionTokens = "tokens"
	CollectionChecks = "checks"
)

var (
	// ErrNotFound is returned when no record file exists for the id.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned by Create when a record file for the
	// id is already present in the collection.
	ErrAlreadyExists = errors.New("record already exists")
)

// Store defines the interface for record persistence operations.
type Store interface {
	Create(collection, id string, v interface{}) error
	Read(collection, id string, v interface{}) error
	Update(collection, id string, v interface{}) error
	Delete(collection, id string) error
	List(collection string) ([]string, error)
}
