package storage

import (
	"golang.org/x/mod/sumdb"
)

// ErrWriteConflict reports a key held by another writer.
var ErrWriteConflict = sumdb.ErrWriteConflict

type Getter interface {
	Get(key string) ([]byte, error)
}

type Lister interface {
	List() ([]string, error)
}

type Putter interface {
	Put(key string, data []byte) error
}

type Deleter interface {
	Delete(key string) error
}

// Reader is what restoring a snapshot needs.
type Reader interface {
	Lister
	Getter
}

type Storage interface {
	Getter
	Lister
	Putter
	Deleter
}
