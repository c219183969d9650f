// Package storage is where exported dataset files end up.
package storage

import (
	"io"
	"time"
)

// Storage is an abstraction of a blob store (eg a directory or a GCS bucket).
// Names are slash-separated and relative to the root of the store.
type Storage interface {
	// When finished, you must close the WriteCloser.
	// The file is only guaranteed to exist once Close returns without error.
	WriteFile(name string) (io.WriteCloser, error)

	// When finished, you must close File.Reader
	ReadFile(name string) (*File, error)

	DeleteFile(name string) error

	// List the names of all files whose names start with prefix, in lexical order
	List(prefix string) ([]string, error)

	// Human readable location, for logs
	String() string
}

// File is an element in blob storage.
type File struct {
	Reader     io.ReadCloser
	ModifiedAt time.Time
	Size       int64
}

func WriteFile(s Storage, name string, content io.Reader) error {
	f, err := s.WriteFile(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, content)
	errClose := f.Close()
	if err != nil {
		return err
	}
	return errClose
}

func ReadFile(s Storage, name string) ([]byte, error) {
	f, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Reader.Close()
	return io.ReadAll(f.Reader)
}
