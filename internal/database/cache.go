package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Namespace names.
const (
	NamespaceThumbnail = "thumbnail"
	NamespaceTitle     = "title"
	NamespaceVolume    = "volume"
)

// VolumeKey is the only key stored in the volume namespace.
const VolumeKey = "global"

// ErrQuotaExceeded is returned (wrapped in a StorageError) when a write would
// push the cache past its size limit.
var ErrQuotaExceeded = errors.New("cache quota exceeded")

// Store is a versioned key/value cache. Single-key operations are atomic.
type Store interface {
	Get(ctx context.Context, ns Namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, ns Namespace, key string, value []byte) error
}

// Namespace identifies a class of cached values and the format version they
// were written with.
type Namespace struct {
	Name    string
	Version int
}

func (n Namespace) String() string {
	return n.Name + "@" + strconv.Itoa(n.Version)
}

// PhysicalKey returns the storage key for key within ns.
func PhysicalKey(ns Namespace, key string) string {
	return ns.String() + ":" + key
}

// Namespaces is the set of namespaces used by one process.
type Namespaces struct {
	Thumbnail Namespace
	Title     Namespace
	Volume    Namespace
}

// NewNamespaces returns the namespace set for the given thumbnail format
// version. Versions below 1 are treated as 1.
func NewNamespaces(thumbnailVersion int) Namespaces {
	if thumbnailVersion < 1 {
		thumbnailVersion = 1
	}
	return Namespaces{
		Thumbnail: Namespace{Name: NamespaceThumbnail, Version: thumbnailVersion},
		Title:     Namespace{Name: NamespaceTitle, Version: 1},
		Volume:    Namespace{Name: NamespaceVolume, Version: 1},
	}
}

// StorageError reports a failed cache read or write.
type StorageError struct {
	Op        string
	Namespace Namespace
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Namespace, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
