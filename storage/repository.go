// Package storage provides the storage abstraction layer for signhand records.
//
// Records are opaque, versioned byte payloads addressed by a namespace, a
// record type and a record ID. Higher layers serialise their entities as JSON
// and rely on PutCAS and Batch for optimistic concurrency.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrCASFailed is returned when a compare-and-swap version check fails.
	ErrCASFailed = errors.New("CAS version mismatch")
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNamespaceNotFound is returned when a namespace holds no records at all.
	ErrNamespaceNotFound = errors.New("namespace not found")
)

// BatchTx provides writes within an atomic transaction.
// The namespace is scoped to the batch, so methods don't require it.
type BatchTx interface {
	Get(recordType string, recordID string) (*Record, error)
	Put(recordType string, recordID string, record *Record) error
	PutCAS(recordType string, recordID string, expectedVersion uint64, record *Record) error
	Delete(recordType string, recordID string) error
}

// Repository defines the interface for versioned record storage.
type Repository interface {
	Put(ctx context.Context, namespace, recordType, recordID string, record *Record) error
	Get(ctx context.Context, namespace, recordType, recordID string) (*Record, error)
	List(ctx context.Context, namespace, recordType string) ([]string, error)
	Delete(ctx context.Context, namespace, recordType, recordID string) error
	// PutCAS writes record only if the stored version equals expectedVersion.
	// An expectedVersion of 0 means the record must not exist yet.
	PutCAS(ctx context.Context, namespace, recordType, recordID string, expectedVersion uint64, record *Record) error
	// Batch executes fn atomically. If fn returns an error no writes persist.
	Batch(ctx context.Context, namespace string, fn func(tx BatchTx) error) error
}
