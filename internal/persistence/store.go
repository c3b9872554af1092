// Package persistence stores workflow invocation records.
//
// Two implementations are provided: an in-memory store for tests and
// short-lived processes, and a SQLite-backed store for durable history.
package persistence

import (
	"errors"

	"github.com/mkardel/flowgraph/pkg/api"
)

// ErrInvocationNotFound is returned when an invocation id is unknown.
var ErrInvocationNotFound = errors.New("invocation not found")

// InvocationStore handles storage of workflow invocation records.
type InvocationStore interface {
	// SaveInvocation inserts a new invocation record.
	SaveInvocation(inv *api.Invocation) error

	// UpdateInvocation replaces an existing record, matched by id.
	UpdateInvocation(inv *api.Invocation) error

	// GetInvocation returns the record with the given id.
	GetInvocation(id string) (*api.Invocation, error)

	// ListInvocations returns the records matching filter, ordered by
	// start time.
	ListInvocations(filter api.InvocationFilter) ([]*api.Invocation, error)
}
