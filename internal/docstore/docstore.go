// Package docstore defines the schemaless per-document storage contract the
// core services are written against. Documents are JSON values grouped into
// named collections; nested sub-collections are path segments, e.g.
// "contests/{id}/answers". Implementations live under internal/infra.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Update for a missing document.
var ErrNotFound = errors.New("document not found")

type deleteField struct{}

// DeleteField is a sentinel value for Update: assigning it to a field
// removes the field from the document instead of writing a value.
var DeleteField = deleteField{}

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpIn  Op = "in"
)

// Filter constrains a query on a top-level document field.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order specifies a sort key. Multiple keys apply in declaration order.
type Order struct {
	Field string
	Desc  bool
}

// Query describes filtering, ordering, and pagination for a collection read.
// The zero value matches every document.
type Query struct {
	Filters []Filter
	Orders  []Order
	Limit   int
	Offset  int
}

// Where appends a filter and returns the extended query.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(q.Filters, Filter{Field: field, Op: op, Value: value})
	return q
}

// OrderBy appends a sort key and returns the extended query.
func (q Query) OrderBy(field string, desc bool) Query {
	q.Orders = append(q.Orders, Order{Field: field, Desc: desc})
	return q
}

// WithLimit caps the number of returned documents.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// WithOffset skips the first n matching documents.
func (q Query) WithOffset(n int) Query {
	q.Offset = n
	return q
}

// Batch stages writes for an atomic multi-document commit. Operations apply
// in the order they were staged; an Update of a missing document fails the
// whole batch.
type Batch interface {
	Set(collection, id string, doc any)
	Update(collection, id string, fields map[string]any)
	Delete(collection, id string)
}

// Store is the persistence substrate. All documents must marshal to JSON.
// Query's out argument must be a pointer to a slice of the document type.
type Store interface {
	Get(ctx context.Context, collection, id string, out any) error
	Set(ctx context.Context, collection, id string, doc any) error
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query, out any) error
	// QueryGroup runs a query across every collection whose path ends with
	// the given leaf segment, e.g. leaf "answers" spans all
	// "contests/{id}/answers" sub-collections.
	QueryGroup(ctx context.Context, leaf string, q Query, out any) error
	// RunBatch invokes fn with a fresh batch and commits the staged writes
	// atomically. If fn returns an error nothing is written.
	RunBatch(ctx context.Context, fn func(b Batch) error) error
}
