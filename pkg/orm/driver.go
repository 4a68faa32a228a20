package orm

import (
	"context"

	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// Driver is the storage adapter behind every model type.
//
// Field values crossing this boundary are value.Value; the driver marshals
// them to and from the backing store's native representation, keyed off the
// property types of m.Type().Schema().
type Driver interface {
	// CreateModel inserts a record. A false return without error means the
	// store refused the insert.
	CreateModel(ctx context.Context, m *Model, fields map[string]value.Value) (bool, error)

	// GetCreatedID returns the generated value of an id property of the
	// record most recently created for m
	GetCreatedID(ctx context.Context, m *Model, idProperty string) (value.Value, error)

	// LoadModel fetches the record identified by m.Key(). The bool is false
	// when no such record exists.
	LoadModel(ctx context.Context, m *Model) (value.Row, bool, error)

	// UpdateModel writes fields to the record identified by m.Key()
	UpdateModel(ctx context.Context, m *Model, fields map[string]value.Value) (bool, error)

	// DeleteModel removes the record identified by m.Key()
	DeleteModel(ctx context.Context, m *Model) (bool, error)

	// QueryModels returns the raw rows matching q.Spec()
	QueryModels(ctx context.Context, q *Query) ([]value.Row, error)

	// TotalRecords counts the rows matching q.Spec(), ignoring limit and start
	TotalRecords(ctx context.Context, q *Query) (int, error)
}
