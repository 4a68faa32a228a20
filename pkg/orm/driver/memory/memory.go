// Package memory provides an in-process storage driver. It keeps one table of
// rows per model table, generates ids and evaluates queries without SQL,
// which makes it the driver of choice for tests and prototypes.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/activerecord/pkg/orm"
	"github.com/conduit-lang/activerecord/pkg/orm/schema"
	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

var (
	// ErrRawCondition is returned for raw where conditions, which need SQL
	ErrRawCondition = errors.New("memory driver cannot evaluate raw conditions")

	// ErrDuplicateKey is returned when inserting an id that already exists
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNoCreatedID is returned when no generated id is pending for a model
	ErrNoCreatedID = errors.New("no created id pending")
)

type table struct {
	rows []value.Row
	seq  int64
}

// Driver is an in-memory orm.Driver
type Driver struct {
	tables  map[string]*table
	created map[*orm.Model]value.Row
	logger  *zap.Logger
	mu      sync.RWMutex
}

// Option configures a Driver
type Option func(*Driver)

// WithLogger sets the driver's logger
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates an empty in-memory driver
func New(opts ...Option) *Driver {
	d := &Driver{
		tables:  make(map[string]*table),
		created: make(map[*orm.Model]value.Row),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Reset drops every table
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables = make(map[string]*table)
	d.created = make(map[*orm.Model]value.Row)
}

// Rows returns a copy of a table's rows in insertion order
func (d *Driver) Rows(tableName string) []value.Row {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tables[tableName]
	if !ok {
		return nil
	}
	out := make([]value.Row, len(t.rows))
	for i, row := range t.rows {
		out[i] = copyRow(row)
	}
	return out
}

func (d *Driver) table(name string) *table {
	t, ok := d.tables[name]
	if !ok {
		t = &table{}
		d.tables[name] = t
	}
	return t
}

// CreateModel implements orm.Driver
func (d *Driver) CreateModel(ctx context.Context, m *orm.Model, fields map[string]value.Value) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s := m.Type().Schema()

	d.mu.Lock()
	defer d.mu.Unlock()

	t := d.table(s.Table())
	row := copyRow(fields)
	ids := make(value.Row)
	generated := make(value.Row)

	for _, name := range s.IDs() {
		v, ok := row[name]
		if !ok || v.IsNull() {
			g, err := t.generate(s, name)
			if err != nil {
				return false, err
			}
			v = g
			row[name] = v
			generated[name] = v
		} else if v.Kind() == value.KindNumber && v.Int64() > t.seq {
			t.seq = v.Int64()
		}
		ids[name] = v
	}

	if t.find(ids) >= 0 {
		return false, fmt.Errorf("%w: %s %v", ErrDuplicateKey, s.Table(), ids)
	}

	t.rows = append(t.rows, row)
	// supplied ids are never asked for
	if len(generated) > 0 {
		d.created[m] = generated
	} else {
		delete(d.created, m)
	}

	d.logger.Debug("row inserted", zap.String("table", s.Table()), zap.Int("rows", len(t.rows)))
	return true, nil
}

func (t *table) generate(s *schema.Schema, name string) (value.Value, error) {
	prop, ok := s.Property(name)
	if !ok {
		return value.Null(), fmt.Errorf("id property %s is not declared", name)
	}
	switch prop.Type {
	case schema.TypeNumber:
		t.seq++
		return value.Int(t.seq), nil
	case schema.TypeString:
		return value.String(uuid.NewString()), nil
	default:
		return value.Null(), fmt.Errorf("cannot generate %s id %s", prop.Type, name)
	}
}

// GetCreatedID implements orm.Driver
func (d *Driver) GetCreatedID(ctx context.Context, m *orm.Model, idProperty string) (value.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids, ok := d.created[m]
	if !ok {
		return value.Null(), ErrNoCreatedID
	}
	v, ok := ids[idProperty]
	if !ok {
		return value.Null(), fmt.Errorf("%w: %s", ErrNoCreatedID, idProperty)
	}
	delete(ids, idProperty)
	if len(ids) == 0 {
		delete(d.created, m)
	}
	return v, nil
}

// LoadModel implements orm.Driver
func (d *Driver) LoadModel(ctx context.Context, m *orm.Model) (value.Row, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.tables[m.Type().Schema().Table()]
	if !ok {
		return nil, false, nil
	}
	i := t.find(m.Key())
	if i < 0 {
		return nil, false, nil
	}
	return copyRow(t.rows[i]), true, nil
}

// UpdateModel implements orm.Driver
func (d *Driver) UpdateModel(ctx context.Context, m *orm.Model, fields map[string]value.Value) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tables[m.Type().Schema().Table()]
	if !ok {
		return false, nil
	}
	i := t.find(m.Key())
	if i < 0 {
		return false, nil
	}
	for k, v := range fields {
		t.rows[i][k] = v
	}
	return true, nil
}

// DeleteModel implements orm.Driver
func (d *Driver) DeleteModel(ctx context.Context, m *orm.Model) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.tables[m.Type().Schema().Table()]
	if !ok {
		return false, nil
	}
	i := t.find(m.Key())
	if i < 0 {
		return false, nil
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	return true, nil
}

// QueryModels implements orm.Driver
func (d *Driver) QueryModels(ctx context.Context, q *orm.Query) ([]value.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec := q.Spec()
	rows, err := d.match(spec)
	if err != nil {
		return nil, err
	}

	sortRows(rows, spec)

	if spec.Start >= len(rows) {
		return []value.Row{}, nil
	}
	rows = rows[spec.Start:]
	if spec.Limit > 0 && len(rows) > spec.Limit {
		rows = rows[:spec.Limit]
	}

	out := make([]value.Row, len(rows))
	for i, r := range rows {
		out[i] = copyRow(r.main)
	}
	return out, nil
}

// TotalRecords implements orm.Driver
func (d *Driver) TotalRecords(ctx context.Context, q *orm.Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rows, err := d.match(q.Spec())
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (t *table) find(key value.Row) int {
	for i, row := range t.rows {
		if matchesKey(row, key) {
			return i
		}
	}
	return -1
}

func matchesKey(row, key value.Row) bool {
	if len(key) == 0 {
		return false
	}
	for name, v := range key {
		if v.IsNull() || !value.Equal(row[name], v) {
			return false
		}
	}
	return true
}

func copyRow(in map[string]value.Value) value.Row {
	out := make(value.Row, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
