// Package sqldb implements the storage driver on top of database/sql for
// PostgreSQL (pgx), MySQL and SQLite.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/conduit-lang/activerecord/pkg/orm"
	"github.com/conduit-lang/activerecord/pkg/orm/schema"
	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// ErrNoCreatedID is returned when the database reported no id for a created record
var ErrNoCreatedID = errors.New("no created id available")

// Config holds database connection settings
type Config struct {
	Dialect         string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Driver is a database/sql backed orm.Driver
type Driver struct {
	db      *sql.DB
	dialect *Dialect
	logger  *zap.Logger
	created map[*orm.Model]value.Row
	mu      sync.Mutex
}

// Option configures a Driver
type Option func(*Driver)

// WithLogger sets the logger used for statement tracing
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Open connects to the configured database and verifies the connection
func Open(ctx context.Context, cfg Config, opts ...Option) (*Driver, error) {
	dialect, err := DialectFor(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect.Name, err)
	}

	return New(db, dialect, opts...), nil
}

// New wraps an open database handle
func New(db *sql.DB, dialect *Dialect, opts ...Option) *Driver {
	d := &Driver{
		db:      db,
		dialect: dialect,
		logger:  zap.NewNop(),
		created: make(map[*orm.Model]value.Row),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DB returns the underlying database handle
func (d *Driver) DB() *sql.DB { return d.db }

// Dialect returns the driver's SQL dialect
func (d *Driver) Dialect() *Dialect { return d.dialect }

// Close closes the database handle
func (d *Driver) Close() error { return d.db.Close() }

func (d *Driver) trace(stmt *statement) {
	d.logger.Debug("sql", zap.String("query", stmt.String()), zap.Int("args", len(stmt.args)))
}

// CreateModel implements orm.Driver
func (d *Driver) CreateModel(ctx context.Context, m *orm.Model, fields map[string]value.Value) (bool, error) {
	s := m.Type().Schema()
	stmt := newStatement(d.dialect).write("INSERT INTO ", d.dialect.Quote(s.Table()))

	columns := sortedKeys(fields)
	if len(columns) == 0 {
		stmt.write(" ", d.dialect.emptyInsert())
	} else {
		stmt.write(" (")
		for i, col := range columns {
			if i > 0 {
				stmt.write(", ")
			}
			stmt.write(d.dialect.Quote(col))
		}
		stmt.write(") VALUES (")
		for i, col := range columns {
			if i > 0 {
				stmt.write(", ")
			}
			if err := stmt.bind(fields[col]); err != nil {
				return false, err
			}
		}
		stmt.write(")")
	}

	ids := s.IDs()
	if d.dialect.Returning {
		stmt.write(" RETURNING ")
		for i, id := range ids {
			if i > 0 {
				stmt.write(", ")
			}
			stmt.write(d.dialect.Quote(id))
		}
		return d.insertReturning(ctx, m, s, stmt, ids, fields)
	}
	return d.insertExec(ctx, m, s, stmt, ids, fields)
}

func (d *Driver) insertReturning(ctx context.Context, m *orm.Model, s *schema.Schema, stmt *statement, ids []string, fields map[string]value.Value) (bool, error) {
	d.trace(stmt)
	raw := make([]any, len(ids))
	ptrs := make([]any, len(ids))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := d.db.QueryRowContext(ctx, stmt.String(), stmt.args...).Scan(ptrs...); err != nil {
		return false, ConvertError(err)
	}

	created := make(value.Row, len(ids))
	for i, id := range ids {
		if supplied(fields, id) {
			continue
		}
		v, err := fromDriver(s, id, raw[i])
		if err != nil {
			return false, err
		}
		created[id] = v
	}
	d.remember(m, created)
	return true, nil
}

func (d *Driver) insertExec(ctx context.Context, m *orm.Model, s *schema.Schema, stmt *statement, ids []string, fields map[string]value.Value) (bool, error) {
	d.trace(stmt)
	res, err := d.db.ExecContext(ctx, stmt.String(), stmt.args...)
	if err != nil {
		return false, ConvertError(err)
	}

	created := make(value.Row, len(ids))
	for _, id := range ids {
		if supplied(fields, id) {
			continue
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return false, fmt.Errorf("%w: %s: %v", ErrNoCreatedID, id, err)
		}
		created[id] = value.Int(lastID)
	}
	d.remember(m, created)
	return true, nil
}

// remember keeps the generated ids of m until GetCreatedID hands them out
func (d *Driver) remember(m *orm.Model, ids value.Row) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(ids) == 0 {
		delete(d.created, m)
		return
	}
	d.created[m] = ids
}

func supplied(fields map[string]value.Value, id string) bool {
	v, ok := fields[id]
	return ok && !v.IsNull()
}

// GetCreatedID implements orm.Driver
func (d *Driver) GetCreatedID(_ context.Context, m *orm.Model, idProperty string) (value.Value, error) {
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
	s := m.Type().Schema()
	stmt := newStatement(d.dialect).write("SELECT * FROM ", d.dialect.Quote(s.Table()))
	if err := stmt.whereKey(m.Key()); err != nil {
		return nil, false, err
	}
	stmt.write(" LIMIT 1")

	rows, err := d.query(ctx, s, stmt)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// UpdateModel implements orm.Driver
func (d *Driver) UpdateModel(ctx context.Context, m *orm.Model, fields map[string]value.Value) (bool, error) {
	if len(fields) == 0 {
		return true, nil
	}

	stmt := newStatement(d.dialect).write("UPDATE ", d.dialect.Quote(m.Type().Schema().Table()), " SET ")
	for i, col := range sortedKeys(fields) {
		if i > 0 {
			stmt.write(", ")
		}
		stmt.write(d.dialect.Quote(col), " = ")
		if err := stmt.bind(fields[col]); err != nil {
			return false, err
		}
	}
	if err := stmt.whereKey(m.Key()); err != nil {
		return false, err
	}
	return d.exec(ctx, stmt)
}

// DeleteModel implements orm.Driver
func (d *Driver) DeleteModel(ctx context.Context, m *orm.Model) (bool, error) {
	stmt := newStatement(d.dialect).write("DELETE FROM ", d.dialect.Quote(m.Type().Schema().Table()))
	if err := stmt.whereKey(m.Key()); err != nil {
		return false, err
	}
	return d.exec(ctx, stmt)
}

// QueryModels implements orm.Driver
func (d *Driver) QueryModels(ctx context.Context, q *orm.Query) ([]value.Row, error) {
	spec := q.Spec()
	stmt := newStatement(d.dialect).write("SELECT ", d.dialect.Quote(spec.Table()), ".*")
	stmt.from(spec)
	if err := stmt.where(spec); err != nil {
		return nil, err
	}
	stmt.orderBy(spec)
	stmt.page(spec)

	return d.query(ctx, spec.Type.Schema(), stmt)
}

// TotalRecords implements orm.Driver
func (d *Driver) TotalRecords(ctx context.Context, q *orm.Query) (int, error) {
	spec := q.Spec()
	stmt := newStatement(d.dialect).write("SELECT COUNT(*)")
	stmt.from(spec)
	if err := stmt.where(spec); err != nil {
		return 0, err
	}

	d.trace(stmt)
	var n int
	if err := d.db.QueryRowContext(ctx, stmt.String(), stmt.args...).Scan(&n); err != nil {
		return 0, ConvertError(err)
	}
	return n, nil
}

func (d *Driver) query(ctx context.Context, s *schema.Schema, stmt *statement) ([]value.Row, error) {
	d.trace(stmt)
	rows, err := d.db.QueryContext(ctx, stmt.String(), stmt.args...)
	if err != nil {
		return nil, ConvertError(err)
	}
	defer rows.Close()
	return scanRows(s, rows)
}

func (d *Driver) exec(ctx context.Context, stmt *statement) (bool, error) {
	d.trace(stmt)
	res, err := d.db.ExecContext(ctx, stmt.String(), stmt.args...)
	if err != nil {
		return false, ConvertError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
