package orm

import (
	"context"
	"sync"

	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// mockDriver is a Driver whose methods delegate to optional funcs and record
// every call
type mockDriver struct {
	CreateModelFunc  func(ctx context.Context, m *Model, fields map[string]value.Value) (bool, error)
	GetCreatedIDFunc func(ctx context.Context, m *Model, idProperty string) (value.Value, error)
	LoadModelFunc    func(ctx context.Context, m *Model) (value.Row, bool, error)
	UpdateModelFunc  func(ctx context.Context, m *Model, fields map[string]value.Value) (bool, error)
	DeleteModelFunc  func(ctx context.Context, m *Model) (bool, error)
	QueryModelsFunc  func(ctx context.Context, q *Query) ([]value.Row, error)
	TotalRecordsFunc func(ctx context.Context, q *Query) (int, error)

	mu    sync.Mutex
	calls map[string]int
}

func (d *mockDriver) record(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.calls == nil {
		d.calls = make(map[string]int)
	}
	d.calls[name]++
}

func (d *mockDriver) Calls(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[name]
}

func (d *mockDriver) CreateModel(ctx context.Context, m *Model, fields map[string]value.Value) (bool, error) {
	d.record("CreateModel")
	if d.CreateModelFunc != nil {
		return d.CreateModelFunc(ctx, m, fields)
	}
	return true, nil
}

func (d *mockDriver) GetCreatedID(ctx context.Context, m *Model, idProperty string) (value.Value, error) {
	d.record("GetCreatedID")
	if d.GetCreatedIDFunc != nil {
		return d.GetCreatedIDFunc(ctx, m, idProperty)
	}
	return value.Int(1), nil
}

func (d *mockDriver) LoadModel(ctx context.Context, m *Model) (value.Row, bool, error) {
	d.record("LoadModel")
	if d.LoadModelFunc != nil {
		return d.LoadModelFunc(ctx, m)
	}
	return m.Key(), true, nil
}

func (d *mockDriver) UpdateModel(ctx context.Context, m *Model, fields map[string]value.Value) (bool, error) {
	d.record("UpdateModel")
	if d.UpdateModelFunc != nil {
		return d.UpdateModelFunc(ctx, m, fields)
	}
	return true, nil
}

func (d *mockDriver) DeleteModel(ctx context.Context, m *Model) (bool, error) {
	d.record("DeleteModel")
	if d.DeleteModelFunc != nil {
		return d.DeleteModelFunc(ctx, m)
	}
	return true, nil
}

func (d *mockDriver) QueryModels(ctx context.Context, q *Query) ([]value.Row, error) {
	d.record("QueryModels")
	if d.QueryModelsFunc != nil {
		return d.QueryModelsFunc(ctx, q)
	}
	return nil, nil
}

func (d *mockDriver) TotalRecords(ctx context.Context, q *Query) (int, error) {
	d.record("TotalRecords")
	if d.TotalRecordsFunc != nil {
		return d.TotalRecordsFunc(ctx, q)
	}
	return 0, nil
}
