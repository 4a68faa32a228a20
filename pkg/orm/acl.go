package orm

import (
	"context"

	"go.uber.org/zap"

	"github.com/conduit-lang/activerecord/pkg/orm/hooks"
	"github.com/conduit-lang/activerecord/pkg/orm/validation"
)

// ACLPriority is the listener priority of the access control gate, above
// any application listener
const ACLPriority = 1000

// Permissions checked by the access control gate
const (
	PermissionCreate = "create"
	PermissionEdit   = "edit"
	PermissionDelete = "delete"
)

// Requester is the identity on whose behalf an operation runs
type Requester interface {
	RequesterID() string
}

// RequesterFunc adapts a plain identifier to a Requester
type RequesterFunc func() string

// RequesterID implements Requester
func (f RequesterFunc) RequesterID() string { return f() }

type requesterKey struct{}

// WithRequester attaches a requester to a context
func WithRequester(ctx context.Context, r Requester) context.Context {
	return context.WithValue(ctx, requesterKey{}, r)
}

// RequesterFrom returns the requester carried by a context, nil if none
func RequesterFrom(ctx context.Context) Requester {
	r, _ := ctx.Value(requesterKey{}).(Requester)
	return r
}

func (t *ModelType) registerPermissionListeners() {
	gate := func(permission string) hooks.Listener[*Model] {
		return func(e *hooks.Event[*Model]) {
			m := e.Subject
			if m.Can(e, permission, RequesterFrom(e)) {
				return
			}
			m.errors.Add(permission, validation.CodeNoPermission, map[string]any{"permission": permission})
			e.StopPropagation()
		}
	}

	t.events.On(hooks.Creating, ACLPriority, gate(PermissionCreate))
	t.events.On(hooks.Updating, ACLPriority, gate(PermissionEdit))
	t.events.On(hooks.Deleting, ACLPriority, gate(PermissionDelete))
}

// DisablePermissions makes every permission check pass for this instance
func (m *Model) DisablePermissions() *Model {
	m.permissionsDisabled = true
	return m
}

// EnablePermissions restores permission checks for this instance
func (m *Model) EnablePermissions() *Model {
	m.permissionsDisabled = false
	return m
}

// PermissionsDisabled reports whether permission checks are bypassed
func (m *Model) PermissionsDisabled() bool {
	return m.permissionsDisabled
}

// Can reports whether the requester holds a permission on this record.
// Decisions are memoized per permission and requester. Types without a
// permission hook allow everything.
func (m *Model) Can(ctx context.Context, permission string, requester Requester) bool {
	if m.permissionsDisabled || m.typ.permission == nil {
		return true
	}

	requesterID := ""
	if requester != nil {
		requesterID = requester.RequesterID()
	}
	key := permission + "\x00" + requesterID

	if allowed, ok := m.permissionCache[key]; ok {
		return allowed
	}

	allowed := m.typ.permission(ctx, m, permission, requester)
	if m.permissionCache == nil {
		m.permissionCache = make(map[string]bool)
	}
	m.permissionCache[key] = allowed

	if !allowed {
		m.typ.logger.Debug("permission denied",
			zap.String("permission", permission),
			zap.String("requester", requesterID),
		)
	}
	return allowed
}
