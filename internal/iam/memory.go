package iam

import (
	"context"
	"sort"
	"sync"
	"time"

	"idgate.org/internal/apperr"
)

const defaultListLimit = 100

// MemoryStore implements PermissionStore and AssignmentStore in memory.
// It backs tests and DSN-less development runs.
type MemoryStore struct {
	mu          sync.RWMutex
	perms       map[string]Permission
	assignments map[string]map[string]time.Time // roleID -> permission -> assigned at
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		perms:       make(map[string]Permission),
		assignments: make(map[string]map[string]time.Time),
	}
}

var (
	_ PermissionStore = (*MemoryStore)(nil)
	_ AssignmentStore = (*MemoryStore)(nil)
)

func (m *MemoryStore) Create(ctx context.Context, p Permission) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[p.Name]; ok {
		return Permission{}, apperr.New(apperr.KindPermissionExists, "iam.PermissionStore.Create", "permission %s already exists", p.Name)
	}
	m.perms[p.Name] = p
	return p, nil
}

func (m *MemoryStore) FindByName(ctx context.Context, name string) (Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.perms[name]
	if !ok {
		return Permission{}, apperr.New(apperr.KindPermissionNotFound, "iam.PermissionStore.FindByName", "permission %s not found", name)
	}
	return p, nil
}

func (m *MemoryStore) List(ctx context.Context, opts ListOptions) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.perms))
	for name := range m.perms {
		names = append(names, name)
	}
	sort.Strings(names)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	out := make([]Permission, 0, limit)
	for i := opts.Offset; i < len(names) && len(out) < limit; i++ {
		out = append(out, m.perms[names[i]])
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, p Permission) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[p.Name]; !ok {
		return Permission{}, apperr.New(apperr.KindPermissionNotFound, "iam.PermissionStore.Update", "permission %s not found", p.Name)
	}
	m.perms[p.Name] = p
	return p, nil
}

func (m *MemoryStore) Delete(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[name]; !ok {
		return false, nil
	}
	delete(m.perms, name)
	return true, nil
}

func (m *MemoryStore) Assign(ctx context.Context, roleID, permissionName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assignments[roleID] == nil {
		m.assignments[roleID] = make(map[string]time.Time)
	}
	if _, ok := m.assignments[roleID][permissionName]; !ok {
		m.assignments[roleID][permissionName] = time.Now().UTC()
	}
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, roleID, permissionName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assignments[roleID], permissionName)
	return nil
}

func (m *MemoryStore) RemoveAllForPermission(ctx context.Context, permissionName string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, perms := range m.assignments {
		if _, ok := perms[permissionName]; ok {
			delete(perms, permissionName)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) RolesForPermission(ctx context.Context, permissionName string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var roles []string
	for roleID, perms := range m.assignments {
		if _, ok := perms[permissionName]; ok {
			roles = append(roles, roleID)
		}
	}
	sort.Strings(roles)
	return roles, nil
}

func (m *MemoryStore) ListForRole(ctx context.Context, roleID string) ([]RoleAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	perms := m.assignments[roleID]
	out := make([]RoleAssignment, 0, len(perms))
	for name, at := range perms {
		out = append(out, RoleAssignment{RoleID: roleID, PermissionName: name, CreatedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PermissionName < out[j].PermissionName })
	return out, nil
}

// MemoryPolicyStore implements PolicyStore in memory.
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewMemoryPolicyStore returns an empty in-memory policy store.
func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{policies: make(map[string]Policy)}
}

var _ PolicyStore = (*MemoryPolicyStore)(nil)

func (m *MemoryPolicyStore) Create(ctx context.Context, p Policy) (Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[p.Name]; ok {
		return Policy{}, apperr.New(apperr.KindPolicyExists, "iam.PolicyStore.Create", "policy %s already exists", p.Name)
	}
	m.policies[p.Name] = p
	return p, nil
}

func (m *MemoryPolicyStore) FindByName(ctx context.Context, name string) (Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[name]
	if !ok {
		return Policy{}, apperr.New(apperr.KindResourceNotFound, "iam.PolicyStore.FindByName", "policy %s not found", name)
	}
	return p, nil
}

func (m *MemoryPolicyStore) List(ctx context.Context, opts ListOptions) ([]Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.policies))
	for name := range m.policies {
		names = append(names, name)
	}
	sort.Strings(names)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	out := make([]Policy, 0, limit)
	for i := opts.Offset; i < len(names) && len(out) < limit; i++ {
		out = append(out, m.policies[names[i]])
	}
	return out, nil
}

func (m *MemoryPolicyStore) Update(ctx context.Context, p Policy) (Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[p.Name]; !ok {
		return Policy{}, apperr.New(apperr.KindResourceNotFound, "iam.PolicyStore.Update", "policy %s not found", p.Name)
	}
	m.policies[p.Name] = p
	return p, nil
}

func (m *MemoryPolicyStore) Delete(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[name]; !ok {
		return false, nil
	}
	delete(m.policies, name)
	return true, nil
}
