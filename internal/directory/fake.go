package directory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

const defaultPageLimit = 50

// Fake is an in-memory Provider for tests and for running the API
// without a remote directory. It mimics the provider's status
// transitions, pagination and failure vocabulary.
type Fake struct {
	mu          sync.Mutex
	users       map[string]*User
	groups      map[string]*Group
	memberships map[string]map[string]struct{}
	seq         int
	now         func() time.Time

	failErr   error
	failCount int
}

// NewFake returns an empty in-memory directory.
func NewFake() *Fake {
	return &Fake{
		users:       make(map[string]*User),
		groups:      make(map[string]*Group),
		memberships: make(map[string]map[string]struct{}),
		now:         time.Now,
	}
}

var _ Provider = (*Fake)(nil)

// SetClock overrides the time source.
func (f *Fake) SetClock(fn func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fn != nil {
		f.now = fn
	}
}

// FailWith makes the next n calls return err before touching state.
func (f *Fake) FailWith(err error, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
	f.failCount = n
}

func (f *Fake) injected() error {
	if f.failCount > 0 {
		f.failCount--
		return f.failErr
	}
	return nil
}

func (f *Fake) CreateUser(ctx context.Context, pool string, req CreateUserRequest) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return User{}, err
	}
	if _, ok := f.users[req.Username]; ok {
		return User{}, &ProviderError{Code: CodeUsernameExists, Message: fmt.Sprintf("user %s already exists", req.Username)}
	}
	status := UserStatusConfirmed
	if req.TemporaryPassword != "" {
		status = UserStatusForceChangePassword
	}
	f.seq++
	ts := f.now()
	u := &User{
		ID:         fmt.Sprintf("fake-%06d", f.seq),
		Username:   req.Username,
		Attributes: copyAttrs(req.Attributes),
		Enabled:    true,
		Status:     status,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	f.users[req.Username] = u
	return copyUser(u), nil
}

func (f *Fake) GetUser(ctx context.Context, pool, username string) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return User{}, err
	}
	u, ok := f.users[username]
	if !ok {
		return User{}, &ProviderError{Code: CodeUserNotFound, Message: fmt.Sprintf("no user %s", username)}
	}
	return copyUser(u), nil
}

func (f *Fake) UpdateUserAttributes(ctx context.Context, pool, username string, attrs map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return err
	}
	u, ok := f.users[username]
	if !ok {
		return &ProviderError{Code: CodeUserNotFound, Message: fmt.Sprintf("no user %s", username)}
	}
	if u.Attributes == nil {
		u.Attributes = make(map[string]string, len(attrs))
	}
	for k, v := range attrs {
		u.Attributes[k] = v
	}
	u.UpdatedAt = f.now()
	return nil
}

func (f *Fake) DeleteUser(ctx context.Context, pool, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return err
	}
	if _, ok := f.users[username]; !ok {
		return &ProviderError{Code: CodeUserNotFound, Message: fmt.Sprintf("no user %s", username)}
	}
	delete(f.users, username)
	delete(f.memberships, username)
	return nil
}

func (f *Fake) EnableUser(ctx context.Context, pool, username string) error {
	return f.setEnabled(username, true)
}

func (f *Fake) DisableUser(ctx context.Context, pool, username string) error {
	return f.setEnabled(username, false)
}

func (f *Fake) setEnabled(username string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return err
	}
	u, ok := f.users[username]
	if !ok {
		return &ProviderError{Code: CodeUserNotFound, Message: fmt.Sprintf("no user %s", username)}
	}
	u.Enabled = enabled
	if enabled {
		u.Status = UserStatusConfirmed
	} else {
		u.Status = UserStatusDisabled
	}
	u.UpdatedAt = f.now()
	return nil
}

func (f *Fake) ResetUserPassword(ctx context.Context, pool, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return err
	}
	u, ok := f.users[username]
	if !ok {
		return &ProviderError{Code: CodeUserNotFound, Message: fmt.Sprintf("no user %s", username)}
	}
	if u.Attributes[AttrEmail] == "" && u.Attributes[AttrPhone] == "" {
		return &ProviderError{Code: CodeInvalidParameter, Message: "user has no verified contact attribute for delivery"}
	}
	u.Status = UserStatusForceChangePassword
	u.UpdatedAt = f.now()
	return nil
}

func (f *Fake) SetUserPassword(ctx context.Context, pool, username, password string, permanent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return err
	}
	u, ok := f.users[username]
	if !ok {
		return &ProviderError{Code: CodeUserNotFound, Message: fmt.Sprintf("no user %s", username)}
	}
	if len(password) < 8 {
		return &ProviderError{Code: CodeInvalidPassword, Message: "password does not conform to policy: minimum length 8"}
	}
	if permanent {
		u.Status = UserStatusConfirmed
	} else {
		u.Status = UserStatusForceChangePassword
	}
	u.UpdatedAt = f.now()
	return nil
}

func (f *Fake) ListUsers(ctx context.Context, pool string, page Page) (UserPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return UserPage{}, err
	}
	names := make([]string, 0, len(f.users))
	for name := range f.users {
		names = append(names, name)
	}
	sort.Strings(names)

	offset, err := parseToken(page.Token)
	if err != nil {
		return UserPage{}, err
	}
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	var out UserPage
	for i := offset; i < len(names) && len(out.Users) < limit; i++ {
		out.Users = append(out.Users, copyUser(f.users[names[i]]))
	}
	if offset+len(out.Users) < len(names) {
		out.NextToken = strconv.Itoa(offset + len(out.Users))
	}
	return out, nil
}

func (f *Fake) CreateGroup(ctx context.Context, pool string, in CreateGroupInput) (Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return Group{}, err
	}
	if _, ok := f.groups[in.Name]; ok {
		return Group{}, &ProviderError{Code: CodeGroupExists, Message: fmt.Sprintf("group %s already exists", in.Name)}
	}
	ts := f.now()
	g := &Group{
		Name:        in.Name,
		Description: in.Description,
		Precedence:  in.Precedence,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	f.groups[in.Name] = g
	return *g, nil
}

func (f *Fake) GetGroup(ctx context.Context, pool, name string) (Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return Group{}, err
	}
	g, ok := f.groups[name]
	if !ok {
		return Group{}, &ProviderError{Code: CodeResourceNotFound, Message: fmt.Sprintf("no group %s", name)}
	}
	return *g, nil
}

func (f *Fake) DeleteGroup(ctx context.Context, pool, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return err
	}
	if _, ok := f.groups[name]; !ok {
		return &ProviderError{Code: CodeResourceNotFound, Message: fmt.Sprintf("no group %s", name)}
	}
	delete(f.groups, name)
	for _, members := range f.memberships {
		delete(members, name)
	}
	return nil
}

func (f *Fake) ListGroups(ctx context.Context, pool string, page Page) (GroupPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return GroupPage{}, err
	}
	names := make([]string, 0, len(f.groups))
	for name := range f.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return f.groupPage(names, page)
}

func (f *Fake) AddUserToGroup(ctx context.Context, pool, username, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return err
	}
	if _, ok := f.users[username]; !ok {
		return &ProviderError{Code: CodeUserNotFound, Message: fmt.Sprintf("no user %s", username)}
	}
	if _, ok := f.groups[group]; !ok {
		return &ProviderError{Code: CodeResourceNotFound, Message: fmt.Sprintf("no group %s", group)}
	}
	if f.memberships[username] == nil {
		f.memberships[username] = make(map[string]struct{})
	}
	f.memberships[username][group] = struct{}{}
	return nil
}

func (f *Fake) RemoveUserFromGroup(ctx context.Context, pool, username, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return err
	}
	if _, ok := f.users[username]; !ok {
		return &ProviderError{Code: CodeUserNotFound, Message: fmt.Sprintf("no user %s", username)}
	}
	if _, ok := f.groups[group]; !ok {
		return &ProviderError{Code: CodeResourceNotFound, Message: fmt.Sprintf("no group %s", group)}
	}
	delete(f.memberships[username], group)
	return nil
}

func (f *Fake) ListGroupsForUser(ctx context.Context, pool, username string, page Page) (GroupPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected(); err != nil {
		return GroupPage{}, err
	}
	if _, ok := f.users[username]; !ok {
		return GroupPage{}, &ProviderError{Code: CodeUserNotFound, Message: fmt.Sprintf("no user %s", username)}
	}
	names := make([]string, 0, len(f.memberships[username]))
	for name := range f.memberships[username] {
		names = append(names, name)
	}
	sort.Strings(names)
	return f.groupPage(names, page)
}

func (f *Fake) groupPage(names []string, page Page) (GroupPage, error) {
	offset, err := parseToken(page.Token)
	if err != nil {
		return GroupPage{}, err
	}
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	var out GroupPage
	for i := offset; i < len(names) && len(out.Groups) < limit; i++ {
		out.Groups = append(out.Groups, *f.groups[names[i]])
	}
	if offset+len(out.Groups) < len(names) {
		out.NextToken = strconv.Itoa(offset + len(out.Groups))
	}
	return out, nil
}

func parseToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, &ProviderError{Code: CodeInvalidParameter, Message: "malformed pagination token"}
	}
	return offset, nil
}

func copyUser(u *User) User {
	out := *u
	out.Attributes = copyAttrs(u.Attributes)
	return out
}

func copyAttrs(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
