package directory

import "context"

// Provider failure codes, the fixed versioned vocabulary of the remote
// directory service.
const (
	CodeUserNotFound     = "user-not-found"
	CodeResourceNotFound = "resource-not-found"
	CodeGroupExists      = "group-exists"
	CodeUsernameExists   = "username-exists"
	CodeInvalidPassword  = "invalid-password"
	CodeInvalidParameter = "invalid-parameter"
	CodeTooManyRequests  = "too-many-requests"
	CodeNotAuthorized    = "not-authorized"
	CodeInternal         = "internal-error"
)

// ProviderError is the typed failure condition returned by a Provider.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// CreateUserRequest is the provider-level shape of user provisioning.
type CreateUserRequest struct {
	Username          string
	Attributes        map[string]string
	TemporaryPassword string
	DeliveryMediums   []string
}

// Provider is the remote managed directory. Implementations return
// *ProviderError for every failure drawn from the code vocabulary
// above; the pool parameter identifies the directory tenant.
//
// The Adapter is the only caller; nothing above it sees provider
// errors.
type Provider interface {
	CreateUser(ctx context.Context, pool string, req CreateUserRequest) (User, error)
	GetUser(ctx context.Context, pool, username string) (User, error)
	UpdateUserAttributes(ctx context.Context, pool, username string, attrs map[string]string) error
	DeleteUser(ctx context.Context, pool, username string) error
	EnableUser(ctx context.Context, pool, username string) error
	DisableUser(ctx context.Context, pool, username string) error
	ResetUserPassword(ctx context.Context, pool, username string) error
	SetUserPassword(ctx context.Context, pool, username, password string, permanent bool) error
	ListUsers(ctx context.Context, pool string, page Page) (UserPage, error)

	CreateGroup(ctx context.Context, pool string, in CreateGroupInput) (Group, error)
	GetGroup(ctx context.Context, pool, name string) (Group, error)
	DeleteGroup(ctx context.Context, pool, name string) error
	ListGroups(ctx context.Context, pool string, page Page) (GroupPage, error)

	AddUserToGroup(ctx context.Context, pool, username, group string) error
	RemoveUserFromGroup(ctx context.Context, pool, username, group string) error
	ListGroupsForUser(ctx context.Context, pool, username string, page Page) (GroupPage, error)
}
