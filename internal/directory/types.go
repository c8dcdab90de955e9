package directory

import "time"

// User statuses reported by the managed directory.
const (
	UserStatusUnconfirmed         = "UNCONFIRMED"
	UserStatusConfirmed           = "CONFIRMED"
	UserStatusForceChangePassword = "FORCE_CHANGE_PASSWORD"
	UserStatusDisabled            = "DISABLED"
)

// Contact attributes the adapter understands when choosing a delivery
// medium for invitations and password resets.
const (
	AttrEmail = "email"
	AttrPhone = "phone_number"
)

// Delivery mediums for provider-side notifications.
const (
	DeliveryMediumEmail = "EMAIL"
	DeliveryMediumSMS   = "SMS"
)

// User is the normalized view of a directory user. It mirrors remote
// state transiently in responses and is never cached locally.
type User struct {
	ID         string            `json:"id"`
	Username   string            `json:"username"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Enabled    bool              `json:"enabled"`
	Status     string            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Group is the normalized view of a directory group. The name is also
// the identifier.
type Group struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Precedence  *int      `json:"precedence,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateUserInput describes a user to provision.
type CreateUserInput struct {
	Username          string            `json:"username"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	TemporaryPassword string            `json:"temporary_password,omitempty"`
}

// CreateGroupInput describes a group to provision.
type CreateGroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Precedence  *int   `json:"precedence,omitempty"`
}

// Page requests one page of a listing. A zero Limit means the provider
// default; Token resumes a previous listing.
type Page struct {
	Limit int
	Token string
}

// UserPage is one page of users plus the token for the next page.
type UserPage struct {
	Users     []User `json:"users"`
	NextToken string `json:"next_token,omitempty"`
}

// GroupPage is one page of groups plus the token for the next page.
type GroupPage struct {
	Groups    []Group `json:"groups"`
	NextToken string  `json:"next_token,omitempty"`
}

// deliveryMediums derives the notification channel from the contact
// attributes present. Email wins over phone when both are set.
func deliveryMediums(attrs map[string]string) []string {
	if attrs[AttrEmail] != "" {
		return []string{DeliveryMediumEmail}
	}
	if attrs[AttrPhone] != "" {
		return []string{DeliveryMediumSMS}
	}
	return nil
}
