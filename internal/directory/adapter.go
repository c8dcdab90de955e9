// Package directory wraps the remote managed directory behind a
// circuit breaker and a stable error taxonomy. Every method reflects
// current remote state; nothing is cached locally.
package directory

import (
	"context"
	"strings"
	"time"

	"idgate.org/internal/apperr"
	"idgate.org/internal/breaker"
	"idgate.org/internal/obs"
)

// OpKey is the breaker key guarding admin-plane directory calls.
// Distinct call classes get distinct keys so admin traffic cannot trip
// the circuit for other planes.
const OpKey = "directoryAdmin"

// Config carries the construction-time settings of the adapter.
type Config struct {
	Region   string
	Endpoint string
	Pool     string
}

// Adapter exposes one method per directory operation. Each method
// validates typed input, runs the remote call through the circuit
// breaker and funnels failures through the taxonomy.
type Adapter struct {
	provider Provider
	circuits *breaker.Registry
	pool     string
}

// NewAdapter wires a Provider behind a breaker registry.
func NewAdapter(p Provider, circuits *breaker.Registry, cfg Config) (*Adapter, error) {
	if p == nil {
		return nil, apperr.New(apperr.KindValidation, "directory.NewAdapter", "provider is required")
	}
	if circuits == nil {
		return nil, apperr.New(apperr.KindValidation, "directory.NewAdapter", "breaker registry is required")
	}
	if strings.TrimSpace(cfg.Pool) == "" {
		return nil, apperr.New(apperr.KindValidation, "directory.NewAdapter", "directory pool identifier is required")
	}
	return &Adapter{provider: p, circuits: circuits, pool: strings.TrimSpace(cfg.Pool)}, nil
}

// call guards a remote invocation, records metrics and logs the
// outcome. The returned error is already mapped.
func (a *Adapter) call(ctx context.Context, op, target string, fn func(context.Context) error) error {
	start := time.Now()
	err := a.circuits.Do(ctx, OpKey, fn)
	elapsed := time.Since(start)

	if err == nil {
		obs.ObserveDirectoryCall(op, "ok", elapsed)
		obs.Debug("directory call", obs.Fields{"op": op, "target": target, "outcome": "ok"})
		return nil
	}

	mapped := mapError(op, target, err)
	kind := apperr.KindOf(mapped)
	obs.ObserveDirectoryCall(op, kind.String(), elapsed)

	fields := obs.Fields{"op": op, "target": target, "outcome": kind.String(), "error": mapped.Error()}
	if kind == apperr.KindAuthorization {
		// Service credentials rejected by the provider: this is a
		// deployment misconfiguration, not a caller mistake.
		obs.Error("directory credentials rejected", fields)
	} else {
		obs.Warn("directory call failed", fields)
	}
	return mapped
}

// --- users ---

func (a *Adapter) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "directory.CreateUser"
	if err := validUsername(op, in.Username); err != nil {
		return User{}, err
	}
	if err := validAttributes(op, in.Attributes); err != nil {
		return User{}, err
	}
	req := CreateUserRequest{
		Username:          in.Username,
		Attributes:        in.Attributes,
		TemporaryPassword: in.TemporaryPassword,
		DeliveryMediums:   deliveryMediums(in.Attributes),
	}
	var out User
	err := a.call(ctx, op, in.Username, func(ctx context.Context) error {
		var callErr error
		out, callErr = a.provider.CreateUser(ctx, a.pool, req)
		return callErr
	})
	if err != nil {
		return User{}, err
	}
	return out, nil
}

// GetUser returns the user, or (nil, nil) when the directory has no
// such user. Absence is not an error here; every other operation
// raises a typed not-found.
func (a *Adapter) GetUser(ctx context.Context, username string) (*User, error) {
	const op = "directory.GetUser"
	if err := validUsername(op, username); err != nil {
		return nil, err
	}
	var out User
	err := a.call(ctx, op, username, func(ctx context.Context) error {
		var callErr error
		out, callErr = a.provider.GetUser(ctx, a.pool, username)
		return callErr
	})
	if err != nil {
		if absent(err) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (a *Adapter) UpdateUserAttributes(ctx context.Context, username string, attrs map[string]string) error {
	const op = "directory.UpdateUserAttributes"
	if err := validUsername(op, username); err != nil {
		return err
	}
	if len(attrs) == 0 {
		return apperr.New(apperr.KindValidation, op, "at least one attribute is required")
	}
	if err := validAttributes(op, attrs); err != nil {
		return err
	}
	return a.call(ctx, op, username, func(ctx context.Context) error {
		return a.provider.UpdateUserAttributes(ctx, a.pool, username, attrs)
	})
}

func (a *Adapter) DeleteUser(ctx context.Context, username string) error {
	const op = "directory.DeleteUser"
	if err := validUsername(op, username); err != nil {
		return err
	}
	return a.call(ctx, op, username, func(ctx context.Context) error {
		return a.provider.DeleteUser(ctx, a.pool, username)
	})
}

func (a *Adapter) EnableUser(ctx context.Context, username string) error {
	const op = "directory.EnableUser"
	if err := validUsername(op, username); err != nil {
		return err
	}
	return a.call(ctx, op, username, func(ctx context.Context) error {
		return a.provider.EnableUser(ctx, a.pool, username)
	})
}

func (a *Adapter) DisableUser(ctx context.Context, username string) error {
	const op = "directory.DisableUser"
	if err := validUsername(op, username); err != nil {
		return err
	}
	return a.call(ctx, op, username, func(ctx context.Context) error {
		return a.provider.DisableUser(ctx, a.pool, username)
	})
}

// ResetUserPassword initiates a provider-driven reset: the user gets a
// code over the derived delivery medium and must choose a new password.
func (a *Adapter) ResetUserPassword(ctx context.Context, username string) error {
	const op = "directory.ResetUserPassword"
	if err := validUsername(op, username); err != nil {
		return err
	}
	return a.call(ctx, op, username, func(ctx context.Context) error {
		return a.provider.ResetUserPassword(ctx, a.pool, username)
	})
}

// SetUserPassword sets the password directly. A permanent password
// confirms the account; a temporary one forces a change at next login.
func (a *Adapter) SetUserPassword(ctx context.Context, username, password string, permanent bool) error {
	const op = "directory.SetUserPassword"
	if err := validUsername(op, username); err != nil {
		return err
	}
	if password == "" {
		return apperr.New(apperr.KindValidation, op, "password is required")
	}
	return a.call(ctx, op, username, func(ctx context.Context) error {
		return a.provider.SetUserPassword(ctx, a.pool, username, password, permanent)
	})
}

func (a *Adapter) ListUsers(ctx context.Context, page Page) (UserPage, error) {
	const op = "directory.ListUsers"
	if err := validPage(op, page); err != nil {
		return UserPage{}, err
	}
	var out UserPage
	err := a.call(ctx, op, "", func(ctx context.Context) error {
		var callErr error
		out, callErr = a.provider.ListUsers(ctx, a.pool, page)
		return callErr
	})
	if err != nil {
		return UserPage{}, err
	}
	return out, nil
}

// --- groups ---

func (a *Adapter) CreateGroup(ctx context.Context, in CreateGroupInput) (Group, error) {
	const op = "directory.CreateGroup"
	if err := validGroupName(op, in.Name); err != nil {
		return Group{}, err
	}
	var out Group
	err := a.call(ctx, op, in.Name, func(ctx context.Context) error {
		var callErr error
		out, callErr = a.provider.CreateGroup(ctx, a.pool, in)
		return callErr
	})
	if err != nil {
		return Group{}, err
	}
	return out, nil
}

// GetGroup returns the group, or (nil, nil) when the directory has no
// such group; see GetUser.
func (a *Adapter) GetGroup(ctx context.Context, name string) (*Group, error) {
	const op = "directory.GetGroup"
	if err := validGroupName(op, name); err != nil {
		return nil, err
	}
	var out Group
	err := a.call(ctx, op, name, func(ctx context.Context) error {
		var callErr error
		out, callErr = a.provider.GetGroup(ctx, a.pool, name)
		return callErr
	})
	if err != nil {
		if absent(err) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (a *Adapter) DeleteGroup(ctx context.Context, name string) error {
	const op = "directory.DeleteGroup"
	if err := validGroupName(op, name); err != nil {
		return err
	}
	return a.call(ctx, op, name, func(ctx context.Context) error {
		return a.provider.DeleteGroup(ctx, a.pool, name)
	})
}

func (a *Adapter) ListGroups(ctx context.Context, page Page) (GroupPage, error) {
	const op = "directory.ListGroups"
	if err := validPage(op, page); err != nil {
		return GroupPage{}, err
	}
	var out GroupPage
	err := a.call(ctx, op, "", func(ctx context.Context) error {
		var callErr error
		out, callErr = a.provider.ListGroups(ctx, a.pool, page)
		return callErr
	})
	if err != nil {
		return GroupPage{}, err
	}
	return out, nil
}

// --- membership ---

func (a *Adapter) AddUserToGroup(ctx context.Context, username, group string) error {
	const op = "directory.AddUserToGroup"
	if err := validUsername(op, username); err != nil {
		return err
	}
	if err := validGroupName(op, group); err != nil {
		return err
	}
	return a.call(ctx, op, username+"/"+group, func(ctx context.Context) error {
		return a.provider.AddUserToGroup(ctx, a.pool, username, group)
	})
}

func (a *Adapter) RemoveUserFromGroup(ctx context.Context, username, group string) error {
	const op = "directory.RemoveUserFromGroup"
	if err := validUsername(op, username); err != nil {
		return err
	}
	if err := validGroupName(op, group); err != nil {
		return err
	}
	return a.call(ctx, op, username+"/"+group, func(ctx context.Context) error {
		return a.provider.RemoveUserFromGroup(ctx, a.pool, username, group)
	})
}

func (a *Adapter) ListGroupsForUser(ctx context.Context, username string, page Page) (GroupPage, error) {
	const op = "directory.ListGroupsForUser"
	if err := validUsername(op, username); err != nil {
		return GroupPage{}, err
	}
	if err := validPage(op, page); err != nil {
		return GroupPage{}, err
	}
	var out GroupPage
	err := a.call(ctx, op, username, func(ctx context.Context) error {
		var callErr error
		out, callErr = a.provider.ListGroupsForUser(ctx, a.pool, username, page)
		return callErr
	})
	if err != nil {
		return GroupPage{}, err
	}
	return out, nil
}

// --- input constraints ---

func validUsername(op, username string) error {
	if strings.TrimSpace(username) == "" {
		return apperr.New(apperr.KindValidation, op, "username is required")
	}
	return nil
}

func validGroupName(op, name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.New(apperr.KindValidation, op, "group name is required")
	}
	return nil
}

func validAttributes(op string, attrs map[string]string) error {
	for k := range attrs {
		if strings.TrimSpace(k) == "" {
			return apperr.New(apperr.KindValidation, op, "attribute names must be non-empty")
		}
	}
	return nil
}

func validPage(op string, page Page) error {
	if page.Limit < 0 {
		return apperr.New(apperr.KindValidation, op, "page limit must be a positive integer")
	}
	return nil
}
