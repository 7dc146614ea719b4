package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/agusx1211/mailflow/internal/appstate"
	"github.com/agusx1211/mailflow/pkg/protocol"
)

// ErrDeleteSelf is returned when an admin tries to delete their own account
// through the user administration.
var ErrDeleteSelf = errors.New("you cannot delete your own account here")

// UsersAPI is the user-facing part of the API client.
type UsersAPI interface {
	CurrentUser(ctx context.Context) (protocol.UserPublic, error)
	UpdateMe(ctx context.Context, in protocol.UserUpdateMe) (protocol.UserPublic, error)
	UpdatePassword(ctx context.Context, in protocol.UpdatePassword) error
	DeleteMe(ctx context.Context) error
	Signup(ctx context.Context, in protocol.UserRegister) (protocol.UserPublic, error)
	ListUsers(ctx context.Context, skip, limit int) (protocol.UsersPublic, error)
	CreateUser(ctx context.Context, in protocol.UserCreate) (protocol.UserPublic, error)
	GetUser(ctx context.Context, id string) (protocol.UserPublic, error)
	UpdateUser(ctx context.Context, id string, in protocol.UserUpdate) (protocol.UserPublic, error)
	DeleteUser(ctx context.Context, id string) error
}

// ItemsAPI is the item part of the API client.
type ItemsAPI interface {
	ListItems(ctx context.Context, skip, limit int) (protocol.ItemsPublic, error)
	CreateItem(ctx context.Context, in protocol.ItemCreate) (protocol.ItemPublic, error)
	GetItem(ctx context.Context, id string) (protocol.ItemPublic, error)
	UpdateItem(ctx context.Context, id string, in protocol.ItemUpdate) (protocol.ItemPublic, error)
	DeleteItem(ctx context.Context, id string) error
}

// Users runs the account and user-admin flows.
type Users struct {
	api   UsersAPI
	cache *appstate.Cache
}

func NewUsers(api UsersAPI, cache *appstate.Cache) *Users {
	if cache == nil {
		cache = appstate.New(0)
	}
	return &Users{api: api, cache: cache}
}

// Me returns the logged-in user, cached under currentUser.
func (s *Users) Me(ctx context.Context) (protocol.UserPublic, error) {
	return appstate.Fetch(ctx, s.cache, "currentUser", []string{appstate.TagCurrentUser}, s.api.CurrentUser)
}

// List returns page n of users.
func (s *Users) List(ctx context.Context, n int) (Page[protocol.UserPublic], error) {
	if n < 1 {
		n = 1
	}
	key := fmt.Sprintf("users:%d", n)
	res, err := appstate.Fetch(ctx, s.cache, key, []string{appstate.TagUsers}, func(ctx context.Context) (protocol.UsersPublic, error) {
		return s.api.ListUsers(ctx, Skip(n), PageSize)
	})
	if err != nil {
		return Page[protocol.UserPublic]{}, err
	}
	return Page[protocol.UserPublic]{Number: n, Rows: res.Data, Count: res.Count}, nil
}

func (s *Users) Get(ctx context.Context, id string) (protocol.UserPublic, error) {
	return s.api.GetUser(ctx, id)
}

func (s *Users) Create(ctx context.Context, f UserForm) (protocol.UserPublic, error) {
	if err := f.ValidateCreate(); err != nil {
		return protocol.UserPublic{}, err
	}
	u, err := s.api.CreateUser(ctx, f.CreatePayload())
	if err != nil {
		return protocol.UserPublic{}, err
	}
	s.cache.Invalidate(appstate.TagUsers)
	return u, nil
}

func (s *Users) Update(ctx context.Context, id string, f UserForm) (protocol.UserPublic, error) {
	if err := f.ValidateUpdate(); err != nil {
		return protocol.UserPublic{}, err
	}
	u, err := s.api.UpdateUser(ctx, id, f.UpdatePayload())
	// The list may be stale even when the update failed half-way.
	s.cache.Invalidate(appstate.TagUsers)
	if err != nil {
		return protocol.UserPublic{}, err
	}
	return u, nil
}

// Delete removes another user. Deleting the logged-in account goes through
// DeleteMe instead.
func (s *Users) Delete(ctx context.Context, id string) error {
	me, err := s.Me(ctx)
	if err != nil {
		return err
	}
	if me.ID == id {
		return ErrDeleteSelf
	}
	if err := s.api.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(appstate.TagUsers)
	return nil
}

func (s *Users) Signup(ctx context.Context, f SignupForm) (protocol.UserPublic, error) {
	if err := f.Validate(); err != nil {
		return protocol.UserPublic{}, err
	}
	return s.api.Signup(ctx, f.Payload())
}

func (s *Users) UpdateMe(ctx context.Context, f ProfileForm) (protocol.UserPublic, error) {
	if err := f.Validate(); err != nil {
		return protocol.UserPublic{}, err
	}
	u, err := s.api.UpdateMe(ctx, f.Payload())
	if err != nil {
		return protocol.UserPublic{}, err
	}
	s.cache.Invalidate(appstate.TagCurrentUser, appstate.TagUsers)
	return u, nil
}

func (s *Users) ChangePassword(ctx context.Context, f PasswordForm) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return s.api.UpdatePassword(ctx, f.Payload())
}

func (s *Users) DeleteMe(ctx context.Context) error {
	if err := s.api.DeleteMe(ctx); err != nil {
		return err
	}
	s.cache.Reset()
	return nil
}

// Items runs the item CRUD flows.
type Items struct {
	api   ItemsAPI
	cache *appstate.Cache
}

func NewItems(api ItemsAPI, cache *appstate.Cache) *Items {
	if cache == nil {
		cache = appstate.New(0)
	}
	return &Items{api: api, cache: cache}
}

func (s *Items) List(ctx context.Context, n int) (Page[protocol.ItemPublic], error) {
	if n < 1 {
		n = 1
	}
	key := fmt.Sprintf("items:%d", n)
	res, err := appstate.Fetch(ctx, s.cache, key, []string{appstate.TagItems}, func(ctx context.Context) (protocol.ItemsPublic, error) {
		return s.api.ListItems(ctx, Skip(n), PageSize)
	})
	if err != nil {
		return Page[protocol.ItemPublic]{}, err
	}
	return Page[protocol.ItemPublic]{Number: n, Rows: res.Data, Count: res.Count}, nil
}

func (s *Items) Get(ctx context.Context, id string) (protocol.ItemPublic, error) {
	return s.api.GetItem(ctx, id)
}

func (s *Items) Create(ctx context.Context, f ItemForm) (protocol.ItemPublic, error) {
	if err := f.Validate(); err != nil {
		return protocol.ItemPublic{}, err
	}
	it, err := s.api.CreateItem(ctx, f.CreatePayload())
	if err != nil {
		return protocol.ItemPublic{}, err
	}
	s.cache.Invalidate(appstate.TagItems)
	return it, nil
}

func (s *Items) Update(ctx context.Context, id string, f ItemForm) (protocol.ItemPublic, error) {
	if err := f.Validate(); err != nil {
		return protocol.ItemPublic{}, err
	}
	it, err := s.api.UpdateItem(ctx, id, f.UpdatePayload())
	if err != nil {
		return protocol.ItemPublic{}, err
	}
	s.cache.Invalidate(appstate.TagItems)
	return it, nil
}

func (s *Items) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(appstate.TagItems)
	return nil
}
