package admin

import (
	"strings"

	"github.com/agusx1211/mailflow/pkg/protocol"
)

// UserForm is the admin add/edit user form.
type UserForm struct {
	Email           string
	FullName        string
	Password        string
	ConfirmPassword string
	IsSuperuser     bool
	IsActive        bool
}

// ValidateCreate checks the form for a new user.
func (f UserForm) ValidateCreate() error {
	v := ValidationErrors{}
	checkEmail(v, f.Email)
	checkName(v, f.FullName, true)
	checkPassword(v, "password", f.Password, true)
	checkConfirm(v, f.Password, f.ConfirmPassword)
	return v.orNil()
}

// ValidateUpdate checks the form for an existing user. The password may be
// left blank to keep the current one.
func (f UserForm) ValidateUpdate() error {
	v := ValidationErrors{}
	checkEmail(v, f.Email)
	checkName(v, f.FullName, true)
	checkPassword(v, "password", f.Password, false)
	checkConfirm(v, f.Password, f.ConfirmPassword)
	return v.orNil()
}

// CreatePayload builds the create request. The confirmation never leaves
// the client.
func (f UserForm) CreatePayload() protocol.UserCreate {
	return protocol.UserCreate{
		Email:       strings.TrimSpace(f.Email),
		Password:    f.Password,
		FullName:    strings.TrimSpace(f.FullName),
		IsActive:    f.IsActive,
		IsSuperuser: f.IsSuperuser,
	}
}

// UpdatePayload builds the patch request, omitting a blank password.
func (f UserForm) UpdatePayload() protocol.UserUpdate {
	email := strings.TrimSpace(f.Email)
	name := strings.TrimSpace(f.FullName)
	active, super := f.IsActive, f.IsSuperuser
	out := protocol.UserUpdate{
		Email:       &email,
		FullName:    &name,
		IsActive:    &active,
		IsSuperuser: &super,
	}
	if f.Password != "" {
		pw := f.Password
		out.Password = &pw
	}
	return out
}

// SignupForm is the self-registration form.
type SignupForm struct {
	Email           string
	FullName        string
	Password        string
	ConfirmPassword string
	AccessPassword  string
}

func (f SignupForm) Validate() error {
	v := ValidationErrors{}
	checkEmail(v, f.Email)
	checkName(v, f.FullName, true)
	checkPassword(v, "password", f.Password, true)
	checkConfirm(v, f.Password, f.ConfirmPassword)
	if f.AccessPassword == "" {
		v["access_password"] = "Access password is required"
	}
	return v.orNil()
}

func (f SignupForm) Payload() protocol.UserRegister {
	return protocol.UserRegister{
		Email:          strings.TrimSpace(f.Email),
		Password:       f.Password,
		FullName:       strings.TrimSpace(f.FullName),
		AccessPassword: f.AccessPassword,
	}
}

// ProfileForm is the "my profile" form.
type ProfileForm struct {
	Email    string
	FullName string
}

func (f ProfileForm) Validate() error {
	v := ValidationErrors{}
	checkEmail(v, f.Email)
	checkName(v, f.FullName, false)
	return v.orNil()
}

func (f ProfileForm) Payload() protocol.UserUpdateMe {
	email := strings.TrimSpace(f.Email)
	name := strings.TrimSpace(f.FullName)
	return protocol.UserUpdateMe{Email: &email, FullName: &name}
}

// PasswordForm changes the caller's password.
type PasswordForm struct {
	Current         string
	New             string
	ConfirmPassword string
}

func (f PasswordForm) Validate() error {
	v := ValidationErrors{}
	if f.Current == "" {
		v["current_password"] = "Current password is required"
	}
	checkPassword(v, "new_password", f.New, true)
	checkConfirm(v, f.New, f.ConfirmPassword)
	return v.orNil()
}

func (f PasswordForm) Payload() protocol.UpdatePassword {
	return protocol.UpdatePassword{CurrentPassword: f.Current, NewPassword: f.New}
}

// ItemForm is the add/edit item form.
type ItemForm struct {
	Title       string
	Description string
}

func (f ItemForm) Validate() error {
	v := ValidationErrors{}
	if strings.TrimSpace(f.Title) == "" {
		v["title"] = "Title is required"
	}
	return v.orNil()
}

func (f ItemForm) CreatePayload() protocol.ItemCreate {
	return protocol.ItemCreate{Title: strings.TrimSpace(f.Title), Description: f.Description}
}

func (f ItemForm) UpdatePayload() protocol.ItemUpdate {
	title := strings.TrimSpace(f.Title)
	desc := f.Description
	return protocol.ItemUpdate{Title: &title, Description: &desc}
}
