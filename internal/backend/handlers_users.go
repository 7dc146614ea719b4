package backend

import (
	"errors"
	"net/http"
	netmail "net/mail"
	"strings"

	"github.com/agusx1211/mailflow/pkg/protocol"
)

const minPasswordLength = 8

func publicUser(u User) protocol.UserPublic {
	return protocol.UserPublic{
		ID:          u.ID,
		Email:       u.Email,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		FullName:    u.FullName,
	}
}

func checkEmail(email string) *fieldError {
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return &fieldError{Loc: []string{"body", "email"}, Msg: "value is not a valid email address", Type: "value_error"}
	}
	return nil
}

func checkPassword(field, password string) *fieldError {
	if len(password) < minPasswordLength {
		return &fieldError{Loc: []string{"body", field}, Msg: "String should have at least 8 characters", Type: "string_too_short"}
	}
	return nil
}

// validate writes a 422 listing every failed check.
func validate(w http.ResponseWriter, checks ...*fieldError) bool {
	var fields []fieldError
	for _, c := range checks {
		if c != nil {
			fields = append(fields, *c)
		}
	}
	if len(fields) > 0 {
		writeValidation(w, fields...)
		return false
	}
	return true
}

func (srv *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeValidation(w, fieldError{Loc: []string{"body"}, Msg: "Invalid form body", Type: "value_error"})
		return
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	if username == "" || password == "" {
		writeValidation(w, fieldError{Loc: []string{"body", "username"}, Msg: "Field required", Type: "missing"})
		return
	}
	u, err := srv.login(r.Context(), username, password)
	if errors.Is(err, errBadCredentials) {
		writeDetail(w, http.StatusBadRequest, "Incorrect email or password")
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	if !u.IsActive {
		writeDetail(w, http.StatusBadRequest, "Inactive user")
		return
	}
	tok, err := srv.issueToken(u.ID)
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.Token{AccessToken: tok, TokenType: "bearer"})
}

func (srv *Server) handleTestToken(u User, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, publicUser(u))
}

func (srv *Server) handleReadMe(u User, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, publicUser(u))
}

func (srv *Server) handleUpdateMe(u User, w http.ResponseWriter, r *http.Request) {
	var in protocol.UserUpdateMe
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Email != nil {
		if !validate(w, checkEmail(*in.Email)) {
			return
		}
		u.Email = *in.Email
	}
	if in.FullName != nil {
		u.FullName = *in.FullName
	}
	srv.saveUser(w, r, u)
}

func (srv *Server) saveUser(w http.ResponseWriter, r *http.Request, u User) {
	err := srv.store.UpdateUser(r.Context(), u)
	switch {
	case errors.Is(err, ErrConflict):
		writeDetail(w, http.StatusConflict, "User with this email already exists")
	case errors.Is(err, ErrNotFound):
		writeDetail(w, http.StatusNotFound, "The user with this id does not exist in the system")
	case err != nil:
		writeInternal(w, err)
	default:
		fresh, err := srv.store.UserByID(r.Context(), u.ID)
		if err != nil {
			writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, publicUser(fresh))
	}
}

func (srv *Server) handleUpdatePassword(u User, w http.ResponseWriter, r *http.Request) {
	var in protocol.UpdatePassword
	if !decodeBody(w, r, &in) {
		return
	}
	if !validate(w, checkPassword("new_password", in.NewPassword)) {
		return
	}
	if !verifyPassword(u.HashedPassword, in.CurrentPassword) {
		writeDetail(w, http.StatusBadRequest, "Incorrect password")
		return
	}
	if in.CurrentPassword == in.NewPassword {
		writeDetail(w, http.StatusBadRequest, "New password cannot be the same as the current one")
		return
	}
	hash, err := srv.hashPassword(in.NewPassword)
	if err != nil {
		writeInternal(w, err)
		return
	}
	u.HashedPassword = hash
	if err := srv.store.UpdateUser(r.Context(), u); err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.Message{Message: "Password updated successfully"})
}

func (srv *Server) handleDeleteMe(u User, w http.ResponseWriter, r *http.Request) {
	if u.IsSuperuser {
		writeDetail(w, http.StatusForbidden, "Super users are not allowed to delete themselves")
		return
	}
	if err := srv.store.DeleteUser(r.Context(), u.ID); err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.Message{Message: "User deleted successfully"})
}

func (srv *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in protocol.UserRegister
	if !decodeBody(w, r, &in) {
		return
	}
	if !validate(w, checkEmail(in.Email), checkPassword("password", in.Password)) {
		return
	}
	if srv.accessPassword != "" && in.AccessPassword != srv.accessPassword {
		writeDetail(w, http.StatusForbidden, "Invalid access password")
		return
	}
	srv.createUser(w, r, User{Email: in.Email, FullName: in.FullName, IsActive: true}, in.Password)
}

func (srv *Server) createUser(w http.ResponseWriter, r *http.Request, u User, password string) {
	hash, err := srv.hashPassword(password)
	if err != nil {
		writeInternal(w, err)
		return
	}
	u.HashedPassword = hash
	err = srv.store.CreateUser(r.Context(), &u)
	if errors.Is(err, ErrConflict) {
		writeDetail(w, http.StatusBadRequest, "The user with this email already exists in the system")
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publicUser(u))
}

func (srv *Server) handleListUsers(_ User, w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := pagination(w, r)
	if !ok {
		return
	}
	users, count, err := srv.store.ListUsers(r.Context(), skip, limit)
	if err != nil {
		writeInternal(w, err)
		return
	}
	out := protocol.UsersPublic{Data: make([]protocol.UserPublic, 0, len(users)), Count: count}
	for _, u := range users {
		out.Data = append(out.Data, publicUser(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (srv *Server) handleCreateUser(_ User, w http.ResponseWriter, r *http.Request) {
	var in protocol.UserCreate
	if !decodeBody(w, r, &in) {
		return
	}
	if !validate(w, checkEmail(in.Email), checkPassword("password", in.Password)) {
		return
	}
	srv.createUser(w, r, User{
		Email:       in.Email,
		FullName:    in.FullName,
		IsActive:    in.IsActive,
		IsSuperuser: in.IsSuperuser,
	}, in.Password)
}

func (srv *Server) handleReadUser(caller User, w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == caller.ID {
		writeJSON(w, http.StatusOK, publicUser(caller))
		return
	}
	if !caller.IsSuperuser {
		writeDetail(w, http.StatusForbidden, "The user doesn't have enough privileges")
		return
	}
	u, err := srv.store.UserByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publicUser(u))
}

func (srv *Server) handleUpdateUser(_ User, w http.ResponseWriter, r *http.Request) {
	u, err := srv.store.UserByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "The user with this id does not exist in the system")
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	var in protocol.UserUpdate
	if !decodeBody(w, r, &in) {
		return
	}
	var checks []*fieldError
	if in.Email != nil {
		checks = append(checks, checkEmail(*in.Email))
	}
	if in.Password != nil {
		checks = append(checks, checkPassword("password", *in.Password))
	}
	if !validate(w, checks...) {
		return
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.FullName != nil {
		u.FullName = *in.FullName
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.IsSuperuser != nil {
		u.IsSuperuser = *in.IsSuperuser
	}
	if in.Password != nil {
		hash, err := srv.hashPassword(*in.Password)
		if err != nil {
			writeInternal(w, err)
			return
		}
		u.HashedPassword = hash
	}
	srv.saveUser(w, r, u)
}

func (srv *Server) handleDeleteUser(caller User, w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == caller.ID {
		writeDetail(w, http.StatusForbidden, "Super users are not allowed to delete themselves")
		return
	}
	err := srv.store.DeleteUser(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.Message{Message: "User deleted successfully"})
}
