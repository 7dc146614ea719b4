// Package protocol defines the REST contract between mailflow clients and the
// mail-assistant API.
//
// The shapes mirror the JSON the production API emits: snake_case fields,
// UUID string identifiers, list endpoints wrapped in {"data": [...], "count": N}
// and errors reported as {"detail": ...}. The development backend in
// internal/backend serves exactly these types, so both sides of the wire are
// compiled against one definition.
package protocol

import (
	"net/url"
	"strconv"
)

// APIPrefix is prepended to every route.
const APIPrefix = "/api/v1"

// Agent run statuses, as reported by the backend.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunError     = "error"
)

// Step statuses, as reported by the backend.
const (
	StepPending   = "pending"
	StepRunning   = "running"
	StepActive    = "active"
	StepCompleted = "completed"
	StepError     = "error"
)

// Token is returned by the OAuth2-style password login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Message is the generic acknowledgement body.
type Message struct {
	Message string `json:"message"`
}

// UserPublic is a user as exposed by the API.
type UserPublic struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	FullName    string `json:"full_name,omitempty"`
}

// UsersPublic is one page of users.
type UsersPublic struct {
	Data  []UserPublic `json:"data"`
	Count int          `json:"count"`
}

// UserCreate is the admin create-user payload.
type UserCreate struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
}

// UserRegister is the self-signup payload. AccessPassword gates signup on
// deployments that require an invitation secret.
type UserRegister struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	FullName       string `json:"full_name,omitempty"`
	AccessPassword string `json:"access_password,omitempty"`
}

// UserUpdate is the admin partial update. Nil fields are left untouched;
// in particular a nil Password keeps the stored one.
type UserUpdate struct {
	Email       *string `json:"email,omitempty"`
	Password    *string `json:"password,omitempty"`
	FullName    *string `json:"full_name,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
}

// UserUpdateMe is the self-service profile update.
type UserUpdateMe struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
}

// UpdatePassword changes the caller's password.
type UpdatePassword struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ItemPublic is an item as exposed by the API.
type ItemPublic struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	OwnerID     string `json:"owner_id"`
}

// ItemsPublic is one page of items.
type ItemsPublic struct {
	Data  []ItemPublic `json:"data"`
	Count int          `json:"count"`
}

// ItemCreate is the create-item payload.
type ItemCreate struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ItemUpdate is the item update payload.
type ItemUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// AgentRunResponse is returned when an agent run is started.
type AgentRunResponse struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// AgentStep is one processing stage of a run. CreatedAt is passed through as
// the backend wrote it, which may lack a zone designator.
type AgentStep struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// AgentStatusResponse is the polled state of a run.
type AgentStatusResponse struct {
	Steps         []AgentStep `json:"steps"`
	Status        string      `json:"status"`
	StatusMessage string      `json:"status_message"`
	DraftSubject  string      `json:"draft_subject"`
	DraftBody     string      `json:"draft_body"`
}

// Terminal reports whether the run will not change anymore.
func (s AgentStatusResponse) Terminal() bool {
	return s.Status == RunCompleted || s.Status == RunError
}

// Route helpers. IDs are path-escaped.

func LoginPath() string     { return APIPrefix + "/login/access-token" }
func TestTokenPath() string { return APIPrefix + "/login/test-token" }
func UsersPath() string     { return APIPrefix + "/users/" }
func UserMePath() string    { return APIPrefix + "/users/me" }
func SignupPath() string    { return APIPrefix + "/users/signup" }
func ItemsPath() string     { return APIPrefix + "/items/" }
func StartAgentPath() string {
	return APIPrefix + "/agent/langgraph"
}
func HealthPath() string { return APIPrefix + "/utils/health-check/" }

func UserPath(id string) string  { return APIPrefix + "/users/" + url.PathEscape(id) }
func ItemPath(id string) string  { return APIPrefix + "/items/" + url.PathEscape(id) }
func AgentRunPath(id string) string {
	return APIPrefix + "/agent/" + url.PathEscape(id)
}
func AgentStreamPath(id string) string { return AgentRunPath(id) + "/stream" }

// PageQuery encodes skip/limit pagination parameters.
func PageQuery(skip, limit int) string {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	return q.Encode()
}
