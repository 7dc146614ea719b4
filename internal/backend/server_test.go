package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/crypto/bcrypt"

	"github.com/agusx1211/mailflow/pkg/protocol"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "changethis"
)

func newTestServer(t *testing.T, mutate ...func(*Options)) *Server {
	t.Helper()
	opts := Options{
		DBPath:        filepath.Join(t.TempDir(), "mailflow.db"),
		Secret:        "test-secret",
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
		Speed:         1000,
		PasswordCost:  bcrypt.MinCost,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	srv, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func performRequest(t *testing.T, srv *Server, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func loginToken(t *testing.T, srv *Server, email, password string) string {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, protocol.LoginPath(), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return decodeResponse[protocol.Token](t, rec).AccessToken
}

func TestLoginAndReadMe(t *testing.T) {
	srv := newTestServer(t)
	token := loginToken(t, srv, adminEmail, adminPassword)

	rec := performRequest(t, srv, http.MethodGet, protocol.UserMePath(), token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	me := decodeResponse[protocol.UserPublic](t, rec)
	if me.Email != adminEmail || !me.IsSuperuser {
		t.Fatalf("me = %+v", me)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)
	form := url.Values{"username": {adminEmail}, "password": {"wrong-password"}}
	req := httptest.NewRequest(http.MethodPost, protocol.LoginPath(), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeResponse[map[string]string](t, rec)["detail"]; got != "Incorrect email or password" {
		t.Fatalf("detail = %q", got)
	}
}

func TestAuthFailures(t *testing.T) {
	srv := newTestServer(t)

	if rec := performRequest(t, srv, http.MethodGet, protocol.UserMePath(), "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}
	if rec := performRequest(t, srv, http.MethodGet, protocol.UserMePath(), "garbage", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("bad token status = %d, want 403", rec.Code)
	}

	// A valid token for a user that no longer exists is a 404.
	ghost, err := srv.issueToken("00000000-0000-4000-8000-000000000000")
	if err != nil {
		t.Fatal(err)
	}
	if rec := performRequest(t, srv, http.MethodGet, protocol.UserMePath(), ghost, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("ghost token status = %d, want 404", rec.Code)
	}

	expired := newTestServer(t)
	expired.now = func() time.Time { return time.Now().Add(-TokenTTL - time.Hour) }
	old, err := expired.issueToken("x")
	if err != nil {
		t.Fatal(err)
	}
	if rec := performRequest(t, srv, http.MethodGet, protocol.UserMePath(), old, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expired token status = %d, want 403", rec.Code)
	}
}

func TestSignupAccessPassword(t *testing.T) {
	srv := newTestServer(t, func(o *Options) { o.SignupAccessPassword = "einladung" })

	body := `{"email":"neu@example.com","password":"secret123","full_name":"Neu","access_password":"falsch"}`
	if rec := performRequest(t, srv, http.MethodPost, protocol.SignupPath(), "", body); rec.Code != http.StatusForbidden {
		t.Fatalf("wrong access password status = %d, want 403", rec.Code)
	}

	body = `{"email":"neu@example.com","password":"secret123","full_name":"Neu","access_password":"einladung"}`
	rec := performRequest(t, srv, http.MethodPost, protocol.SignupPath(), "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("signup status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if u := decodeResponse[protocol.UserPublic](t, rec); u.IsSuperuser || !u.IsActive {
		t.Fatalf("signed up user = %+v", u)
	}

	if rec := performRequest(t, srv, http.MethodPost, protocol.SignupPath(), "", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate signup status = %d, want 400", rec.Code)
	}
}

func TestValidationErrorsAreFieldLists(t *testing.T) {
	srv := newTestServer(t)
	rec := performRequest(t, srv, http.MethodPost, protocol.SignupPath(), "", `{"email":"kein-email","password":"kurz"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var out struct {
		Detail []fieldError `json:"detail"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Detail) != 2 {
		t.Fatalf("detail = %+v, want two field errors", out.Detail)
	}
}

func TestUserAdministration(t *testing.T) {
	srv := newTestServer(t)
	admin := loginToken(t, srv, adminEmail, adminPassword)

	rec := performRequest(t, srv, http.MethodPost, protocol.UsersPath(), admin,
		`{"email":"sachbearbeiter@example.com","password":"password1","full_name":"Sach Bearbeiter","is_active":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decodeResponse[protocol.UserPublic](t, rec)

	rec = performRequest(t, srv, http.MethodGet, protocol.UsersPath()+"?skip=0&limit=10", admin, "")
	page := decodeResponse[protocol.UsersPublic](t, rec)
	if page.Count != 2 || len(page.Data) != 2 {
		t.Fatalf("page = %+v", page)
	}

	rec = performRequest(t, srv, http.MethodPatch, protocol.UserPath(created.ID), admin, `{"full_name":"Umbenannt"}`)
	if got := decodeResponse[protocol.UserPublic](t, rec); got.FullName != "Umbenannt" {
		t.Fatalf("update = %+v", got)
	}

	// Omitting the password keeps the old one.
	user := loginToken(t, srv, "sachbearbeiter@example.com", "password1")

	if rec := performRequest(t, srv, http.MethodGet, protocol.UsersPath(), user, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin list status = %d, want 403", rec.Code)
	}
	if rec := performRequest(t, srv, http.MethodPatch, protocol.UserPath(created.ID), admin, `{"email":"ADMIN@example.com"}`); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate email status = %d, want 409", rec.Code)
	}

	me := decodeResponse[protocol.UserPublic](t, performRequest(t, srv, http.MethodGet, protocol.UserMePath(), admin, ""))
	if rec := performRequest(t, srv, http.MethodDelete, protocol.UserPath(me.ID), admin, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("self delete status = %d, want 403", rec.Code)
	}
	if rec := performRequest(t, srv, http.MethodDelete, protocol.UserPath(created.ID), admin, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := performRequest(t, srv, http.MethodGet, protocol.UserMePath(), user, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted user me status = %d, want 404", rec.Code)
	}
}

func TestPasswordChange(t *testing.T) {
	srv := newTestServer(t)
	token := loginToken(t, srv, adminEmail, adminPassword)

	rec := performRequest(t, srv, http.MethodPatch, protocol.UserMePath()+"/password", token,
		`{"current_password":"nope-nope","new_password":"brandnew1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong current status = %d, want 400", rec.Code)
	}
	rec = performRequest(t, srv, http.MethodPatch, protocol.UserMePath()+"/password", token,
		`{"current_password":"changethis","new_password":"brandnew1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("change status = %d, body = %s", rec.Code, rec.Body.String())
	}
	loginToken(t, srv, adminEmail, "brandnew1")
}

func TestItemsAreScopedToOwner(t *testing.T) {
	srv := newTestServer(t)
	admin := loginToken(t, srv, adminEmail, adminPassword)
	performRequest(t, srv, http.MethodPost, protocol.SignupPath(), "", `{"email":"a@example.com","password":"password1"}`)
	user := loginToken(t, srv, "a@example.com", "password1")

	rec := performRequest(t, srv, http.MethodPost, protocol.ItemsPath(), admin, `{"title":"Admin item"}`)
	adminItem := decodeResponse[protocol.ItemPublic](t, rec)
	for i := 0; i < 12; i++ {
		performRequest(t, srv, http.MethodPost, protocol.ItemsPath(), user, `{"title":"Vorgang","description":"offen"}`)
	}

	page := decodeResponse[protocol.ItemsPublic](t, performRequest(t, srv, http.MethodGet, protocol.ItemsPath()+"?skip=10&limit=10", user, ""))
	if page.Count != 12 || len(page.Data) != 2 {
		t.Fatalf("user page 2 = count %d, len %d", page.Count, len(page.Data))
	}
	all := decodeResponse[protocol.ItemsPublic](t, performRequest(t, srv, http.MethodGet, protocol.ItemsPath(), admin, ""))
	if all.Count != 13 {
		t.Fatalf("admin count = %d, want 13", all.Count)
	}

	if rec := performRequest(t, srv, http.MethodGet, protocol.ItemPath(adminItem.ID), user, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("foreign item status = %d, want 400", rec.Code)
	}
	rec = performRequest(t, srv, http.MethodPut, protocol.ItemPath(adminItem.ID), admin, `{"title":"Neu"}`)
	if got := decodeResponse[protocol.ItemPublic](t, rec); got.Title != "Neu" {
		t.Fatalf("updated item = %+v", got)
	}
	if rec := performRequest(t, srv, http.MethodPost, protocol.ItemsPath(), user, `{"title":"  "}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blank title status = %d, want 422", rec.Code)
	}
	if rec := performRequest(t, srv, http.MethodDelete, protocol.ItemPath(adminItem.ID), admin, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := performRequest(t, srv, http.MethodGet, protocol.ItemPath(adminItem.ID), admin, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted item status = %d, want 404", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)
	rec := performRequest(t, srv, http.MethodGet, protocol.HealthPath(), "", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "true" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func waitForRun(t *testing.T, srv *Server, runID string) protocol.AgentStatusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := performRequest(t, srv, http.MethodGet, protocol.AgentRunPath(runID), "", "")
		doc := decodeResponse[protocol.AgentStatusResponse](t, rec)
		if doc.Terminal() {
			return doc
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", runID)
	return protocol.AgentStatusResponse{}
}

func TestAgentRunCompletes(t *testing.T) {
	srv := newTestServer(t)
	q := url.Values{
		"subject": {"Widerspruch gegen Ablehnung"},
		"body":    {"Hiermit lege ich Widerspruch ein."},
		"sender":  {"Thomas Weber"},
	}
	rec := performRequest(t, srv, http.MethodGet, protocol.StartAgentPath()+"?"+q.Encode(), "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d", rec.Code)
	}
	started := decodeResponse[protocol.AgentRunResponse](t, rec)
	if started.RunID == "" {
		t.Fatal("empty run id")
	}

	doc := waitForRun(t, srv, started.RunID)
	if doc.Status != protocol.RunCompleted {
		t.Fatalf("status = %q (%s)", doc.Status, doc.StatusMessage)
	}
	types := make([]string, 0, len(doc.Steps))
	for _, st := range doc.Steps {
		types = append(types, st.Type)
		if st.Status != protocol.StepCompleted {
			t.Fatalf("step %s status = %q", st.Type, st.Status)
		}
		if strings.HasSuffix(st.CreatedAt, "Z") || strings.Contains(st.CreatedAt, "+") {
			t.Fatalf("created_at %q carries a zone", st.CreatedAt)
		}
	}
	want := []string{"master_agent", "expert_widerspruch", "email_drafter"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("step types = %v, want %v", types, want)
	}
	if doc.DraftSubject != "Re: Widerspruch gegen Ablehnung" || !strings.Contains(doc.DraftBody, "Thomas Weber") {
		t.Fatalf("draft = %q / %q", doc.DraftSubject, doc.DraftBody)
	}
}

func TestAgentRunUnknownID(t *testing.T) {
	srv := newTestServer(t)
	if rec := performRequest(t, srv, http.MethodGet, protocol.AgentRunPath("missing"), "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestShutdownFailsRunningRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mailflow.db")
	srv, err := New(Options{DBPath: dbPath, Secret: "s", Speed: 0.001, PasswordCost: bcrypt.MinCost})
	if err != nil {
		t.Fatal(err)
	}
	run, err := srv.engine.start(context.Background(), "x", "Frage", "Text")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	store, err := OpenStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	got, err := store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != protocol.RunError || got.StatusMessage != shutdownMessage {
		t.Fatalf("run after shutdown = %+v", got)
	}
}

func TestAgentStreamDeliversUntilTerminal(t *testing.T) {
	srv := newTestServer(t, func(o *Options) { o.Speed = 50 })
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	run, err := srv.engine.start(context.Background(), "Lisa", "Termin beim Facharzt", "Ich suche einen Termin.")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + protocol.AgentStreamPath(run.ID)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var docs []protocol.AgentStatusResponse
	for {
		var doc protocol.AgentStatusResponse
		if err := wsjson.Read(ctx, conn, &doc); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			t.Fatalf("read: %v", err)
		}
		docs = append(docs, doc)
	}
	if len(docs) < 2 {
		t.Fatalf("got %d documents, want several", len(docs))
	}
	last := docs[len(docs)-1]
	if last.Status != protocol.RunCompleted {
		t.Fatalf("last status = %q", last.Status)
	}
	if len(last.Steps) != 3 || last.Steps[1].Type != "expert_terminvermittlung" {
		t.Fatalf("steps = %+v", last.Steps)
	}
}

func TestChooseTopic(t *testing.T) {
	cases := []struct {
		subject, body, want string
	}{
		{"Kostenübernahme für Physiotherapie", "", "kostenuebernahme"},
		{"Frage zum Krankengeld", "", "krankengeld"},
		{"Familienversicherung für meinen Ehepartner", "", "familienversicherung"},
		{"Hallo", "Ich habe eine allgemeine Frage.", "sonstiges"},
		{"Ablehnung der Kostenübernahme", "", "widerspruch"},
	}
	for _, tc := range cases {
		if got := chooseTopic(tc.subject, tc.body); got != tc.want {
			t.Errorf("chooseTopic(%q) = %q, want %q", tc.subject, got, tc.want)
		}
	}
}
