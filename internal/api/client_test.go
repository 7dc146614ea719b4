package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/golang-jwt/jwt/v5"

	"github.com/agusx1211/mailflow/pkg/protocol"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "tok", 5*time.Second)
}

func TestLoginSendsFormAndStoresToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/login/access-token" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("username") != "a@b.de" || r.PostForm.Get("password") != "secret123" {
			t.Errorf("form = %v", r.PostForm)
		}
		json.NewEncoder(w).Encode(protocol.Token{AccessToken: "new-token", TokenType: "bearer"})
	})
	c.Token = ""

	tok, err := c.Login(context.Background(), "a@b.de", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok.AccessToken != "new-token" || c.Token != "new-token" {
		t.Fatalf("token = %q, client token = %q", tok.AccessToken, c.Token)
	}
}

func TestErrorDetailDecoding(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		wantUser   string
	}{
		{"string detail", 400, `{"detail":"Incorrect email or password"}`, "Incorrect email or password", "Incorrect email or password"},
		{"array detail", 422, `{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address"}]}`, "", "Something went wrong."},
		{"plain body", 400, `bad request`, "bad request", "bad request"},
		{"server error", 500, `<html>oops</html>`, "", "Something went wrong."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.GetItem(context.Background(), "x")
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if apiErr.Status != tt.status || apiErr.Detail != tt.wantDetail {
				t.Fatalf("got status %d detail %q", apiErr.Status, apiErr.Detail)
			}
			if got := UserMessage(err); got != tt.wantUser {
				t.Fatalf("UserMessage = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestCurrentUserSessionExpired(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNotFound} {
		cleared := false
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"detail":"User not found"}`))
		})
		c.OnSessionExpired = func() { cleared = true }

		_, err := c.CurrentUser(context.Background())
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("status %d: err = %v, want ErrSessionExpired", status, err)
		}
		if !cleared {
			t.Fatalf("status %d: OnSessionExpired not called", status)
		}
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c.OnSessionExpired = func() { t.Fatal("session cleared on 500") }
	if _, err := c.CurrentUser(context.Background()); errors.Is(err, ErrSessionExpired) {
		t.Fatal("500 treated as expired session")
	}
}

func TestListUsersPagination(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Query().Get("skip") != "20" || r.URL.Query().Get("limit") != "10" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(protocol.UsersPublic{Data: []protocol.UserPublic{{ID: "u1", Email: "a@b.de"}}, Count: 21})
	})
	page, err := c.ListUsers(context.Background(), 20, 10)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if page.Count != 21 || len(page.Data) != 1 {
		t.Fatalf("page = %+v", page)
	}
}

func TestStartAgentRunQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/v1/agent/langgraph" || q.Get("subject") != "Hallo & Tschüss" || q.Get("sender") != "x@y.de" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(protocol.AgentRunResponse{RunID: "r1", Message: "started"})
	})
	resp, err := c.StartAgentRun(context.Background(), "Hallo & Tschüss", "Text", "x@y.de")
	if err != nil {
		t.Fatalf("StartAgentRun: %v", err)
	}
	if resp.RunID != "r1" {
		t.Fatalf("run id = %q", resp.RunID)
	}
}

func TestStreamAgentRunStopsAtTerminal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/agent/r1/stream") {
			http.NotFound(w, r)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		wsjson.Write(ctx, conn, protocol.AgentStatusResponse{Status: "running"})
		wsjson.Write(ctx, conn, protocol.AgentStatusResponse{Status: "completed", DraftBody: "body"})
		// Wait for the client to close.
		conn.Read(ctx)
	})

	var got []string
	err := c.StreamAgentRun(context.Background(), "r1", func(doc protocol.AgentStatusResponse) error {
		got = append(got, doc.Status)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamAgentRun: %v", err)
	}
	if strings.Join(got, ",") != "running,completed" {
		t.Fatalf("statuses = %v", got)
	}
}

func TestCheckToken(t *testing.T) {
	sign := func(exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()})
		s, err := tok.SignedString([]byte("k"))
		if err != nil {
			t.Fatalf("SignedString: %v", err)
		}
		return s
	}
	now := time.Now()

	if err := CheckToken("", now); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("empty token: %v", err)
	}
	if err := CheckToken(sign(now.Add(time.Hour)), now); err != nil {
		t.Fatalf("valid token: %v", err)
	}
	if err := CheckToken(sign(now.Add(-time.Hour)), now); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expired token: %v", err)
	}
	if err := CheckToken("not-a-jwt", now); err != nil {
		t.Fatalf("opaque token should be left to the backend: %v", err)
	}
}
