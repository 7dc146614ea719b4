package backend

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/agusx1211/mailflow/internal/debug"
)

type detailResponse struct {
	Detail any `json:"detail"`
}

// fieldError mirrors one entry of a validation error list.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		debug.LogKV("backend", "failed to encode json response", "status", status, "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

func writeValidation(w http.ResponseWriter, fields ...fieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, detailResponse{Detail: fields})
}

func writeInternal(w http.ResponseWriter, err error) {
	debug.LogKV("backend", "internal error", "error", err)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, "Internal Server Error")
}

// decodeBody reads a JSON request body into dst, answering 422 itself on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		msg := "Invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "Field required"
		}
		writeValidation(w, fieldError{Loc: []string{"body"}, Msg: msg, Type: "json_invalid"})
		return false
	}
	return true
}

// pagination reads skip/limit with the API defaults (0, 100).
func pagination(w http.ResponseWriter, r *http.Request) (skip, limit int, ok bool) {
	skip, limit = 0, 100
	q := r.URL.Query()
	parse := func(name string, dst *int) bool {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			return true
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeValidation(w, fieldError{Loc: []string{"query", name}, Msg: "Input should be a valid non-negative integer", Type: "int_parsing"})
			return false
		}
		*dst = n
		return true
	}
	if !parse("skip", &skip) || !parse("limit", &limit) {
		return 0, 0, false
	}
	return skip, limit, true
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
