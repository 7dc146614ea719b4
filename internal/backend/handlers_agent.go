package backend

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/agusx1211/mailflow/internal/debug"
	"github.com/agusx1211/mailflow/pkg/protocol"
)

func (srv *Server) handleStartAgent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	run, err := srv.engine.start(r.Context(), q.Get("sender"), q.Get("subject"), q.Get("body"))
	if err != nil {
		writeDetail(w, http.StatusServiceUnavailable, "Agent engine is not available")
		return
	}
	writeJSON(w, http.StatusOK, protocol.AgentRunResponse{RunID: run.ID, Message: "Agent run started"})
}

// statusDocument assembles the polled representation of a run.
func (srv *Server) statusDocument(ctx context.Context, runID string) (protocol.AgentStatusResponse, error) {
	run, err := srv.store.GetRun(ctx, runID)
	if err != nil {
		return protocol.AgentStatusResponse{}, err
	}
	steps, err := srv.store.Steps(ctx, runID)
	if err != nil {
		return protocol.AgentStatusResponse{}, err
	}
	doc := protocol.AgentStatusResponse{
		Steps:         make([]protocol.AgentStep, 0, len(steps)),
		Status:        run.Status,
		StatusMessage: run.StatusMessage,
		DraftSubject:  run.DraftSubject,
		DraftBody:     run.DraftBody,
	}
	for _, st := range steps {
		doc.Steps = append(doc.Steps, protocol.AgentStep{
			ID:        st.ID,
			Type:      st.Type,
			Text:      st.Text,
			Status:    st.Status,
			CreatedAt: st.CreatedAt.UTC().Format(naiveLayout),
		})
	}
	return doc, nil
}

func (srv *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := srv.statusDocument(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Agent run not found")
		return
	}
	if err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleAgentStream pushes the status document over a websocket each time
// it changes and closes normally once the run is terminal.
func (srv *Server) handleAgentStream(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if _, err := srv.store.GetRun(r.Context(), runID); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeDetail(w, http.StatusNotFound, "Agent run not found")
			return
		}
		writeInternal(w, err)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer ws.CloseNow()

	// Subscribe before the first read so no change slips between them.
	changed, unsubscribe := srv.hub.subscribe(runID)
	defer unsubscribe()

	ctx := ws.CloseRead(r.Context())
	var last *protocol.AgentStatusResponse
	for {
		doc, err := srv.statusDocument(ctx, runID)
		if err != nil {
			debug.LogKV("backend", "stream read failed", "run_id", runID, "error", err)
			ws.Close(websocket.StatusInternalError, "run unavailable")
			return
		}
		if last == nil || !reflect.DeepEqual(*last, doc) {
			writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := wsjson.Write(writeCtx, ws, doc)
			cancel()
			if err != nil {
				return
			}
			last = &doc
		}
		if doc.Terminal() {
			ws.Close(websocket.StatusNormalClosure, "run finished")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
	}
}
