package backend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/agusx1211/mailflow/pkg/protocol"
)

func publicItem(it Item) protocol.ItemPublic {
	return protocol.ItemPublic{ID: it.ID, Title: it.Title, Description: it.Description, OwnerID: it.OwnerID}
}

func checkTitle(title string) *fieldError {
	if n := len([]rune(strings.TrimSpace(title))); n == 0 || n > 255 {
		return &fieldError{Loc: []string{"body", "title"}, Msg: "String should have between 1 and 255 characters", Type: "string_too_short"}
	}
	return nil
}

// ownedItem loads an item the caller may touch: their own, or any item
// for a superuser.
func (srv *Server) ownedItem(caller User, w http.ResponseWriter, r *http.Request) (Item, bool) {
	it, err := srv.store.GetItem(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Item not found")
		return Item{}, false
	}
	if err != nil {
		writeInternal(w, err)
		return Item{}, false
	}
	if !caller.IsSuperuser && it.OwnerID != caller.ID {
		writeDetail(w, http.StatusBadRequest, "Not enough permissions")
		return Item{}, false
	}
	return it, true
}

func (srv *Server) handleListItems(caller User, w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := pagination(w, r)
	if !ok {
		return
	}
	owner := caller.ID
	if caller.IsSuperuser {
		owner = ""
	}
	items, count, err := srv.store.ListItems(r.Context(), owner, skip, limit)
	if err != nil {
		writeInternal(w, err)
		return
	}
	out := protocol.ItemsPublic{Data: make([]protocol.ItemPublic, 0, len(items)), Count: count}
	for _, it := range items {
		out.Data = append(out.Data, publicItem(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func (srv *Server) handleCreateItem(caller User, w http.ResponseWriter, r *http.Request) {
	var in protocol.ItemCreate
	if !decodeBody(w, r, &in) {
		return
	}
	if !validate(w, checkTitle(in.Title)) {
		return
	}
	it := Item{Title: strings.TrimSpace(in.Title), Description: in.Description, OwnerID: caller.ID}
	if err := srv.store.CreateItem(r.Context(), &it); err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publicItem(it))
}

func (srv *Server) handleReadItem(caller User, w http.ResponseWriter, r *http.Request) {
	it, ok := srv.ownedItem(caller, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, publicItem(it))
}

func (srv *Server) handleUpdateItem(caller User, w http.ResponseWriter, r *http.Request) {
	it, ok := srv.ownedItem(caller, w, r)
	if !ok {
		return
	}
	var in protocol.ItemUpdate
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Title != nil {
		if !validate(w, checkTitle(*in.Title)) {
			return
		}
		it.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		it.Description = *in.Description
	}
	if err := srv.store.UpdateItem(r.Context(), it); err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publicItem(it))
}

func (srv *Server) handleDeleteItem(caller User, w http.ResponseWriter, r *http.Request) {
	it, ok := srv.ownedItem(caller, w, r)
	if !ok {
		return
	}
	if err := srv.store.DeleteItem(r.Context(), it.ID); err != nil {
		writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.Message{Message: "Item deleted successfully"})
}
