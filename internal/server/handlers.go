package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Mejerab/Unoo-Chats-Server/internal/auth"
	"github.com/Mejerab/Unoo-Chats-Server/internal/history"
	"github.com/Mejerab/Unoo-Chats-Server/internal/storage"
	"go.uber.org/zap"
)

type handler struct {
	logger   *zap.SugaredLogger
	auth     *auth.Authority
	history  *history.Service
	store    *storage.Store
	adminKey string
}

// decodeFields reads the request body into a raw field map. The body was
// already validated by the enforceJSON middleware.
func decodeFields(r *http.Request) (map[string]interface{}, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	return fields, nil
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(payload); err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}

// checkIdentity enforces that the verified token identity matches the email
// supplied in the query. On mismatch the handler answers 403 and must stop;
// serving anyway would leak other users' history.
func (h *handler) checkIdentity(w http.ResponseWriter, r *http.Request) bool {
	identity, ok := identityFrom(r.Context())
	if !ok || identity.Email != r.URL.Query().Get("email") {
		h.logger.Infof("identity mismatch on %s", r.URL.Path)
		http.Error(w, "Forbidden Access", http.StatusForbidden)
		return false
	}
	return true
}

// issueToken handles HTTP requests on "POST /jwt" endpoint
func (h *handler) issueToken(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeFields(r)
	if err != nil || len(payload) == 0 {
		http.Error(w, "Identity payload required", http.StatusBadRequest)
		return
	}

	token, err := h.auth.Issue(payload)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, h.auth.Cookie(token))
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// logout handles HTTP requests on "POST /logout" endpoint
func (h *handler) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, h.auth.ClearCookie())
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"condition": "logged out"})
}

// allChats handles HTTP requests on "GET /chats" endpoint
func (h *handler) allChats(w http.ResponseWriter, r *http.Request) {
	messages, err := h.history.All(r.Context())
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if messages == nil {
		messages = []storage.Message{}
	}
	h.writeJSON(w, http.StatusOK, messages)
}

// chatsBySource handles HTTP requests on "GET /chats/source/{source}" endpoint
func (h *handler) chatsBySource(w http.ResponseWriter, r *http.Request) {
	if !h.checkIdentity(w, r) {
		return
	}

	source := r.PathValue("source")
	messages, err := h.history.Fetch(r.Context(), source, history.DefaultFetchLimit)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if messages == nil {
		messages = []storage.Message{}
	}
	h.writeJSON(w, http.StatusOK, messages)
}

// editChat handles HTTP requests on "PATCH /chats/edit/{chat_id}" endpoint
func (h *handler) editChat(w http.ResponseWriter, r *http.Request) {
	if !h.checkIdentity(w, r) {
		return
	}

	fields, err := decodeFields(r)
	if err != nil {
		http.Error(w, "Malformed JSON", http.StatusBadRequest)
		return
	}

	if err := h.history.Edit(r.Context(), r.PathValue("chat_id"), fields); err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"acknowledged": true})
}

// deleteChat handles HTTP requests on "PATCH /chats/delete/{id}" endpoint.
// Deletion is a tombstone patch, the row stays.
func (h *handler) deleteChat(w http.ResponseWriter, r *http.Request) {
	if !h.checkIdentity(w, r) {
		return
	}

	fields, err := decodeFields(r)
	if err != nil {
		http.Error(w, "Malformed JSON", http.StatusBadRequest)
		return
	}

	if err := h.history.Delete(r.Context(), r.PathValue("id"), fields); err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"acknowledged": true})
}

// clearChats handles HTTP requests on "DELETE /chats" endpoint
func (h *handler) clearChats(w http.ResponseWriter, r *http.Request) {
	count, err := h.history.ClearAll(r.Context())
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"deletedCount": count})
}

// createUser handles HTTP requests on "POST /users" endpoint
func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		http.Error(w, "Malformed JSON", http.StatusBadRequest)
		return
	}

	id, err := h.store.CreateUser(r.Context(), fields)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			http.Error(w, "User already exists", http.StatusBadRequest)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

// listUsers handles HTTP requests on "GET /users" endpoint
func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.AllUsers(r.Context())
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if users == nil {
		users = []storage.User{}
	}
	h.writeJSON(w, http.StatusOK, users)
}

// userByUID handles HTTP requests on "GET /users/uid/{uid}" endpoint
func (h *handler) userByUID(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.UserByUID(r.Context(), r.PathValue("uid"))
	h.writeUser(w, user, err)
}

// userByID handles HTTP requests on "GET /users/id/{id}" endpoint
func (h *handler) userByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Path parameter \"id\" must be a 64-bit integer value", http.StatusBadRequest)
		return
	}

	user, err := h.store.UserByID(r.Context(), id)
	h.writeUser(w, user, err)
}

// userByEmail handles HTTP requests on "GET /users/{email}" endpoint
func (h *handler) userByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.UserByEmail(r.Context(), r.PathValue("email"))
	h.writeUser(w, user, err)
}

func (h *handler) writeUser(w http.ResponseWriter, user storage.User, err error) {
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			http.Error(w, "User does not exist", http.StatusNotFound)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// patchUser handles HTTP requests on "PATCH /users/patch/{id}" endpoint
func (h *handler) patchUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Path parameter \"id\" must be a 64-bit integer value", http.StatusBadRequest)
		return
	}

	fields, err := decodeFields(r)
	if err != nil {
		http.Error(w, "Malformed JSON", http.StatusBadRequest)
		return
	}

	if err := h.store.PatchUser(r.Context(), id, fields); err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"acknowledged": true})
}
