package api

import (
	"net/http"

	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/validation"
)

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if err := validation.Struct(req).Err(); err != nil {
		fail(w, r, err)
		return
	}
	token, sess, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]any{
		"token":      token,
		"token_type": "Bearer",
		"session":    sess,
	})
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), currentSession(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CurrentSessionHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, currentSession(r))
}
