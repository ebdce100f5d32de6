package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/service"
	"github.com/punchamoorthee/visaops/internal/validation"
)

func referenceType(w http.ResponseWriter, r *http.Request) (domain.ReferenceType, bool) {
	t, err := domain.ParseReferenceType(mux.Vars(r)["type"])
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return t, true
}

// ListReferencesHandler lists one reference type. ?parent=sb_<n> narrows a
// drill-down to the children of that row.
func (h *Handler) ListReferencesHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := referenceType(w, r)
	if !ok {
		return
	}
	var parent *domain.RefID
	if v := r.URL.Query().Get("parent"); v != "" {
		id := domain.ParseRefID(v)
		if !id.IsPersisted() {
			fail(w, r, service.ErrInvalidIDFormat)
			return
		}
		parent = &id
	}
	list, err := h.refs.List(r.Context(), t, parent)
	if err != nil {
		fail(w, r, err)
		return
	}
	if len(list) == 0 {
		respondWithJSON(w, http.StatusOK, map[string]any{"data": list, "message": service.NoRecordsMessage})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *Handler) GetReferenceHandler(w http.ResponseWriter, r *http.Request) {
	ref, err := h.refs.Get(r.Context(), domain.ParseRefID(mux.Vars(r)["id"]))
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ref)
}

func (h *Handler) CreateReferenceHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := referenceType(w, r)
	if !ok {
		return
	}
	in, ok := referenceInput(w, r)
	if !ok {
		return
	}
	ref, err := h.refs.Create(r.Context(), t, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/references/"+string(t)+"/"+ref.ID.String())
	respondWithJSON(w, http.StatusCreated, ref)
}

func (h *Handler) UpdateReferenceHandler(w http.ResponseWriter, r *http.Request) {
	id := domain.ParseRefID(mux.Vars(r)["id"])
	if !id.IsPersisted() {
		fail(w, r, service.ErrInvalidIDFormat)
		return
	}
	in, ok := referenceInput(w, r)
	if !ok {
		return
	}
	ref, err := h.refs.Update(r.Context(), id, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ref)
}

func (h *Handler) DeleteReferenceHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.refs.Delete(r.Context(), domain.ParseRefID(mux.Vars(r)["id"])); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func referenceInput(w http.ResponseWriter, r *http.Request) (domain.ReferenceInput, bool) {
	var in domain.ReferenceInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return in, false
	}
	if err := validation.Struct(in).Err(); err != nil {
		fail(w, r, err)
		return in, false
	}
	return in, true
}

func (h *Handler) LookupHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := h.refs.Lookup(r.Context(), mux.Vars(r)["name"], r.URL.Query().Get("q"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rows)
}
