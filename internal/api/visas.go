package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/punchamoorthee/visaops/internal/domain"
	"github.com/punchamoorthee/visaops/internal/service"
	"github.com/punchamoorthee/visaops/internal/validation"
	"github.com/punchamoorthee/visaops/internal/wizard"
)

func (h *Handler) SubmitVisaHandler(w http.ResponseWriter, r *http.Request) {
	// 1. Validate Header
	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		respondWithError(w, http.StatusBadRequest, "Missing Idempotency-Key header")
		return
	}

	// 2. Read and Hash Body
	bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	hash := sha256.Sum256(bodyBytes)
	reqHash := hex.EncodeToString(hash[:])

	var draft domain.VisaDraft
	if err := json.Unmarshal(bodyBytes, &draft); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	// 3. Call Service
	resp, existing, err := h.visas.Submit(r.Context(), draft, currentSession(r).Username, idempotencyKey, reqHash)
	if err != nil {
		fail(w, r, err)
		return
	}

	// Handle Idempotent Replay
	if existing != nil {
		w.Header().Set("Idempotent-Replayed", "true")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.ResponseStatus)
		w.Write(existing.ResponseBody)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/visas/%s", resp.Visa.Code))
	respondWithJSON(w, http.StatusCreated, resp)
}

// ValidateStepHandler checks one wizard step of a draft and reports the step
// the form should move to.
func (h *Handler) ValidateStepHandler(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(mux.Vars(r)["step"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Step must be an integer")
		return
	}
	var draft domain.VisaDraft
	if err := decodeJSON(r, &draft); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if t, err := domain.ParseVisaType(string(draft.Type)); err == nil {
		draft.Type = t
	}
	next, err := wizard.Next(&draft, step)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"step":  step,
		"next":  next,
		"prev":  wizard.Prev(draft.Type, step),
		"steps": wizard.Steps(draft.Type),
	})
}

func (h *Handler) ListVisasHandler(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.visas.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

// InboxHandler lists visas waiting on the caller's decision.
func (h *Handler) InboxHandler(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.visas.Inbox(r.Context(), currentSession(r).Username, f)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *Handler) GetVisaHandler(w http.ResponseWriter, r *http.Request) {
	detail, err := h.visas.Detail(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

func (h *Handler) NextCodeHandler(w http.ResponseWriter, r *http.Request) {
	t, err := domain.ParseVisaType(r.URL.Query().Get("type"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	code, err := h.visas.PreviewCode(r.Context(), t)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"visa_type": string(t), "code": code})
}

func (h *Handler) RespondHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RespondRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if err := validation.Struct(req).Err(); err != nil {
		fail(w, r, err)
		return
	}
	resp, err := domain.ParseResponse(req.Response)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := h.visas.Respond(r.Context(), mux.Vars(r)["code"], currentSession(r).Username, resp, req.Remarks)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, v)
}

func (h *Handler) ListAttachmentsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.visas.Attachments(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

// UploadAttachmentHandler accepts a multipart form with a single "file" part.
func (h *Handler) UploadAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing file part")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Unable to read upload")
		return
	}
	a, err := h.visas.AddAttachment(r.Context(), mux.Vars(r)["code"], header.Filename, data, currentSession(r).Username)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, a)
}

func (h *Handler) DownloadAttachmentHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, err := uuid.Parse(vars["id"]); err != nil {
		fail(w, r, service.ErrAttachmentNotFound)
		return
	}
	a, rc, err := h.visas.OpenAttachment(r.Context(), vars["code"], vars["id"])
	if err != nil {
		fail(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Name))
	if a.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}

func (h *Handler) ListBudgetsHandler(w http.ResponseWriter, r *http.Request) {
	onlyOpen, _ := strconv.ParseBool(r.URL.Query().Get("open"))
	list, err := h.visas.Budgets(r.Context(), onlyOpen)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) GetBudgetHandler(w http.ResponseWriter, r *http.Request) {
	a, entries, err := h.visas.Budget(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"budget": a, "entries": entries})
}

// PreviewBudgetHandler shows what a draft would leave on the parent budget.
// Nothing is reserved.
func (h *Handler) PreviewBudgetHandler(w http.ResponseWriter, r *http.Request) {
	var draft domain.VisaDraft
	if err := decodeJSON(r, &draft); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	res, err := h.visas.PreviewBudget(r.Context(), mux.Vars(r)["code"], &draft)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondWithError(w, http.StatusBadRequest, "year must be a positive integer")
			return
		}
		year = n
	}
	d, err := h.visas.Dashboard(r.Context(), year)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, d)
}
