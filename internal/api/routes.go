package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(Metrics)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")

	r.HandleFunc("/api/v1/sessions", h.LoginHandler).Methods("POST")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(h.RequireSession)

	apiV1.HandleFunc("/sessions", h.LogoutHandler).Methods("DELETE")
	apiV1.HandleFunc("/sessions/current", h.CurrentSessionHandler).Methods("GET")

	apiV1.HandleFunc("/visas", h.ListVisasHandler).Methods("GET")
	apiV1.HandleFunc("/visas", h.SubmitVisaHandler).Methods("POST")
	apiV1.HandleFunc("/visas/export", h.ExportVisasHandler).Methods("GET")
	apiV1.HandleFunc("/visas/next-code", h.NextCodeHandler).Methods("GET")
	apiV1.HandleFunc("/visas/steps/{step}", h.ValidateStepHandler).Methods("POST")
	apiV1.HandleFunc("/visas/{code}", h.GetVisaHandler).Methods("GET")
	apiV1.HandleFunc("/visas/{code}/responses", h.RespondHandler).Methods("POST")
	apiV1.HandleFunc("/visas/{code}/attachments", h.ListAttachmentsHandler).Methods("GET")
	apiV1.HandleFunc("/visas/{code}/attachments", h.UploadAttachmentHandler).Methods("POST")
	apiV1.HandleFunc("/visas/{code}/attachments/{id}", h.DownloadAttachmentHandler).Methods("GET")

	apiV1.HandleFunc("/approvals/inbox", h.InboxHandler).Methods("GET")

	apiV1.HandleFunc("/budgets", h.ListBudgetsHandler).Methods("GET")
	apiV1.HandleFunc("/budgets/{code}", h.GetBudgetHandler).Methods("GET")
	apiV1.HandleFunc("/budgets/{code}/preview", h.PreviewBudgetHandler).Methods("POST")

	apiV1.HandleFunc("/dashboard", h.DashboardHandler).Methods("GET")

	apiV1.HandleFunc("/references/{type}", h.ListReferencesHandler).Methods("GET")
	apiV1.HandleFunc("/references/{type}", h.CreateReferenceHandler).Methods("POST")
	apiV1.HandleFunc("/references/{type}/{id}", h.GetReferenceHandler).Methods("GET")
	apiV1.HandleFunc("/references/{type}/{id}", h.UpdateReferenceHandler).Methods("PUT")
	apiV1.HandleFunc("/references/{type}/{id}", h.DeleteReferenceHandler).Methods("DELETE")

	apiV1.HandleFunc("/lookups/{name}", h.LookupHandler).Methods("GET")

	apiV1.HandleFunc("/events", h.EventsHandler).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not Found")
	})
	return r
}
