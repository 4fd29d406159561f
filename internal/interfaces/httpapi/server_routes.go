package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, swaggerEnabled bool) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if !swaggerEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerPublicDomainRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/events", handler.ListEvents)
	mux.HandleFunc("GET /v1/events/{eventID}", handler.GetEvent)
	mux.HandleFunc("GET /v1/contacts", handler.ListContacts)
}

func registerAuthorizedRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("POST /v1/convocations", RequireAuth(verifier, http.HandlerFunc(handler.CreateConvocationBatch)))
	mux.Handle("GET /v1/convocations", RequireAuth(verifier, http.HandlerFunc(handler.ListConvocationBatches)))
	mux.Handle("GET /v1/convocations/{batchID}", RequireAuth(verifier, http.HandlerFunc(handler.GetConvocationBatch)))
	mux.Handle("POST /v1/convocations/{batchID}/cancel", RequireAuth(verifier, http.HandlerFunc(handler.CancelConvocationBatch)))
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/jobs/convocations/{batchID}/dispatch", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunConvocationDispatchJob)))
	mux.Handle("POST /v1/internal/webhooks/mail-events", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RecordMailEngagement)))
}
