package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/noor1991nassar-hub/N-PRO/internal/config"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/ports"
	"github.com/noor1991nassar-hub/N-PRO/internal/observability/metrics"
)

const (
	serviceName = "api"

	multipartMemory  = 8 << 20
	defaultChatEmail = "eng@demo.com"
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Services are the inbound ports the router dispatches to.
type Services struct {
	Documents  ports.DocumentLifecycle
	Extraction ports.ExtractionDispatcher
	Chat       ports.ChatService
	Tenants    ports.TenantDirectory
	Invoices   ports.InvoiceReader
}

type Router struct {
	cfg     config.Config
	svc     Services
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, svc Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:     cfg,
		svc:     svc,
		metrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(accessLogMiddleware)
	r.Use(middleware.Recoverer)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(serviceName, next)
		})
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", tenantHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, duplicateOfHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
		})
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
		})
		r.Use(tenantMiddleware)

		r.Post("/document", rt.uploadDocument)
		r.Get("/document", rt.listDocuments)
		r.Post("/extract/{document_id}", rt.requestExtraction)
		r.Get("/invoices", rt.listInvoices)
		r.Get("/invoices/export", rt.exportInvoices)
		r.Get("/invoice/{invoice_id}", rt.getInvoice)
		r.Post("/chat", rt.chat)
	})

	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if limit := rt.cfg.MaxUploadBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file exceeds upload limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	force, err := forceFlag(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "force must be a boolean"})
		return
	}

	tenant, err := rt.svc.Tenants.Resolve(r.Context(), tenantNameFromContext(r.Context()), true)
	if err != nil {
		writeError(w, r, "resolve tenant", err)
		return
	}

	res, err := rt.svc.Documents.Upload(r.Context(), domain.UploadRequest{
		TenantID: tenant.ID,
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Force:    force,
	}, file)
	if err != nil {
		rt.recordUpload(uploadOutcome(nil, err))
		writeError(w, r, "upload", err)
		return
	}
	rt.recordUpload(uploadOutcome(res, nil))
	doc := res.Document

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     doc.ID,
		"title":  doc.Filename,
		"status": doc.Status,
	})
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	tenant, err := rt.svc.Tenants.Resolve(r.Context(), tenantNameFromContext(r.Context()), false)
	if err != nil {
		writeError(w, r, "resolve tenant", err)
		return
	}

	listing, err := rt.svc.Documents.ListDocuments(r.Context(), tenant.ID)
	if err != nil {
		writeError(w, r, "list documents", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSyncOutcomes(serviceName, listing.Outcomes)
	}

	type documentView struct {
		ID        int64                 `json:"id"`
		Title     string                `json:"title"`
		Status    domain.DocumentStatus `json:"status"`
		CreatedAt time.Time             `json:"created_at"`
	}
	out := make([]documentView, 0, len(listing.Documents))
	for _, d := range listing.Documents {
		out = append(out, documentView{ID: d.ID, Title: d.Filename, Status: d.Status, CreatedAt: d.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) requestExtraction(w http.ResponseWriter, r *http.Request) {
	documentID, ok := pathID(w, r, "document_id")
	if !ok {
		return
	}

	tenant, err := rt.svc.Tenants.Resolve(r.Context(), tenantNameFromContext(r.Context()), false)
	if err != nil {
		writeError(w, r, "resolve tenant", err)
		return
	}

	err = rt.svc.Extraction.RequestExtraction(r.Context(), tenant.ID, documentID)
	if rt.metrics != nil {
		rt.metrics.RecordExtractionRequest(serviceName, err)
	}
	if err != nil {
		writeError(w, r, "request extraction", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Extraction started",
		"status":  "processing",
	})
}

func (rt *Router) listInvoices(w http.ResponseWriter, r *http.Request) {
	tenant, err := rt.svc.Tenants.Resolve(r.Context(), tenantNameFromContext(r.Context()), true)
	if err != nil {
		writeError(w, r, "resolve tenant", err)
		return
	}

	invoices, err := rt.svc.Invoices.ListInvoices(r.Context(), tenant.ID)
	if err != nil {
		writeError(w, r, "list invoices", err)
		return
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (rt *Router) exportInvoices(w http.ResponseWriter, r *http.Request) {
	tenant, err := rt.svc.Tenants.Resolve(r.Context(), tenantNameFromContext(r.Context()), true)
	if err != nil {
		writeError(w, r, "resolve tenant", err)
		return
	}

	var buf bytes.Buffer
	if err := rt.svc.Invoices.ExportInvoices(r.Context(), tenant.ID, &buf); err != nil {
		writeError(w, r, "export invoices", err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (rt *Router) getInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := pathID(w, r, "invoice_id")
	if !ok {
		return
	}

	tenant, err := rt.svc.Tenants.Resolve(r.Context(), tenantNameFromContext(r.Context()), false)
	if err != nil {
		writeError(w, r, "resolve tenant", err)
		return
	}

	invoice, err := rt.svc.Invoices.GetInvoice(r.Context(), tenant.ID, invoiceID)
	if err != nil {
		writeError(w, r, "get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req struct {
		Query     string `json:"query"`
		UserEmail string `json:"user_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if strings.TrimSpace(req.UserEmail) == "" {
		req.UserEmail = defaultChatEmail
	}

	tenant, err := rt.svc.Tenants.Resolve(r.Context(), tenantNameFromContext(r.Context()), false)
	if err != nil {
		writeError(w, r, "resolve tenant", err)
		return
	}
	user, err := rt.svc.Tenants.ResolveUser(r.Context(), tenant.ID, req.UserEmail)
	if err != nil {
		writeError(w, r, "resolve user", err)
		return
	}

	answer, err := rt.svc.Chat.Ask(r.Context(), domain.ChatRequest{
		Tenant: *tenant,
		User:   *user,
		Query:  req.Query,
	})
	if rt.metrics != nil {
		rt.metrics.RecordChat(serviceName, user.Role, answer, time.Since(start))
	}
	if err != nil {
		writeError(w, r, "chat", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":    answer.Answer,
		"role_used": answer.RoleUsed,
	})
}

func (rt *Router) recordUpload(outcome string) {
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, outcome)
	}
}

func uploadOutcome(res *domain.UploadResult, err error) string {
	switch {
	case err == nil && res.Overwritten:
		return "overwritten"
	case err == nil:
		return "created"
	case domain.IsKind(err, domain.ErrConflict):
		return "duplicate"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "rejected"
	default:
		return "failed"
	}
}

// forceFlag reads force from the query string, falling back to the form field.
func forceFlag(r *http.Request) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("force"))
	if raw == "" {
		raw = strings.TrimSpace(r.FormValue("force"))
	}
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": param + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
