package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
)

func multipartUpload(t *testing.T, target, filename, mimeType string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if mimeType != "" {
		header.Set("Content-Type", mimeType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(tenantHeader, "Acme")
	return req
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(res.Body.Bytes())).Decode(out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
}

func TestUploadDocumentCreatesTenantAndReturnsDocument(t *testing.T) {
	svc := newFakeServices()
	handler := newTestHandler(testConfig(), svc)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "/api/v1/document", "invoice.pdf", "application/pdf", []byte("%PDF-1.4")))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var resp struct {
		ID     int64  `json:"id"`
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	decodeBody(t, res, &resp)
	if resp.ID != 1 || resp.Title != "invoice.pdf" || resp.Status != string(domain.StatusIndexing) {
		t.Fatalf("unexpected upload response: %+v", resp)
	}
	if len(svc.tenants.created) != 1 || svc.tenants.created[0] != "Acme" {
		t.Fatalf("expected tenant Acme to be created lazily, got %v", svc.tenants.created)
	}

	got := svc.documents.uploads[0]
	if got.Filename != "invoice.pdf" || got.MimeType != "application/pdf" || got.Force {
		t.Fatalf("unexpected upload request: %+v", got)
	}
	if svc.documents.bodies[0] != "%PDF-1.4" {
		t.Fatalf("unexpected upload body %q", svc.documents.bodies[0])
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestUploadDocumentReadsForceFlagFromQuery(t *testing.T) {
	svc := newFakeServices()
	handler := newTestHandler(testConfig(), svc)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "/api/v1/document?force=true", "invoice.pdf", "application/pdf", []byte("x")))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !svc.documents.uploads[0].Force {
		t.Fatalf("expected force flag to reach the lifecycle service")
	}
}

func scrapeMetrics(t *testing.T, handler http.Handler) string {
	t.Helper()
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("metrics expected 200, got %d", res.Code)
	}
	return res.Body.String()
}

func TestUploadDocumentRecordsOverwriteOnlyWhenReplaced(t *testing.T) {
	tests := []struct {
		name       string
		overwrites bool
		want       string
		absent     string
	}{
		{name: "forced without existing file", overwrites: false, want: `outcome="created"`, absent: `outcome="overwritten"`},
		{name: "forced over existing file", overwrites: true, want: `outcome="overwritten"`, absent: `outcome="created"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeServices()
			svc.documents.overwrites = tt.overwrites
			handler := newTestHandler(testConfig(), svc)

			res := httptest.NewRecorder()
			handler.ServeHTTP(res, multipartUpload(t, "/api/v1/document?force=true", "invoice.pdf", "application/pdf", []byte("x")))
			if res.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", res.Code)
			}

			body := scrapeMetrics(t, handler)
			if !strings.Contains(body, "npro_documents_uploads_total{"+tt.want) {
				t.Fatalf("expected %s upload series, got:\n%s", tt.want, body)
			}
			if strings.Contains(body, "npro_documents_uploads_total{"+tt.absent) {
				t.Fatalf("unexpected %s upload series", tt.absent)
			}
		})
	}
}

func TestUploadOutcome(t *testing.T) {
	doc := &domain.Document{ID: 1}
	tests := []struct {
		res  *domain.UploadResult
		err  error
		want string
	}{
		{res: &domain.UploadResult{Document: doc}, want: "created"},
		{res: &domain.UploadResult{Document: doc, Overwritten: true}, want: "overwritten"},
		{err: &domain.DuplicateFileError{DisplayName: "a.pdf", ExistingRef: "files/a"}, want: "duplicate"},
		{err: domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("empty")), want: "rejected"},
		{err: errors.New("boom"), want: "failed"},
	}
	for _, tt := range tests {
		if got := uploadOutcome(tt.res, tt.err); got != tt.want {
			t.Fatalf("uploadOutcome(%+v, %v) = %q, want %q", tt.res, tt.err, got, tt.want)
		}
	}
}

func TestUploadDocumentRejectsMalformedForceFlag(t *testing.T) {
	svc := newFakeServices()
	handler := newTestHandler(testConfig(), svc)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "/api/v1/document?force=maybe", "invoice.pdf", "application/pdf", []byte("x")))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(svc.documents.uploads) != 0 {
		t.Fatalf("expected no upload on malformed force flag")
	}
}

func TestUploadDocumentDuplicateReturns409WithExistingRef(t *testing.T) {
	svc := newFakeServices()
	svc.documents.err = domain.WrapError(domain.ErrConflict, "upload", &domain.DuplicateFileError{
		DisplayName: "invoice.pdf",
		ExistingRef: "files/abc123",
	})
	handler := newTestHandler(testConfig(), svc)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "/api/v1/document", "invoice.pdf", "application/pdf", []byte("x")))

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
	if got := res.Header().Get(duplicateOfHeader); got != "files/abc123" {
		t.Fatalf("expected duplicate header files/abc123, got %q", got)
	}
	var resp map[string]string
	decodeBody(t, res, &resp)
	if resp["existing_ref"] != "files/abc123" {
		t.Fatalf("expected existing_ref in body, got %v", resp)
	}
}

func TestUploadDocumentGatewayFailureReturns500(t *testing.T) {
	svc := newFakeServices()
	svc.documents.err = domain.WrapError(domain.ErrExternalService, "upload file", errors.New("gateway down"))
	handler := newTestHandler(testConfig(), svc)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "/api/v1/document", "invoice.pdf", "application/pdf", []byte("x")))

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}

func TestUploadDocumentRejectsOversizedBody(t *testing.T) {
	svc := newFakeServices()
	cfg := testConfig()
	cfg.MaxUploadMB = 1
	handler := newTestHandler(cfg, svc)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartUpload(t, "/api/v1/document", "big.pdf", "application/pdf", bytes.Repeat([]byte("a"), 2<<20)))

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
	if len(svc.documents.uploads) != 0 {
		t.Fatalf("expected oversized upload to be rejected before the service")
	}
}

func TestUploadDocumentRequiresFileField(t *testing.T) {
	svc := newFakeServices()
	handler := newTestHandler(testConfig(), svc)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("force", "true")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/document", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(tenantHeader, "Acme")

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestTenantHeaderIsRequired(t *testing.T) {
	svc := newFakeServices()
	handler := newTestHandler(testConfig(), svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(svc.tenants.created) != 0 {
		t.Fatalf("expected no tenant to be created")
	}
}

func TestListDocumentsUnknownTenantReturns404(t *testing.T) {
	svc := newFakeServices()
	handler := newTestHandler(testConfig(), svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/document", nil)
	req.Header.Set(tenantHeader, "Nobody")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if len(svc.tenants.created) != 0 || len(svc.documents.listFor) != 0 {
		t.Fatalf("listing must not create tenants or query documents")
	}
}

func TestListDocumentsReturnsSyncedDocuments(t *testing.T) {
	svc := newFakeServices()
	tenant := svc.tenants.addTenant("Acme")
	svc.documents.listing = &domain.DocumentListing{
		Documents: []domain.Document{
			{ID: 2, TenantID: tenant.ID, Filename: "b.pdf", Status: domain.StatusActive},
			{ID: 1, TenantID: tenant.ID, Filename: "a.pdf", Status: domain.StatusIndexing},
		},
		Outcomes: []domain.SyncOutcome{
			{DocumentID: 2, Result: domain.SyncUpdated, From: domain.StatusIndexing, To: domain.StatusActive},
			{DocumentID: 1, Result: domain.SyncError, From: domain.StatusIndexing},
		},
	}
	handler := newTestHandler(testConfig(), svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/document", nil)
	req.Header.Set(tenantHeader, "Acme")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var docs []map[string]any
	decodeBody(t, res, &docs)
	if len(docs) != 2 || docs[0]["title"] != "b.pdf" || docs[0]["status"] != "active" {
		t.Fatalf("unexpected listing: %v", docs)
	}
	if svc.documents.listFor[0] != tenant.ID {
		t.Fatalf("expected listing for tenant %d, got %v", tenant.ID, svc.documents.listFor)
	}
}

func TestRequestExtractionReturns202(t *testing.T) {
	svc := newFakeServices()
	tenant := svc.tenants.addTenant("Acme")
	handler := newTestHandler(testConfig(), svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract/42", nil)
	req.Header.Set(tenantHeader, "Acme")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	var resp map[string]string
	decodeBody(t, res, &resp)
	if resp["message"] != "Extraction started" || resp["status"] != "processing" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if len(svc.dispatcher.requests) != 1 || svc.dispatcher.requests[0] != [2]int64{tenant.ID, 42} {
		t.Fatalf("unexpected dispatch: %v", svc.dispatcher.requests)
	}
}

func TestRequestExtractionMapsErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		expected int
	}{
		{name: "non numeric id", path: "/api/v1/extract/abc", expected: http.StatusBadRequest},
		{name: "foreign document", path: "/api/v1/extract/7", err: domain.WrapError(domain.ErrNotFound, "request extraction", errors.New("document 7")), expected: http.StatusNotFound},
		{name: "queue full", path: "/api/v1/extract/7", err: domain.WrapError(domain.ErrTemporary, "publish", errors.New("queue full")), expected: http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newFakeServices()
			svc.tenants.addTenant("Acme")
			svc.dispatcher.err = tc.err
			handler := newTestHandler(testConfig(), svc)

			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			req.Header.Set(tenantHeader, "Acme")
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, res.Code)
			}
		})
	}
}

func TestListInvoicesReturnsEmptyArrayForNewTenant(t *testing.T) {
	svc := newFakeServices()
	handler := newTestHandler(testConfig(), svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	req.Header.Set(tenantHeader, "Fresh Co")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if strings.TrimSpace(res.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %q", res.Body.String())
	}
	if len(svc.tenants.created) != 1 {
		t.Fatalf("expected invoice listing to create the tenant")
	}
}

func TestGetInvoiceIsTenantScoped(t *testing.T) {
	svc := newFakeServices()
	acme := svc.tenants.addTenant("Acme")
	other := svc.tenants.addTenant("Other")
	svc.invoices.invoices = []domain.Invoice{
		{ID: 1, TenantID: acme.ID, InvoiceNumber: "INV-1", Currency: "SAR"},
		{ID: 2, TenantID: other.ID, InvoiceNumber: "INV-2", Currency: "SAR"},
	}
	handler := newTestHandler(testConfig(), svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoice/1", nil)
	req.Header.Set(tenantHeader, "Acme")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var inv domain.Invoice
	decodeBody(t, res, &inv)
	if inv.InvoiceNumber != "INV-1" {
		t.Fatalf("unexpected invoice %+v", inv)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/invoice/2", nil)
	req.Header.Set(tenantHeader, "Acme")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another tenant's invoice, got %d", res.Code)
	}
}

func TestExportInvoicesWritesSpreadsheet(t *testing.T) {
	svc := newFakeServices()
	svc.invoices.export = "PK-fake-workbook"
	handler := newTestHandler(testConfig(), svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/export", nil)
	req.Header.Set(tenantHeader, "Acme")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Type"); got != xlsxContentType {
		t.Fatalf("unexpected content type %q", got)
	}
	if res.Body.String() != "PK-fake-workbook" {
		t.Fatalf("unexpected body %q", res.Body.String())
	}
}

func TestChatAnswersWithCallerRole(t *testing.T) {
	svc := newFakeServices()
	tenant := svc.tenants.addTenant("Acme")
	svc.tenants.addUser(tenant, "lawyer@acme.test", domain.RoleLawyer)
	handler := newTestHandler(testConfig(), svc)

	payload := `{"query":"What is the penalty clause?","user_email":"lawyer@acme.test"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tenantHeader, "Acme")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var resp map[string]string
	decodeBody(t, res, &resp)
	if resp["role_used"] != "lawyer" || resp["answer"] != "grounded: What is the penalty clause?" {
		t.Fatalf("unexpected chat response: %v", resp)
	}
	if svc.chat.last.Tenant.ID != tenant.ID || svc.chat.last.User.Email != "lawyer@acme.test" {
		t.Fatalf("unexpected chat request: %+v", svc.chat.last)
	}
}

func TestChatDefaultsUserEmail(t *testing.T) {
	svc := newFakeServices()
	tenant := svc.tenants.addTenant("Acme")
	svc.tenants.addUser(tenant, defaultChatEmail, domain.RoleEngineer)
	handler := newTestHandler(testConfig(), svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"query":"status?"}`))
	req.Header.Set(tenantHeader, "Acme")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if svc.chat.last.User.Role != domain.RoleEngineer {
		t.Fatalf("expected engineer default user, got %+v", svc.chat.last.User)
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name     string
		tenant   string
		payload  string
		expected int
	}{
		{name: "invalid json", tenant: "Acme", payload: "{", expected: http.StatusBadRequest},
		{name: "empty query", tenant: "Acme", payload: `{"query":"  ","user_email":"eng@acme.test"}`, expected: http.StatusBadRequest},
		{name: "unknown tenant", tenant: "Nobody", payload: `{"query":"hi","user_email":"eng@acme.test"}`, expected: http.StatusNotFound},
		{name: "unknown user", tenant: "Acme", payload: `{"query":"hi","user_email":"ghost@acme.test"}`, expected: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newFakeServices()
			tenant := svc.tenants.addTenant("Acme")
			svc.tenants.addUser(tenant, "eng@acme.test", domain.RoleEngineer)
			handler := newTestHandler(testConfig(), svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(tc.payload))
			req.Header.Set(tenantHeader, tc.tenant)
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.expected {
				t.Fatalf("expected %d, got %d", tc.expected, res.Code)
			}
			if svc.chat.calls != 0 {
				t.Fatalf("expected chat service not to be called")
			}
		})
	}
}

func TestHealthAndMetricsDoNotRequireTenant(t *testing.T) {
	handler := newTestHandler(testConfig(), newFakeServices())

	for _, path := range []string{"/healthz", "/metrics"} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
		if res.Code != http.StatusOK {
			t.Fatalf("%s expected 200, got %d", path, res.Code)
		}
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrUnauthorized, "op", errors.New("x")), http.StatusUnauthorized},
		{domain.WrapError(domain.ErrNotFound, "op", errors.New("x")), http.StatusNotFound},
		{&domain.DuplicateFileError{DisplayName: "a.pdf"}, http.StatusConflict},
		{domain.WrapError(domain.ErrValidation, "op", errors.New("x")), http.StatusUnprocessableEntity},
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrPersistence, "op", errors.New("x")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.expected {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.expected, got)
		}
	}
}
