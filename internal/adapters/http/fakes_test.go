package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/noor1991nassar-hub/N-PRO/internal/config"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
	"github.com/noor1991nassar-hub/N-PRO/internal/observability/metrics"
)

type tenantsFake struct {
	tenants map[string]*domain.Tenant
	users   map[string]*domain.User
	created []string
}

func newTenantsFake() *tenantsFake {
	return &tenantsFake{
		tenants: map[string]*domain.Tenant{},
		users:   map[string]*domain.User{},
	}
}

func (f *tenantsFake) addTenant(name string) *domain.Tenant {
	t := &domain.Tenant{ID: int64(len(f.tenants) + 1), CompanyName: name, SubscriptionActive: true}
	f.tenants[name] = t
	return t
}

func (f *tenantsFake) addUser(tenant *domain.Tenant, email string, role domain.Role) {
	f.users[email] = &domain.User{ID: int64(len(f.users) + 1), TenantID: tenant.ID, Email: email, Role: role, IsActive: true}
}

func (f *tenantsFake) Resolve(_ context.Context, name string, createIfMissing bool) (*domain.Tenant, error) {
	if t, ok := f.tenants[name]; ok {
		return t, nil
	}
	if !createIfMissing {
		return nil, domain.WrapError(domain.ErrNotFound, "resolve tenant", fmt.Errorf("tenant %q", name))
	}
	f.created = append(f.created, name)
	return f.addTenant(name), nil
}

func (f *tenantsFake) ResolveUser(_ context.Context, tenantID int64, email string) (*domain.User, error) {
	u, ok := f.users[strings.ToLower(email)]
	if !ok || u.TenantID != tenantID {
		return nil, domain.WrapError(domain.ErrUnauthorized, "resolve user", errors.New("user not identified"))
	}
	return u, nil
}

type documentsFake struct {
	// overwrites makes forced uploads report a replaced gateway file.
	overwrites bool
	uploads    []domain.UploadRequest
	bodies     []string
	err        error
	listing    *domain.DocumentListing
	listFor    []int64
}

func (f *documentsFake) Upload(_ context.Context, req domain.UploadRequest, body io.Reader) (*domain.UploadResult, error) {
	raw, _ := io.ReadAll(body)
	f.uploads = append(f.uploads, req)
	f.bodies = append(f.bodies, string(raw))
	if f.err != nil {
		return nil, f.err
	}
	return &domain.UploadResult{
		Document: &domain.Document{
			ID:       int64(len(f.uploads)),
			TenantID: req.TenantID,
			Filename: req.Filename,
			MimeType: req.MimeType,
			Status:   domain.StatusIndexing,
		},
		Overwritten: req.Force && f.overwrites,
	}, nil
}

func (f *documentsFake) ListDocuments(_ context.Context, tenantID int64) (*domain.DocumentListing, error) {
	f.listFor = append(f.listFor, tenantID)
	if f.err != nil {
		return nil, f.err
	}
	if f.listing == nil {
		return &domain.DocumentListing{}, nil
	}
	return f.listing, nil
}

type dispatcherFake struct {
	requests [][2]int64
	err      error
}

func (f *dispatcherFake) RequestExtraction(_ context.Context, tenantID, documentID int64) error {
	f.requests = append(f.requests, [2]int64{tenantID, documentID})
	return f.err
}

type chatFake struct {
	last  domain.ChatRequest
	calls int
	err   error
}

func (f *chatFake) Ask(_ context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatAnswer{Answer: "grounded: " + req.Query, RoleUsed: req.User.Role, Sources: 1}, nil
}

type invoicesFake struct {
	invoices []domain.Invoice
	export   string
	err      error
}

func (f *invoicesFake) ListInvoices(_ context.Context, tenantID int64) ([]domain.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Invoice
	for _, inv := range f.invoices {
		if inv.TenantID == tenantID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *invoicesFake) GetInvoice(_ context.Context, tenantID, invoiceID int64) (*domain.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.ID == invoiceID && inv.TenantID == tenantID {
			return &inv, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "get invoice", fmt.Errorf("invoice %d", invoiceID))
}

func (f *invoicesFake) ExportInvoices(_ context.Context, _ int64, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, f.export)
	return err
}

type fakeServices struct {
	tenants    *tenantsFake
	documents  *documentsFake
	dispatcher *dispatcherFake
	chat       *chatFake
	invoices   *invoicesFake
}

func newFakeServices() *fakeServices {
	return &fakeServices{
		tenants:    newTenantsFake(),
		documents:  &documentsFake{},
		dispatcher: &dispatcherFake{},
		chat:       &chatFake{},
		invoices:   &invoicesFake{},
	}
}

func (f *fakeServices) services() Services {
	return Services{
		Documents:  f.documents,
		Extraction: f.dispatcher,
		Chat:       f.chat,
		Tenants:    f.tenants,
		Invoices:   f.invoices,
	}
}

func testConfig() config.Config {
	return config.Config{
		MaxUploadMB:        5,
		CORSAllowedOrigins: []string{"*"},
	}
}

func newTestHandler(cfg config.Config, svc *fakeServices) http.Handler {
	return NewRouter(cfg, svc.services(), metrics.NewHTTPServerMetrics("test")).Handler()
}
