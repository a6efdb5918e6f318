package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/ports"
)

type memState struct {
	nextID   int64
	tenants  map[int64]domain.Tenant
	users    map[int64]domain.User
	docs     map[int64]domain.Document
	vendors  map[int64]domain.Vendor
	invoices map[int64]domain.Invoice
	items    map[int64]domain.InvoiceItem
	flags    map[int64]domain.AuditFlag
}

func newMemState() *memState {
	return &memState{
		tenants:  map[int64]domain.Tenant{},
		users:    map[int64]domain.User{},
		docs:     map[int64]domain.Document{},
		vendors:  map[int64]domain.Vendor{},
		invoices: map[int64]domain.Invoice{},
		items:    map[int64]domain.InvoiceItem{},
		flags:    map[int64]domain.AuditFlag{},
	}
}

func cloneMap[V any](in map[int64]V) map[int64]V {
	out := make(map[int64]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	return &memState{
		nextID:   s.nextID,
		tenants:  cloneMap(s.tenants),
		users:    cloneMap(s.users),
		docs:     cloneMap(s.docs),
		vendors:  cloneMap(s.vendors),
		invoices: cloneMap(s.invoices),
		items:    cloneMap(s.items),
		flags:    cloneMap(s.flags),
	}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// memStore mimics a transactional store: WithinTx works on a copy that only
// replaces the committed state when fn succeeds.
type memStore struct {
	state   *memState
	failOps map[string]error
	commits int
}

func newMemStore() *memStore {
	return &memStore{state: newMemState(), failOps: map[string]error{}}
}

func (m *memStore) fail(op string) error {
	return m.failOps[op]
}

func (m *memStore) reposFor(st *memState) ports.Repositories {
	return ports.Repositories{
		Tenants:   &memTenants{st: st, store: m},
		Documents: &memDocuments{st: st, store: m},
		Finance:   &memFinance{st: st, store: m},
	}
}

func (m *memStore) Repositories() ports.Repositories {
	return m.reposFor(m.state)
}

func (m *memStore) WithinTx(ctx context.Context, fn func(context.Context, ports.Repositories) error) error {
	if err := m.fail("begin"); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(ctx, m.reposFor(work)); err != nil {
		return err
	}
	m.state = work
	m.commits++
	return nil
}

type memTenants struct {
	st    *memState
	store *memStore
}

func (r *memTenants) FindByName(_ context.Context, name string) (*domain.Tenant, error) {
	for _, t := range r.st.tenants {
		if t.CompanyName == name {
			found := t
			return &found, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "find tenant", fmt.Errorf("name=%s", name))
}

func (r *memTenants) Create(_ context.Context, tenant *domain.Tenant) error {
	if err := r.store.fail("Tenants.Create"); err != nil {
		return err
	}
	tenant.ID = r.st.id()
	r.st.tenants[tenant.ID] = *tenant
	return nil
}

func (r *memTenants) FindUserByEmail(_ context.Context, tenantID int64, email string) (*domain.User, error) {
	for _, u := range r.st.users {
		if u.TenantID == tenantID && u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "find user", fmt.Errorf("email=%s", email))
}

type memDocuments struct {
	st    *memState
	store *memStore
}

func (r *memDocuments) Create(_ context.Context, doc *domain.Document) error {
	if err := r.store.fail("Documents.Create"); err != nil {
		return err
	}
	doc.ID = r.st.id()
	r.st.docs[doc.ID] = *doc
	return nil
}

func (r *memDocuments) GetByID(_ context.Context, id int64) (*domain.Document, error) {
	doc, ok := r.st.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id=%d", id))
	}
	return &doc, nil
}

func (r *memDocuments) ListByTenant(_ context.Context, tenantID int64) ([]domain.Document, error) {
	if err := r.store.fail("Documents.ListByTenant"); err != nil {
		return nil, err
	}
	var out []domain.Document
	for _, d := range r.st.docs {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memDocuments) ListByExternalRef(_ context.Context, name, uri string) ([]domain.Document, error) {
	var out []domain.Document
	for _, d := range r.st.docs {
		if (name != "" && d.ExternalName == name) || (uri != "" && d.ExternalURI == uri) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memDocuments) UpdateStatus(_ context.Context, id int64, status domain.DocumentStatus) (bool, error) {
	if err := r.store.fail("Documents.UpdateStatus"); err != nil {
		return false, err
	}
	doc, ok := r.st.docs[id]
	if !ok || doc.Status.IsTerminal() {
		return false, nil
	}
	doc.Status = status
	r.st.docs[id] = doc
	return true, nil
}

func (r *memDocuments) Delete(_ context.Context, id int64) error {
	if err := r.store.fail("Documents.Delete"); err != nil {
		return err
	}
	for _, inv := range r.st.invoices {
		if inv.DocumentID == id {
			return errors.New("foreign key violation: finance_invoices.document_id")
		}
	}
	delete(r.st.docs, id)
	return nil
}

type memFinance struct {
	st    *memState
	store *memStore
}

func (r *memFinance) UpsertVendor(_ context.Context, vendor *domain.Vendor) error {
	if err := r.store.fail("Finance.UpsertVendor"); err != nil {
		return err
	}
	for _, v := range r.st.vendors {
		if v.TenantID == vendor.TenantID && v.Name == vendor.Name {
			vendor.ID, vendor.TaxID, vendor.TrustScore = v.ID, v.TaxID, v.TrustScore
			return nil
		}
	}
	vendor.ID = r.st.id()
	r.st.vendors[vendor.ID] = *vendor
	return nil
}

func (r *memFinance) UpsertInvoiceHeader(_ context.Context, invoice *domain.Invoice) error {
	if err := r.store.fail("Finance.UpsertInvoiceHeader"); err != nil {
		return err
	}
	stored := *invoice
	stored.Items, stored.AuditFlags, stored.Vendor = nil, nil, nil
	for id, inv := range r.st.invoices {
		if inv.DocumentID == invoice.DocumentID {
			stored.ID, stored.PaymentStatus, stored.AuditStatus = id, inv.PaymentStatus, inv.AuditStatus
			break
		}
	}
	if stored.ID == 0 {
		stored.ID = r.st.id()
	}
	invoice.ID, invoice.PaymentStatus, invoice.AuditStatus = stored.ID, stored.PaymentStatus, stored.AuditStatus
	r.st.invoices[stored.ID] = stored
	return nil
}

func (r *memFinance) DeleteItems(_ context.Context, invoiceID int64) error {
	for id, it := range r.st.items {
		if it.InvoiceID == invoiceID {
			delete(r.st.items, id)
		}
	}
	return nil
}

func (r *memFinance) CreateItems(_ context.Context, invoiceID int64, items []domain.InvoiceItem) ([]domain.InvoiceItem, error) {
	if err := r.store.fail("Finance.CreateItems"); err != nil {
		return nil, err
	}
	out := make([]domain.InvoiceItem, 0, len(items))
	for _, it := range items {
		it.ID = r.st.id()
		it.InvoiceID = invoiceID
		r.st.items[it.ID] = it
		out = append(out, it)
	}
	return out, nil
}

func (r *memFinance) DeleteByDocument(_ context.Context, documentID int64) (int, error) {
	if err := r.store.fail("Finance.DeleteByDocument"); err != nil {
		return 0, err
	}
	deleted := 0
	for invID, inv := range r.st.invoices {
		if inv.DocumentID != documentID {
			continue
		}
		for id, it := range r.st.items {
			if it.InvoiceID == invID {
				delete(r.st.items, id)
			}
		}
		for id, f := range r.st.flags {
			if f.InvoiceID == invID {
				delete(r.st.flags, id)
			}
		}
		delete(r.st.invoices, invID)
		deleted++
	}
	return deleted, nil
}

func (r *memFinance) ListInvoices(_ context.Context, tenantID int64) ([]domain.Invoice, error) {
	var out []domain.Invoice
	for _, inv := range r.st.invoices {
		if inv.TenantID == tenantID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memFinance) GetInvoice(_ context.Context, tenantID, invoiceID int64) (*domain.Invoice, error) {
	inv, ok := r.st.invoices[invoiceID]
	if !ok || inv.TenantID != tenantID {
		return nil, domain.WrapError(domain.ErrNotFound, "get invoice", fmt.Errorf("id=%d", invoiceID))
	}
	inv.Items = r.itemsOf(invoiceID)
	return &inv, nil
}

func (r *memFinance) itemsOf(invoiceID int64) []domain.InvoiceItem {
	var out []domain.InvoiceItem
	for _, it := range r.st.items {
		if it.InvoiceID == invoiceID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// seedInvoice stores an invoice with items and audit flags for documentID.
func (m *memStore) seedInvoice(tenantID, documentID int64, items, flags int) domain.Invoice {
	st := m.state
	inv := domain.Invoice{
		ID:               st.id(),
		TenantID:         tenantID,
		DocumentID:       documentID,
		InvoiceNumber:    "OLD-1",
		TotalAmount:      10,
		Currency:         "SAR",
		ExtractionStatus: domain.ExtractionStatusCompleted,
	}
	st.invoices[inv.ID] = inv
	for i := 0; i < items; i++ {
		it := domain.InvoiceItem{ID: st.id(), InvoiceID: inv.ID, Description: fmt.Sprintf("old item %d", i), Quantity: 1}
		st.items[it.ID] = it
	}
	for i := 0; i < flags; i++ {
		f := domain.AuditFlag{ID: st.id(), InvoiceID: inv.ID, IssueType: "duplicate", Severity: "high"}
		st.flags[f.ID] = f
	}
	return inv
}

func (m *memStore) seedDocument(doc domain.Document) domain.Document {
	doc.ID = m.state.id()
	m.state.docs[doc.ID] = doc
	return doc
}

type gatewayFake struct {
	seq   int
	files map[string]domain.GatewayFile

	states   map[string]domain.FileState
	stateErr map[string]error

	findErr     error
	uploadErr   error
	deleteErr   error
	generateErr error
	answer      string

	deleted         []string
	stateCalls      []string
	generateCalls   int
	lastQuery       string
	lastFiles       []domain.FileRef
	lastInstruction string
}

func newGatewayFake() *gatewayFake {
	return &gatewayFake{
		files:    map[string]domain.GatewayFile{},
		states:   map[string]domain.FileState{},
		stateErr: map[string]error{},
	}
}

func (g *gatewayFake) addFile(displayName string) domain.GatewayFile {
	g.seq++
	name := fmt.Sprintf("files/f%d", g.seq)
	f := domain.GatewayFile{
		Name:        name,
		DisplayName: displayName,
		URI:         "https://gateway.test/v1beta/" + name,
		MimeType:    "application/pdf",
		State:       domain.FileStateProcessing,
	}
	g.files[name] = f
	return f
}

func (g *gatewayFake) UploadFile(_ context.Context, _ string, mimeType, displayName string) (*domain.GatewayFile, error) {
	if g.uploadErr != nil {
		return nil, g.uploadErr
	}
	f := g.addFile(displayName)
	f.MimeType = mimeType
	return &f, nil
}

func (g *gatewayFake) GetFileState(_ context.Context, name string) (domain.FileState, error) {
	g.stateCalls = append(g.stateCalls, name)
	if err := g.stateErr[name]; err != nil {
		return "", err
	}
	if s, ok := g.states[name]; ok {
		return s, nil
	}
	return domain.FileStateProcessing, nil
}

func (g *gatewayFake) FindFileByDisplayName(_ context.Context, displayName string) (*domain.GatewayFile, error) {
	if g.findErr != nil {
		return nil, g.findErr
	}
	for _, f := range g.files {
		if f.DisplayName == displayName {
			found := f
			return &found, nil
		}
	}
	return nil, nil
}

func (g *gatewayFake) DeleteFile(_ context.Context, name string) error {
	g.deleted = append(g.deleted, name)
	if g.deleteErr != nil {
		return g.deleteErr
	}
	delete(g.files, name)
	return nil
}

func (g *gatewayFake) GenerateAnswer(_ context.Context, query string, files []domain.FileRef, instruction string) (string, error) {
	g.generateCalls++
	g.lastQuery = query
	g.lastFiles = files
	g.lastInstruction = instruction
	if g.generateErr != nil {
		return "", g.generateErr
	}
	return g.answer, nil
}

type stagingFake struct {
	saved   map[string]string
	removed []string
	saveErr error
}

func newStagingFake() *stagingFake {
	return &stagingFake{saved: map[string]string{}}
}

func (s *stagingFake) Save(_ context.Context, key string, data io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.saved[key] = string(raw)
	return "/staging/" + key, nil
}

func (s *stagingFake) Remove(_ context.Context, key string) error {
	s.removed = append(s.removed, key)
	return nil
}

type inspectorFake struct {
	pages int
	err   error
}

func (f inspectorFake) PageCount(_ context.Context, _ string, mimeType string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if !strings.Contains(mimeType, "pdf") {
		return 0, nil
	}
	return f.pages, nil
}
