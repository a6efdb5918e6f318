package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/ports"
)

const defaultMimeType = "application/pdf"

type DocumentLifecycleUseCase struct {
	uow       ports.UnitOfWork
	gateway   ports.AIGateway
	storage   ports.StagingStorage
	inspector ports.DocumentInspector
	now       func() time.Time
}

func NewDocumentLifecycleUseCase(
	uow ports.UnitOfWork,
	gateway ports.AIGateway,
	storage ports.StagingStorage,
	inspector ports.DocumentInspector,
) *DocumentLifecycleUseCase {
	return &DocumentLifecycleUseCase{
		uow:       uow,
		gateway:   gateway,
		storage:   storage,
		inspector: inspector,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *DocumentLifecycleUseCase) Upload(
	ctx context.Context,
	req domain.UploadRequest,
	body io.Reader,
) (*domain.UploadResult, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("filename is required"))
	}
	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	existing, err := uc.gateway.FindFileByDisplayName(ctx, filename)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExternalService, "check duplicate file", err)
	}
	overwritten := false
	if existing != nil {
		if !req.Force {
			return nil, &domain.DuplicateFileError{DisplayName: filename, ExistingRef: existing.Name}
		}
		if err := uc.overwrite(ctx, existing); err != nil {
			return nil, err
		}
		overwritten = true
	}

	key := stagingKey(filename)
	path, err := uc.storage.Save(ctx, key, body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "stage upload", err)
	}
	defer uc.discardStaged(ctx, key)

	pageCount := uc.pageCount(ctx, path, mimeType)

	file, err := uc.gateway.UploadFile(ctx, path, mimeType, filename)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExternalService, "upload to gateway", err)
	}

	doc := &domain.Document{
		TenantID:     req.TenantID,
		Filename:     filename,
		MimeType:     mimeType,
		ExternalName: file.Name,
		ExternalURI:  file.URI,
		AccessLevel:  domain.AccessLevelGeneral,
		PageCount:    pageCount,
		Status:       domain.StatusIndexing,
		CreatedAt:    uc.now(),
	}
	err = uc.uow.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		return repos.Documents.Create(ctx, doc)
	})
	if err != nil {
		// The gateway copy would otherwise never be reachable from the store.
		if delErr := uc.gateway.DeleteFile(ctx, file.Name); delErr != nil {
			slog.Warn("gateway_orphan_delete_failed", "file", file.Name, "error", delErr)
		}
		return nil, domain.WrapError(domain.ErrPersistence, "create document", err)
	}
	return &domain.UploadResult{Document: doc, Overwritten: overwritten}, nil
}

// overwrite drops the gateway copy (best effort) and removes every local row
// bound to it in a single transaction.
func (uc *DocumentLifecycleUseCase) overwrite(ctx context.Context, existing *domain.GatewayFile) error {
	if err := uc.gateway.DeleteFile(ctx, existing.Name); err != nil {
		slog.Warn("gateway_delete_failed", "file", existing.Name, "error", err)
	}

	err := uc.uow.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		docs, err := repos.Documents.ListByExternalRef(ctx, existing.Name, existing.URI)
		if err != nil {
			return fmt.Errorf("find documents for %s: %w", existing.Name, err)
		}
		for _, doc := range docs {
			if _, err := repos.Finance.DeleteByDocument(ctx, doc.ID); err != nil {
				return fmt.Errorf("delete finance rows of document %d: %w", doc.ID, err)
			}
			if err := repos.Documents.Delete(ctx, doc.ID); err != nil {
				return fmt.Errorf("delete document %d: %w", doc.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "overwrite cleanup", err)
	}
	slog.Info("document_overwritten", "file", existing.Name, "display_name", existing.DisplayName)
	return nil
}

func (uc *DocumentLifecycleUseCase) ListDocuments(ctx context.Context, tenantID int64) (*domain.DocumentListing, error) {
	repo := uc.uow.Repositories().Documents
	docs, err := repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	listing := &domain.DocumentListing{
		Documents: docs,
		Outcomes:  make([]domain.SyncOutcome, 0, len(docs)),
	}
	for i := range listing.Documents {
		listing.Outcomes = append(listing.Outcomes, uc.syncStatus(ctx, repo, &listing.Documents[i]))
	}
	return listing, nil
}

func (uc *DocumentLifecycleUseCase) syncStatus(ctx context.Context, repo ports.DocumentRepository, doc *domain.Document) domain.SyncOutcome {
	outcome := domain.SyncOutcome{DocumentID: doc.ID, From: doc.Status, Result: domain.SyncSkipped}
	name := doc.ExternalFileName()
	if doc.Status.IsTerminal() || name == "" {
		return outcome
	}

	state, err := uc.gateway.GetFileState(ctx, name)
	if err != nil {
		slog.Warn("document_sync_failed", "document_id", doc.ID, "file", name, "error", err)
		outcome.Result = domain.SyncError
		outcome.Err = domain.WrapError(domain.ErrExternalService, "get file state", err)
		return outcome
	}

	next, terminal := state.DocumentStatus()
	if !terminal {
		outcome.Result = domain.SyncUnchanged
		return outcome
	}

	changed, err := repo.UpdateStatus(ctx, doc.ID, next)
	if err != nil {
		slog.Warn("document_sync_persist_failed", "document_id", doc.ID, "status", next, "error", err)
		outcome.Result = domain.SyncError
		outcome.Err = err
		return outcome
	}
	if !changed {
		outcome.Result = domain.SyncUnchanged
		return outcome
	}

	doc.Status = next
	outcome.Result = domain.SyncUpdated
	outcome.To = next
	return outcome
}

func (uc *DocumentLifecycleUseCase) pageCount(ctx context.Context, path, mimeType string) int {
	if uc.inspector == nil {
		return 0
	}
	pages, err := uc.inspector.PageCount(ctx, path, mimeType)
	if err != nil {
		slog.Warn("document_inspect_failed", "path", path, "mime_type", mimeType, "error", err)
		return 0
	}
	return pages
}

func (uc *DocumentLifecycleUseCase) discardStaged(ctx context.Context, key string) {
	if err := uc.storage.Remove(ctx, key); err != nil {
		slog.Warn("staged_file_cleanup_failed", "key", key, "error", err)
	}
}

// stagingKey derives a collision-free name that keeps only the original extension.
func stagingKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	ext = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.':
			return r
		default:
			return -1
		}
	}, ext)
	if ext == "." {
		ext = ""
	}
	return uuid.NewString() + ext
}
