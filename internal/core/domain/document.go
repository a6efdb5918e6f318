package domain

import (
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusUploading DocumentStatus = "uploading"
	StatusIndexing  DocumentStatus = "indexing"
	StatusActive    DocumentStatus = "active"
	StatusFailed    DocumentStatus = "failed"
)

// IsTerminal reports whether no further transition may leave the status.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusActive || s == StatusFailed
}

const AccessLevelGeneral = "general"

type Document struct {
	ID           int64          `json:"id"`
	TenantID     int64          `json:"tenant_id"`
	Filename     string         `json:"title"`
	MimeType     string         `json:"mime_type"`
	ExternalName string         `json:"external_name,omitempty"`
	ExternalURI  string         `json:"file_uri,omitempty"`
	AccessLevel  string         `json:"access_level"`
	PageCount    int            `json:"page_count,omitempty"`
	Status       DocumentStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ExternalFileName returns the gateway resource name, deriving it from the URI
// for rows that only recorded the URI.
func (d Document) ExternalFileName() string {
	if d.ExternalName != "" {
		return d.ExternalName
	}
	if idx := strings.LastIndex(d.ExternalURI, "/files/"); idx >= 0 {
		return "files/" + d.ExternalURI[idx+len("/files/"):]
	}
	return ""
}

// FileRef returns the reference passed to answer generation.
func (d Document) FileRef() FileRef {
	return FileRef{URI: d.ExternalURI, MimeType: d.MimeType}
}

// FileState is the processing state reported by the AI gateway.
type FileState string

const (
	FileStateUnspecified FileState = "STATE_UNSPECIFIED"
	FileStateProcessing  FileState = "PROCESSING"
	FileStateActive      FileState = "ACTIVE"
	FileStateFailed      FileState = "FAILED"
)

// DocumentStatus maps a terminal gateway state to the stored status.
func (s FileState) DocumentStatus() (DocumentStatus, bool) {
	switch s {
	case FileStateActive:
		return StatusActive, true
	case FileStateFailed:
		return StatusFailed, true
	default:
		return "", false
	}
}

type GatewayFile struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	URI         string    `json:"uri"`
	MimeType    string    `json:"mime_type"`
	State       FileState `json:"state"`
}

type FileRef struct {
	URI      string
	MimeType string
}

type UploadRequest struct {
	TenantID int64
	Filename string
	MimeType string
	Force    bool
}

// UploadResult is the stored document. Overwritten is set only when a forced
// upload actually replaced an existing gateway file.
type UploadResult struct {
	Document    *Document
	Overwritten bool
}

type SyncResult string

const (
	SyncSkipped   SyncResult = "skipped"
	SyncUnchanged SyncResult = "unchanged"
	SyncUpdated   SyncResult = "updated"
	SyncError     SyncResult = "error"
)

// SyncOutcome records what the listing sync pass did for one document.
type SyncOutcome struct {
	DocumentID int64          `json:"document_id"`
	Result     SyncResult     `json:"result"`
	From       DocumentStatus `json:"from"`
	To         DocumentStatus `json:"to,omitempty"`
	Err        error          `json:"-"`
}

type DocumentListing struct {
	Documents []Document    `json:"documents"`
	Outcomes  []SyncOutcome `json:"outcomes"`
}

// Failed returns the outcomes whose gateway check did not succeed.
func (l DocumentListing) Failed() []SyncOutcome {
	var out []SyncOutcome
	for _, o := range l.Outcomes {
		if o.Result == SyncError {
			out = append(out, o)
		}
	}
	return out
}
