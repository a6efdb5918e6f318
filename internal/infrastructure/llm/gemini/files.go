package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
)

type fileResource struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	MimeType    string `json:"mimeType"`
	URI         string `json:"uri"`
	State       string `json:"state"`
}

func (f fileResource) toDomain() *domain.GatewayFile {
	state := domain.FileState(f.State)
	if state == "" {
		state = domain.FileStateUnspecified
	}
	return &domain.GatewayFile{
		Name:        f.Name,
		DisplayName: f.DisplayName,
		URI:         f.URI,
		MimeType:    f.MimeType,
		State:       state,
	}
}

// UploadFile sends the staged file with a multipart upload. The file is
// reopened on every attempt so retries resend the full body.
func (c *Client) UploadFile(ctx context.Context, path, mimeType, displayName string) (*domain.GatewayFile, error) {
	return doGateway(ctx, c, "gemini.upload_file", func(ctx context.Context) (*domain.GatewayFile, error) {
		return c.uploadOnce(ctx, path, mimeType, displayName)
	})
}

func (c *Client) uploadOnce(ctx context.Context, path, mimeType, displayName string) (*domain.GatewayFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	meta, err := json.Marshal(map[string]any{
		"file": map[string]string{"displayName": displayName},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal upload metadata: %w", err)
	}
	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return nil, fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := metaPart.Write(meta); err != nil {
		return nil, fmt.Errorf("write metadata part: %w", err)
	}

	filePart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {mimeType}})
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(filePart, f); err != nil {
		return nil, fmt.Errorf("copy file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/v1beta/files", &body)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("X-Goog-Upload-Protocol", "multipart")
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	var response struct {
		File fileResource `json:"file"`
	}
	if err := c.do(req, &response, "upload file"); err != nil {
		return nil, err
	}
	if response.File.Name == "" {
		return nil, fmt.Errorf("gemini upload file: empty file resource")
	}
	return response.File.toDomain(), nil
}

func (c *Client) getFile(ctx context.Context, name string) (*domain.GatewayFile, error) {
	return doGateway(ctx, c, "gemini.get_file", func(ctx context.Context) (*domain.GatewayFile, error) {
		var file fileResource
		if err := c.doJSON(ctx, http.MethodGet, "/v1beta/"+resourceName(name), nil, &file, "get file"); err != nil {
			return nil, err
		}
		return file.toDomain(), nil
	})
}

func (c *Client) GetFileState(ctx context.Context, name string) (domain.FileState, error) {
	file, err := c.getFile(ctx, name)
	if err != nil {
		return "", err
	}
	return file.State, nil
}

// FindFileByDisplayName scans the file listing page by page. It returns nil
// when no file carries the display name.
func (c *Client) FindFileByDisplayName(ctx context.Context, displayName string) (*domain.GatewayFile, error) {
	pageToken := ""
	for {
		page, err := c.listFiles(ctx, pageToken)
		if err != nil {
			return nil, err
		}
		for _, f := range page.Files {
			if f.DisplayName == displayName {
				return f.toDomain(), nil
			}
		}
		if page.NextPageToken == "" {
			return nil, nil
		}
		pageToken = page.NextPageToken
	}
}

type listFilesResponse struct {
	Files         []fileResource `json:"files"`
	NextPageToken string         `json:"nextPageToken"`
}

func (c *Client) listFiles(ctx context.Context, pageToken string) (*listFilesResponse, error) {
	query := url.Values{}
	query.Set("pageSize", fmt.Sprint(listPageSize))
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}
	return doGateway(ctx, c, "gemini.list_files", func(ctx context.Context) (*listFilesResponse, error) {
		var page listFilesResponse
		if err := c.doJSON(ctx, http.MethodGet, "/v1beta/files?"+query.Encode(), nil, &page, "list files"); err != nil {
			return nil, err
		}
		return &page, nil
	})
}

// DeleteFile treats an already missing file as deleted.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	_, err := doGateway(ctx, c, "gemini.delete_file", func(ctx context.Context) (struct{}, error) {
		err := c.doJSON(ctx, http.MethodDelete, "/v1beta/"+resourceName(name), nil, nil, "delete file")
		if IsNotFound(err) {
			return struct{}{}, nil
		}
		return struct{}{}, err
	})
	return err
}

// resourceName accepts either "files/x" or a full file URI.
func resourceName(ref string) string {
	if idx := strings.LastIndex(ref, "/files/"); idx >= 0 {
		return "files/" + ref[idx+len("/files/"):]
	}
	if strings.HasPrefix(ref, "files/") {
		return ref
	}
	return "files/" + ref
}
