package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
	"github.com/noor1991nassar-hub/N-PRO/internal/infrastructure/resilience"
)

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"fileData,omitempty"`
}

type fileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GenerateAnswer grounds the query on the referenced files and returns the
// concatenated text of the first candidate.
func (c *Client) GenerateAnswer(ctx context.Context, query string, files []domain.FileRef, systemInstruction string) (string, error) {
	parts := make([]part, 0, len(files)+1)
	for _, f := range files {
		if f.URI == "" {
			continue
		}
		parts = append(parts, part{FileData: &fileData{MimeType: f.MimeType, FileURI: f.URI}})
	}
	parts = append(parts, part{Text: query})

	request := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	}
	if strings.TrimSpace(systemInstruction) != "" {
		request.SystemInstruction = &content{Parts: []part{{Text: systemInstruction}}}
	}

	path := "/v1beta/models/" + c.model + ":generateContent"
	return doGateway(ctx, c, "gemini.generate", func(ctx context.Context) (string, error) {
		var response generateResponse
		if err := c.doJSON(ctx, http.MethodPost, path, request, &response, "generate"); err != nil {
			return "", err
		}
		return response.text()
	})
}

func (r generateResponse) text() (string, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini generate blocked: %s", r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) == 0 {
		return "", fmt.Errorf("gemini generate: no candidates")
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("gemini generate: empty answer (finish reason %s)", r.Candidates[0].FinishReason)
	}
	return text, nil
}

func doGateway[T any](ctx context.Context, c *Client, operation string, fn func(context.Context) (T, error)) (T, error) {
	return resilience.Do(ctx, c.executor, operation, fn, classifyGeminiError)
}
