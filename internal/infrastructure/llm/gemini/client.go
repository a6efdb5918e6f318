package gemini

import (
	"net/http"
	"strings"
	"time"

	"github.com/noor1991nassar-hub/N-PRO/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.0-flash"

	listPageSize = 100
)

// Client talks to the Gemini REST API and implements ports.AIGateway.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

// SingleAttemptConfig keeps the breaker settings of base and disables
// retries. Gateway calls are retried only by the caller.
func SingleAttemptConfig(base resilience.Config) resilience.Config {
	base.RetryMaxAttempts = 1
	return base
}

func New(baseURL, apiKey, model string, executor *resilience.Executor) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if executor == nil {
		executor = resilience.NewExecutor(SingleAttemptConfig(resilience.DefaultConfig()))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      strings.TrimPrefix(model, "models/"),
		httpClient: &http.Client{Timeout: 180 * time.Second},
		executor:   executor,
	}
}
