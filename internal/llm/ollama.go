package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const ollamaDefaultModel = "llama3.2"

// ollamaClient implements the Client interface for a local Ollama server.
// No API key is required; token counts come from Ollama's eval counters.
type ollamaClient struct {
	httpClient *http.Client
	model      string
	baseURL    string
	maxTokens  int
}

// newOllamaClient creates a client for a local Ollama server.
func newOllamaClient(cfg Config) (Client, error) {
	model := cfg.Model
	if model == "" {
		model = ollamaDefaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &ollamaClient{
		model:     model,
		maxTokens: maxTokens,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			// Local models can be slow to load on first call.
			Timeout: 120 * time.Second,
		},
	}, nil
}

func (c *ollamaClient) Provider() Provider { return ProviderOllama }
func (c *ollamaClient) Model() string      { return c.model }

// ollamaResponse represents the Ollama /api/chat response structure.
type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// Generate sends a chat request to the Ollama server.
func (c *ollamaClient) Generate(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]map[string]string, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": req.SystemPrompt,
		})
	}
	messages = append(messages, map[string]string{
		"role":    "user",
		"content": req.Prompt,
	})

	requestBody := map[string]any{
		"model":    c.model,
		"messages": messages,
		"stream":   false,
		"options": map[string]any{
			"temperature": req.Temperature,
			"num_predict": maxTokens,
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", strings.NewReader(string(jsonBody)))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, &ProviderError{Provider: ProviderOllama, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &ProviderError{Provider: ProviderOllama, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, &ProviderError{
			Provider:   ProviderOllama,
			StatusCode: resp.StatusCode,
			Err:        errors.New(string(body)),
		}
	}

	var response ollamaResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return Response{}, &ProviderError{Provider: ProviderOllama, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if response.Message.Content == "" {
		return Response{}, &ProviderError{Provider: ProviderOllama, Err: errors.New("no content in response")}
	}

	return Response{
		Text:         response.Message.Content,
		InputTokens:  response.PromptEvalCount,
		OutputTokens: response.EvalCount,
	}, nil
}
