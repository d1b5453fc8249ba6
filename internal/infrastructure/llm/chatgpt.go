package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"AccidentLoader/internal/config"
	"AccidentLoader/internal/extraction"
)

// ChatGPTClient implements extraction.Service backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint        string
	model           string
	apiKey          string
	reasoningEffort string
	serviceTier     string
	httpClient      *http.Client
}

var _ extraction.Service = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.LLMConfig) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatGPTClient{
		endpoint:        cfg.Endpoint,
		model:           cfg.Model,
		apiKey:          cfg.APIKey,
		reasoningEffort: cfg.ReasoningEffort,
		serviceTier:     cfg.ServiceTier,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string `json:"name"`
	Schema any    `json:"schema"`
	Strict bool   `json:"strict"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type chatRequest struct {
	Model           string         `json:"model"`
	Messages        []chatMessage  `json:"messages"`
	ResponseFormat  responseFormat `json:"response_format"`
	ReasoningEffort string         `json:"reasoning_effort,omitempty"`
	ServiceTier     string         `json:"service_tier,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Invoke sends the system and task instructions and returns the JSON object
// produced under the requested schema.
func (c *ChatGPTClient) Invoke(ctx context.Context, systemInstruction, taskInstruction string, schema extraction.OutputSchema) (json.RawMessage, error) {
	if c == nil {
		return nil, fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("chatgpt client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: taskInstruction},
		},
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaFormat{
				Name:   schema.Name,
				Schema: schema.Schema,
				Strict: true,
			},
		},
		ReasoningEffort: c.reasoningEffort,
		ServiceTier:     c.serviceTier,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send extraction request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("chatgpt returned no choices")
	}

	msg := decoded.Choices[0].Message
	if msg.Refusal != "" {
		return nil, fmt.Errorf("chatgpt refused: %s", msg.Refusal)
	}

	content := strings.TrimSpace(msg.Content)
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("chatgpt returned non-JSON content (finish reason %q)", decoded.Choices[0].FinishReason)
	}
	return json.RawMessage(content), nil
}
