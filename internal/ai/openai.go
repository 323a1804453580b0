package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAI talks to an OpenAI-compatible chat-completions endpoint.
type OpenAI struct {
	endpoint string
	key      string
	model    string
	httpc    *http.Client
}

func NewOpenAI(endpoint, key, model string, timeout time.Duration) *OpenAI {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &OpenAI{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		model:    model,
		httpc:    &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model       string              `json:"model"`
	Messages    []map[string]string `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAI) Complete(ctx context.Context, system, prompt string) Result {
	if strings.TrimSpace(c.key) == "" {
		return Unavailable()
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return Failure(fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Failure(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Failure(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Failure(fmt.Sprintf("backend status %d", resp.StatusCode))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Failure(fmt.Sprintf("decode response: %v", err))
	}
	if len(out.Choices) == 0 {
		return Failure("no choices in response")
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return Failure("empty completion")
	}
	return Success(content)
}
