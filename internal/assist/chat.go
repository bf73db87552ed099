package assist

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// chatProvider speaks the OpenAI chat completions protocol. Azure OpenAI uses
// the same body with the model implied by the deployment URL.
type chatProvider struct {
	client *http.Client
	name   string
	url    string
	model  string
	header string
	secret string
}

type chatRequest struct {
	ResponseFormat *chatResponseFmt `json:"response_format,omitempty"`
	Model          string           `json:"model,omitempty"`
	Messages       []chatMessage    `json:"messages"`
	Temperature    float64          `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFmt struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func azureURL(endpoint, deployment, version string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(endpoint, "/"), url.PathEscape(deployment), url.QueryEscape(version))
}

func (c *chatProvider) Name() string {
	return c.name
}

func (c *chatProvider) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    req.Temperature,
		ResponseFormat: &chatResponseFmt{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(c.header, c.secret)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", upstream(c.name, 0, "sending request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", upstream(c.name, resp.StatusCode, "reading response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstream(c.name, resp.StatusCode, snippet(respBody), nil)
	}

	// A body without a choice envelope is handed on as-is so the caller's
	// validation reports what the service actually sent.
	var envelope chatResponse
	if err := json.Unmarshal(respBody, &envelope); err == nil && len(envelope.Choices) > 0 {
		if content := envelope.Choices[0].Message.Content; content != "" {
			return content, nil
		}
	}
	return string(respBody), nil
}

func snippet(body []byte) string {
	const limit = 300
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}
