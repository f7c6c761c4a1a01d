// Package completion предоставляет клиент для внешнего сервиса генерации
// текста с интерфейсом chat completions.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmeshcher/pekara-system/internal/model"
)

const defaultModel = "gpt-4.1-mini"

// Client инкапсулирует HTTP-взаимодействие с сервисом генерации текста.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []model.Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewClient создаёт клиент для указанного адреса. Пустое имя модели
// заменяется моделью по умолчанию.
func NewClient(baseURL, apiKey, modelName string) *Client {
	if modelName == "" {
		modelName = defaultModel
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Complete отправляет диалог сервису генерации и возвращает текст первого
// варианта ответа.
func (c *Client) Complete(ctx context.Context, messages []model.Message) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("completion client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := base + "/v1/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("completion status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}

	return result.Choices[0].Message.Content, nil
}
