// Package openai translates transcripts through any OpenAI-compatible chat
// completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sorvik/glossa/pkg/logger"
)

const chatCompletionsPath = "/v1/chat/completions"

// Config holds OpenAI-compatible provider settings
type Config struct {
	APIKey         string
	BaseURL        string // Stored without trailing slash
	Model          string
	TargetLanguage string
	Timeout        time.Duration
}

// Client implements translation.Translator over chat completions
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a chat-completions-backed translator. The base URL
// prefers the explicit config value, then OPENAI_API_BASE, then the public
// OpenAI endpoint.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		if env := os.Getenv("OPENAI_API_BASE"); env != "" {
			base = strings.TrimRight(env, "/")
		} else {
			base = "https://api.openai.com"
		}
	}
	cfg.BaseURL = base
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.Named("openai"),
	}, nil
}

// Translate sends one transcript for translation and returns the translated
// text
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	reqBody := struct {
		Model       string    `json:"model"`
		Messages    []message `json:"messages"`
		Temperature float64   `json:"temperature"`
	}{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: translatePrompt(c.cfg.TargetLanguage)},
			{Role: "user", Content: text},
		},
		Temperature: 0.1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+chatCompletionsPath, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("translation request failed: %s %s", resp.Status, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	translated := strings.TrimSpace(result.Choices[0].Message.Content)
	if translated == "" {
		return "", fmt.Errorf("empty translation in response")
	}
	return translated, nil
}

func translatePrompt(target string) string {
	return fmt.Sprintf("You are a translation engine for live speech captions. "+
		"Translate the user's text into %s. "+
		"Reply with the translation only, without quotes or explanations.", target)
}
