// Package gemini translates transcripts with Google's Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/sorvik/glossa/pkg/logger"
)

// Config holds Gemini provider settings
type Config struct {
	APIKey         string
	Model          string
	TargetLanguage string
}

// Client implements translation.Translator over the Gemini API
type Client struct {
	client *genai.Client
	cfg    Config
	logger *logger.Logger
}

// NewClient creates a Gemini-backed translator
func NewClient(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{
		client: client,
		cfg:    cfg,
		logger: log.Named("gemini"),
	}, nil
}

// Translate sends one transcript for translation and returns the translated
// text
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(translatePrompt(c.cfg.TargetLanguage), genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.1),
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(text), config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	translated := strings.TrimSpace(resp.Text())
	if translated == "" {
		return "", fmt.Errorf("gemini returned an empty translation")
	}
	return translated, nil
}

func translatePrompt(target string) string {
	return fmt.Sprintf("You are a translation engine for live speech captions. "+
		"Translate the user's text into %s. "+
		"Reply with the translation only, without quotes or explanations.", target)
}
