// Package gemini implements the integration with Google's Gemini API. It
// generates Amy's replies and, when configured, mines fact candidates from
// user messages.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/amy-assistant/amy/internal/config"
	"github.com/amy-assistant/amy/internal/database"
	apperrors "github.com/amy-assistant/amy/internal/errors"
	"github.com/amy-assistant/amy/internal/memory"
)

// Client defines the AI operations used by the bot: reply generation and
// model-backed fact extraction.
type Client interface {
	// GenerateReply produces Amy's answer to a user message. contextBlock is
	// the assembled memory context and may be empty.
	GenerateReply(ctx context.Context, contextBlock, userMessage string) (string, error)

	// GenerateFacts mines self-disclosure fact candidates from one user
	// message. Implements memory.FactGenerator.
	GenerateFacts(ctx context.Context, content string) ([]memory.Candidate, error)
}

type sdkClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	maxRetries    int
	retryDelay    time.Duration
}

// NewClient creates a Gemini client from configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.NewConfigError("gemini API key is required", nil)
	}
	if log == nil {
		log = slog.Default()
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperrors.NewAPIError("failed to create genai client", err)
	}

	baseCfg := &genai.GenerateContentConfig{
		Temperature: &cfg.Temperature,
	}
	if cfg.SystemInstruction != "" {
		baseCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemInstruction}}}
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return &sdkClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: baseCfg,
		modelName:     cfg.ModelName,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}, nil
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry",
			"attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call",
					"delay", c.retryDelay, "code", apiErr.Code)
				time.Sleep(c.retryDelay)
				continue
			}
			return nil, apperrors.NewAPIError(
				fmt.Sprintf("gemini API call failed after %d retries (code %d)", c.maxRetries, apiErr.Code), err)
		}

		return nil, apperrors.NewAPIError("gemini API call failed", err)
	}
	return nil, apperrors.NewAPIError("gemini API call failed", err)
}

func (c *sdkClient) GenerateReply(ctx context.Context, contextBlock, userMessage string) (string, error) {
	c.log.DebugContext(ctx, "Generating reply", "context_chars", len(contextBlock))

	prompt := userMessage
	if contextBlock != "" {
		prompt = contextBlock + "\n\nUser message: " + userMessage
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents, c.contentConfig)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini reply generation failed", "error", err)
		return "", err
	}

	return c.extractTextFromResponse(ctx, resp, "generate_reply")
}

var factSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"category": {
			Type:        genai.TypeString,
			Enum:        []string{"personal_info", "preference", "goal", "other"},
			Description: "Which kind of fact the statement discloses.",
		},
		"content": {Type: genai.TypeString, Description: "The fact, restated from the user's message."},
	},
	Required: []string{"category", "content"},
}

var factListSchema = &genai.Schema{
	Type:        genai.TypeArray,
	Description: "Facts the user disclosed about themselves. Empty if the message discloses nothing.",
	Items:       factSchema,
}

const factExtractionPrompt = "Extract facts the user states about themselves from the following message. " +
	"Only include things the user explicitly asserts (name, location, work, preferences, goals). " +
	"Return an empty list when the message is small talk or a question.\n\nMessage: "

func (c *sdkClient) GenerateFacts(ctx context.Context, content string) ([]memory.Candidate, error) {
	c.log.DebugContext(ctx, "Generating facts using JSON schema mode")

	contents := []*genai.Content{genai.NewContentFromText(factExtractionPrompt+content, genai.RoleUser)}

	copyCfg := *c.contentConfig
	copyCfg.SystemInstruction = nil
	copyCfg.ResponseMIMEType = "application/json"
	copyCfg.ResponseSchema = factListSchema

	resp, err := c.generateContentWithRetries(ctx, contents, &copyCfg)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini fact extraction API call failed", "error", err)
		return nil, err
	}

	jsonText, err := c.extractTextFromResponse(ctx, resp, "generate_facts")
	if err != nil {
		return nil, err
	}

	type factUpdate struct {
		Category string `json:"category"`
		Content  string `json:"content"`
	}
	var updates []factUpdate
	if err := json.Unmarshal([]byte(jsonText), &updates); err != nil {
		c.log.ErrorContext(ctx, "Failed to parse facts JSON array from Gemini response",
			"error", err, "response_text", jsonText)
		return nil, apperrors.NewAPIError("invalid facts JSON array received", err)
	}

	candidates := make([]memory.Candidate, 0, len(updates))
	for _, u := range updates {
		candidates = append(candidates, memory.Candidate{
			Category: database.FactCategory(u.Category),
			Content:  u.Content,
		})
	}

	c.log.DebugContext(ctx, "Parsed fact candidates from Gemini response", "count", len(candidates))
	return candidates, nil
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse, op string) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "operation", op, "reason", reasonMsg)
		return "", apperrors.NewAPIError(op+" blocked by safety filter: "+reasonMsg, nil)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content",
			"operation", op, "finish_reason", finishReason)
		return "", apperrors.NewAPIError(op+" returned no content, finish reason: "+finishReason, nil)
	}

	text := resp.Text()
	if text == "" {
		return "", apperrors.NewAPIError(op+" returned empty text", nil)
	}
	return text, nil
}
