package outreach

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/SamiESK/insta-scrapper/internal/common"
	"github.com/SamiESK/insta-scrapper/internal/interfaces"
)

// ErrGeneration marks a failed message generation: missing or empty prompt
// reference, a provider error, or empty output. Terminal for the single
// outreach attempt, never for the run.
var ErrGeneration = errors.New("outreach: message generation failed")

const systemPrompt = "You write short, casual direct messages for creators. " +
	"Reply with the message text only - no labels, no commentary, no quotes around it."

// buildUserPrompt assembles the provider request from the account's prompt
// reference and the target handle
func buildUserPrompt(promptRef, identityHint string) string {
	var b strings.Builder
	b.WriteString("Write one direct message based on this brief:\n")
	b.WriteString(promptRef)
	if identityHint != "" {
		b.WriteString("\n\nThe recipient's handle is @")
		b.WriteString(identityHint)
		b.WriteString(".")
	}
	return b.String()
}

// NewGenerator creates the configured message generation provider
func NewGenerator(ctx context.Context, config common.LLMConfig, logger arbor.ILogger) (interfaces.MessageGenerator, error) {
	timeout := common.ParseDuration(config.Timeout, 60*time.Second)

	switch config.Provider {
	case "claude":
		if config.APIKey == "" {
			return nil, fmt.Errorf("claude provider requires an API key")
		}
		client := anthropic.NewClient(option.WithAPIKey(config.APIKey))
		logger.Info().Str("provider", "claude").Str("model", config.Model).Msg("Initializing message generator")
		return &claudeGenerator{
			client:      client,
			model:       config.Model,
			temperature: config.Temperature,
			timeout:     timeout,
			logger:      logger,
		}, nil

	case "gemini":
		if config.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  config.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize genai client: %w", err)
		}
		logger.Info().Str("provider", "gemini").Str("model", config.Model).Msg("Initializing message generator")
		return &geminiGenerator{
			client:      client,
			model:       config.Model,
			temperature: config.Temperature,
			timeout:     timeout,
			logger:      logger,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported llm provider %q: must be 'claude' or 'gemini'", config.Provider)
	}
}

type claudeGenerator struct {
	client      anthropic.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      arbor.ILogger
}

func (g *claudeGenerator) Generate(ctx context.Context, promptRef, identityHint string) (string, error) {
	promptRef = strings.TrimSpace(promptRef)
	if promptRef == "" {
		return "", fmt.Errorf("%w: no prompt reference configured", ErrGeneration)
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: 512,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildUserPrompt(promptRef, identityHint))),
		},
	}
	if g.temperature > 0 {
		params.Temperature = anthropic.Float(float64(g.temperature))
	}

	resp, err := g.client.Messages.New(reqCtx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	message := CleanGenerated(text.String())
	if message == "" {
		return "", fmt.Errorf("%w: provider returned empty content", ErrGeneration)
	}
	return message, nil
}

type geminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      arbor.ILogger
}

func (g *geminiGenerator) Generate(ctx context.Context, promptRef, identityHint string) (string, error) {
	promptRef = strings.TrimSpace(promptRef)
	if promptRef == "" {
		return "", fmt.Errorf("%w: no prompt reference configured", ErrGeneration)
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(g.temperature),
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(buildUserPrompt(promptRef, identityHint), genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(reqCtx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}

	message := CleanGenerated(text.String())
	if message == "" {
		return "", fmt.Errorf("%w: provider returned empty content", ErrGeneration)
	}
	return message, nil
}
