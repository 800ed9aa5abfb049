package summary

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	"github.com/superbryn/echo-agent/agent/session"
	openaix "github.com/superbryn/echo-agent/pkg/openai"
)

// OpenAIGenerator produces recaps with a chat completion model.
type OpenAIGenerator struct {
	client *openaisdk.Client
	cfg    openaix.Config
	system string
}

// NewOpenAIGenerator wires the SDK client with the recap system prompt.
// Returns a nil Generator when the client is nil so callers can pass the
// result straight to WithGenerator and the Summarizer falls back cleanly.
func NewOpenAIGenerator(client *openaisdk.Client, cfg openaix.Config, systemPrompt string) Generator {
	if client == nil {
		return nil
	}
	return &OpenAIGenerator{client: client, cfg: cfg, system: systemPrompt}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, transcript []session.Turn) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: g.cfg.Model,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(g.system),
			openaisdk.UserMessage("Summarize this conversation:\n\n" + formatTranscript(transcript)),
		},
		MaxTokens:   openaisdk.Int(g.cfg.MaxTokens),
		Temperature: openaisdk.Float(g.cfg.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("summary completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summary completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func formatTranscript(transcript []session.Turn) string {
	lines := make([]string, 0, len(transcript))
	for _, turn := range transcript {
		lines = append(lines, title(string(turn.Role))+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
