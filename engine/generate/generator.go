// Package generate turns a submission brief into a static web app, using an
// OpenAI-compatible chat completion endpoint with a deterministic fallback.
package generate

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// Input is everything the generator needs to know about one build.
type Input struct {
	Brief           string
	Checks          []string
	Round           int
	PrevReadme      string
	AttachmentsMeta string
}

// Output holds the generated repository files. Fallback is set when the
// model call failed and the static fallback content was used instead.
type Output struct {
	Files    map[string]string
	Fallback bool
}

type Generator struct {
	client *openai.Client
	model  string
}

func NewGenerator(apiKey string, baseURL string, model string) *Generator {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return &Generator{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

// Generate asks the model for an index.html plus README pair. A failed or
// empty completion degrades to FallbackFiles rather than failing the build;
// the evaluation server scores whatever gets published.
func (g *Generator) Generate(ctx context.Context, in Input) (Output, error) {
	text, err := g.complete(ctx, buildPrompt(in))
	if err != nil {
		slog.Warn("generation failed, using fallback content", "round", in.Round, "error", err)
		return Output{Files: FallbackFiles(in), Fallback: true}, nil
	}

	return Output{Files: SplitOutput(text, in)}, nil
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %v", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("chat completion returned empty output")
	}

	return resp.Choices[0].Message.Content, nil
}
