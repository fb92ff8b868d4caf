package advisory

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const (
	classifyInstruction = `You label short windows of workout motion data.
Answer with exactly one word from: explosive, rhythmic, sustained, controlled, none.`

	tipInstruction = `You are a concise strength and conditioning coach speaking to an athlete mid-set.
Reply with a single spoken cue of at most 12 words. No quotes, no markdown, no emojis.`
)

var errEmptyResponse = errors.New("empty response")

// Gemini is the Service backed by the Gemini API.
type Gemini struct {
	client *genai.Client
}

func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Classify(ctx context.Context, req Request) (string, error) {
	return g.generate(ctx, classifyInstruction, req)
}

func (g *Gemini) GenerateTip(ctx context.Context, req Request) (string, error) {
	return g.generate(ctx, tipInstruction, req)
}

func (g *Gemini) generate(ctx context.Context, instruction string, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		Temperature:       genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens:   int32(req.MaxTokens),
		// the token budgets are too small to share with thinking
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	}
	resp, err := g.client.Models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}
