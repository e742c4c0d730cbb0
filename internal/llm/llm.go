// Package llm wraps the chat-completion and embedding endpoints the planner, guard
// evaluator, and semantic tool retriever all call through, grounded on the teacher's
// OpenAICompletionExecutor wrapper around go-openai.
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the LLM endpoint collaborator: a thin wrapper over go-openai exposing only
// the chat-completion and embedding operations the core uses, so callers depend on this narrow interface rather
// than the full SDK surface.
type Client struct {
	api   *openai.Client
	model string
}

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New creates a Client from Config. An empty BaseURL uses go-openai's default
// (api.openai.com); a non-empty one lets operators point at a compatible endpoint.
func New(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{api: openai.NewClientWithConfig(clientCfg), model: cfg.Model}
}

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// ChatOptions tunes one completion call; a zero value uses the client's configured
// model and the API's defaults for everything else.
type ChatOptions struct {
	Model       string
	Temperature float32
}

// Complete sends messages to the chat-completion endpoint and returns the assistant's
// reply text.
func (c *Client) Complete(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: opts.Temperature,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for a single input string, used by the semantic
// Tool Retriever backend.
func (c *Client) Embed(ctx context.Context, input string, model string) ([]float32, error) {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{input},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("llm: embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("llm: embedding request returned no data")
	}
	return resp.Data[0].Embedding, nil
}

// EmbedBatch returns one embedding vector per input, in the same order, used to build
// the semantic retriever's tool-catalog cache in one request.
func (c *Client) EmbedBatch(ctx context.Context, inputs []string, model string) ([][]float32, error) {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: inputs,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("llm: batch embedding request failed: %w", err)
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}
	return out, nil
}
