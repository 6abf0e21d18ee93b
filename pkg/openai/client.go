package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	sdk "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client defines the chat completion operations used by the claim predictor.
// Any OpenAI-compatible endpoint (OpenAI, Azure gateways, local vLLM) works.
type Client interface {
	CreateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is our own request type for CreateChat.
type ChatRequest struct {
	Model       string
	MaxTokens   int
	System      string
	User        string
	Temperature float32
	// JSONMode asks the endpoint for a single JSON object response.
	JSONMode bool
}

// ChatResponse is our own response type from CreateChat.
type ChatResponse struct {
	ID           string
	Model        string
	Content      string
	FinishReason string
	Usage        TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LogUsage logs token usage with structured zap fields.
func (u TokenUsage) LogUsage(model, stage string) {
	zap.L().Info("token usage",
		zap.String("model", model),
		zap.String("stage", stage),
		zap.Int("prompt_tokens", u.PromptTokens),
		zap.Int("completion_tokens", u.CompletionTokens),
		zap.Int("total_tokens", u.TotalTokens),
	)
}

type sdkClient struct {
	client *sdk.Client
}

// NewClient creates a chat client. An empty baseURL keeps the OpenAI default.
func NewClient(apiKey, baseURL string) Client {
	cfg := sdk.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &sdkClient{client: sdk.NewClientWithConfig(cfg)}
}

func (c *sdkClient) CreateChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	chatReq := sdk.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    toSDKMessages(req),
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &sdk.ChatCompletionResponseFormat{
			Type: sdk.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, eris.Wrap(err, "openai: create chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: no choices in response")
	}

	return fromSDKResponse(resp), nil
}

// StatusCode returns the HTTP status carried by an API error, or 0.
func StatusCode(err error) int {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *sdk.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func toSDKMessages(req ChatRequest) []sdk.ChatCompletionMessage {
	msgs := make([]sdk.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, sdk.ChatCompletionMessage{
			Role:    sdk.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	msgs = append(msgs, sdk.ChatCompletionMessage{
		Role:    sdk.ChatMessageRoleUser,
		Content: req.User,
	})
	return msgs
}

func fromSDKResponse(resp sdk.ChatCompletionResponse) *ChatResponse {
	choice := resp.Choices[0]
	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      strings.TrimSpace(choice.Message.Content),
		FinishReason: string(choice.FinishReason),
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}
