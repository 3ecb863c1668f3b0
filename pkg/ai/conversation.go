package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	apperrors "sirius/pkg/errors"
	"sirius/pkg/logger"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxFunctionCallDepth bounds consecutive tool-call rounds for a single message
const MaxFunctionCallDepth = 5

// ChatCompleter is implemented by *openai.Client
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Conversation is a stateful chat with one model. It is safe for concurrent use, but turns are serialized.
type Conversation struct {
	Model       LargeLanguageModel
	Temperature float32
	MaxTokens   int
	Messages    []openai.ChatCompletionMessage
	Functions   []*Function

	PromptTokenUsage     int
	CompletionTokenUsage int
	TotalTokenUsage      int
	TotalCost            decimal.Decimal

	client ChatCompleter
	logger *zap.Logger
	mu     sync.Mutex
}

// ConversationOption configures a Conversation
type ConversationOption func(*Conversation)

func WithTemperature(temperature float32) ConversationOption {
	return func(c *Conversation) { c.Temperature = temperature }
}

func WithMaxTokens(maxTokens int) ConversationOption {
	return func(c *Conversation) { c.MaxTokens = maxTokens }
}

// WithFunctions makes fns callable by the model
func WithFunctions(fns ...*Function) ConversationOption {
	return func(c *Conversation) { c.Functions = append(c.Functions, fns...) }
}

// NewConversation starts an empty conversation. Functions require a function-calling model.
func NewConversation(client ChatCompleter, model LargeLanguageModel, opts ...ConversationOption) (*Conversation, error) {
	c := &Conversation{
		Model:       model,
		Temperature: 0.2,
		client:      client,
		logger:      logger.Named("ai").With(zap.String("model", string(model))),
	}
	for _, opt := range opts {
		opt(c)
	}

	if len(c.Functions) > 0 && !model.supportsFunctions() {
		return nil, apperrors.NewSDKClientError(fmt.Sprintf(
			"The chosen model (%s) does not support function calls. Please use any of the following models: %s",
			model, modelList(FunctionCallingModels)), nil)
	}
	if _, err := model.pricing(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Conversation) AddSystemPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt})
}

// Say sends a user message and returns the model's final reply
func (c *Conversation) Say(ctx context.Context, message string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.say(ctx, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})
}

// SayWithImageURL sends a message with an image. Only vision models accept images.
func (c *Conversation) SayWithImageURL(ctx context.Context, message, imageURL string) (string, error) {
	if !c.Model.supportsImages() {
		return "", apperrors.NewSDKClientError("Only GPT-4V models can be used to analyze images", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.say(ctx, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: message},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL}},
		},
	})
}

// SayWithImagePath sends a local JPEG inline as a data URL
func (c *Conversation) SayWithImagePath(ctx context.Context, message, imagePath string) (string, error) {
	if !c.Model.supportsImages() {
		return "", apperrors.NewSDKClientError("Only GPT-4V models can be used to analyze images", nil)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}
	return c.SayWithImageURL(ctx, message, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString(data))
}

// say runs one turn. A failed turn leaves Messages as it was, so no tool call is left unanswered.
func (c *Conversation) say(ctx context.Context, message openai.ChatCompletionMessage) (string, error) {
	start := len(c.Messages)
	c.Messages = append(c.Messages, message)

	reply, err := c.respond(ctx)
	if err != nil {
		clear(c.Messages[start:])
		c.Messages = c.Messages[:start]
		return "", err
	}
	return reply, nil
}

func (c *Conversation) respond(ctx context.Context) (string, error) {
	for round := 0; ; round++ {
		resp, err := c.complete(ctx)
		if err != nil {
			return "", err
		}
		if err := c.recordUsage(resp.Usage); err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", apperrors.NewSDKClientError("no choices in chat completion", nil)
		}

		choice := resp.Choices[0]
		if choice.FinishReason != openai.FinishReasonToolCalls || len(choice.Message.ToolCalls) == 0 {
			c.Messages = append(c.Messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: choice.Message.Content,
			})
			return choice.Message.Content, nil
		}

		if round == MaxFunctionCallDepth {
			return "", apperrors.NewSDKClientError(fmt.Sprintf("function call depth exceeded (%d rounds)", MaxFunctionCallDepth), nil)
		}

		c.Messages = append(c.Messages, choice.Message)
		for _, call := range choice.Message.ToolCalls {
			result, err := c.callFunction(ctx, call)
			if err != nil {
				return "", err
			}
			c.Messages = append(c.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
}

func (c *Conversation) complete(ctx context.Context) (openai.ChatCompletionResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       string(c.Model),
		Messages:    c.Messages,
		N:           1,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
	if len(c.Functions) > 0 {
		req.Tools = make([]openai.Tool, 0, len(c.Functions))
		for _, f := range c.Functions {
			req.Tools = append(req.Tools, f.tool())
		}
		req.ToolChoice = "auto"
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return resp, apperrors.NewContextCancelled("chat completion", ctx.Err())
		}
		c.logger.Error("Chat completion failed", zap.String("model", string(c.Model)), zap.Error(err))
		return resp, fmt.Errorf("failed to complete chat: %w", err)
	}
	return resp, nil
}

func (c *Conversation) recordUsage(usage openai.Usage) error {
	price, err := c.Model.pricing()
	if err != nil {
		return err
	}

	c.PromptTokenUsage += usage.PromptTokens
	c.CompletionTokenUsage += usage.CompletionTokens
	c.TotalTokenUsage += usage.TotalTokens
	c.TotalCost = c.TotalCost.
		Add(price.prompt.Mul(decimal.NewFromInt(int64(usage.PromptTokens)))).
		Add(price.completion.Mul(decimal.NewFromInt(int64(usage.CompletionTokens))))
	return nil
}

func (c *Conversation) callFunction(ctx context.Context, call openai.ToolCall) (string, error) {
	var fn *Function
	for _, f := range c.Functions {
		if f.Name == call.Function.Name {
			fn = f
			break
		}
	}
	if fn == nil {
		return "", apperrors.NewSDKClientError(fmt.Sprintf("model called unknown function %q", call.Function.Name), nil)
	}

	result, err := fn.Call(ctx, json.RawMessage(call.Function.Arguments))
	if err != nil {
		return "", fmt.Errorf("function %s (%s) failed: %w", fn.Name, fn.Description, err)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode result of function %s: %w", fn.Name, err)
	}

	c.logger.Debug("Function called", zap.String("function", fn.Name), zap.String("tool_call_id", call.ID))
	return string(encoded), nil
}
