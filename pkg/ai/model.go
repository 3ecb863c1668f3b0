package ai

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"sirius/pkg/common"
	"sirius/pkg/config"
	apperrors "sirius/pkg/errors"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
)

// LargeLanguageModel is an OpenAI chat model identifier
type LargeLanguageModel string

const (
	GPT35Turbo      LargeLanguageModel = "gpt-3.5-turbo"
	GPT35Turbo16K   LargeLanguageModel = "gpt-3.5-turbo-16k"
	GPT4            LargeLanguageModel = "gpt-4"
	GPT432K         LargeLanguageModel = "gpt-4-32k"
	GPT4Turbo       LargeLanguageModel = "gpt-4-turbo-preview"
	GPT4Vision      LargeLanguageModel = "gpt-4-vision-preview"
	GPT4TurboVision LargeLanguageModel = "gpt-4-1106-vision-preview"
)

// FunctionCallingModels can be given functions
var FunctionCallingModels = []LargeLanguageModel{GPT35Turbo, GPT4, GPT4Turbo}

type pricing struct {
	prompt     decimal.Decimal
	completion decimal.Decimal
}

// USD per token
var prices = map[LargeLanguageModel]pricing{
	GPT4Turbo:     {decimal.RequireFromString("0.00001"), decimal.RequireFromString("0.00003")},
	GPT4:          {decimal.RequireFromString("0.00003"), decimal.RequireFromString("0.00006")},
	GPT432K:       {decimal.RequireFromString("0.00006"), decimal.RequireFromString("0.00012")},
	GPT35Turbo16K: {decimal.RequireFromString("0.0000005"), decimal.RequireFromString("0.0000015")},
	GPT35Turbo:    {decimal.RequireFromString("0.0000015"), decimal.RequireFromString("0.0000020")},
}

func (m LargeLanguageModel) supportsFunctions() bool {
	return slices.Contains(FunctionCallingModels, m)
}

func (m LargeLanguageModel) supportsImages() bool {
	return m == GPT4Vision || m == GPT4TurboVision
}

func (m LargeLanguageModel) pricing() (pricing, error) {
	if m.supportsImages() {
		m = GPT4Turbo
	}
	p, ok := prices[m]
	if !ok {
		return pricing{}, apperrors.NewSDKClientError(fmt.Sprintf("Invalid large language model: %s", m), nil)
	}
	return p, nil
}

func modelList(models []LargeLanguageModel) string {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// NewClient builds an OpenAI client from OPENAI_API_KEY, falling back to the OPEN_AI_API_KEY vault secret
func NewClient(ctx context.Context) (*openai.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	apiKey := cfg.OpenAIAPIKey
	if apiKey == "" {
		if apiKey, err = common.GetEnvironmentalSecret(ctx, "OPEN_AI_API_KEY"); err != nil {
			return nil, err
		}
	}
	return openai.NewClient(apiKey), nil
}
