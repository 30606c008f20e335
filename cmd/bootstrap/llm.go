package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"go-medical-chat-booking/config"
	"go-medical-chat-booking/internal/integrations/bedrock"
	"go-medical-chat-booking/internal/integrations/gemini"
	"go-medical-chat-booking/internal/integrations/llm"
	"go-medical-chat-booking/internal/integrations/openai"

	"github.com/sirupsen/logrus"
)

// Default model per provider when LLM_MODEL is unset
var defaultModels = map[string]string{
	"":       "gpt-4o",
	"openai": "gpt-4o",
	"gemini": "gemini-1.5-flash",
}

// resolveModel returns cfg.Model, or the provider's default when unset
func resolveModel(cfg config.LLMConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return defaultModels[strings.ToLower(strings.TrimSpace(cfg.Provider))]
}

// newLLMClient builds the transport named by cfg.Provider. The returned
// closer may be nil.
func newLLMClient(ctx context.Context, cfg config.LLMConfig) (llm.Client, func(), error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	model := resolveModel(cfg)

	switch provider {
	case "openai", "":
		client, err := openai.NewClient(cfg.APIKey, openai.WithBaseURL(cfg.BaseURL))
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil

	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.APIKey, model)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logrus.Warnf("Failed to close gemini client: %v", err)
			}
		}
		return client, closeFn, nil

	case "bedrock":
		if model == "" {
			return nil, nil, fmt.Errorf("LLM_MODEL is required for bedrock")
		}
		client, err := bedrock.NewClientFromDefaultConfig(ctx, cfg.AWSRegion, model)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	}

	return nil, nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
}
