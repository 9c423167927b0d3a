package llm

import (
	"context"
	"fmt"

	einoClaude "github.com/cloudwego/eino-ext/components/model/claude"
	einoGemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/kiosk404/soulgraph/internal/companion/config"
)

// einoProvider adapts an eino BaseChatModel to the Provider contract. Grounded
// on internal/hivemind/service/llm/provider/helper.NewOpenAICompatibleChatModel
// and the teacher's TurnExecutor, which both drive an einoModel.BaseChatModel
// the same way: build []*schema.Message, call Generate, read back .Content.
type einoProvider struct {
	name string
	cm   einoModel.BaseChatModel
}

func (p *einoProvider) Complete(ctx context.Context, systemText, userText string, opts CompletionOptions) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	msgs := []*schema.Message{
		schema.SystemMessage(systemText),
		schema.UserMessage(userText),
	}

	out, err := p.cm.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("llm(%s): generate: %w", p.name, err)
	}
	if out == nil {
		return "", fmt.Errorf("llm(%s): empty response", p.name)
	}
	return out.Content, nil
}

// Build constructs a Provider from a ModelProviderConfig, selecting the eino-ext
// backend by cfg.Provider. Gemini is the default per spec §6 ("The default is
// Gemini-class"); OpenAI and Claude are pluggable with identical call shape.
func Build(ctx context.Context, cfg config.ModelProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "gemini":
		return buildGemini(ctx, cfg)
	case "openai":
		return buildOpenAI(ctx, cfg)
	case "claude", "anthropic":
		return buildClaude(ctx, cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

func buildGemini(ctx context.Context, cfg config.ModelProviderConfig) (Provider, error) {
	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("llm(gemini): client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	cm, err := einoGemini.NewChatModel(ctx, &einoGemini.Config{
		Client: client,
		Model:  model,
	})
	if err != nil {
		return nil, fmt.Errorf("llm(gemini): chat model: %w", err)
	}
	return &einoProvider{name: "gemini", cm: cm}, nil
}

func buildOpenAI(ctx context.Context, cfg config.ModelProviderConfig) (Provider, error) {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	occ := &einoOpenAI.ChatModelConfig{
		Model:  model,
		APIKey: cfg.APIKey,
	}
	if cfg.BaseURL != "" {
		occ.BaseURL = cfg.BaseURL
	}
	if cfg.Temperature > 0 {
		t := cfg.Temperature
		occ.Temperature = &t
	}
	cm, err := einoOpenAI.NewChatModel(ctx, occ)
	if err != nil {
		return nil, fmt.Errorf("llm(openai): chat model: %w", err)
	}
	return &einoProvider{name: "openai", cm: cm}, nil
}

func buildClaude(ctx context.Context, cfg config.ModelProviderConfig) (Provider, error) {
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}
	ccc := &einoClaude.Config{
		APIKey: cfg.APIKey,
		Model:  model,
	}
	if cfg.BaseURL != "" {
		ccc.BaseURL = &cfg.BaseURL
	}
	cm, err := einoClaude.NewChatModel(ctx, ccc)
	if err != nil {
		return nil, fmt.Errorf("llm(claude): chat model: %w", err)
	}
	return &einoProvider{name: "claude", cm: cm}, nil
}
