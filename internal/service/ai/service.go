package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/caritasdigital/misionbot/internal/config"
	"github.com/caritasdigital/misionbot/internal/model/catalog"
)

// personaPrompt is the fixed fundraising persona driving the generative
// fallback. Kept in Spanish because the whole response surface is Spanish.
const personaPrompt = "Eres el padre Mateo Rodríguez, un sacerdote católico dedicado a ayudar a comunidades necesitadas. " +
	"Tu misión es motivar a las personas a donar o comprar productos solidarios de manera cálida, empática y persuasiva. " +
	"Si la persona necesita ser atendida puedes hacerlo con la personalidad de un padre católico y bendecirla, " +
	"pero siempre la intención será lograr que las personas donen o compren los productos solidarios."

// FallbackInput feeds the steady-state generative chain when no canned
// answer matches.
type FallbackInput struct {
	Query   string
	Catalog string // serialized canned-response mapping, used as reference context
	Facts   catalog.FactSheet
}

// Service is the single gateway to the generative model: one-shot
// completions for classification/rewrite calls and the compiled persona
// chain for steady-state fallback replies.
type Service struct {
	chatModel model.ChatModel
	timeout   time.Duration
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// New creates the AI service from configuration.
func New(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewWithModel(ctx, chatModel, cfg.Timeout)
}

// NewWithModel wires the service around an existing chat model instance.
func NewWithModel(ctx context.Context, chatModel model.ChatModel, timeout time.Duration) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{persona}"),
		schema.SystemMessage("Utiliza respuestas similares a las siguientes en tus respuestas para mantener coherencia: {catalogo}"),
		schema.SystemMessage("Datos de donaciones: {transferencia}"),
		schema.SystemMessage("Productos solidarios disponibles: {productos}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile fallback chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		timeout:   timeout,
		chain:     runnable,
	}, nil
}

// Complete issues a single user-role request and returns the reply text.
func (s *Service) Complete(ctx context.Context, text string) (string, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	msg, err := s.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(text)})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("chat completion returned empty content")
	}
	return strings.TrimSpace(msg.Content), nil
}

// Generate runs the persona fallback chain for an unmatched user message.
// Missing donation facts are a construction error for this one request.
func (s *Service) Generate(ctx context.Context, in FallbackInput) (string, error) {
	if !in.Facts.HasDonationData() {
		return "", fmt.Errorf("donation facts missing, cannot build fallback prompt")
	}

	system := personaPrompt
	if mission := strings.TrimSpace(in.Facts.Mission); mission != "" {
		system += "\n\nMisión: " + mission
	}

	input := map[string]any{
		"persona":       system,
		"catalogo":      in.Catalog,
		"transferencia": in.Facts.Transfer,
		"productos":     strings.Join(in.Facts.Products, ", "),
		"query":         in.Query,
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run fallback chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", fmt.Errorf("fallback chain returned empty content")
	}

	log.Printf("[ai] generated fallback reply, length=%d", len(response.Content))
	return response.Content, nil
}

func (s *Service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
