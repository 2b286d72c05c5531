// Package conversation drives the per-message resolution pipeline:
// onboarding, canned-answer matching, generative fallback, and reply shaping.
package conversation

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/caritasdigital/misionbot/internal/model/catalog"
	"github.com/caritasdigital/misionbot/internal/model/session"
	"github.com/caritasdigital/misionbot/internal/service/ai"
	"github.com/caritasdigital/misionbot/internal/service/history"
	"github.com/caritasdigital/misionbot/internal/service/match"
)

const (
	apologyReply  = "Lo siento, hubo un error al procesar tu mensaje."
	maxReplyRunes = 300
	ellipsisMark  = "..."

	askNameKey      = "preguntar_nombre"
	askNameFallback = "¡Bendiciones! 🙏 ¿Con quién tengo el gusto?"

	welcomeMasculineKey = "bienvenida_masculino"
	welcomeFeminineKey  = "bienvenida_femenino"
	welcomeNeutralKey   = "genero_no_determinado"

	welcomeMasculineFallback = "¡Bendiciones, hermano {nombre}! 🙏 ¿En qué puedo ayudarte hoy?"
	welcomeFeminineFallback  = "¡Bendiciones, hermana {nombre}! 🙏 ¿En qué puedo ayudarte hoy?"
	welcomeNeutralFallback   = "¡Bendiciones, {nombre}! 🙏 ¿En qué puedo ayudarte hoy?"
)

// Resolver classifies a name token. Satisfied by gender.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, name string) session.Gender
}

// Enhancer rewrites a draft reply. Satisfied by enhance.Enhancer.
type Enhancer interface {
	Enhance(ctx context.Context, draft string) string
}

// Generator produces a reply when no canned answer matches. Satisfied by
// ai.Service.
type Generator interface {
	Generate(ctx context.Context, in ai.FallbackInput) (string, error)
}

// Outcome is the shaped reply plus the pacing delay the transport must wait
// before sending it.
type Outcome struct {
	Text  string
	Delay time.Duration
}

// Orchestrator owns session state transitions and composes the services
// into the final reply.
type Orchestrator struct {
	catalog     *catalog.Catalog
	catalogJSON string
	sessions    session.Store
	matcher     *match.Matcher
	resolver    Resolver
	enhancer    Enhancer
	generator   Generator
	recorder    *history.Service
}

// New wires the orchestrator. resolver, enhancer, generator and recorder may
// be nil; each absence degrades the pipeline instead of disabling it.
func New(cat *catalog.Catalog, sessions session.Store, matcher *match.Matcher, resolver Resolver, enhancer Enhancer, generator Generator, recorder *history.Service) *Orchestrator {
	serialized, err := cat.Serialize()
	if err != nil {
		log.Printf("[conversation] failed to serialize catalog for prompts: %v", err)
		serialized = "{}"
	}

	return &Orchestrator{
		catalog:     cat,
		catalogJSON: serialized,
		sessions:    sessions,
		matcher:     matcher,
		resolver:    resolver,
		enhancer:    enhancer,
		generator:   generator,
		recorder:    recorder,
	}
}

// Reply resolves one inbound message into an outbound reply.
func (o *Orchestrator) Reply(ctx context.Context, userID int64, text string) Outcome {
	sess, known := o.sessions.Get(userID)

	var outcome Outcome
	switch {
	case !known:
		outcome = o.askName(userID)
	case sess.Stage() == session.StageAwaitingName:
		outcome = o.captureName(ctx, sess, text)
	default:
		outcome = o.resolveContent(ctx, text)
	}

	if o.recorder != nil {
		o.recorder.Record(userID, text, outcome.Text)
	}
	return outcome
}

// askName creates the awaiting-name session. The triggering message content
// is intentionally ignored.
func (o *Orchestrator) askName(userID int64) Outcome {
	o.sessions.Put(session.Session{UserID: userID})
	return Outcome{Text: o.catalog.Response(askNameKey, askNameFallback)}
}

// captureName finishes onboarding: extract the name token, classify it, and
// greet. The message is consumed here, never treated as a content query.
func (o *Orchestrator) captureName(ctx context.Context, sess session.Session, text string) Outcome {
	name := extractName(text)

	gen := session.GenderUnknown
	if o.resolver != nil {
		gen = o.resolver.Resolve(ctx, name)
	}

	sess.Name = name
	sess.Gender = gen
	o.sessions.Put(sess)

	var template string
	switch gen {
	case session.GenderMasculine:
		template = o.catalog.Response(welcomeMasculineKey, welcomeMasculineFallback)
	case session.GenderFeminine:
		template = o.catalog.Response(welcomeFeminineKey, welcomeFeminineFallback)
	default:
		template = o.catalog.Response(welcomeNeutralKey, welcomeNeutralFallback)
	}

	return Outcome{Text: strings.ReplaceAll(template, "{nombre}", name)}
}

// extractName picks the name token: the word after "soy", else the word
// after "llamo" when the message also contains "me", else the first word.
func extractName(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}

	for i, w := range lowered {
		if w == "soy" && i+1 < len(words) {
			return words[i+1]
		}
	}

	if contains(lowered, "me") {
		for i, w := range lowered {
			if w == "llamo" && i+1 < len(words) {
				return words[i+1]
			}
		}
	}

	return words[0]
}

func contains(words []string, target string) bool {
	for _, w := range words {
		if w == target {
			return true
		}
	}
	return false
}

// resolveContent is the steady-state path: matcher, then enhancement or the
// generative fallback, then shaping.
func (o *Orchestrator) resolveContent(ctx context.Context, text string) Outcome {
	normalized := strings.ToLower(strings.TrimSpace(text))

	var reply string
	if key, ok := o.matchKey(normalized); ok {
		draft, _ := o.catalog.Answer(key)
		reply = draft
		if o.enhancer != nil {
			reply = o.enhancer.Enhance(ctx, draft)
		}
	} else {
		reply = o.generateFallback(ctx, normalized)
	}

	shaped := truncate(reply)
	return Outcome{Text: shaped, Delay: pacingDelay(len([]rune(shaped)))}
}

func (o *Orchestrator) matchKey(normalized string) (string, bool) {
	if o.matcher == nil {
		return "", false
	}
	return o.matcher.Match(normalized)
}

// generateFallback delegates to the model with the catalog as reference
// context. Any failure becomes the fixed apology; nothing propagates.
func (o *Orchestrator) generateFallback(ctx context.Context, query string) string {
	if o.generator == nil {
		log.Printf("[conversation] generative fallback unavailable, sending apology")
		return apologyReply
	}

	reply, err := o.generator.Generate(ctx, ai.FallbackInput{
		Query:   query,
		Catalog: o.catalogJSON,
		Facts:   o.catalog.Facts(),
	})
	if err != nil {
		log.Printf("[conversation] generative fallback failed: %v", err)
		return apologyReply
	}
	return reply
}

// truncate cuts the reply to the response length cap, appending an ellipsis
// marker. Rune count, not enhancement-aware summarization.
func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxReplyRunes {
		return text
	}
	return string(runes[:maxReplyRunes]) + ellipsisMark
}

// pacingDelay models human-typing pacing for a reply of the given length.
func pacingDelay(length int) time.Duration {
	seconds := 1.5 + float64(length)/100
	if seconds > 5 {
		seconds = 5
	}
	return time.Duration(seconds * float64(time.Second))
}
