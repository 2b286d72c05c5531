// Package gender classifies a name token into a grammatical gender using a
// static lexicon first and a single constrained model call as fallback.
package gender

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/caritasdigital/misionbot/internal/model/session"
)

// Completer issues one-shot completions. Satisfied by ai.Service.
type Completer interface {
	Complete(ctx context.Context, text string) (string, error)
}

var masculineNames = lexicon("juan", "carlos", "pedro", "miguel", "luis", "manuel", "gonzalo")

var feminineNames = lexicon("maria", "ana", "luisa", "carmen", "sofia", "elena", "laura")

func lexicon(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Resolver maps name tokens to a gender. A nil completer limits resolution
// to the lexicon; misses then come back unknown.
type Resolver struct {
	completer Completer
}

// NewResolver creates a resolver backed by the given completer.
func NewResolver(c Completer) *Resolver {
	return &Resolver{completer: c}
}

// Resolve classifies the name. Lexicon hits are deterministic and never
// reach the model; every failure on the model path degrades to unknown so
// onboarding can always finish.
func (r *Resolver) Resolve(ctx context.Context, name string) session.Gender {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return session.GenderUnknown
	}

	if _, ok := masculineNames[normalized]; ok {
		return session.GenderMasculine
	}
	if _, ok := feminineNames[normalized]; ok {
		return session.GenderFeminine
	}

	if r.completer == nil {
		return session.GenderUnknown
	}

	question := fmt.Sprintf(
		"¿El nombre '%s' es masculino o femenino? Responde solo con 'masculino' o 'femenino', si no estás seguro responde 'desconocido'.",
		normalized,
	)

	answer, err := r.completer.Complete(ctx, question)
	if err != nil {
		log.Printf("[gender] classification failed for %q, defaulting to unknown: %v", normalized, err)
		return session.GenderUnknown
	}

	return parseAnswer(answer)
}

func parseAnswer(raw string) session.Gender {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, ".!¡\"' ")
	switch cleaned {
	case string(session.GenderMasculine):
		return session.GenderMasculine
	case string(session.GenderFeminine):
		return session.GenderFeminine
	default:
		return session.GenderUnknown
	}
}
