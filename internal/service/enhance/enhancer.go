// Package enhance rewrites draft replies to be warmer and more persuasive.
// Enhancement is best-effort: the draft always survives a failed rewrite.
package enhance

import (
	"context"
	"log"
	"strings"
)

// Completer issues one-shot completions. Satisfied by ai.Service.
type Completer interface {
	Complete(ctx context.Context, text string) (string, error)
}

const rewriteInstruction = "Mejora este mensaje asegurando que sea cálido, persuasivo y que motive a donar o comprar productos solidarios. " +
	"Evita respuestas genéricas y hazlo más directo y efectivo.\n\nMensaje original:\n"

// Enhancer runs the rewrite call.
type Enhancer struct {
	completer Completer
}

// New creates an enhancer backed by the given completer.
func New(c Completer) *Enhancer {
	return &Enhancer{completer: c}
}

// Enhance returns the rewritten draft, or the draft unchanged when the
// rewrite fails or comes back empty.
func (e *Enhancer) Enhance(ctx context.Context, draft string) string {
	if e.completer == nil || strings.TrimSpace(draft) == "" {
		return draft
	}

	rewritten, err := e.completer.Complete(ctx, rewriteInstruction+draft)
	if err != nil {
		log.Printf("[enhance] rewrite failed, keeping draft: %v", err)
		return draft
	}
	if strings.TrimSpace(rewritten) == "" {
		return draft
	}
	return rewritten
}
