package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/caritasdigital/misionbot/internal/model/catalog"
	"github.com/caritasdigital/misionbot/internal/model/session"
	"github.com/caritasdigital/misionbot/internal/service/ai"
	"github.com/caritasdigital/misionbot/internal/service/history"
	"github.com/caritasdigital/misionbot/internal/service/match"
)

type fakeResolver struct {
	gender   session.Gender
	lastName string
	calls    int
}

func (f *fakeResolver) Resolve(_ context.Context, name string) session.Gender {
	f.calls++
	f.lastName = name
	return f.gender
}

type fakeEnhancer struct {
	out string
}

func (f *fakeEnhancer) Enhance(_ context.Context, draft string) string {
	if f.out == "" {
		return draft
	}
	return f.out
}

type fakeGenerator struct {
	reply string
	err   error
	calls int
	last  ai.FallbackInput
}

func (f *fakeGenerator) Generate(_ context.Context, in ai.FallbackInput) (string, error) {
	f.calls++
	f.last = in
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New(map[string]string{
		"como puedo donar":     "Puedes donar por transferencia.",
		"preguntar_nombre":     "¡Bendiciones! 🙏 ¿Con quién tengo el gusto?",
		"bienvenida_masculino": "¡Bendiciones, hermano {nombre}!",
		"bienvenida_femenino":  "¡Bendiciones, hermana {nombre}!",
	}, catalog.FactSheet{
		Transfer: "CBU 123",
		Products: []string{"velas", "rosarios"},
	})
}

func newOrchestrator(cat *catalog.Catalog, resolver Resolver, enhancer Enhancer, generator Generator) (*Orchestrator, *session.MemoryStore) {
	store := session.NewMemoryStore()
	matcher := match.New(cat.Keys(), 0.6)
	return New(cat, store, matcher, resolver, enhancer, generator, history.NewService()), store
}

func TestFirstMessageAsksForName(t *testing.T) {
	for _, msg := range []string{"hola", "como puedo donar", "asdf"} {
		store := session.NewMemoryStore()
		o := New(testCatalog(), store, match.New(nil, 0.6), nil, nil, nil, nil)

		out := o.Reply(context.Background(), 1, msg)
		if out.Text != "¡Bendiciones! 🙏 ¿Con quién tengo el gusto?" {
			t.Fatalf("first contact must ask for the name, got %q for %q", out.Text, msg)
		}

		sess, ok := store.Get(1)
		if !ok || sess.Stage() != session.StageAwaitingName {
			t.Fatalf("expected awaiting-name session after first contact, got %+v ok=%v", sess, ok)
		}
	}
}

func TestNameExtractionPrecedence(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"Soy Lucía", "Lucía"},
		{"Me llamo Pedro", "Pedro"},
		{"Hola buenas", "Hola"},
		{"hola me llamo Ana gracias", "Ana"},
		{"creo que soy Marta", "Marta"},
	}

	for _, tc := range cases {
		resolver := &fakeResolver{gender: session.GenderUnknown}
		o, _ := newOrchestrator(testCatalog(), resolver, &fakeEnhancer{}, &fakeGenerator{})

		o.Reply(context.Background(), 1, "hola")
		o.Reply(context.Background(), 1, tc.message)

		if resolver.lastName != tc.want {
			t.Fatalf("message %q: extracted %q, want %q", tc.message, resolver.lastName, tc.want)
		}
	}
}

func TestGreetingsByGender(t *testing.T) {
	cases := []struct {
		gender session.Gender
		want   string
	}{
		{session.GenderMasculine, "¡Bendiciones, hermano Pedro!"},
		{session.GenderFeminine, "¡Bendiciones, hermana Pedro!"},
		{session.GenderUnknown, "¡Bendiciones, Pedro! 🙏 ¿En qué puedo ayudarte hoy?"},
	}

	for _, tc := range cases {
		resolver := &fakeResolver{gender: tc.gender}
		o, store := newOrchestrator(testCatalog(), resolver, &fakeEnhancer{}, &fakeGenerator{})

		o.Reply(context.Background(), 1, "hola")
		out := o.Reply(context.Background(), 1, "Me llamo Pedro")

		if out.Text != tc.want {
			t.Fatalf("gender %q: got %q, want %q", tc.gender, out.Text, tc.want)
		}

		sess, _ := store.Get(1)
		if sess.Name != "Pedro" || sess.Gender != tc.gender || sess.Stage() != session.StageEstablished {
			t.Fatalf("unexpected session after onboarding: %+v", sess)
		}
	}
}

func establishedOrchestrator(t *testing.T, enhancer Enhancer, generator Generator) *Orchestrator {
	t.Helper()
	o, store := newOrchestrator(testCatalog(), &fakeResolver{gender: session.GenderMasculine}, enhancer, generator)
	store.Put(session.Session{UserID: 1, Name: "pedro", Gender: session.GenderMasculine})
	return o
}

func TestMatchedMessageIsEnhanced(t *testing.T) {
	enhancer := &fakeEnhancer{out: "¡Dios te bendiga! Dona por transferencia hoy."}
	generator := &fakeGenerator{}
	o := establishedOrchestrator(t, enhancer, generator)

	out := o.Reply(context.Background(), 1, "como puedo hacer una donacion")
	if out.Text != enhancer.out {
		t.Fatalf("expected enhanced canned answer, got %q", out.Text)
	}
	if generator.calls != 0 {
		t.Fatal("generator must not run on a catalog hit")
	}
	if out.Delay <= 0 {
		t.Fatal("steady-state replies must carry a pacing delay")
	}
}

func TestUnmatchedMessageUsesGenerator(t *testing.T) {
	generator := &fakeGenerator{reply: "Puedes colaborar comprando velas solidarias."}
	o := establishedOrchestrator(t, &fakeEnhancer{}, generator)

	out := o.Reply(context.Background(), 1, "cual es el clima hoy")
	if out.Text != generator.reply {
		t.Fatalf("expected generated reply, got %q", out.Text)
	}
	if generator.calls != 1 {
		t.Fatalf("expected one generator call, got %d", generator.calls)
	}
	if generator.last.Query != "cual es el clima hoy" {
		t.Fatalf("generator received wrong query: %q", generator.last.Query)
	}
	if !strings.Contains(generator.last.Catalog, "como puedo donar") {
		t.Fatal("serialized catalog missing from fallback input")
	}
}

func TestGeneratorFailureYieldsApology(t *testing.T) {
	generator := &fakeGenerator{err: errors.New("model unavailable")}
	o := establishedOrchestrator(t, &fakeEnhancer{}, generator)

	out := o.Reply(context.Background(), 1, "cual es el clima hoy")
	if out.Text != apologyReply {
		t.Fatalf("expected apology, got %q", out.Text)
	}
}

func TestNilGeneratorYieldsApology(t *testing.T) {
	o := establishedOrchestrator(t, &fakeEnhancer{}, nil)

	out := o.Reply(context.Background(), 1, "cual es el clima hoy")
	if out.Text != apologyReply {
		t.Fatalf("expected apology without a generator, got %q", out.Text)
	}
}

func TestLongRepliesAreTruncated(t *testing.T) {
	generator := &fakeGenerator{reply: strings.Repeat("a", 900)}
	o := establishedOrchestrator(t, &fakeEnhancer{}, generator)

	out := o.Reply(context.Background(), 1, "cual es el clima hoy")
	if got := len([]rune(out.Text)); got != maxReplyRunes+len(ellipsisMark) {
		t.Fatalf("expected %d runes after truncation, got %d", maxReplyRunes+len(ellipsisMark), got)
	}
	if !strings.HasSuffix(out.Text, ellipsisMark) {
		t.Fatal("truncated replies must end with the ellipsis marker")
	}
}

func TestShortRepliesAreNotTruncated(t *testing.T) {
	generator := &fakeGenerator{reply: strings.Repeat("b", 300)}
	o := establishedOrchestrator(t, &fakeEnhancer{}, generator)

	out := o.Reply(context.Background(), 1, "cual es el clima hoy")
	if len([]rune(out.Text)) != 300 || strings.HasSuffix(out.Text, ellipsisMark) {
		t.Fatalf("300-rune reply must pass unshaped, got %d runes", len([]rune(out.Text)))
	}
}

func TestPacingDelay(t *testing.T) {
	cases := []struct {
		length int
		want   time.Duration
	}{
		{0, 1500 * time.Millisecond},
		{100, 2500 * time.Millisecond},
		{1000, 5 * time.Second},
	}

	for _, tc := range cases {
		if got := pacingDelay(tc.length); got != tc.want {
			t.Fatalf("pacingDelay(%d) = %v, want %v", tc.length, got, tc.want)
		}
	}
}

func TestOnboardingRepliesHaveNoDelay(t *testing.T) {
	o, _ := newOrchestrator(testCatalog(), &fakeResolver{}, &fakeEnhancer{}, &fakeGenerator{})

	out := o.Reply(context.Background(), 1, "hola")
	if out.Delay != 0 {
		t.Fatalf("ask-name reply must not be paced, got %v", out.Delay)
	}
}
