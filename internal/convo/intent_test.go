package convo

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ovalle/bedel/internal/apiclient"
	"github.com/ovalle/bedel/internal/llm"
)

// fakeClassifier returns a canned classification.
type fakeClassifier struct {
	result llm.Classification
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) llm.Classification {
	return f.result
}

// fakeKnowledge returns a canned FAQ match and records the query.
type fakeKnowledge struct {
	match      *apiclient.FAQMatch
	err        error
	calls      int
	gotQuery   string
	gotSubject string
}

func (f *fakeKnowledge) BestFAQ(ctx context.Context, query, subject string) (*apiclient.FAQMatch, error) {
	f.calls++
	f.gotQuery = query
	f.gotSubject = subject
	return f.match, f.err
}

func newTestRouter(t *testing.T, c llm.Classification, k Knowledge) *IntentRouter {
	t.Helper()
	ir, err := NewIntentRouter(IntentRouterOpts{
		Classifier: &fakeClassifier{result: c},
		Knowledge:  k,
		Out:        io.Discard,
	})
	if err != nil {
		t.Fatalf("NewIntentRouter: %v", err)
	}
	return ir
}

func TestRouteDegradedFallsToGeneration(t *testing.T) {
	kb := &fakeKnowledge{match: &apiclient.FAQMatch{Answer: "should not be used"}}
	ir := newTestRouter(t, llm.Classification{
		Intent:   llm.IntentUnknown,
		Entities: map[string]string{},
		Degraded: true,
	}, kb)

	out := ir.Route(context.Background(), "u1", "qué es la vida")
	if out.Kind != NeedsGeneration {
		t.Fatalf("Kind = %v, want NeedsGeneration", out.Kind)
	}
	if out.Context != nil {
		t.Error("degraded classification must not carry context")
	}
	if kb.calls != 0 {
		t.Errorf("knowledge queried %d times during degraded path", kb.calls)
	}
}

func TestRouteTicketIntent(t *testing.T) {
	tests := []struct {
		name     string
		entities map[string]string
		wantSeed string
	}{
		{"with summary", map[string]string{"resumen_solicitud_ticket": "no me llega el correo"}, "no me llega el correo"},
		{"without summary", map[string]string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ir := newTestRouter(t, llm.Classification{
				Intent:   llm.IntentTicket,
				Entities: tt.entities,
			}, nil)

			out := ir.Route(context.Background(), "u1", "quiero hablar con una persona")
			if out.Kind != HandoffToFlow {
				t.Fatalf("Kind = %v, want HandoffToFlow", out.Kind)
			}
			if out.Seed != tt.wantSeed {
				t.Errorf("Seed = %q, want %q", out.Seed, tt.wantSeed)
			}
		})
	}
}

func TestRouteInformationalWithMatch(t *testing.T) {
	kb := &fakeKnowledge{match: &apiclient.FAQMatch{
		Question: "¿Cómo solicito un certificado de notas?",
		Answer:   "Desde el portal académico, sección certificados.",
		Category: "Trámites",
	}}
	ir := newTestRouter(t, llm.Classification{
		Intent:   llm.IntentTramite,
		Entities: map[string]string{"nombre_tramite": "certificado de notas"},
	}, kb)

	out := ir.Route(context.Background(), "u1", "cómo pido un certificado de notas")
	if out.Kind != NeedsGeneration {
		t.Fatalf("Kind = %v, want NeedsGeneration", out.Kind)
	}
	if out.Context == nil {
		t.Fatal("expected FAQ context")
	}
	if out.Context.Answer != kb.match.Answer {
		t.Errorf("Context.Answer = %q", out.Context.Answer)
	}
	if kb.gotSubject != "certificado de notas" {
		t.Errorf("subject = %q, want the extracted entity", kb.gotSubject)
	}
	if kb.gotQuery != "cómo pido un certificado de notas" {
		t.Errorf("query = %q, want the raw message", kb.gotQuery)
	}
}

func TestRouteInformationalNoMatch(t *testing.T) {
	kb := &fakeKnowledge{match: nil}
	ir := newTestRouter(t, llm.Classification{
		Intent:   llm.IntentGeneral,
		Entities: map[string]string{"tema": "parqueaderos"},
	}, kb)

	out := ir.Route(context.Background(), "u1", "hay parqueadero para estudiantes?")
	if out.Kind != NeedsGeneration || out.Context != nil {
		t.Errorf("outcome = %+v, want NeedsGeneration without context", out)
	}
	if kb.gotSubject != "parqueaderos" {
		t.Errorf("subject = %q", kb.gotSubject)
	}
}

func TestRouteLookupErrorDegradesToNoContext(t *testing.T) {
	kb := &fakeKnowledge{err: fmt.Errorf("backend down")}
	ir := newTestRouter(t, llm.Classification{
		Intent:   llm.IntentHorario,
		Entities: map[string]string{},
	}, kb)

	out := ir.Route(context.Background(), "u1", "horario de cálculo")
	if out.Kind != NeedsGeneration || out.Context != nil {
		t.Errorf("outcome = %+v, want NeedsGeneration without context", out)
	}
}

func TestRouteNilKnowledge(t *testing.T) {
	ir := newTestRouter(t, llm.Classification{
		Intent:   llm.IntentPrograma,
		Entities: map[string]string{"nombre_programa": "ingeniería"},
	}, nil)

	out := ir.Route(context.Background(), "u1", "información de ingeniería")
	if out.Kind != NeedsGeneration || out.Context != nil {
		t.Errorf("outcome = %+v, want NeedsGeneration without context", out)
	}
}

func TestRouteSocialIntents(t *testing.T) {
	tests := []struct {
		intent string
		want   string
	}{
		{llm.IntentSaludo, greetingReply},
		{llm.IntentDespedida, farewellReply},
		{llm.IntentMeta, metaReply},
	}
	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			ir := newTestRouter(t, llm.Classification{Intent: tt.intent, Entities: map[string]string{}}, nil)
			out := ir.Route(context.Background(), "u1", "hola")
			if out.Kind != DirectAnswer {
				t.Fatalf("Kind = %v, want DirectAnswer", out.Kind)
			}
			if out.Text != tt.want {
				t.Errorf("Text = %q", out.Text)
			}
		})
	}
}

func TestRouteUnknownIntentGenerates(t *testing.T) {
	ir := newTestRouter(t, llm.Classification{Intent: llm.IntentUnknown, Entities: map[string]string{}}, nil)
	out := ir.Route(context.Background(), "u1", "42")
	if out.Kind != NeedsGeneration || out.Context != nil {
		t.Errorf("outcome = %+v, want NeedsGeneration without context", out)
	}
}

func TestNewIntentRouterValidation(t *testing.T) {
	if _, err := NewIntentRouter(IntentRouterOpts{}); err == nil {
		t.Error("expected error without classifier")
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	if got := truncate("corto", 10); got != "corto" {
		t.Errorf("truncate = %q, want unchanged", got)
	}
	if got := truncate("matrícula académica", 9); got != "matrícula..." {
		t.Errorf("truncate = %q", got)
	}
	// Cutting inside a multibyte rune would produce invalid UTF-8.
	if got := truncate(strings.Repeat("ñ", 20), 5); !utf8.ValidString(got) || got != "ñññññ..." {
		t.Errorf("truncate = %q", got)
	}
}
