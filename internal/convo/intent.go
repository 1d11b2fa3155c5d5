package convo

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"unicode/utf8"

	"github.com/ovalle/bedel/internal/apiclient"
	"github.com/ovalle/bedel/internal/llm"
)

// Classifier abstracts intent classification. *llm.Service satisfies it.
type Classifier interface {
	Classify(ctx context.Context, text string) llm.Classification
}

// Knowledge abstracts the FAQ lookup. A nil match with a nil error means
// no FAQ matched the query. *apiclient.Client satisfies it.
type Knowledge interface {
	BestFAQ(ctx context.Context, query, subject string) (*apiclient.FAQMatch, error)
}

// OutcomeKind discriminates the router's decision.
type OutcomeKind int

const (
	// DirectAnswer carries a ready reply (greetings, farewells, bot meta).
	DirectAnswer OutcomeKind = iota
	// HandoffToFlow asks the dispatcher to start the guided ticket flow,
	// optionally seeding the description.
	HandoffToFlow
	// NeedsGeneration asks the dispatcher to produce a free-form reply,
	// optionally grounded in a retrieved FAQ.
	NeedsGeneration
)

// RouterOutcome is the IntentRouter's decision for one message.
type RouterOutcome struct {
	Kind    OutcomeKind
	Text    string          // set for DirectAnswer
	Seed    string          // set for HandoffToFlow when a summary was extracted
	Context *llm.FAQContext // set for NeedsGeneration when a FAQ matched
}

// informationalIntents are answered from the FAQ base when possible.
var informationalIntents = map[string]bool{
	llm.IntentTramite:  true,
	llm.IntentHorario:  true,
	llm.IntentPrograma: true,
	llm.IntentGeneral:  true,
}

// topicEntityKeys are checked in order when extracting a FAQ subject
// filter from classification entities.
var topicEntityKeys = []string{
	"nombre_tramite",
	"nombre_asignatura",
	"nombre_programa",
	"tema",
}

// IntentRouter classifies a free-form message and decides what to do with
// it. It never mutates session state; the dispatcher acts on the outcome.
type IntentRouter struct {
	classifier Classifier
	knowledge  Knowledge
	out        io.Writer
}

// IntentRouterOpts holds parameters for NewIntentRouter.
type IntentRouterOpts struct {
	Classifier Classifier
	Knowledge  Knowledge // optional; without it informational intents get no context
	Out        io.Writer // defaults to os.Stdout
}

// NewIntentRouter creates an IntentRouter.
func NewIntentRouter(opts IntentRouterOpts) (*IntentRouter, error) {
	if opts.Classifier == nil {
		return nil, fmt.Errorf("convo: intent router: classifier is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &IntentRouter{
		classifier: opts.Classifier,
		knowledge:  opts.Knowledge,
		out:        out,
	}, nil
}

// Route classifies text and returns the decision. A degraded
// classification, a lookup failure, or an unknown intent all fall through
// to open-ended generation; the user is never blocked on a collaborator
// outage.
func (ir *IntentRouter) Route(ctx context.Context, userID, text string) RouterOutcome {
	c := ir.classifier.Classify(ctx, text)
	fmt.Fprintf(ir.out, "convo: router: [user=%s intent=%s degraded=%t] %q\n",
		userID, c.Intent, c.Degraded, truncate(text, 80))

	if c.Degraded {
		return RouterOutcome{Kind: NeedsGeneration}
	}

	switch {
	case c.Intent == llm.IntentTicket:
		return RouterOutcome{Kind: HandoffToFlow, Seed: c.Entities["resumen_solicitud_ticket"]}

	case informationalIntents[c.Intent]:
		return RouterOutcome{Kind: NeedsGeneration, Context: ir.lookupFAQ(ctx, text, c.Entities)}

	case c.Intent == llm.IntentSaludo:
		return RouterOutcome{Kind: DirectAnswer, Text: greetingReply}

	case c.Intent == llm.IntentDespedida:
		return RouterOutcome{Kind: DirectAnswer, Text: farewellReply}

	case c.Intent == llm.IntentMeta:
		return RouterOutcome{Kind: DirectAnswer, Text: metaReply}

	default:
		return RouterOutcome{Kind: NeedsGeneration}
	}
}

// lookupFAQ queries the knowledge base with the raw message and any
// extracted topic entity. Returns nil when nothing matched or the lookup
// failed; a lookup failure is logged but never surfaced.
func (ir *IntentRouter) lookupFAQ(ctx context.Context, text string, entities map[string]string) *llm.FAQContext {
	if ir.knowledge == nil {
		return nil
	}

	var subject string
	for _, key := range topicEntityKeys {
		if v := entities[key]; v != "" {
			subject = v
			break
		}
	}

	match, err := ir.knowledge.BestFAQ(ctx, text, subject)
	if err != nil {
		log.Printf("convo: router: faq lookup: %v", err)
		return nil
	}
	if match == nil {
		return nil
	}
	return &llm.FAQContext{
		Question: match.Question,
		Answer:   match.Answer,
		Category: match.Category,
	}
}

// Canned replies for social intents.
const (
	greetingReply = "¡Hola! 👋 Soy Bedel, tu asistente virtual universitario. " +
		"Puedes escribirme tu consulta directamente o usar /ticket para crear una solicitud de soporte."
	farewellReply = "¡Hasta pronto! Si necesitas algo más, aquí estaré. 😊"
	metaReply     = "Soy Bedel, el asistente virtual de la universidad. Respondo consultas académicas, " +
		"de horarios y de soporte técnico básico, y puedo crear tickets de soporte con /ticket."
)

// truncate returns s truncated to maxLen runes with "..." appended if
// needed. Counting runes keeps a multibyte character from being split.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
