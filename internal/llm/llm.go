// Package llm wraps the Gemini API for Bedel: intent classification with
// defensive parsing, and grounded response generation with per-user chat
// history.
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"
)

// Intent tags produced by the classifier. The set is closed; anything the
// model invents outside it is coerced to IntentUnknown.
const (
	IntentTramite   = "CONSULTA_TRAMITE_ACADEMICO"
	IntentHorario   = "CONSULTA_HORARIO"
	IntentPrograma  = "CONSULTA_PROGRAMA_ACADEMICO"
	IntentSoporte   = "SOLICITUD_SOPORTE_TECNICO"
	IntentGeneral   = "INFORMACION_GENERAL"
	IntentTicket    = "GENERAR_TICKET_HUMANO"
	IntentSaludo    = "SALUDO"
	IntentDespedida = "DESPEDIDA"
	IntentAfirma    = "AFIRMACION"
	IntentNiega     = "NEGACION"
	IntentCancelar  = "CANCELAR_ACCION"
	IntentMeta      = "PREGUNTA_SOBRE_BOT"
	IntentUnknown   = "DESCONOCIDO"
)

// knownIntents is the closed classification set.
var knownIntents = map[string]bool{
	IntentTramite:   true,
	IntentHorario:   true,
	IntentPrograma:  true,
	IntentSoporte:   true,
	IntentGeneral:   true,
	IntentTicket:    true,
	IntentSaludo:    true,
	IntentDespedida: true,
	IntentAfirma:    true,
	IntentNiega:     true,
	IntentCancelar:  true,
	IntentMeta:      true,
	IntentUnknown:   true,
}

// Classification is the result of classifying one user message. When the
// provider fails or returns unusable output, Degraded is true, Intent is
// IntentUnknown and Entities is empty; callers must treat that as "no
// signal", never as an error.
type Classification struct {
	Intent   string
	Entities map[string]string
	Degraded bool
}

// FAQContext is a knowledge-base fact handed to the generator so the answer
// stays grounded.
type FAQContext struct {
	Question string
	Answer   string
	Category string
}

// DefaultTimeout bounds every provider call.
const DefaultTimeout = 30 * time.Second

// maxHistoryTurns caps the per-user chat history kept in memory.
const maxHistoryTurns = 40

// Service is the Gemini-backed classifier and generator.
type Service struct {
	client  *genai.Client
	model   string
	timeout time.Duration

	mu       sync.Mutex
	sessions map[string][]*genai.Content // per-user chat history
}

// Opts holds parameters for creating a Service.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration // defaults to DefaultTimeout
}

// New creates a Service connected to the Gemini API.
func New(ctx context.Context, opts Opts) (*Service, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create client: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		client:   client,
		model:    opts.Model,
		timeout:  timeout,
		sessions: make(map[string][]*genai.Content),
	}, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, p := range resp.Candidates[0].Content.Parts {
		out += p.Text
	}
	return out
}
