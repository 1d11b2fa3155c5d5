package convo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

// FlowStep identifies the current state of a guided ticket flow.
type FlowStep string

const (
	StepDescription FlowStep = "collecting_description"
	StepCategory    FlowStep = "collecting_category"
	StepContact     FlowStep = "collecting_contact"
	StepOptionalID  FlowStep = "collecting_optional_id"
	StepConfirm     FlowStep = "awaiting_confirmation"
)

// Categories is the closed set of ticket categories. Category input must
// match one of these exactly (ignoring case).
var Categories = []string{
	"Soporte Técnico (Plataformas, Correo, WiFi)",
	"Consultas Académicas (Trámites, Horarios, Programas)",
	"Admisiones y Matrículas",
	"Bienestar Universitario",
	"Pagos y Cartera",
	"Biblioteca",
	"Otro",
}

// Reply tokens recognized by the flow.
const (
	SkipToken    = "Omitir este paso"
	ConfirmToken = "✅ Sí, enviar ticket"
	RejectToken  = "❌ No, cancelar"
)

// DefaultMinDescriptionLen is the minimum description length in runes.
const DefaultMinDescriptionLen = 10

// emailRe is a deliberately loose email shape check: something, an @,
// something, a dot, something.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// TicketDraft is the structured record assembled by the flow. StudentID
// is empty when the user skipped the optional step.
type TicketDraft struct {
	UserID      string
	UserName    string
	Description string
	Category    string
	Contact     string
	StudentID   string
}

// FlowInstance is one in-progress guided flow. Fields for steps not yet
// reached are zero-valued.
type FlowInstance struct {
	Step  FlowStep
	Draft TicketDraft
}

// ErrNoActiveFlow is returned by Advance when the session has no flow in
// progress. It signals a dispatcher coordination bug, not a user error.
var ErrNoActiveFlow = errors.New("convo: no active flow")

// FlowEngine drives the guided ticket flow: one linear path through the
// five collection steps, with re-prompts on invalid input and a single
// permitted shortcut (a seeded description skips the first step).
// Terminal transitions always clear the flow from the session before the
// engine returns; the confirm transition clears it before submission
// begins, so a retry can never submit the same draft twice.
type FlowEngine struct {
	sessions   *SessionStore
	submitter  *SubmissionCoordinator
	minDescLen int
	out        io.Writer
}

// FlowEngineOpts holds parameters for NewFlowEngine.
type FlowEngineOpts struct {
	Sessions          *SessionStore
	Submitter         *SubmissionCoordinator
	MinDescriptionLen int       // defaults to DefaultMinDescriptionLen
	Out               io.Writer // defaults to os.Stdout
}

// NewFlowEngine creates a FlowEngine.
func NewFlowEngine(opts FlowEngineOpts) (*FlowEngine, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("convo: flow engine: sessions is required")
	}
	if opts.Submitter == nil {
		return nil, fmt.Errorf("convo: flow engine: submitter is required")
	}
	minLen := opts.MinDescriptionLen
	if minLen <= 0 {
		minLen = DefaultMinDescriptionLen
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &FlowEngine{
		sessions:   opts.Sessions,
		submitter:  opts.Submitter,
		minDescLen: minLen,
		out:        out,
	}, nil
}

// Start begins a flow for the user, superseding any flow already in
// progress. When seed is non-empty it is stored as the description and
// the flow opens directly at the category step.
func (fe *FlowEngine) Start(userID, userName, seed string) OutboundMessage {
	fi := &FlowInstance{
		Step: StepDescription,
		Draft: TicketDraft{
			UserID:   userID,
			UserName: userName,
		},
	}

	var msg OutboundMessage
	if seed != "" {
		fi.Draft.Description = seed
		fi.Step = StepCategory
		msg = OutboundMessage{
			Text: fmt.Sprintf("Entendido. Has mencionado: %q\n\n"+
				"Ahora, por favor, selecciona la categoría que mejor se ajusta a tu solicitud:", seed),
			Options: Categories,
		}
	} else {
		msg = OutboundMessage{
			Text: "¡Claro! Vamos a crear un ticket de soporte.\n\n" +
				"Por favor, describe brevemente el problema o la consulta que tienes:",
		}
	}

	fe.sessions.SetFlow(userID, fi)
	fmt.Fprintf(fe.out, "convo: flow started [user=%s step=%s seeded=%t]\n", userID, fi.Step, seed != "")
	return msg
}

// Advance feeds one user input into the active flow and returns the
// reply messages. Invalid input re-prompts and never errors; the only
// error condition is the absence of an active flow.
//
// The whole step transition runs under the session lock, so two
// concurrent messages from the same user cannot interleave reads and
// writes on the instance. The blocking submission call runs after the
// lock is released, by which point the flow has already left the
// session and a duplicate confirm finds nothing to submit.
func (fe *FlowEngine) Advance(ctx context.Context, userID, text string) ([]OutboundMessage, error) {
	sess := fe.sessions.GetOrCreate(userID)
	text = strings.TrimSpace(text)

	sess.mu.Lock()
	fi := sess.flow
	if fi == nil {
		sess.mu.Unlock()
		return nil, ErrNoActiveFlow
	}

	var (
		msgs   []OutboundMessage
		err    error
		draft  TicketDraft
		submit bool
	)
	switch fi.Step {
	case StepDescription:
		msgs = fe.collectDescription(fi, text)
	case StepCategory:
		msgs = fe.collectCategory(fi, text)
	case StepContact:
		msgs = fe.collectContact(fi, text)
	case StepOptionalID:
		msgs = fe.collectOptionalID(fi, text)
	case StepConfirm:
		msgs, draft, submit = fe.confirm(sess, fi, text)
	default:
		// Unknown step means the instance is corrupt; discard it.
		sess.flow = nil
		err = fmt.Errorf("convo: flow for %s in unknown step %q", userID, fi.Step)
	}
	sess.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if submit {
		msgs = append(msgs, fe.submitDraft(ctx, draft))
	}
	return msgs, nil
}

// Cancel clears the user's flow and returns the fixed acknowledgement.
// Idempotent: safe to call with no flow in progress.
func (fe *FlowEngine) Cancel(userID string) OutboundMessage {
	fe.sessions.ClearFlow(userID)
	return OutboundMessage{Text: "Creación de ticket cancelada."}
}

func (fe *FlowEngine) collectDescription(fi *FlowInstance, text string) []OutboundMessage {
	if utf8.RuneCountInString(text) < fe.minDescLen {
		return []OutboundMessage{{
			Text: fmt.Sprintf("Por favor, proporciona una descripción un poco más detallada "+
				"(mínimo %d caracteres) para que podamos ayudarte mejor.", fe.minDescLen),
		}}
	}
	fi.Draft.Description = text
	fi.Step = StepCategory
	return []OutboundMessage{{
		Text: "Descripción registrada.\n\n" +
			"Ahora, por favor, selecciona la categoría que mejor se ajusta a tu solicitud:",
		Options: Categories,
	}}
}

func (fe *FlowEngine) collectCategory(fi *FlowInstance, text string) []OutboundMessage {
	canonical, ok := matchCategory(text)
	if !ok {
		return []OutboundMessage{{
			Text:    "Por favor, selecciona una categoría válida de la lista proporcionada.",
			Options: Categories,
		}}
	}
	fi.Draft.Category = canonical
	fi.Step = StepContact
	return []OutboundMessage{{
		Text: "Categoría registrada.\n\n" +
			"Ahora, por favor, indícame tu dirección de correo electrónico para que podamos contactarte:",
	}}
}

func (fe *FlowEngine) collectContact(fi *FlowInstance, text string) []OutboundMessage {
	if !emailRe.MatchString(text) {
		return []OutboundMessage{{
			Text: "La dirección de correo electrónico no parece válida. " +
				"Por favor, ingrésala de nuevo (ej: usuario@dominio.com).",
		}}
	}
	fi.Draft.Contact = text
	fi.Step = StepOptionalID
	return []OutboundMessage{{
		Text: "Correo electrónico registrado.\n\n" +
			"Si eres estudiante y lo tienes a mano, por favor, proporciona tu número de " +
			"identificación estudiantil o documento de identidad. Si no aplica, elige omitir.",
		Options: []string{SkipToken},
	}}
}

func (fe *FlowEngine) collectOptionalID(fi *FlowInstance, text string) []OutboundMessage {
	if strings.EqualFold(text, SkipToken) {
		fi.Draft.StudentID = ""
	} else {
		fi.Draft.StudentID = text
	}
	fi.Step = StepConfirm
	return []OutboundMessage{{
		Text:    summarizeDraft(fi.Draft),
		Options: []string{ConfirmToken, RejectToken},
	}}
}

// confirm handles the terminal step. Called with the session lock held;
// on confirm the flow is cleared and the draft copied out before the
// lock is released, so once confirmation begins the draft no longer
// exists in the session and no retry can submit it again.
func (fe *FlowEngine) confirm(sess *Session, fi *FlowInstance, text string) ([]OutboundMessage, TicketDraft, bool) {
	switch {
	case isConfirmToken(text):
		sess.flow = nil
		return []OutboundMessage{{Text: "Procesando tu solicitud de ticket..."}}, fi.Draft, true

	case isRejectToken(text):
		sess.flow = nil
		return []OutboundMessage{{Text: "Creación de ticket cancelada."}}, TicketDraft{}, false

	default:
		return []OutboundMessage{{
			Text:    "Por favor, responde con una de las dos opciones.",
			Options: []string{ConfirmToken, RejectToken},
		}}, TicketDraft{}, false
	}
}

// submitDraft runs the submission and renders the outcome message.
func (fe *FlowEngine) submitDraft(ctx context.Context, draft TicketDraft) OutboundMessage {
	result := fe.submitter.Submit(ctx, draft)
	if result.OK {
		return OutboundMessage{
			Text: fmt.Sprintf("¡Ticket enviado con éxito! 👍\n"+
				"Tu número de ticket es: %s\n%s\n\n"+
				"¿Hay algo más en lo que pueda ayudarte?", result.Ref, result.Message),
		}
	}
	return OutboundMessage{
		Text: fmt.Sprintf("Hubo un problema al enviar tu ticket: %s.\n"+
			"Por favor, intenta de nuevo más tarde con /ticket o contacta "+
			"directamente a la universidad.", result.Reason),
	}
}

// matchCategory resolves user input to a canonical category, ignoring case.
func matchCategory(text string) (string, bool) {
	for _, c := range Categories {
		if strings.EqualFold(text, c) {
			return c, true
		}
	}
	return "", false
}

// isConfirmToken accepts the full confirm option or a bare yes.
func isConfirmToken(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case strings.ToLower(ConfirmToken), "sí", "si", "sí, enviar ticket", "si, enviar ticket":
		return true
	}
	return false
}

// isRejectToken accepts the full reject option or a bare no.
func isRejectToken(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case strings.ToLower(RejectToken), "no", "no, cancelar":
		return true
	}
	return false
}

// summarizeDraft renders the confirmation summary shown before submission.
func summarizeDraft(d TicketDraft) string {
	var b strings.Builder
	b.WriteString("📝 Resumen de tu solicitud de soporte\n")
	b.WriteString("Por favor, verifica que la información sea correcta antes de enviar:\n\n")
	fmt.Fprintf(&b, "Descripción: %s\n", d.Description)
	fmt.Fprintf(&b, "Categoría: %s\n", d.Category)
	fmt.Fprintf(&b, "Correo de contacto: %s\n", d.Contact)
	if d.StudentID != "" {
		fmt.Fprintf(&b, "ID estudiante/documento: %s\n", d.StudentID)
	} else {
		b.WriteString("ID estudiante/documento: Omitido\n")
	}
	b.WriteString("\n¿Deseas enviar este ticket?")
	return b.String()
}
