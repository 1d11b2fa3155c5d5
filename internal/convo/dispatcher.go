package convo

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ovalle/bedel/internal/llm"
)

// Generator abstracts free-form reply generation with per-user history.
// *llm.Service satisfies it.
type Generator interface {
	Generate(ctx context.Context, userID, message string, faq *llm.FAQContext) (string, error)
	Reset(userID string) bool
}

// apologyText is the fixed fallback reply for any internal failure. The
// user always gets at least one message back, never a raw error.
const apologyText = "Lo siento, tuve un inconveniente técnico al procesar tu solicitud. " +
	"Por favor, intenta de nuevo en un momento."

// Dispatcher is the top-level entry point for inbound messages. Commands
// are handled first; otherwise a message goes to the flow engine when a
// flow is active, and to the intent router when not.
type Dispatcher struct {
	sessions  *SessionStore
	flow      *FlowEngine
	router    *IntentRouter
	generator Generator
	out       io.Writer
}

// DispatcherOpts holds parameters for NewDispatcher.
type DispatcherOpts struct {
	Sessions  *SessionStore
	Flow      *FlowEngine
	Router    *IntentRouter
	Generator Generator
	Out       io.Writer // defaults to os.Stdout
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) (*Dispatcher, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("convo: dispatcher: sessions is required")
	}
	if opts.Flow == nil {
		return nil, fmt.Errorf("convo: dispatcher: flow engine is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("convo: dispatcher: router is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("convo: dispatcher: generator is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Dispatcher{
		sessions:  opts.Sessions,
		flow:      opts.Flow,
		router:    opts.Router,
		generator: opts.Generator,
		out:       out,
	}, nil
}

// Handle processes one inbound message and returns the replies. Every
// non-empty message yields at least one reply; any internal failure,
// including a panic in a collaborator, is converted to a fixed apology.
func (d *Dispatcher) Handle(ctx context.Context, msg InboundMessage) (replies []OutboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("convo: dispatcher: panic recovered [user=%s]: %v", msg.UserID, r)
			replies = []OutboundMessage{{Text: apologyText}}
		}
	}()

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	fmt.Fprintf(d.out, "convo: dispatcher: recv [user=%s] %q\n", msg.UserID, truncate(text, 80))

	if strings.HasPrefix(text, "/") {
		return d.handleCommand(msg, text)
	}

	if d.sessions.HasFlow(msg.UserID) {
		msgs, err := d.flow.Advance(ctx, msg.UserID, text)
		if err != nil {
			// Advance only errors on a coordination bug (no flow, corrupt
			// step); the flow has been discarded, apologize and move on.
			log.Printf("convo: dispatcher: advance [user=%s]: %v", msg.UserID, err)
			return []OutboundMessage{{Text: apologyText}}
		}
		return msgs
	}

	return d.routeFreeForm(ctx, msg, text)
}

// handleCommand processes slash commands. Any top-level command supersedes
// an in-progress flow, matching the flow's cancellation contract.
func (d *Dispatcher) handleCommand(msg InboundMessage, text string) []OutboundMessage {
	cmd := strings.ToLower(strings.Fields(text)[0])
	fmt.Fprintf(d.out, "convo: dispatcher: command %s [user=%s]\n", cmd, msg.UserID)

	switch cmd {
	case "/ticket":
		// Text after the command seeds the description, e.g.
		// "/ticket no puedo entrar al correo institucional".
		seed := strings.TrimSpace(strings.TrimPrefix(text, "/ticket"))
		return []OutboundMessage{d.flow.Start(msg.UserID, msg.UserName, seed)}

	case "/ayuda", "/start":
		var msgs []OutboundMessage
		if d.sessions.HasFlow(msg.UserID) {
			msgs = append(msgs, d.flow.Cancel(msg.UserID))
		}
		return append(msgs, OutboundMessage{Text: welcomeMessage(msg.UserName)})

	case "/cancelar", "/cancelar_ticket":
		if !d.sessions.HasFlow(msg.UserID) {
			return []OutboundMessage{{Text: "No hay ninguna solicitud en curso que cancelar. ¿En qué te puedo ayudar?"}}
		}
		return []OutboundMessage{d.flow.Cancel(msg.UserID)}

	case "/reset_chat":
		if d.generator.Reset(msg.UserID) {
			return []OutboundMessage{{Text: "He reseteado nuestro historial de conversación. 🧠✨\n" +
				"¡Empecemos de nuevo! ¿En qué te puedo ayudar?"}}
		}
		return []OutboundMessage{{Text: "No había un historial previo que resetear, ¡así que estamos listos! 😊\n" +
			"¿Cómo te puedo asistir?"}}

	default:
		return []OutboundMessage{{Text: "No reconozco ese comando. Usa /ayuda para ver lo que puedo hacer."}}
	}
}

// routeFreeForm handles a non-command message outside any flow: classify,
// then answer directly, hand off into the flow, or generate a reply.
func (d *Dispatcher) routeFreeForm(ctx context.Context, msg InboundMessage, text string) []OutboundMessage {
	outcome := d.router.Route(ctx, msg.UserID, text)

	switch outcome.Kind {
	case DirectAnswer:
		return []OutboundMessage{{Text: outcome.Text}}

	case HandoffToFlow:
		seed := outcome.Seed
		if seed == "" {
			seed = text
		}
		return []OutboundMessage{d.flow.Start(msg.UserID, msg.UserName, seed)}

	case NeedsGeneration:
		reply, err := d.generator.Generate(ctx, msg.UserID, text, outcome.Context)
		if err != nil || strings.TrimSpace(reply) == "" {
			if err != nil {
				log.Printf("convo: dispatcher: generate [user=%s]: %v", msg.UserID, err)
			}
			return []OutboundMessage{{Text: apologyText}}
		}
		return []OutboundMessage{{Text: reply}}

	default:
		log.Printf("convo: dispatcher: unknown outcome kind %d [user=%s]", outcome.Kind, msg.UserID)
		return []OutboundMessage{{Text: apologyText}}
	}
}

// welcomeMessage builds the /start and /ayuda greeting.
func welcomeMessage(userName string) string {
	greeting := "¡Hola!"
	if userName != "" {
		greeting = fmt.Sprintf("¡Hola, %s!", userName)
	}
	return greeting + " 👋\n\n" +
		"Soy Bedel, tu guía virtual en la universidad.\n\n" +
		"Estoy aquí para ayudarte con:\n" +
		"📚 Información sobre trámites académicos.\n" +
		"📅 Horarios y calendario académico.\n" +
		"💻 Soporte técnico básico (plataformas, correo, Wi-Fi).\n" +
		"🏛️ Consultas generales sobre la universidad.\n\n" +
		"Comandos útiles:\n" +
		"🆘 /ayuda - Muestra este mensaje.\n" +
		"🎫 /ticket - Para crear una solicitud de soporte detallada.\n" +
		"❌ /cancelar - Cancela la solicitud en curso.\n" +
		"🔄 /reset_chat - Reinicia nuestra conversación.\n\n" +
		"Puedes escribirme tu consulta directamente en lenguaje natural. " +
		"Por ejemplo: \"¿Cuáles son los requisitos para la inscripción?\" " +
		"o \"No puedo acceder a la plataforma de notas\".\n\n" +
		"¿Cómo puedo colaborarte hoy?"
}
