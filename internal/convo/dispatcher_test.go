package convo

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/ovalle/bedel/internal/apiclient"
	"github.com/ovalle/bedel/internal/llm"
)

// llmFAQFixture is a canned knowledge-base match shared by router tests.
var llmFAQFixture = apiclient.FAQMatch{
	Question: "¿Cómo solicito un certificado de notas?",
	Answer:   "Desde el portal académico, sección certificados.",
	Category: "Trámites",
}

// fakeGenerator returns a canned reply and records what it was asked.
type fakeGenerator struct {
	reply      string
	err        error
	panics     bool
	hasHistory bool
	gotFAQ     *llm.FAQContext
	gotMessage string
	resetCalls int
}

func (f *fakeGenerator) Generate(ctx context.Context, userID, message string, faq *llm.FAQContext) (string, error) {
	if f.panics {
		panic("generator exploded")
	}
	f.gotMessage = message
	f.gotFAQ = faq
	return f.reply, f.err
}

func (f *fakeGenerator) Reset(userID string) bool {
	f.resetCalls++
	return f.hasHistory
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	store      *SessionStore
	creator    *fakeCreator
	classifier *fakeClassifier
	knowledge  *fakeKnowledge
	generator  *fakeGenerator
}

func newTestDispatcher(t *testing.T) *dispatcherFixture {
	t.Helper()
	store := NewSessionStore()
	creator := &fakeCreator{}
	submitter, err := NewSubmissionCoordinator(SubmissionCoordinatorOpts{Creator: creator, Out: io.Discard})
	if err != nil {
		t.Fatalf("NewSubmissionCoordinator: %v", err)
	}
	flow, err := NewFlowEngine(FlowEngineOpts{Sessions: store, Submitter: submitter, Out: io.Discard})
	if err != nil {
		t.Fatalf("NewFlowEngine: %v", err)
	}
	classifier := &fakeClassifier{result: llm.Classification{Intent: llm.IntentUnknown, Entities: map[string]string{}}}
	knowledge := &fakeKnowledge{}
	router, err := NewIntentRouter(IntentRouterOpts{Classifier: classifier, Knowledge: knowledge, Out: io.Discard})
	if err != nil {
		t.Fatalf("NewIntentRouter: %v", err)
	}
	generator := &fakeGenerator{reply: "respuesta generada"}
	d, err := NewDispatcher(DispatcherOpts{
		Sessions:  store,
		Flow:      flow,
		Router:    router,
		Generator: generator,
		Out:       io.Discard,
	})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	return &dispatcherFixture{
		dispatcher: d,
		store:      store,
		creator:    creator,
		classifier: classifier,
		knowledge:  knowledge,
		generator:  generator,
	}
}

func inbound(userID, text string) InboundMessage {
	return InboundMessage{
		Platform:  "mock",
		ChannelID: "C1",
		UserID:    userID,
		UserName:  "Ana",
		Text:      text,
	}
}

func TestHandleTicketCommand(t *testing.T) {
	fx := newTestDispatcher(t)

	replies := fx.dispatcher.Handle(context.Background(), inbound("u1", "/ticket"))
	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	fi := fx.store.GetOrCreate("u1").Flow()
	if fi == nil || fi.Step != StepDescription {
		t.Errorf("flow = %+v, want active at %s", fi, StepDescription)
	}
}

func TestHandleTicketCommandWithSeed(t *testing.T) {
	fx := newTestDispatcher(t)

	fx.dispatcher.Handle(context.Background(), inbound("u1", "/ticket no funciona el wifi del bloque B"))
	fi := fx.store.GetOrCreate("u1").Flow()
	if fi == nil || fi.Step != StepCategory {
		t.Fatalf("flow = %+v, want seeded flow at %s", fi, StepCategory)
	}
	if fi.Draft.Description != "no funciona el wifi del bloque B" {
		t.Errorf("Description = %q", fi.Draft.Description)
	}
}

func TestHandleAyudaCancelsActiveFlow(t *testing.T) {
	fx := newTestDispatcher(t)
	ctx := context.Background()
	fx.dispatcher.Handle(ctx, inbound("u1", "/ticket"))

	replies := fx.dispatcher.Handle(ctx, inbound("u1", "/ayuda"))
	if len(replies) != 2 {
		t.Fatalf("got %d replies, want cancellation ack plus welcome", len(replies))
	}
	if fx.store.HasFlow("u1") {
		t.Error("flow should be cancelled by /ayuda")
	}
	if !strings.Contains(replies[1].Text, "Bedel") {
		t.Errorf("welcome text = %q", replies[1].Text)
	}
}

func TestHandleStartWithoutFlow(t *testing.T) {
	fx := newTestDispatcher(t)
	replies := fx.dispatcher.Handle(context.Background(), inbound("u1", "/start"))
	if len(replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(replies))
	}
	if !strings.Contains(replies[0].Text, "Ana") {
		t.Errorf("welcome should greet the user by name: %q", replies[0].Text)
	}
}

func TestHandleCancelar(t *testing.T) {
	fx := newTestDispatcher(t)
	ctx := context.Background()

	replies := fx.dispatcher.Handle(ctx, inbound("u1", "/cancelar"))
	if !strings.Contains(replies[0].Text, "No hay ninguna solicitud") {
		t.Errorf("cancel without flow = %q", replies[0].Text)
	}

	fx.dispatcher.Handle(ctx, inbound("u1", "/ticket"))
	replies = fx.dispatcher.Handle(ctx, inbound("u1", "/cancelar"))
	if !strings.Contains(replies[0].Text, "cancelada") {
		t.Errorf("cancel ack = %q", replies[0].Text)
	}
	if fx.store.HasFlow("u1") {
		t.Error("flow should be cleared")
	}
	if fx.creator.callCount() != 0 {
		t.Errorf("creator calls = %d, want 0", fx.creator.callCount())
	}
}

func TestHandleResetChat(t *testing.T) {
	fx := newTestDispatcher(t)
	fx.generator.hasHistory = true

	replies := fx.dispatcher.Handle(context.Background(), inbound("u1", "/reset_chat"))
	if fx.generator.resetCalls != 1 {
		t.Errorf("reset calls = %d, want 1", fx.generator.resetCalls)
	}
	if !strings.Contains(replies[0].Text, "reseteado") {
		t.Errorf("reset reply = %q", replies[0].Text)
	}

	fx.generator.hasHistory = false
	replies = fx.dispatcher.Handle(context.Background(), inbound("u1", "/reset_chat"))
	if !strings.Contains(replies[0].Text, "No había") {
		t.Errorf("reset reply without history = %q", replies[0].Text)
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	fx := newTestDispatcher(t)
	replies := fx.dispatcher.Handle(context.Background(), inbound("u1", "/volar"))
	if !strings.Contains(replies[0].Text, "/ayuda") {
		t.Errorf("unknown command reply = %q", replies[0].Text)
	}
}

func TestHandleRoutesToActiveFlow(t *testing.T) {
	fx := newTestDispatcher(t)
	ctx := context.Background()
	fx.dispatcher.Handle(ctx, inbound("u1", "/ticket"))

	fx.dispatcher.Handle(ctx, inbound("u1", "No puedo entrar a la plataforma"))
	fi := fx.store.GetOrCreate("u1").Flow()
	if fi == nil || fi.Step != StepCategory {
		t.Fatalf("flow = %+v, want advanced to %s", fi, StepCategory)
	}
	if fi.Draft.Description != "No puedo entrar a la plataforma" {
		t.Errorf("Description = %q", fi.Draft.Description)
	}
}

func TestHandleHandoffStartsSeededFlow(t *testing.T) {
	fx := newTestDispatcher(t)
	fx.classifier.result = llm.Classification{
		Intent:   llm.IntentTicket,
		Entities: map[string]string{"resumen_solicitud_ticket": "perdí mi carné estudiantil"},
	}

	replies := fx.dispatcher.Handle(context.Background(), inbound("u1", "ayúdame, perdí mi carné estudiantil"))
	if len(replies) != 1 {
		t.Fatalf("got %d replies", len(replies))
	}
	fi := fx.store.GetOrCreate("u1").Flow()
	if fi == nil || fi.Step != StepCategory {
		t.Fatalf("flow = %+v, want seeded flow at %s", fi, StepCategory)
	}
	if fi.Draft.Description != "perdí mi carné estudiantil" {
		t.Errorf("Description = %q", fi.Draft.Description)
	}
}

func TestHandleHandoffWithoutSeedUsesMessage(t *testing.T) {
	fx := newTestDispatcher(t)
	fx.classifier.result = llm.Classification{Intent: llm.IntentTicket, Entities: map[string]string{}}

	fx.dispatcher.Handle(context.Background(), inbound("u1", "necesito hablar con una persona del área de pagos"))
	fi := fx.store.GetOrCreate("u1").Flow()
	if fi == nil || fi.Draft.Description != "necesito hablar con una persona del área de pagos" {
		t.Errorf("flow = %+v, want description seeded from the message", fi)
	}
}

func TestHandleGenerationWithContext(t *testing.T) {
	fx := newTestDispatcher(t)
	fx.classifier.result = llm.Classification{Intent: llm.IntentTramite, Entities: map[string]string{}}
	fx.knowledge.match = &llmFAQFixture

	replies := fx.dispatcher.Handle(context.Background(), inbound("u1", "cómo saco el certificado"))
	if replies[0].Text != "respuesta generada" {
		t.Errorf("reply = %q", replies[0].Text)
	}
	if fx.generator.gotFAQ == nil || fx.generator.gotFAQ.Answer != llmFAQFixture.Answer {
		t.Errorf("generator context = %+v", fx.generator.gotFAQ)
	}
}

func TestHandleGeneratorFailureApologizes(t *testing.T) {
	fx := newTestDispatcher(t)
	fx.generator.err = fmt.Errorf("provider timeout")

	replies := fx.dispatcher.Handle(context.Background(), inbound("u1", "cuéntame algo"))
	if len(replies) != 1 || replies[0].Text != apologyText {
		t.Errorf("replies = %+v, want the fixed apology", replies)
	}
}

func TestHandleGeneratorEmptyReplyApologizes(t *testing.T) {
	fx := newTestDispatcher(t)
	fx.generator.reply = "   "

	replies := fx.dispatcher.Handle(context.Background(), inbound("u1", "cuéntame algo"))
	if len(replies) != 1 || replies[0].Text != apologyText {
		t.Errorf("replies = %+v, want the fixed apology", replies)
	}
}

func TestHandleRecoversFromPanic(t *testing.T) {
	fx := newTestDispatcher(t)
	fx.generator.panics = true

	replies := fx.dispatcher.Handle(context.Background(), inbound("u1", "hola mundo"))
	if len(replies) != 1 || replies[0].Text != apologyText {
		t.Errorf("replies = %+v, want the fixed apology", replies)
	}
}

func TestHandleDirectAnswer(t *testing.T) {
	fx := newTestDispatcher(t)
	fx.classifier.result = llm.Classification{Intent: llm.IntentSaludo, Entities: map[string]string{}}

	replies := fx.dispatcher.Handle(context.Background(), inbound("u1", "buenos días"))
	if replies[0].Text != greetingReply {
		t.Errorf("reply = %q", replies[0].Text)
	}
}

func TestHandleEmptyTextIgnored(t *testing.T) {
	fx := newTestDispatcher(t)
	if replies := fx.dispatcher.Handle(context.Background(), inbound("u1", "   ")); replies != nil {
		t.Errorf("replies = %+v, want none for empty text", replies)
	}
}

func TestEndToEndTicketConversation(t *testing.T) {
	fx := newTestDispatcher(t)
	ctx := context.Background()

	script := []string{
		"/ticket",
		"No puedo acceder al aula virtual desde ayer",
		"Soporte Técnico (Plataformas, Correo, WiFi)",
		"ana@unicampus.edu.co",
		SkipToken,
		ConfirmToken,
	}
	var last []OutboundMessage
	for _, line := range script {
		last = fx.dispatcher.Handle(ctx, inbound("u1", line))
		if len(last) == 0 {
			t.Fatalf("no reply for %q", line)
		}
	}

	if fx.creator.callCount() != 1 {
		t.Fatalf("creator calls = %d, want 1", fx.creator.callCount())
	}
	final := last[len(last)-1]
	if !strings.Contains(final.Text, "éxito") {
		t.Errorf("final reply = %q", final.Text)
	}
	if fx.store.HasFlow("u1") {
		t.Error("flow should be cleared after submission")
	}
	sub := fx.creator.lastSub
	if sub.Description != "No puedo acceder al aula virtual desde ayer" ||
		sub.Category != "Soporte Técnico (Plataformas, Correo, WiFi)" ||
		sub.Email != "ana@unicampus.edu.co" {
		t.Errorf("submission = %+v", sub)
	}
}

func TestNewDispatcherValidation(t *testing.T) {
	fx := newTestDispatcher(t)
	tests := []struct {
		name string
		opts DispatcherOpts
	}{
		{"missing sessions", DispatcherOpts{Flow: fx.dispatcher.flow, Router: fx.dispatcher.router, Generator: fx.generator}},
		{"missing flow", DispatcherOpts{Sessions: fx.store, Router: fx.dispatcher.router, Generator: fx.generator}},
		{"missing router", DispatcherOpts{Sessions: fx.store, Flow: fx.dispatcher.flow, Generator: fx.generator}},
		{"missing generator", DispatcherOpts{Sessions: fx.store, Flow: fx.dispatcher.flow, Router: fx.dispatcher.router}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDispatcher(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}
