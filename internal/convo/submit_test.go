package convo

import (
	"context"
	"io"
	"testing"
)

func newTestCoordinator(t *testing.T, creator *fakeCreator) *SubmissionCoordinator {
	t.Helper()
	sc, err := NewSubmissionCoordinator(SubmissionCoordinatorOpts{Creator: creator, Out: io.Discard})
	if err != nil {
		t.Fatalf("NewSubmissionCoordinator: %v", err)
	}
	return sc
}

func TestSubmitSuccess(t *testing.T) {
	creator := &fakeCreator{}
	sc := newTestCoordinator(t, creator)

	draft := TicketDraft{
		UserID:      "u1",
		UserName:    "Ana",
		Description: "No puedo entrar a la plataforma",
		Category:    "Biblioteca",
		Contact:     "ana@unicampus.edu.co",
	}
	res := sc.Submit(context.Background(), draft)
	if !res.OK {
		t.Fatalf("Submit failed: %+v", res)
	}
	if res.Ref != "BDL-1234abcd" {
		t.Errorf("Ref = %q", res.Ref)
	}
	if res.Message == "" {
		t.Error("Message should carry the backend acknowledgement")
	}

	sub := creator.lastSub
	if sub.Source != ticketSource {
		t.Errorf("Source = %q, want %q", sub.Source, ticketSource)
	}
	if sub.Priority != defaultPriority {
		t.Errorf("Priority = %q, want %q", sub.Priority, defaultPriority)
	}
	if sub.Email != draft.Contact {
		t.Errorf("Email = %q, want %q", sub.Email, draft.Contact)
	}
	if sub.StudentID != "" {
		t.Errorf("StudentID = %q, want empty for skipped step", sub.StudentID)
	}
}

func TestSubmitFailureMapped(t *testing.T) {
	creator := &fakeCreator{fail: true}
	sc := newTestCoordinator(t, creator)

	res := sc.Submit(context.Background(), TicketDraft{UserID: "u1"})
	if res.OK {
		t.Fatal("Submit should report failure")
	}
	if res.Reason == "" {
		t.Error("Reason should be populated on failure")
	}
	if res.Ref != "" {
		t.Errorf("Ref = %q on failure", res.Ref)
	}
}

func TestSubmitRecoversFromPanic(t *testing.T) {
	creator := &fakeCreator{panics: true}
	sc := newTestCoordinator(t, creator)

	res := sc.Submit(context.Background(), TicketDraft{UserID: "u1"})
	if res.OK {
		t.Fatal("panicking creator should yield a failure result")
	}
	if res.Reason == "" {
		t.Error("Reason should be populated after recovery")
	}
}

func TestNewSubmissionCoordinatorValidation(t *testing.T) {
	if _, err := NewSubmissionCoordinator(SubmissionCoordinatorOpts{}); err == nil {
		t.Error("expected error without creator")
	}
}
