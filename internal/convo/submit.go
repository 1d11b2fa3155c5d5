package convo

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ovalle/bedel/internal/apiclient"
)

// ticketSource is the fixed channel tag attached to every ticket created
// through the bot.
const ticketSource = "Chatbot Bedel"

// defaultPriority is assigned to every bot-created ticket. Priority triage
// happens on the backend, not in the conversation.
const defaultPriority = "media"

// TicketCreator abstracts the backend create-ticket call so the coordinator
// can be tested without a live server. *apiclient.Client satisfies it.
type TicketCreator interface {
	CreateTicket(ctx context.Context, sub apiclient.TicketSubmission) (*apiclient.TicketReceipt, error)
}

// SubmissionResult is the user-facing outcome of a ticket submission.
type SubmissionResult struct {
	OK      bool
	Ref     string // backend reference, set when OK
	Message string // backend acknowledgement, set when OK
	Reason  string // failure detail, set when !OK
}

// SubmissionCoordinator hands a completed ticket draft to the backend.
// It is invoked exactly once per completed flow, after the flow has been
// cleared from the session, and never lets an error escape its boundary.
type SubmissionCoordinator struct {
	creator TicketCreator
	out     io.Writer
}

// SubmissionCoordinatorOpts holds parameters for NewSubmissionCoordinator.
type SubmissionCoordinatorOpts struct {
	Creator TicketCreator
	Out     io.Writer // defaults to os.Stdout
}

// NewSubmissionCoordinator creates a SubmissionCoordinator.
func NewSubmissionCoordinator(opts SubmissionCoordinatorOpts) (*SubmissionCoordinator, error) {
	if opts.Creator == nil {
		return nil, fmt.Errorf("convo: submission coordinator: creator is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &SubmissionCoordinator{creator: opts.Creator, out: out}, nil
}

// Submit serializes the draft and calls the backend once. Any error from
// the downstream call, including a panic in the creator, is mapped to a
// failed SubmissionResult.
func (sc *SubmissionCoordinator) Submit(ctx context.Context, draft TicketDraft) (result SubmissionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("convo: submit: panic recovered: %v", r)
			result = SubmissionResult{OK: false, Reason: "error interno al procesar la solicitud"}
		}
	}()

	sub := apiclient.TicketSubmission{
		UserID:      draft.UserID,
		UserName:    draft.UserName,
		Email:       draft.Contact,
		Description: draft.Description,
		Category:    draft.Category,
		StudentID:   draft.StudentID,
		Priority:    defaultPriority,
		Source:      ticketSource,
	}

	receipt, err := sc.creator.CreateTicket(ctx, sub)
	if err != nil {
		log.Printf("convo: submit: create ticket for %s: %v", draft.UserID, err)
		return SubmissionResult{OK: false, Reason: "no se pudo registrar el ticket en el servidor"}
	}

	fmt.Fprintf(sc.out, "convo: ticket %s created [user=%s category=%q]\n",
		receipt.Ref, draft.UserID, draft.Category)
	return SubmissionResult{OK: true, Ref: receipt.Ref, Message: receipt.Message}
}
