package convo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ovalle/bedel/internal/apiclient"
)

// OpenTicketLister abstracts the backend's open-ticket read surface.
// *apiclient.Client satisfies it.
type OpenTicketLister interface {
	OpenTickets(ctx context.Context) ([]apiclient.Ticket, error)
}

// maxDigestLines caps how many individual tickets the digest lists.
const maxDigestLines = 15

// BuildOpenTicketDigest queries the backend for open tickets and renders
// a summary message. Returns "" when there is nothing open, so callers
// can suppress the post.
func BuildOpenTicketDigest(ctx context.Context, lister OpenTicketLister) (string, error) {
	tickets, err := lister.OpenTickets(ctx)
	if err != nil {
		return "", fmt.Errorf("convo: open ticket digest: %w", err)
	}
	if len(tickets) == 0 {
		return "", nil
	}

	byCategory := make(map[string]int)
	for _, t := range tickets {
		byCategory[t.Category]++
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Resumen diario: %d ticket(s) abierto(s)\n\n", len(tickets))
	for _, c := range categories {
		fmt.Fprintf(&b, "• %s: %d\n", c, byCategory[c])
	}

	b.WriteString("\n")
	for i, t := range tickets {
		if i == maxDigestLines {
			fmt.Fprintf(&b, "... y %d más\n", len(tickets)-maxDigestLines)
			break
		}
		fmt.Fprintf(&b, "%s [%s] %s\n", t.Ref, t.Priority, truncate(t.Description, 60))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
