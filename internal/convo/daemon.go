package convo

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ovalle/bedel/internal/apiclient"
	"github.com/ovalle/bedel/internal/config"
)

// workerQueueSize bounds the per-user inbound queue. A user flooding
// faster than their worker drains loses the overflow, not the process.
const workerQueueSize = 32

// Daemon is the main bot process. It connects to a chat platform via an
// Adapter, pumps inbound messages through the Dispatcher, and posts the
// daily open-ticket digest on schedule.
type Daemon struct {
	cfg        *config.Config
	adapter    Adapter
	classifier Classifier
	generator  Generator
	backend    *apiclient.Client
	out        io.Writer

	workerMu sync.Mutex
	workers  map[string]chan InboundMessage
	wg       sync.WaitGroup
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	Config     *config.Config
	Adapter    Adapter
	Classifier Classifier
	Generator  Generator
	Backend    *apiclient.Client
	Out        io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("convo: daemon: config is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("convo: daemon: adapter is required")
	}
	if opts.Classifier == nil {
		return nil, fmt.Errorf("convo: daemon: classifier is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("convo: daemon: generator is required")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("convo: daemon: backend client is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		cfg:        opts.Config,
		adapter:    opts.Adapter,
		classifier: opts.Classifier,
		generator:  opts.Generator,
		backend:    opts.Backend,
		out:        out,
		workers:    make(map[string]chan InboundMessage),
	}, nil
}

// Run starts the daemon. It connects the adapter, builds the conversation
// core, and blocks until the context is cancelled. On shutdown it closes
// the adapter gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Bedel connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("convo: connect: %w", err)
	}

	// Extract bot user ID if the adapter supports it.
	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}

	sessions := NewSessionStore()

	submitter, err := NewSubmissionCoordinator(SubmissionCoordinatorOpts{
		Creator: d.backend,
		Out:     d.out,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("convo: build submission coordinator: %w", err)
	}

	flow, err := NewFlowEngine(FlowEngineOpts{
		Sessions:          sessions,
		Submitter:         submitter,
		MinDescriptionLen: d.cfg.Flow.MinDescriptionLen,
		Out:               d.out,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("convo: build flow engine: %w", err)
	}

	router, err := NewIntentRouter(IntentRouterOpts{
		Classifier: d.classifier,
		Knowledge:  d.backend,
		Out:        d.out,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("convo: build intent router: %w", err)
	}

	dispatcher, err := NewDispatcher(DispatcherOpts{
		Sessions:  sessions,
		Flow:      flow,
		Router:    router,
		Generator: d.generator,
		Out:       d.out,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("convo: build dispatcher: %w", err)
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("convo: listen: %w", err)
	}

	go d.runDigestScheduler(ctx)

	fmt.Fprintf(d.out, "Bedel online\n")

	// Main loop: fan inbound messages out to one worker per user. Each
	// worker drains its queue in arrival order, so a user's messages
	// stay sequential while users never wait on each other.
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Bedel shutting down...\n")
			d.stopWorkers()
			if err := d.adapter.Close(); err != nil {
				log.Printf("convo: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "Bedel stopped\n")
			return nil

		case msg, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "Bedel inbound channel closed\n")
				d.stopWorkers()
				return nil
			}
			if botUserID != "" && msg.UserID == botUserID {
				continue
			}
			d.dispatchInbound(ctx, dispatcher, msg)
		}
	}
}

// dispatchInbound hands the message to its user's worker goroutine,
// starting one on the user's first message.
func (d *Daemon) dispatchInbound(ctx context.Context, dispatcher *Dispatcher, msg InboundMessage) {
	d.workerMu.Lock()
	ch, ok := d.workers[msg.UserID]
	if !ok {
		ch = make(chan InboundMessage, workerQueueSize)
		d.workers[msg.UserID] = ch
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for m := range ch {
				d.handleInbound(ctx, dispatcher, m)
			}
		}()
	}
	d.workerMu.Unlock()

	select {
	case ch <- msg:
	default:
		log.Printf("convo: daemon: queue full for %s, dropping message", msg.UserID)
	}
}

// stopWorkers closes every worker queue and waits for in-flight messages
// to finish. Called only after the main loop stops feeding workers.
func (d *Daemon) stopWorkers() {
	d.workerMu.Lock()
	for _, ch := range d.workers {
		close(ch)
	}
	d.workers = make(map[string]chan InboundMessage)
	d.workerMu.Unlock()
	d.wg.Wait()
}

// handleInbound runs one message through the dispatcher and delivers the
// replies to the channel the message came from.
func (d *Daemon) handleInbound(ctx context.Context, dispatcher *Dispatcher, msg InboundMessage) {
	replies := dispatcher.Handle(ctx, msg)
	for _, reply := range replies {
		if reply.ChannelID == "" {
			reply.ChannelID = msg.ChannelID
		}
		if err := d.adapter.Send(ctx, reply); err != nil {
			log.Printf("convo: send reply [user=%s]: %v", msg.UserID, err)
		}
	}
}

// runDigestScheduler posts the daily open-ticket digest on the configured
// cron schedule. It returns immediately when the digest is disabled.
func (d *Daemon) runDigestScheduler(ctx context.Context) {
	cfg := d.cfg.Digest
	if !cfg.Enabled || cfg.Cron == "" || cfg.ChannelID == "" {
		return
	}

	var timer *time.Timer
	if dur := nextCronDuration(cfg.Cron); dur > 0 {
		timer = time.NewTimer(dur)
	}
	if timer == nil {
		log.Printf("convo: digest: invalid cron expression %q, digest disabled", cfg.Cron)
		return
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timerChan(timer):
			d.fireDigest(ctx, cfg.ChannelID)
			if dur := nextCronDuration(cfg.Cron); dur > 0 {
				timer.Reset(dur)
			}
		}
	}
}

// fireDigest builds and posts a single open-ticket digest (best-effort).
func (d *Daemon) fireDigest(ctx context.Context, channelID string) {
	text, err := BuildOpenTicketDigest(ctx, d.backend)
	if err != nil {
		log.Printf("convo: digest: %v", err)
		return
	}
	if text == "" {
		// No open tickets, suppress the post.
		return
	}
	if err := d.adapter.Send(ctx, OutboundMessage{ChannelID: channelID, Text: text}); err != nil {
		log.Printf("convo: digest: send: %v", err)
	}
}
