// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aiku/pipebridge/pkg/bridge/database"
	"github.com/aiku/pipebridge/pkg/bridge/ident"
)

// Inbound is one already-parsed platform event handed to the pipeline by an
// adapter's event loop. Event stays opaque to the pipeline beyond what the
// source adapter's converter extracts from it.
type Inbound struct {
	Bot    Bot
	Event  any
	Source ident.Target

	// GroupName and UserName feed the relay header so readers on the
	// destination platform can tell where the message came from.
	GroupName string
	UserName  string
}

// DeliveryError reports a failed relay to one destination. Other
// destinations of the same inbound message are unaffected by it.
type DeliveryError struct {
	Target ident.Target
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("relay to %s: %v", e.Target, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Pipeline wires inbound events to the right converter and fans the
// universal message out to the sender of every piped destination.
type Pipeline struct {
	deps Deps
	log  zerolog.Logger

	botsLock sync.RWMutex
	bots     map[string]Bot
}

// NewPipeline creates a pipeline over the given persistence boundary.
func NewPipeline(db *database.Database, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		deps: Deps{DB: db, Log: log},
		log:  log.With().Str("component", "pipeline").Logger(),
		bots: make(map[string]Bot),
	}
}

// DB exposes the persistence boundary for adapters constructed around the
// pipeline.
func (p *Pipeline) DB() *database.Database { return p.deps.DB }

// RegisterBot makes a connected bot available as a relay destination for its
// adapter.
func (p *Pipeline) RegisterBot(bot Bot) {
	p.botsLock.Lock()
	defer p.botsLock.Unlock()
	p.bots[bot.Adapter()] = bot
}

// SelectBot returns the connected bot able to deliver to the given target.
func (p *Pipeline) SelectBot(target ident.Target) (Bot, error) {
	p.botsLock.RLock()
	defer p.botsLock.RUnlock()
	bot, ok := p.bots[target.Adapter]
	if !ok {
		return nil, fmt.Errorf("no connected bot for adapter %q", target.Adapter)
	}
	return bot, nil
}

// HandleInbound relays one inbound message to every destination piped to its
// source chat. Per-destination failures are logged and do not affect the
// other destinations. Fire-and-forget variant of Relay for event loops.
func (p *Pipeline) HandleInbound(ctx context.Context, in Inbound) {
	for _, derr := range p.Relay(ctx, in) {
		p.log.Warn().Err(derr.Err).
			Str("pipe", ident.DisplayPipe(in.Source, derr.Target)).
			Msg("Failed to relay pipe message")
	}
}

// Relay converts the inbound message once per destination and sends the
// rendered copies concurrently. It returns one DeliveryError per failed
// destination; an empty slice means every destination got its copy and has
// a resolvable correlation record.
func (p *Pipeline) Relay(ctx context.Context, in Inbound) []*DeliveryError {
	log := p.log.With().
		Str("src_adapter", in.Bot.Adapter()).
		Str("src_chat", in.Source.ID).
		Logger()

	pipes, err := p.deps.DB.Pipe.GetByListen(ctx, in.Source)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load pipes for chat")
		return []*DeliveryError{{Target: in.Source, Err: err}}
	}
	if len(pipes) == 0 {
		log.Trace().Msg("No pipes listening on chat")
		return nil
	}

	extractor := GetConverter(p.deps, in.Bot, nil)
	native, ok := extractor.GetMessage(in.Event)
	if !ok {
		log.Trace().Msg("Event carries no message payload")
		return nil
	}
	msgID, err := extractor.GetMessageID(ctx, in.Event, in.Bot)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to extract message ID")
		return nil
	}

	head := p.header(in)

	var (
		wg       sync.WaitGroup
		failLock sync.Mutex
		failed   []*DeliveryError
	)
	for _, pipe := range pipes {
		wg.Add(1)
		go func(target ident.Target) {
			defer wg.Done()
			if err := p.relayTo(ctx, in, target, native, msgID, head); err != nil {
				failLock.Lock()
				failed = append(failed, &DeliveryError{Target: target, Err: err})
				failLock.Unlock()
			}
		}(pipe.Target)
	}
	wg.Wait()
	return failed
}

// relayTo converts and delivers one inbound message to one destination.
func (p *Pipeline) relayTo(ctx context.Context, in Inbound, target ident.Target, native any, msgID string, head Segment) error {
	display := ident.DisplayPipe(in.Source, target)

	dstBot, err := p.SelectBot(target)
	if err != nil {
		return fmt.Errorf("failed to select destination bot: %w", err)
	}

	converter := GetConverter(p.deps, in.Bot, dstBot)
	converted, err := converter.Convert(ctx, native)
	if err != nil {
		return fmt.Errorf("failed to convert message: %w", err)
	}

	msg := append(Message{head}, converted...)
	p.log.Debug().
		Str("pipe", display).
		Str("src_msg_id", msgID).
		Int("segments", len(msg)).
		Msg("Relaying pipe message")

	sender := GetSender(p.deps, dstBot.Adapter())
	if err := sender.Send(ctx, dstBot, target, msg, in.Bot.Adapter(), msgID); err != nil {
		return err
	}
	return nil
}

// header builds the "[ group - user ]" text segment prepended to every
// relayed copy.
func (p *Pipeline) header(in Inbound) Segment {
	group := in.GroupName
	if group == "" {
		group = in.Source.ID
	}
	user := in.UserName
	return Text{Text: fmt.Sprintf("[ %s - %s ]\n", group, user)}
}
