// Package orchestrator sequences tool invocations for one call. It owns the
// call's session state, enforces identification and freshness rules no matter
// what the external dialogue model proposes, and triggers summary generation
// exactly once when the call ends.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/superbryn/echo-agent/agent/contract"
	"github.com/superbryn/echo-agent/agent/scheduling"
	"github.com/superbryn/echo-agent/agent/session"
	"github.com/superbryn/echo-agent/agent/summary"
	eventsx "github.com/superbryn/echo-agent/pkg/events"
)

// Orchestrator is call-scoped: one instance per live call, created when the
// call starts and discarded after the summary. Tool calls for one call are
// strictly sequential; concurrency happens across calls, through the store.
type Orchestrator struct {
	sessionID  string
	sess       *session.Session
	store      contract.Store
	engine     *scheduling.Engine
	summarizer *summary.Summarizer
	events     *eventsx.Client
	clock      func() time.Time

	graphRunner compose.Runnable[GraphInput, GraphOutput]

	mu    sync.Mutex
	final *contract.CallSummary
}

type Option func(*Orchestrator)

// WithEvents installs a tool lifecycle event publisher. Nil is allowed.
func WithEvents(client *eventsx.Client) Option {
	return func(o *Orchestrator) { o.events = client }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

func New(
	sessionID string,
	store contract.Store,
	engine *scheduling.Engine,
	summarizer *summary.Summarizer,
	opts ...Option,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if engine == nil {
		return nil, errors.New("booking engine is required")
	}
	if summarizer == nil {
		return nil, errors.New("summarizer is required")
	}

	o := &Orchestrator{
		sessionID:  sessionID,
		store:      store,
		engine:     engine,
		summarizer: summarizer,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.sess = session.New(sessionID, o.clock())

	graphRunner, err := o.compileToolCallGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleToolCall executes one tool invocation and returns the sentence to
// speak. It always returns speakable text; internal failures come back as a
// generic apology, never as an error the voice layer would have to improvise
// around.
func (o *Orchestrator) HandleToolCall(ctx context.Context, tool string, args map[string]any) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out, err := o.graphRunner.Invoke(ctx, GraphInput{Tool: tool, Args: args})
	if err != nil {
		return replyInternalError
	}
	return out.Reply
}

// RecordCallerTurn appends a caller utterance to the transcript.
func (o *Orchestrator) RecordCallerTurn(text string) {
	o.sess.AppendTurn(session.RoleCaller, text, o.clock())
}

// RecordAgentTurn appends an agent utterance to the transcript.
func (o *Orchestrator) RecordAgentTurn(text string) {
	o.sess.AppendTurn(session.RoleAgent, text, o.clock())
}

// Session exposes the call's session state, mainly for the voice layer and
// tests.
func (o *Orchestrator) Session() *session.Session {
	return o.sess
}
