package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	"github.com/superbryn/echo-agent/agent/tool"
	eventsx "github.com/superbryn/echo-agent/pkg/events"
)

// GraphInput is one tool invocation as proposed by the dialogue model.
type GraphInput struct {
	Tool string
	Args map[string]any
}

// GraphOutput carries the sentence to speak back to the caller.
type GraphOutput struct {
	Reply string
}

// GraphState flows through the pipeline. A node that sets Reply short-circuits
// the rest: downstream nodes pass it through untouched.
type GraphState struct {
	Tool  string
	Args  map[string]any
	Reply string
}

func (o *Orchestrator) compileToolCallGraph(
	ctx context.Context,
) (compose.Runnable[GraphInput, GraphOutput], error) {
	graph := compose.NewGraph[GraphInput, GraphOutput]()

	if err := graph.AddLambdaNode("validate_call",
		compose.InvokableLambda(func(ctx context.Context, in GraphInput) (*GraphState, error) {
			return o.validateCall(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_call: %w", err)
	}

	if err := graph.AddLambdaNode("execute_tool",
		compose.InvokableLambda(func(ctx context.Context, in *GraphState) (*GraphState, error) {
			return o.executeTool(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node execute_tool: %w", err)
	}

	if err := graph.AddLambdaNode("record_reply",
		compose.InvokableLambda(func(ctx context.Context, in *GraphState) (GraphOutput, error) {
			return o.recordReply(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_call"},
		{"validate_call", "execute_tool"},
		{"execute_tool", "record_reply"},
		{"record_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.tool_call"))
	if err != nil {
		return nil, fmt.Errorf("compile tool call graph: %w", err)
	}
	return runner, nil
}

// validateCall rejects unknown tools and calls that arrive after the session
// ended, and publishes the tool_start event for everything that proceeds.
func (o *Orchestrator) validateCall(ctx context.Context, in GraphInput) (*GraphState, error) {
	state := &GraphState{Tool: in.Tool, Args: in.Args}

	if !tool.Known(in.Tool) {
		log.Warn().Str("tool", in.Tool).Msg("orchestrator: unknown tool requested")
		state.Reply = replyUnknownTool
		return state, nil
	}
	if o.sess.Ended() && in.Tool != tool.EndConversation {
		state.Reply = replyCallEnded
		return state, nil
	}

	log.Info().Str("tool", in.Tool).Str("session_id", o.sessionID).Msg("orchestrator: tool start")
	o.publishEvent("tool_start", in.Tool, "")
	return state, nil
}

func (o *Orchestrator) executeTool(ctx context.Context, state *GraphState) (*GraphState, error) {
	if state.Reply != "" {
		return state, nil
	}

	var reply string
	switch state.Tool {
	case tool.IdentifyUser:
		reply = o.identifyUser(ctx, state.Args)
	case tool.CreateUser:
		reply = o.createUser(ctx, state.Args)
	case tool.GetAvailability:
		reply = o.getAvailability(ctx, state.Args)
	case tool.BookAppointment:
		reply = o.bookAppointment(ctx, state.Args)
	case tool.CancelAppointment:
		reply = o.cancelAppointment(ctx, state.Args)
	case tool.ModifyAppointment:
		reply = o.modifyAppointment(ctx, state.Args)
	case tool.GetAppointments:
		reply = o.getAppointments(ctx, state.Args)
	case tool.EndConversation:
		reply = o.endConversation(ctx)
	}
	state.Reply = reply
	return state, nil
}

func (o *Orchestrator) recordReply(ctx context.Context, state *GraphState) (GraphOutput, error) {
	log.Info().Str("tool", state.Tool).Str("session_id", o.sessionID).Msg("orchestrator: tool end")
	o.publishEvent("tool_end", state.Tool, state.Reply)
	return GraphOutput{Reply: state.Reply}, nil
}

// eventPublishTimeout bounds each webhook delivery attempt.
const eventPublishTimeout = 5 * time.Second

// publishEvent delivers the webhook from its own goroutine with a detached
// timeout context. A slow or dead endpoint must never delay the spoken reply.
func (o *Orchestrator) publishEvent(eventType, toolName, result string) {
	if o.events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
		defer cancel()
		if err := o.events.Publish(ctx, eventsx.Event{
			Type:      eventType,
			Tool:      toolName,
			SessionID: o.sessionID,
			Result:    result,
		}); err != nil {
			log.Warn().Err(err).Str("tool", toolName).Msg("orchestrator: event publish failed")
		}
	}()
}
