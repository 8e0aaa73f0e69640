package gateway

import (
	"context"

	"github.com/harun/deepagent/pkg/agent"
	"github.com/harun/deepagent/pkg/planner"
)

// SessionRunner runs planning sessions on behalf of the gateway.
// *agent.Runner satisfies it.
type SessionRunner interface {
	Run(ctx context.Context, query string) (*agent.Response, error)
	RunWithTrace(ctx context.Context, query string) (*agent.Response, []planner.State, error)
	Stream(ctx context.Context, query string, observe func(planner.State) error) (*agent.Response, error)
}

// ExecuteRequest is the body accepted by every agent endpoint
type ExecuteRequest struct {
	Query string `json:"query"`
}

// TraceResponse carries the result together with every intermediate state
type TraceResponse struct {
	Result *agent.Response `json:"result"`
	States []planner.State `json:"states"`
}

// ErrorResponse is the body written for every non-2xx answer
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// Stream event names
const (
	EventState  = "state"
	EventResult = "result"
	EventError  = "error"
)

// StreamEvent is one websocket frame sent to a stream client
type StreamEvent struct {
	Event  string          `json:"event"`
	State  *planner.State  `json:"state,omitempty"`
	Result *agent.Response `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
