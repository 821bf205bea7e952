// Package executor defines the AgentExecutor contract: the only interface
// business-logic agents implement to plug into the request handler. The
// handler supplies a RequestContext and an EventQueue; the executor's job
// is to push Events onto that queue until the task reaches a terminal or
// interruptible state.
package executor

import (
	"context"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/queue"
)

// RequestContext carries everything an executor needs to process one
// message/send or message/stream call.
type RequestContext struct {
	Message       a2a.Message
	Task          *a2a.Task // nil for a brand new conversation
	Configuration a2a.MessageSendConfiguration
	CallContext   *a2a.ServerCallContext
}

// AgentExecutor is implemented by the agent's own business logic. execute
// is expected to run until the unit of work completes, pushing one or more
// Events (status updates, artifact chunks, or a final Task/Message) onto
// the queue; it must not close the queue itself — the caller does that
// once execute returns. cancel is invoked for a task in a cancelable state
// and should make a best effort to stop in-flight work promptly.
type AgentExecutor interface {
	Execute(ctx context.Context, reqCtx RequestContext, q *queue.EventQueue) error
	Cancel(ctx context.Context, reqCtx RequestContext, q *queue.EventQueue) error
}
