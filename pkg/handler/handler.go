// Package handler implements RequestHandler, the transport-agnostic core
// that every server adapter (JSON-RPC, REST, gRPC) dispatches into. It is
// the single place business rules live: modality negotiation, task
// lifecycle, pagination, push-notification CRUD, and extended-card policy.
package handler

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/aggregator"
	"github.com/theapemachine/a2a-go/pkg/consumer"
	rpcerrors "github.com/theapemachine/a2a-go/pkg/errors"
	"github.com/theapemachine/a2a-go/pkg/executor"
	"github.com/theapemachine/a2a-go/pkg/push"
	"github.com/theapemachine/a2a-go/pkg/queue"
	"github.com/theapemachine/a2a-go/pkg/stores"
	"github.com/theapemachine/a2a-go/pkg/taskmanager"
)

const defaultPageSize = 50

// ExtendedCardModifier produces a per-caller view of the authenticated
// extended card, given the base card and the call's identity.
type ExtendedCardModifier func(base a2a.AgentCard, cc *a2a.ServerCallContext) a2a.AgentCard

// Handler is the protocol core: every A2A operation (message send/stream,
// task get/cancel/list/subscribe, push-config CRUD, extended card) is one
// method here, reused verbatim by every wire adapter in pkg/server.
type Handler struct {
	Card     a2a.AgentCard
	Executor executor.AgentExecutor

	Queues *queue.Manager
	Tasks  *taskmanager.Manager
	Store  stores.TaskStore

	PushStore  push.ConfigStore
	PushSender *push.Sender

	PollInterval time.Duration

	ExtendedCard         *a2a.AgentCard
	ExtendedCardModifier ExtendedCardModifier

	logger *log.Logger
}

func New(card a2a.AgentCard, agentExecutor executor.AgentExecutor, store stores.TaskStore, pushStore push.ConfigStore, pushSender *push.Sender) *Handler {
	return &Handler{
		Card:         card,
		Executor:     agentExecutor,
		Queues:       queue.NewManager(),
		Tasks:        taskmanager.New(store),
		Store:        store,
		PushStore:    pushStore,
		PushSender:   pushSender,
		PollInterval: 500 * time.Millisecond,
		logger:       log.Default().WithPrefix("handler"),
	}
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// buildRequestContext resolves or creates the task this message belongs to
// and returns the executor.RequestContext to run it with.
func (h *Handler) buildRequestContext(ctx context.Context, msg a2a.Message, cfg a2a.MessageSendConfiguration, cc *a2a.ServerCallContext) (executor.RequestContext, error) {
	var current *a2a.Task
	var err error

	if msg.TaskID != nil {
		current, err = h.Store.Get(ctx, *msg.TaskID)
		if err != nil {
			return executor.RequestContext{}, rpcerrors.ErrTaskNotFound.WithMessagef("task %s not found", *msg.TaskID)
		}
		// History strictly grows: a follow-up message on an existing task
		// (e.g. the input an interrupted agent asked for) is part of the
		// transcript just like the one that created it.
		if msg.ContextID == nil {
			contextID := current.ContextID
			msg.ContextID = &contextID
		}
		current.AppendHistory(msg)
		if err := h.Store.Save(ctx, current); err != nil {
			return executor.RequestContext{}, rpcerrors.ErrInternal.WithData(err.Error())
		}
	} else {
		current, err = h.Tasks.EnsureTask(ctx, msg, cc.Owner())
		if err != nil {
			return executor.RequestContext{}, rpcerrors.ErrInternal.WithData(err.Error())
		}
		taskID := current.ID
		contextID := current.ContextID
		msg.TaskID = &taskID
		msg.ContextID = &contextID
	}

	return executor.RequestContext{
		Message:       msg,
		Task:          current,
		Configuration: cfg,
		CallContext:   cc,
	}, nil
}

// attachProducer resolves the task's queue and starts the agent producer
// on it, unless one is already running: a task interrupted in
// input_required/auth_required keeps its queue open with the original
// execute still attached, and a follow-up send must feed that producer
// rather than race a second one against it. In that case the caller just
// gets the live queue to consume from.
func (h *Handler) attachProducer(reqCtx executor.RequestContext, taskID string) *queue.EventQueue {
	q, created := h.Queues.Acquire(taskID)
	if created {
		h.runExecutor(reqCtx, q)
	}
	return q
}

// runExecutor starts the agent's producer loop in the background, closing
// the queue once it returns — the "spawn, install completion callback"
// step of message dispatch. A failure raised by the executor before it
// emitted a terminal event is converted into a final failed status update
// so consumers blocked on the queue observe the failure instead of a
// bare closed queue.
func (h *Handler) runExecutor(reqCtx executor.RequestContext, q *queue.EventQueue) {
	go func() {
		taskID := taskIDFromContext(reqCtx)
		defer h.Queues.Close(taskID)
		if err := h.Executor.Execute(context.Background(), reqCtx, q); err != nil {
			h.logger.Error("agent execution failed", "task", taskID, "error", err)
			now := time.Now().UTC()
			contextID := ""
			if reqCtx.Task != nil {
				contextID = reqCtx.Task.ContextID
			} else if reqCtx.Message.ContextID != nil {
				contextID = *reqCtx.Message.ContextID
			}
			q.Enqueue(a2a.NewStatusUpdateEvent(a2a.TaskStatusUpdateEvent{
				Kind:      "status-update",
				TaskID:    taskID,
				ContextID: contextID,
				Status: a2a.TaskStatus{
					State:     a2a.TaskStateFailed,
					Message:   failureMessage(err, taskID, contextID),
					Timestamp: &now,
				},
				Final: true,
			}))
		}
	}()
}

// failureMessage wraps an executor error as an agent-authored message so
// the failed status carries a human-readable cause.
func failureMessage(err error, taskID, contextID string) *a2a.Message {
	msg, mErr := a2a.NewTextMessage(a2a.RoleAgent, err.Error())
	if mErr != nil {
		return nil
	}
	return msg.WithTaskID(taskID, contextID)
}

func taskIDFromContext(reqCtx executor.RequestContext) string {
	if reqCtx.Message.TaskID != nil {
		return *reqCtx.Message.TaskID
	}
	if reqCtx.Task != nil {
		return reqCtx.Task.ID
	}
	return ""
}

// OnMessageSend handles message/send, blocking when cfg.Blocking is set and
// non-blocking otherwise, returning either a folded Task snapshot or a
// standalone Message.
func (h *Handler) OnMessageSend(ctx context.Context, msg a2a.Message, cfg a2a.MessageSendConfiguration, cc *a2a.ServerCallContext) (*a2a.Task, *a2a.Message, error) {
	if !intersects(h.Card.DefaultOutputModes, cfg.AcceptedOutputModes) {
		return nil, nil, rpcerrors.ErrContentTypeNotSupported
	}

	reqCtx, err := h.buildRequestContext(ctx, msg, cfg, cc)
	if err != nil {
		return nil, nil, err
	}

	taskID := taskIDFromContext(reqCtx)
	q := h.attachProducer(reqCtx, taskID)

	c := consumer.New(q, h.PollInterval)
	agg := aggregator.New(h.Tasks)

	blocking := cfg.Blocking
	if !blocking {
		return h.sendNonBlocking(ctx, taskID, c, agg)
	}

	task, message, err := agg.ConsumeAndBreakOnInterrupt(ctx, c)
	if err != nil {
		return nil, nil, rpcerrors.ErrInternal.WithData(err.Error())
	}

	if message != nil {
		h.Queues.Close(taskID)
		return nil, message, nil
	}

	if task == nil {
		return nil, nil, rpcerrors.ErrInternal.WithMessagef("agent produced no events for task %s", taskID)
	}
	if task.ID != taskID {
		return nil, nil, rpcerrors.ErrInternal.WithMessagef("agent emitted task id %s, expected %s", task.ID, taskID)
	}

	if task.Status.State.Terminal() {
		h.Queues.Close(taskID)
	}
	h.notifyPush(ctx, task)
	return task, nil, nil
}

// sendNonBlocking waits only for the first folded snapshot (or synthesizes
// a submitted one after a short grace period), then returns immediately
// while the executor keeps running.
func (h *Handler) sendNonBlocking(ctx context.Context, taskID string, c *consumer.Consumer, agg *aggregator.Aggregator) (*a2a.Task, *a2a.Message, error) {
	events := agg.ConsumeAll(ctx, c)
	grace := time.NewTimer(200 * time.Millisecond)
	defer grace.Stop()

	select {
	case folded, ok := <-events:
		if !ok {
			task, err := h.Store.Get(ctx, taskID)
			if err != nil {
				return nil, nil, rpcerrors.ErrInternal.WithData(err.Error())
			}
			return task, nil, nil
		}
		if folded.Event.Kind == "message" {
			h.Queues.Close(taskID)
			return nil, folded.Event.Message, nil
		}
		return folded.Task, nil, nil
	case <-grace.C:
		task, err := h.Store.Get(ctx, taskID)
		if err != nil {
			return nil, nil, rpcerrors.ErrInternal.WithData(err.Error())
		}
		return task, nil, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (h *Handler) notifyPush(ctx context.Context, task *a2a.Task) {
	if h.PushSender == nil {
		return
	}
	if err := h.PushSender.Notify(ctx, task); err != nil {
		h.logger.Warn("push notification dispatch failed", "task", task.ID, "error", err)
	}
}

// OnMessageSendStream streams every folded event
// back to the caller as it's produced.
func (h *Handler) OnMessageSendStream(ctx context.Context, msg a2a.Message, cfg a2a.MessageSendConfiguration, cc *a2a.ServerCallContext) (<-chan a2a.Event, error) {
	if !h.Card.Capabilities.Streaming {
		return nil, rpcerrors.ErrUnsupportedOperation.WithMessagef("agent does not support streaming")
	}
	if !intersects(h.Card.DefaultOutputModes, cfg.AcceptedOutputModes) {
		return nil, rpcerrors.ErrContentTypeNotSupported
	}

	reqCtx, err := h.buildRequestContext(ctx, msg, cfg, cc)
	if err != nil {
		return nil, err
	}

	taskID := taskIDFromContext(reqCtx)
	q := h.attachProducer(reqCtx, taskID)

	c := consumer.New(q, h.PollInterval)
	agg := aggregator.New(h.Tasks)
	folded := agg.ConsumeAll(ctx, c)

	out := make(chan a2a.Event)
	go func() {
		defer close(out)
		for f := range folded {
			select {
			case out <- f.Event:
			case <-ctx.Done():
				return
			}
			if f.Task != nil {
				if f.Task.Status.State.Terminal() {
					h.notifyPush(ctx, f.Task)
				} else if f.Task.Status.State.Interruptible() {
					h.notifyPush(ctx, f.Task)
				}
			}
		}
	}()
	return out, nil
}

// OnGetTask returns the stored snapshot for a task, optionally trimming history.
func (h *Handler) OnGetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	task, err := h.Store.Get(ctx, params.ID)
	if err != nil {
		return nil, rpcerrors.ErrTaskNotFound.WithMessagef("task %s not found", params.ID)
	}

	if params.HistoryLength != nil && *params.HistoryLength >= 0 && *params.HistoryLength < len(task.History) {
		trimmed := *task
		trimmed.History = task.History[len(task.History)-*params.HistoryLength:]
		return &trimmed, nil
	}
	return task, nil
}

// OnCancelTask asks the agent to cancel a running task and waits for the
// canceled terminal snapshot.
func (h *Handler) OnCancelTask(ctx context.Context, params a2a.TaskIDParams, cc *a2a.ServerCallContext) (*a2a.Task, error) {
	task, err := h.Store.Get(ctx, params.ID)
	if err != nil {
		return nil, rpcerrors.ErrTaskNotFound.WithMessagef("task %s not found", params.ID)
	}
	if task.Status.State.Terminal() {
		return nil, rpcerrors.ErrTaskNotCancelable.WithMessagef("task %s is already %s", task.ID, task.Status.State)
	}

	q := h.Queues.CreateOrGet(task.ID)
	reqCtx := executor.RequestContext{Task: task, CallContext: cc}
	if err := h.Executor.Cancel(ctx, reqCtx, q); err != nil {
		return nil, rpcerrors.ErrInternal.WithData(err.Error())
	}

	c := consumer.New(q, h.PollInterval)
	agg := aggregator.New(h.Tasks)
	canceled, _, err := agg.ConsumeAndBreakOnInterrupt(ctx, c)
	if err != nil {
		return nil, rpcerrors.ErrInternal.WithData(err.Error())
	}
	if canceled == nil {
		canceled, err = h.Store.Get(ctx, params.ID)
		if err != nil {
			return nil, rpcerrors.ErrInternal.WithData(err.Error())
		}
	}
	if canceled.Status.State.Terminal() {
		h.Queues.Close(task.ID)
	}
	return canceled, nil
}

// TaskPage is the result of OnListTasks: a page of tasks plus the opaque
// token to request the next one, empty once the caller has reached the end.
type TaskPage struct {
	Tasks         []*a2a.Task `json:"tasks"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// OnListTasks pages through stored tasks: page-size default 50, opaque
// base64 page-token of the last task id, owner-scoped.
func (h *Handler) OnListTasks(ctx context.Context, filter a2a.TaskListFilter, cc *a2a.ServerCallContext) (TaskPage, error) {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	all, err := h.Store.List(ctx, filter, cc.Owner())
	if err != nil {
		return TaskPage{}, rpcerrors.ErrInternal.WithData(err.Error())
	}

	start := 0
	if filter.PageToken != "" {
		lastID, err := decodePageToken(filter.PageToken)
		if err != nil {
			return TaskPage{}, rpcerrors.ErrInvalidParams.WithMessagef("invalid page token")
		}
		for i, t := range all {
			if t.ID == lastID {
				start = i + 1
				break
			}
		}
	}

	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	if start > len(all) {
		start = len(all)
	}
	page := all[start:end]

	next := ""
	if end < len(all) {
		next = encodePageToken(page[len(page)-1].ID)
	}

	return TaskPage{Tasks: page, NextPageToken: next}, nil
}

func encodePageToken(id string) string {
	return base64.URLEncoding.EncodeToString([]byte(id))
}

func decodePageToken(token string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// OnSubscribe taps the live queue, guaranteeing the
// first event is a freshly loaded Task snapshot.
func (h *Handler) OnSubscribe(ctx context.Context, taskID string) (<-chan a2a.Event, error) {
	if !h.Card.Capabilities.Streaming {
		return nil, rpcerrors.ErrUnsupportedOperation.WithMessagef("agent does not support streaming")
	}

	task, err := h.Store.Get(ctx, taskID)
	if err != nil {
		return nil, rpcerrors.ErrTaskNotFound.WithMessagef("task %s not found", taskID)
	}

	q, ok := h.Queues.Get(taskID)
	out := make(chan a2a.Event, 1)
	out <- a2a.NewTaskEvent(task)

	if !ok || q.Closed() {
		close(out)
		return out, nil
	}

	tapped, untap := q.Tap()
	go func() {
		defer close(out)
		defer untap()
		for {
			select {
			case ev, ok := <-tapped:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				if ev.Final() {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SetTaskCallback / GetTaskCallback / ListTaskCallbacks / DeleteTaskCallback
// manage webhook registrations, gated on the agent card's pushNotifications
// capability.
func (h *Handler) SetTaskCallback(ctx context.Context, taskID string, cfg a2a.PushNotificationConfig) (a2a.PushNotificationConfig, error) {
	if !h.Card.Capabilities.PushNotifications {
		return a2a.PushNotificationConfig{}, rpcerrors.ErrPushNotificationNotSupported
	}
	return h.PushStore.Set(ctx, taskID, cfg)
}

func (h *Handler) GetTaskCallback(ctx context.Context, taskID, configID string) (a2a.PushNotificationConfig, error) {
	if !h.Card.Capabilities.PushNotifications {
		return a2a.PushNotificationConfig{}, rpcerrors.ErrPushNotificationNotSupported
	}
	return h.PushStore.Get(ctx, taskID, configID)
}

func (h *Handler) ListTaskCallbacks(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error) {
	if !h.Card.Capabilities.PushNotifications {
		return nil, rpcerrors.ErrPushNotificationNotSupported
	}
	return h.PushStore.List(ctx, taskID)
}

func (h *Handler) DeleteTaskCallback(ctx context.Context, taskID, configID string) error {
	if !h.Card.Capabilities.PushNotifications {
		return rpcerrors.ErrPushNotificationNotSupported
	}
	return h.PushStore.Delete(ctx, taskID, configID)
}

// GetAuthenticatedExtendedCard returns the per-caller extended card when
// the base card advertises one.
func (h *Handler) GetAuthenticatedExtendedCard(ctx context.Context, cc *a2a.ServerCallContext) (*a2a.AgentCard, error) {
	if !h.Card.SupportsAuthenticatedExtendedCard {
		return nil, rpcerrors.ErrAuthenticatedExtendedCardNotConfigured
	}
	if h.ExtendedCardModifier != nil {
		card := h.ExtendedCardModifier(h.Card, cc)
		return &card, nil
	}
	if h.ExtendedCard != nil {
		return h.ExtendedCard, nil
	}
	return nil, rpcerrors.ErrAuthenticatedExtendedCardNotConfigured
}
