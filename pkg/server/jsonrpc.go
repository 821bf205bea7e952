package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	rpcerrors "github.com/theapemachine/a2a-go/pkg/errors"
	"github.com/theapemachine/a2a-go/pkg/handler"
	"github.com/theapemachine/a2a-go/pkg/jsonrpc"
)

const maxRequestBody = 10 << 20 // 10 MiB

// JSONRPCHandler adapts handler.Handler to net/http: batch and single
// dispatch over the full A2A method table, with streaming methods upgraded
// to an SSE response instead of a single JSON result.
type JSONRPCHandler struct {
	h           *handler.Handler
	logger      *log.Logger
	rateLimiter *ClientRateLimiter
}

func NewJSONRPCHandler(h *handler.Handler) *JSONRPCHandler {
	return &JSONRPCHandler{h: h, logger: log.Default().WithPrefix("jsonrpc")}
}

// WithRateLimit gates every request behind a per-client-address token
// bucket (rate requests per interval) before it reaches dispatch,
// protecting message/send from a single caller's abuse. Nil (the default)
// disables rate limiting.
func (s *JSONRPCHandler) WithRateLimit(rate int64, interval time.Duration) *JSONRPCHandler {
	s.rateLimiter = NewClientRateLimiter(rate, interval)
	return s
}

func (s *JSONRPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.serveCard(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "only POST supported", http.StatusMethodNotAllowed)
		return
	}
	if s.rateLimiter != nil && !s.rateLimiter.allow(clientKey(r)) {
		respondError(w, nil, rpcerrors.ErrInvalidRequest.WithMessagef("rate limit exceeded"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		respondError(w, nil, rpcerrors.ErrParseError)
		return
	}
	if len(body) > maxRequestBody {
		respondError(w, nil, rpcerrors.ErrInvalidRequest.WithMessagef("request body exceeds %d bytes", maxRequestBody))
		return
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		respondError(w, nil, rpcerrors.ErrInvalidRequest)
		return
	}

	if body[0] == '[' {
		s.handleBatch(w, r, body)
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, nil, rpcerrors.ErrParseError)
		return
	}

	s.dispatch(w, r, &req)
}

// serveCard answers the well-known card GETs alongside the POST-only RPC
// endpoint so a single listener covers discovery and dispatch.
func (s *JSONRPCHandler) serveCard(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/.well-known/agent-card.json":
	case "/.well-known/agent.json":
		s.logger.Warn("/.well-known/agent.json is deprecated, use /.well-known/agent-card.json")
	case "/agent/authenticatedExtendedCard":
		card, err := s.h.GetAuthenticatedExtendedCard(r.Context(), callContextFrom(r))
		if err != nil {
			respondError(w, nil, toRPCError(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(card)
		return
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.h.Card)
}

func (s *JSONRPCHandler) handleBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	var batch []jsonrpc.Request
	if err := json.Unmarshal(body, &batch); err != nil {
		respondError(w, nil, rpcerrors.ErrParseError)
		return
	}

	cc := callContextFrom(r)
	responses := make([]jsonrpc.RPCResponse, 0, len(batch))
	for i := range batch {
		resp := s.handle(r.Context(), cc, &batch[i])
		if batch[i].ID != nil {
			responses = append(responses, resp)
		}
	}

	if len(responses) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(responses)
}

// dispatch handles a single request, upgrading to SSE for the two
// streaming methods instead of returning handle's single-result envelope.
func (s *JSONRPCHandler) dispatch(w http.ResponseWriter, r *http.Request, req *jsonrpc.Request) {
	cc := callContextFrom(r)

	switch req.Method {
	case "message/stream":
		var params a2a.MessageSendParams
		if err := json.Unmarshal(mustParams(req.Params), &params); err != nil {
			respondError(w, req.ID, rpcerrors.ErrInvalidParams)
			return
		}
		events, err := s.h.OnMessageSendStream(r.Context(), params.Message, params.Configuration, cc)
		if err != nil {
			respondError(w, req.ID, toRPCError(err))
			return
		}
		writeEventStream(r.Context(), w, events)
		return

	case "tasks/resubscribe":
		var params a2a.TaskIDParams
		if err := json.Unmarshal(mustParams(req.Params), &params); err != nil {
			respondError(w, req.ID, rpcerrors.ErrInvalidParams)
			return
		}
		events, err := s.h.OnSubscribe(r.Context(), params.ID)
		if err != nil {
			respondError(w, req.ID, toRPCError(err))
			return
		}
		writeEventStream(r.Context(), w, events)
		return
	}

	resp := s.handle(r.Context(), cc, req)
	writeExtensionsHeader(w, cc)
	if req.ID == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func mustParams(params any) []byte {
	if params == nil {
		return []byte("{}")
	}
	b, err := json.Marshal(params)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// handle routes every non-streaming method to its handler.Handler method,
// matching the method-name table pkg/client's JSONRPCTransport calls.
func (s *JSONRPCHandler) handle(ctx context.Context, cc *a2a.ServerCallContext, req *jsonrpc.Request) jsonrpc.RPCResponse {
	raw := mustParams(req.Params)

	switch req.Method {
	case "message/send":
		var params a2a.MessageSendParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return errorResponse(req.ID, rpcerrors.ErrInvalidParams)
		}
		task, msg, err := s.h.OnMessageSend(ctx, params.Message, params.Configuration, cc)
		if err != nil {
			return errorResponse(req.ID, toRPCError(err))
		}
		if msg != nil {
			return resultResponse(req.ID, msg)
		}
		return resultResponse(req.ID, task)

	case "tasks/get":
		var params a2a.TaskQueryParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return errorResponse(req.ID, rpcerrors.ErrInvalidParams)
		}
		task, err := s.h.OnGetTask(ctx, params)
		if err != nil {
			return errorResponse(req.ID, toRPCError(err))
		}
		return resultResponse(req.ID, task)

	case "tasks/cancel":
		var params a2a.TaskIDParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return errorResponse(req.ID, rpcerrors.ErrInvalidParams)
		}
		task, err := s.h.OnCancelTask(ctx, params, cc)
		if err != nil {
			return errorResponse(req.ID, toRPCError(err))
		}
		return resultResponse(req.ID, task)

	case "tasks/list":
		var filter a2a.TaskListFilter
		if err := json.Unmarshal(raw, &filter); err != nil {
			return errorResponse(req.ID, rpcerrors.ErrInvalidParams)
		}
		page, err := s.h.OnListTasks(ctx, filter, cc)
		if err != nil {
			return errorResponse(req.ID, toRPCError(err))
		}
		return resultResponse(req.ID, page)

	case "tasks/pushNotificationConfig/set":
		var cfg a2a.TaskPushNotificationConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return errorResponse(req.ID, rpcerrors.ErrInvalidParams)
		}
		result, err := s.h.SetTaskCallback(ctx, cfg.TaskID, cfg.Config)
		if err != nil {
			return errorResponse(req.ID, toRPCError(err))
		}
		return resultResponse(req.ID, a2a.TaskPushNotificationConfig{TaskID: cfg.TaskID, Config: result})

	case "tasks/pushNotificationConfig/get":
		var params struct {
			ID                       string `json:"id"`
			PushNotificationConfigID string `json:"pushNotificationConfigId"`
		}
		if err := json.Unmarshal(raw, &params); err != nil {
			return errorResponse(req.ID, rpcerrors.ErrInvalidParams)
		}
		result, err := s.h.GetTaskCallback(ctx, params.ID, params.PushNotificationConfigID)
		if err != nil {
			return errorResponse(req.ID, toRPCError(err))
		}
		return resultResponse(req.ID, a2a.TaskPushNotificationConfig{TaskID: params.ID, Config: result})

	case "tasks/pushNotificationConfig/list":
		var params struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &params); err != nil {
			return errorResponse(req.ID, rpcerrors.ErrInvalidParams)
		}
		result, err := s.h.ListTaskCallbacks(ctx, params.ID)
		if err != nil {
			return errorResponse(req.ID, toRPCError(err))
		}
		return resultResponse(req.ID, result)

	case "tasks/pushNotificationConfig/delete":
		var params struct {
			ID                       string `json:"id"`
			PushNotificationConfigID string `json:"pushNotificationConfigId"`
		}
		if err := json.Unmarshal(raw, &params); err != nil {
			return errorResponse(req.ID, rpcerrors.ErrInvalidParams)
		}
		if err := s.h.DeleteTaskCallback(ctx, params.ID, params.PushNotificationConfigID); err != nil {
			return errorResponse(req.ID, toRPCError(err))
		}
		return resultResponse(req.ID, nil)

	case "agent/authenticatedExtendedCard":
		card, err := s.h.GetAuthenticatedExtendedCard(ctx, cc)
		if err != nil {
			return errorResponse(req.ID, toRPCError(err))
		}
		return resultResponse(req.ID, card)
	}

	return errorResponse(req.ID, rpcerrors.ErrMethodNotFound.WithMessagef("unknown method %q", req.Method))
}

func resultResponse(id any, result any) jsonrpc.RPCResponse {
	rawID, _ := json.Marshal(id)
	return jsonrpc.RPCResponse{JSONRPC: "2.0", ID: rawID, Result: result}
}

func errorResponse(id any, e *rpcerrors.RpcError) jsonrpc.RPCResponse {
	rawID, _ := json.Marshal(id)
	return jsonrpc.RPCResponse{JSONRPC: "2.0", ID: rawID, Error: e}
}

func respondError(w http.ResponseWriter, id any, e *rpcerrors.RpcError) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(errorResponse(id, e))
}

// toRPCError unwraps a handler error into its *errors.RpcError, falling
// back to Internal for anything that isn't already one (a bug surfaced as
// a generic failure rather than a crash).
func toRPCError(err error) *rpcerrors.RpcError {
	if rpcErr, ok := err.(*rpcerrors.RpcError); ok {
		return rpcErr
	}
	return rpcerrors.ErrInternal.WithData(err.Error())
}

// callContextFrom builds the ServerCallContext for a request. Identity
// resolution (bearer/OAuth/apiKey verification) lives in pkg/auth and is
// wired in by whatever middleware wraps this handler; by the time a
// request reaches here, authentication has already happened and the
// caller's username would be stashed on the request context. No
// middleware is wired in this package itself (kept at cmd/serve.go), so
// this defaults to an empty context when none is present.
func callContextFrom(r *http.Request) *a2a.ServerCallContext {
	if cc, ok := r.Context().Value(callContextKey{}).(*a2a.ServerCallContext); ok {
		if cc.RequestedExtensions == nil {
			cc.RequestedExtensions = parseExtensionsHeader(r.Header.Values(extensionsHeader))
			cc.ActivatedExtensions = cc.RequestedExtensions
		}
		return cc
	}
	return serverCallContextFromHeaders(r.Header)
}

type callContextKey struct{}
