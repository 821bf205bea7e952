package server

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	rpcerrors "github.com/theapemachine/a2a-go/pkg/errors"
	"github.com/theapemachine/a2a-go/pkg/handler"
	"github.com/theapemachine/a2a-go/pkg/rpc"
)

// GRPCServer registers handler.Handler against a raw grpc.ServiceDesc built
// by hand instead of protoc-generated stubs (see DESIGN.md for why), using
// pkg/rpc.JSONCodec so every request/response is plain JSON over gRPC's
// HTTP/2 framing — the mirror image of pkg/client.GRPCTransport.
type GRPCServer struct {
	h *handler.Handler
}

func NewGRPCServer(h *handler.Handler) *GRPCServer {
	return &GRPCServer{h: h}
}

// Register attaches the A2A service to srv, which the caller must have
// created with grpc.ForceServerCodec(rpc.JSONCodec{}).
func (g *GRPCServer) Register(srv *grpc.Server) {
	srv.RegisterService(&serviceDesc, g)
}

func grpcCallContext(ctx context.Context) *a2a.ServerCallContext {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return &a2a.ServerCallContext{}
	}
	requested := parseExtensionsHeader(md.Get(extensionsHeader))
	return &a2a.ServerCallContext{
		State:               make(map[string]any),
		RequestedExtensions: requested,
		ActivatedExtensions: requested,
	}
}

func setGRPCExtensionsHeader(ctx context.Context, cc *a2a.ServerCallContext) {
	if cc == nil || len(cc.ActivatedExtensions) == 0 {
		return
	}
	uris := make([]string, 0, len(cc.ActivatedExtensions))
	for uri := range cc.ActivatedExtensions {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	_ = grpc.SetHeader(ctx, metadata.Pairs(extensionsHeader, strings.Join(uris, ", ")))
}

func grpcErr(err error) error {
	rpcErr := toRPCError(err)
	return status.Error(grpcCode(rpcErr), rpcErr.Message)
}

func grpcCode(e *rpcerrors.RpcError) codes.Code {
	switch e.Code {
	case rpcerrors.ErrTaskNotFound.Code:
		return codes.NotFound
	case rpcerrors.ErrInvalidParams.Code, rpcerrors.ErrContentTypeNotSupported.Code, rpcerrors.ErrParseError.Code, rpcerrors.ErrInvalidRequest.Code:
		return codes.InvalidArgument
	case rpcerrors.ErrTaskNotCancelable.Code, rpcerrors.ErrUnsupportedOperation.Code, rpcerrors.ErrPushNotificationNotSupported.Code, rpcerrors.ErrAuthenticatedExtendedCardNotConfigured.Code:
		return codes.FailedPrecondition
	case rpcerrors.ErrMethodNotFound.Code:
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}

// --- unary handlers ---

func (g *GRPCServer) sendMessage(ctx context.Context, req any) (any, error) {
	var params a2a.MessageSendParams
	if err := remarshal(req, &params); err != nil {
		return nil, grpcErr(rpcerrors.ErrInvalidParams)
	}
	cc := grpcCallContext(ctx)
	task, msg, err := g.h.OnMessageSend(ctx, params.Message, params.Configuration, cc)
	if err != nil {
		return nil, grpcErr(err)
	}
	setGRPCExtensionsHeader(ctx, cc)
	if msg != nil {
		return a2a.NewMessageEvent(msg), nil
	}
	return a2a.NewTaskEvent(task), nil
}

func (g *GRPCServer) getTask(ctx context.Context, req any) (any, error) {
	var params a2a.TaskQueryParams
	if err := remarshal(req, &params); err != nil {
		return nil, grpcErr(rpcerrors.ErrInvalidParams)
	}
	task, err := g.h.OnGetTask(ctx, params)
	if err != nil {
		return nil, grpcErr(err)
	}
	return task, nil
}

func (g *GRPCServer) listTasks(ctx context.Context, req any) (any, error) {
	var filter a2a.TaskListFilter
	if err := remarshal(req, &filter); err != nil {
		return nil, grpcErr(rpcerrors.ErrInvalidParams)
	}
	page, err := g.h.OnListTasks(ctx, filter, grpcCallContext(ctx))
	if err != nil {
		return nil, grpcErr(err)
	}
	return page, nil
}

func (g *GRPCServer) cancelTask(ctx context.Context, req any) (any, error) {
	var params a2a.TaskIDParams
	if err := remarshal(req, &params); err != nil {
		return nil, grpcErr(rpcerrors.ErrInvalidParams)
	}
	task, err := g.h.OnCancelTask(ctx, params, grpcCallContext(ctx))
	if err != nil {
		return nil, grpcErr(err)
	}
	return task, nil
}

func (g *GRPCServer) setTaskCallback(ctx context.Context, req any) (any, error) {
	var cfg a2a.TaskPushNotificationConfig
	if err := remarshal(req, &cfg); err != nil {
		return nil, grpcErr(rpcerrors.ErrInvalidParams)
	}
	result, err := g.h.SetTaskCallback(ctx, cfg.TaskID, cfg.Config)
	if err != nil {
		return nil, grpcErr(err)
	}
	return a2a.TaskPushNotificationConfig{TaskID: cfg.TaskID, Config: result}, nil
}

func (g *GRPCServer) getTaskCallback(ctx context.Context, req any) (any, error) {
	var params struct {
		TaskID                   string `json:"taskId"`
		PushNotificationConfigID string `json:"pushNotificationConfigId"`
	}
	if err := remarshal(req, &params); err != nil {
		return nil, grpcErr(rpcerrors.ErrInvalidParams)
	}
	result, err := g.h.GetTaskCallback(ctx, params.TaskID, params.PushNotificationConfigID)
	if err != nil {
		return nil, grpcErr(err)
	}
	return a2a.TaskPushNotificationConfig{TaskID: params.TaskID, Config: result}, nil
}

func (g *GRPCServer) listTaskCallbacks(ctx context.Context, req any) (any, error) {
	var params struct {
		TaskID string `json:"taskId"`
	}
	if err := remarshal(req, &params); err != nil {
		return nil, grpcErr(rpcerrors.ErrInvalidParams)
	}
	result, err := g.h.ListTaskCallbacks(ctx, params.TaskID)
	if err != nil {
		return nil, grpcErr(err)
	}
	return result, nil
}

func (g *GRPCServer) deleteTaskCallback(ctx context.Context, req any) (any, error) {
	var params struct {
		TaskID                   string `json:"taskId"`
		PushNotificationConfigID string `json:"pushNotificationConfigId"`
	}
	if err := remarshal(req, &params); err != nil {
		return nil, grpcErr(rpcerrors.ErrInvalidParams)
	}
	if err := g.h.DeleteTaskCallback(ctx, params.TaskID, params.PushNotificationConfigID); err != nil {
		return nil, grpcErr(err)
	}
	return struct{}{}, nil
}

func (g *GRPCServer) getExtendedCard(ctx context.Context, req any) (any, error) {
	card, err := g.h.GetAuthenticatedExtendedCard(ctx, grpcCallContext(ctx))
	if err != nil {
		return nil, grpcErr(err)
	}
	return card, nil
}

// remarshal round-trips req (already decoded into a json.RawMessage or a
// generic map by the JSON codec) into the concrete request struct a
// handler method expects.
func remarshal(req any, out any) error {
	raw, ok := req.(*json.RawMessage)
	var b []byte
	if ok {
		b = *raw
	} else {
		var err error
		b, err = json.Marshal(req)
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(b, out)
}

// --- streaming handlers ---

func (g *GRPCServer) sendMessageStream(srv any, stream grpc.ServerStream) error {
	var raw json.RawMessage
	if err := stream.RecvMsg(&raw); err != nil {
		return grpcErr(rpcerrors.ErrParseError)
	}
	var params a2a.MessageSendParams
	if err := remarshal(&raw, &params); err != nil {
		return grpcErr(rpcerrors.ErrInvalidParams)
	}

	ctx := stream.Context()
	cc := grpcCallContext(ctx)
	events, err := g.h.OnMessageSendStream(ctx, params.Message, params.Configuration, cc)
	if err != nil {
		return grpcErr(err)
	}
	setGRPCExtensionsHeader(ctx, cc)
	return streamOut(stream, events)
}

func (g *GRPCServer) resubscribe(srv any, stream grpc.ServerStream) error {
	var raw json.RawMessage
	if err := stream.RecvMsg(&raw); err != nil {
		return grpcErr(rpcerrors.ErrParseError)
	}
	var params a2a.TaskIDParams
	if err := remarshal(&raw, &params); err != nil {
		return grpcErr(rpcerrors.ErrInvalidParams)
	}

	events, err := g.h.OnSubscribe(stream.Context(), params.ID)
	if err != nil {
		return grpcErr(err)
	}
	return streamOut(stream, events)
}

func streamOut(stream grpc.ServerStream, events <-chan a2a.Event) error {
	ctx := stream.Context()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: rpc.ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendMessage", Handler: serverMethodHandler((*GRPCServer).sendMessage)},
		{MethodName: "GetTask", Handler: serverMethodHandler((*GRPCServer).getTask)},
		{MethodName: "ListTasks", Handler: serverMethodHandler((*GRPCServer).listTasks)},
		{MethodName: "CancelTask", Handler: serverMethodHandler((*GRPCServer).cancelTask)},
		{MethodName: "SetTaskPushNotificationConfig", Handler: serverMethodHandler((*GRPCServer).setTaskCallback)},
		{MethodName: "GetTaskPushNotificationConfig", Handler: serverMethodHandler((*GRPCServer).getTaskCallback)},
		{MethodName: "ListTaskPushNotificationConfigs", Handler: serverMethodHandler((*GRPCServer).listTaskCallbacks)},
		{MethodName: "DeleteTaskPushNotificationConfig", Handler: serverMethodHandler((*GRPCServer).deleteTaskCallback)},
		{MethodName: "GetExtendedAgentCard", Handler: serverMethodHandler((*GRPCServer).getExtendedCard)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "SendMessageStream", Handler: serverStreamHandler((*GRPCServer).sendMessageStream), ServerStreams: true},
		{StreamName: "Resubscribe", Handler: serverStreamHandler((*GRPCServer).resubscribe), ServerStreams: true},
	},
	Metadata: "a2a.proto",
}

// serverMethodHandler adapts a (*GRPCServer) method taking a pre-decoded
// request into the grpc.methodHandler shape RegisterService expects.
func serverMethodHandler(m func(*GRPCServer, context.Context, any) (any, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		var raw json.RawMessage
		if err := dec(&raw); err != nil {
			return nil, grpcErr(rpcerrors.ErrParseError)
		}
		return m(srv.(*GRPCServer), ctx, &raw)
	}
}

func serverStreamHandler(m func(*GRPCServer, any, grpc.ServerStream) error) func(any, grpc.ServerStream) error {
	return func(srv any, stream grpc.ServerStream) error {
		return m(srv.(*GRPCServer), nil, stream)
	}
}
