package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	rpcerrors "github.com/theapemachine/a2a-go/pkg/errors"
	"github.com/theapemachine/a2a-go/pkg/handler"
	"github.com/theapemachine/a2a-go/pkg/logging"
)

// RESTServer exposes handler.Handler over the resource-oriented `/v1/*`
// surface pkg/client's RESTTransport speaks, wired with fiber's request
// logging and healthcheck middleware. The colon-suffixed "custom method" routes
// (`:send`/`:stream`/`:cancel`/`:subscribe`) don't map cleanly onto
// fiber's `:param` router syntax, so this dispatches off a single
// catch-all route and does its own path matching instead.
type RESTServer struct {
	app *fiber.App
	h   *handler.Handler
}

func NewRESTServer(h *handler.Handler) *RESTServer {
	app := fiber.New(fiber.Config{
		AppName:           "a2a-go",
		ServerHeader:      "A2A-Agent-Server",
		StreamRequestBody: true,
	})
	app.Use(logger.New(logger.Config{
		Next: func(c fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), ":subscribe") || strings.HasSuffix(c.Path(), ":stream")
		},
	}))
	app.Use(healthcheck.New())

	s := &RESTServer{app: app, h: h}
	app.All("/v1/*", s.route)
	app.Get("/.well-known/agent-card.json", s.handlePublicCard)
	app.Get("/.well-known/agent.json", func(c fiber.Ctx) error {
		logging.Named("rest").Warn("/.well-known/agent.json is deprecated, use /.well-known/agent-card.json")
		return s.handlePublicCard(c)
	})
	return s
}

func (s *RESTServer) handlePublicCard(c fiber.Ctx) error {
	return c.JSON(s.h.Card)
}

func (s *RESTServer) Listen(addr string) error {
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *RESTServer) route(c fiber.Ctx) error {
	path := c.Path()
	method := c.Method()

	switch {
	case method == http.MethodPost && path == "/v1/message:send":
		return s.handleSend(c)
	case method == http.MethodPost && path == "/v1/message:stream":
		return s.handleStream(c)
	case method == http.MethodGet && path == "/v1/card":
		return s.handleCard(c)
	case method == http.MethodGet && path == "/v1/tasks":
		return s.handleList(c)
	case method == http.MethodGet && strings.HasSuffix(path, ":subscribe"):
		return s.handleSubscribe(c, strings.TrimPrefix(strings.TrimSuffix(path, ":subscribe"), "/v1/tasks/"))
	case method == http.MethodPost && strings.HasSuffix(path, ":cancel"):
		return s.handleCancel(c, strings.TrimPrefix(strings.TrimSuffix(path, ":cancel"), "/v1/tasks/"))
	case method == http.MethodGet && strings.HasPrefix(path, "/v1/tasks/") && strings.Contains(path, "/pushNotificationConfigs"):
		return s.handlePushGetOrList(c)
	case method == http.MethodPost && strings.HasSuffix(path, "/pushNotificationConfigs"):
		return s.handlePushSet(c, strings.TrimSuffix(strings.TrimPrefix(path, "/v1/tasks/"), "/pushNotificationConfigs"))
	case method == http.MethodDelete && strings.Contains(path, "/pushNotificationConfigs/"):
		return s.handlePushDelete(c)
	case method == http.MethodGet && strings.HasPrefix(path, "/v1/tasks/"):
		return s.handleGet(c, strings.TrimPrefix(path, "/v1/tasks/"))
	}

	return c.Status(fiber.StatusNotFound).JSON(restErrorBody(rpcerrors.ErrMethodNotFound.WithMessagef("no route for %s %s", method, path)))
}

func restCallContext(c fiber.Ctx) *a2a.ServerCallContext {
	if cc, ok := c.Locals("callContext").(*a2a.ServerCallContext); ok {
		if cc.RequestedExtensions == nil {
			cc.RequestedExtensions = parseExtensionsHeader(c.GetReqHeaders()[extensionsHeader])
			cc.ActivatedExtensions = cc.RequestedExtensions
		}
		c.Locals("callContext", cc)
		writeRestExtensionsHeader(c, cc)
		return cc
	}
	cc := serverCallContextFromHeaders(http.Header(c.GetReqHeaders()))
	c.Locals("callContext", cc)
	writeRestExtensionsHeader(c, cc)
	return cc
}

func writeRestExtensionsHeader(c fiber.Ctx, cc *a2a.ServerCallContext) {
	if cc == nil || len(cc.ActivatedExtensions) == 0 {
		return
	}
	uris := make([]string, 0, len(cc.ActivatedExtensions))
	for uri := range cc.ActivatedExtensions {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	c.Set(extensionsHeader, strings.Join(uris, ", "))
}

func restErrorBody(e *rpcerrors.RpcError) fiber.Map {
	return fiber.Map{"error": fiber.Map{"code": e.Code, "message": e.Message, "data": e.Data}}
}

func (s *RESTServer) respondErr(c fiber.Ctx, err error) error {
	rpcErr := toRPCError(err)
	status := fiber.StatusInternalServerError
	switch rpcErr.Code {
	case rpcerrors.ErrTaskNotFound.Code:
		status = fiber.StatusNotFound
	case rpcerrors.ErrInvalidParams.Code, rpcerrors.ErrContentTypeNotSupported.Code:
		status = fiber.StatusBadRequest
	case rpcerrors.ErrTaskNotCancelable.Code, rpcerrors.ErrUnsupportedOperation.Code, rpcerrors.ErrPushNotificationNotSupported.Code, rpcerrors.ErrAuthenticatedExtendedCardNotConfigured.Code:
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(restErrorBody(rpcErr))
}

func (s *RESTServer) handleSend(c fiber.Ctx) error {
	var params a2a.MessageSendParams
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		return s.respondErr(c, rpcerrors.ErrInvalidParams)
	}
	task, msg, err := s.h.OnMessageSend(c.RequestCtx(), params.Message, params.Configuration, restCallContext(c))
	if err != nil {
		return s.respondErr(c, err)
	}
	if msg != nil {
		return c.JSON(msg)
	}
	return c.JSON(task)
}

func (s *RESTServer) handleStream(c fiber.Ctx) error {
	var params a2a.MessageSendParams
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		return s.respondErr(c, rpcerrors.ErrInvalidParams)
	}
	events, err := s.h.OnMessageSendStream(c.RequestCtx(), params.Message, params.Configuration, restCallContext(c))
	if err != nil {
		return s.respondErr(c, err)
	}
	return fiberadaptor.HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEventStream(r.Context(), w, events)
	}))(c)
}

func (s *RESTServer) handleSubscribe(c fiber.Ctx, taskID string) error {
	events, err := s.h.OnSubscribe(c.RequestCtx(), taskID)
	if err != nil {
		return s.respondErr(c, err)
	}
	return fiberadaptor.HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEventStream(r.Context(), w, events)
	}))(c)
}

func (s *RESTServer) handleGet(c fiber.Ctx, taskID string) error {
	task, err := s.h.OnGetTask(c.RequestCtx(), a2a.TaskQueryParams{ID: taskID})
	if err != nil {
		return s.respondErr(c, err)
	}
	return c.JSON(task)
}

func (s *RESTServer) handleList(c fiber.Ctx) error {
	filter := a2a.TaskListFilter{
		ContextID: c.Query("contextId"),
		PageToken: c.Query("pageToken"),
	}
	page, err := s.h.OnListTasks(c.RequestCtx(), filter, restCallContext(c))
	if err != nil {
		return s.respondErr(c, err)
	}
	return c.JSON(page)
}

func (s *RESTServer) handleCancel(c fiber.Ctx, taskID string) error {
	task, err := s.h.OnCancelTask(c.RequestCtx(), a2a.TaskIDParams{ID: taskID}, restCallContext(c))
	if err != nil {
		return s.respondErr(c, err)
	}
	return c.JSON(task)
}

func (s *RESTServer) handlePushSet(c fiber.Ctx, taskID string) error {
	var cfg a2a.PushNotificationConfig
	if err := json.Unmarshal(c.Body(), &cfg); err != nil {
		return s.respondErr(c, rpcerrors.ErrInvalidParams)
	}
	result, err := s.h.SetTaskCallback(c.RequestCtx(), taskID, cfg)
	if err != nil {
		return s.respondErr(c, err)
	}
	return c.JSON(a2a.TaskPushNotificationConfig{TaskID: taskID, Config: result})
}

func (s *RESTServer) handlePushGetOrList(c fiber.Ctx) error {
	rest := strings.TrimPrefix(c.Path(), "/v1/tasks/")
	parts := strings.SplitN(rest, "/pushNotificationConfigs", 2)
	taskID := parts[0]
	suffix := strings.TrimPrefix(parts[1], "/")

	if suffix == "" {
		configs, err := s.h.ListTaskCallbacks(c.RequestCtx(), taskID)
		if err != nil {
			return s.respondErr(c, err)
		}
		return c.JSON(configs)
	}

	cfg, err := s.h.GetTaskCallback(c.RequestCtx(), taskID, suffix)
	if err != nil {
		return s.respondErr(c, err)
	}
	return c.JSON(a2a.TaskPushNotificationConfig{TaskID: taskID, Config: cfg})
}

func (s *RESTServer) handlePushDelete(c fiber.Ctx) error {
	rest := strings.TrimPrefix(c.Path(), "/v1/tasks/")
	parts := strings.SplitN(rest, "/pushNotificationConfigs/", 2)
	if len(parts) != 2 {
		return s.respondErr(c, rpcerrors.ErrInvalidParams)
	}
	if err := s.h.DeleteTaskCallback(c.RequestCtx(), parts[0], parts[1]); err != nil {
		return s.respondErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleCard serves the extended card when one is configured, falling
// back to the public card so GET /v1/card always answers.
func (s *RESTServer) handleCard(c fiber.Ctx) error {
	card, err := s.h.GetAuthenticatedExtendedCard(c.RequestCtx(), restCallContext(c))
	if err != nil {
		return c.JSON(s.h.Card)
	}
	return c.JSON(card)
}
