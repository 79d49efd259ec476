package controller

import (
	"context"
	"errors"

	"bonfire-agent/internal/dto"
	"bonfire-agent/internal/pkg/serverutils"
	"bonfire-agent/internal/service"
	internalWS "bonfire-agent/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IAgentController interface {
	RegisterRoutes(r fiber.Router)
	Submit(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
	Manifest(ctx *fiber.Ctx) error
}

// StoreHealthChecker reports whether the knowledge store is reachable.
type StoreHealthChecker interface {
	Health(ctx context.Context) error
}

type agentController struct {
	consumer service.IConsumerService
	hub      *internalWS.Hub
	store    StoreHealthChecker
	manifest dto.AgentManifestResponse
}

func NewAgentController(consumer service.IConsumerService, hub *internalWS.Hub, store StoreHealthChecker, manifest dto.AgentManifestResponse) IAgentController {
	return &agentController{
		consumer: consumer,
		hub:      hub,
		store:    store,
		manifest: manifest,
	}
}

func (c *agentController) RegisterRoutes(r fiber.Router) {
	r.Post("/submit", c.Submit)
	r.Get("/healthz", c.Health)
	r.Get("/manifest", c.Manifest)

	ws := r.Group("/ws")
	ws.Use(func(ctx *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(ctx) {
			return ctx.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	ws.Get("/:address", websocket.New(func(conn *websocket.Conn) {
		internalWS.ServeWs(c.hub, conn, conn.Params("address"), c.consumer)
	}))
}

// Submit accepts one envelope; the run continues after the response.
func (c *agentController) Submit(ctx *fiber.Ctx) error {
	var env dto.Envelope
	if err := ctx.BodyParser(&env); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := serverutils.ValidateRequest(env); err != nil {
		return err
	}

	status, err := c.consumer.Dispatch(ctx.UserContext(), env)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAddressed):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrBadSignature):
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		default:
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	code := fiber.StatusOK
	if status == service.StatusAccepted {
		code = fiber.StatusAccepted
	}
	return ctx.Status(code).JSON(serverutils.SuccessResponseWithCode(code, "Envelope "+status, dto.SubmitResponse{Status: status}))
}

// Health reports unhealthy whenever the knowledge store is unreachable.
func (c *agentController) Health(ctx *fiber.Ctx) error {
	if err := c.store.Health(ctx.UserContext()); err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "bonfire unavailable: "+err.Error())
	}
	return ctx.JSON(serverutils.SuccessResponse("ok", nil))
}

func (c *agentController) Manifest(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Agent manifest", c.manifest))
}
