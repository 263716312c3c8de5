package controller

import (
	"ai-mediagen-be/internal/dto"
	"ai-mediagen-be/internal/pkg/serverutils"
	"ai-mediagen-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ICreditController interface {
	RegisterRoutes(r fiber.Router)
	GetBalance(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	ClaimDaily(ctx *fiber.Ctx) error
}

type creditController struct {
	service service.ICreditService
}

func NewCreditController(service service.ICreditService) ICreditController {
	return &creditController{service: service}
}

func (c *creditController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/credits/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("/", c.GetBalance)
	h.Get("/history", c.GetHistory)
	h.Post("/claim-daily", c.ClaimDaily)
}

func (c *creditController) GetBalance(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetBalance(ctx.UserContext(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Credit balance", res))
}

func (c *creditController) GetHistory(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	var req dto.CreditHistoryRequest
	if err := ctx.QueryParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.GetHistory(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Credit history", res))
}

func (c *creditController) ClaimDaily(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.ClaimDaily(ctx.UserContext(), userId)
	if err != nil {
		return err
	}
	message := "Daily credits already granted"
	if res.Reset {
		message = "Daily credits granted"
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}
