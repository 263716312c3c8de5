package controller

import (
	"ai-mediagen-be/internal/dto"
	"ai-mediagen-be/internal/pkg/serverutils"
	"ai-mediagen-be/internal/scheduler"
	"ai-mediagen-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAdminCreditController interface {
	RegisterRoutes(r fiber.Router)
	RunDaily(ctx *fiber.Ctx) error
	CronInfo(ctx *fiber.Ctx) error
	AddCredits(ctx *fiber.Ctx) error
	Reconcile(ctx *fiber.Ctx) error
}

type adminCreditController struct {
	service   service.ICreditService
	scheduler *scheduler.CreditScheduler
}

func NewAdminCreditController(service service.ICreditService, scheduler *scheduler.CreditScheduler) IAdminCreditController {
	return &adminCreditController{
		service:   service,
		scheduler: scheduler,
	}
}

func (c *adminCreditController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin/credits")
	h.Use(serverutils.JwtMiddleware, serverutils.AdminMiddleware)
	h.Post("/run-daily", c.RunDaily)
	h.Get("/cron-info", c.CronInfo)
	h.Post("/:userId/add", c.AddCredits)
	h.Get("/:userId/reconcile", c.Reconcile)
}

func (c *adminCreditController) RunDaily(ctx *fiber.Ctx) error {
	res, err := c.scheduler.RunNow(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Daily credit job executed", res))
}

func (c *adminCreditController) CronInfo(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Credit scheduler", c.scheduler.Info()))
}

func (c *adminCreditController) AddCredits(ctx *fiber.Ctx) error {
	userId, err := serverutils.ParamUUID(ctx, "userId")
	if err != nil {
		return err
	}

	var req dto.AddCreditsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.AddCredits(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Credits added", res))
}

func (c *adminCreditController) Reconcile(ctx *fiber.Ctx) error {
	userId, err := serverutils.ParamUUID(ctx, "userId")
	if err != nil {
		return err
	}

	res, err := c.service.Reconcile(ctx.UserContext(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Ledger reconciliation", res))
}
