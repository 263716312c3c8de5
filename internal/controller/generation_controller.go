package controller

import (
	"ai-mediagen-be/internal/dto"
	"ai-mediagen-be/internal/pkg/serverutils"
	"ai-mediagen-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IGenerationController interface {
	RegisterRoutes(r fiber.Router)
	Generate(ctx *fiber.Ctx) error
	Regenerate(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Models(ctx *fiber.Ctx) error
}

type generationController struct {
	service service.IGenerationService
}

func NewGenerationController(service service.IGenerationService) IGenerationController {
	return &generationController{service: service}
}

func (c *generationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/generation/v1")
	// Public catalog, registered before the auth middleware.
	h.Get("/models", c.Models)

	h.Use(serverutils.JwtMiddleware)
	h.Post("/", c.Generate)
	h.Get("/history", c.History)
	h.Get("/stats", c.Stats)
	h.Get("/:id", c.Show)
	h.Get("/:id/status", c.Status)
	h.Post("/:id/regenerate", c.Regenerate)
	h.Delete("/:id", c.Delete)
}

// Generate blocks until the generation is finalized. Dropping the connection cancels
// local polling; the charge is refunded either way.
func (c *generationController) Generate(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	var req dto.GenerateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Generate(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Generation completed", res))
}

func (c *generationController) Regenerate(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	generationId, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.Regenerate(ctx.UserContext(), userId, generationId)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Generation completed", res))
}

func (c *generationController) Show(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	generationId, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.Show(ctx.UserContext(), userId, generationId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Generation detail", res))
}

func (c *generationController) Status(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	generationId, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.Status(ctx.UserContext(), userId, generationId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Generation status", res))
}

func (c *generationController) History(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	var req dto.ListGenerationsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.List(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Generation history", res))
}

func (c *generationController) Stats(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Stats(ctx.UserContext(), userId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Generation stats", res))
}

func (c *generationController) Delete(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	generationId, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.service.Delete(ctx.UserContext(), userId, generationId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Generation deleted", nil))
}

func (c *generationController) Models(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Available models", c.service.Models()))
}
