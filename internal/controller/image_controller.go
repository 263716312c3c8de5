package controller

import (
	"ai-mediagen-be/internal/dto"
	"ai-mediagen-be/internal/pkg/serverutils"
	"ai-mediagen-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IImageController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type imageController struct {
	service service.IImageService
}

func NewImageController(service service.IImageService) IImageController {
	return &imageController{service: service}
}

func (c *imageController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/images/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Get("/", c.List)
	h.Delete("/:id", c.Delete)
}

func (c *imageController) List(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	var req dto.ListImagesRequest
	if err := ctx.QueryParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ListMine(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Images", res))
}

func (c *imageController) Delete(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	imageId, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.service.DeleteImage(ctx.UserContext(), userId, imageId); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Image deleted", nil))
}
