package serverutils

import (
	"errors"

	"ai-mediagen-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware renders any error returned further down the chain.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err)
	}
}

func WriteError(ctx *fiber.Ctx, err error) error {
	if appErr, ok := apperror.As(err); ok {
		body := ErrorResponse(appErr.HTTPStatus, appErr.Message)
		body.ErrorType = string(appErr.Code)
		if len(appErr.Details) > 0 {
			body.Data = appErr.Details
		}
		return ctx.Status(appErr.HTTPStatus).JSON(body)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		body := ErrorResponse(fiberErr.Code, fiberErr.Message)
		body.ErrorType = "HTTP_ERROR"
		return ctx.Status(fiberErr.Code).JSON(body)
	}

	body := ErrorResponse(fiber.StatusInternalServerError, "Internal server error")
	body.ErrorType = string(apperror.CodeInternal)
	return ctx.Status(fiber.StatusInternalServerError).JSON(body)
}
