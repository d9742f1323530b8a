package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

// param returns a route parameter that outlives the request. Fiber reuses the
// buffer behind c.Params once the handler returns, and ids end up as store keys.
func param(c *fiber.Ctx, key string) string {
	return utils.CopyString(c.Params(key))
}
