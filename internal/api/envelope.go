package api

import "github.com/gofiber/fiber/v2"

// Envelope is the flat response shape every endpoint returns. The UI
// surfaces Error directly, so it stays a plain string.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c *fiber.Ctx, message string, data any) error {
	return c.JSON(Envelope{Success: true, Message: message, Data: data})
}

func fail(c *fiber.Ctx, status int, errMsg string) error {
	return c.Status(status).JSON(Envelope{Success: false, Error: errMsg})
}
