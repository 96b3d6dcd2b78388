package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

// seedIdentity fakes what Required stores in Locals after token validation
func seedIdentity(userID uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("user_role", role)
		return c.Next()
	}
}

func TestRequireAdminBlocksNonAdminBeforeHandler(t *testing.T) {
	m := NewAuthMiddleware(nil, nil)

	handlerRan := false
	app := fiber.New()
	app.Post("/refund", seedIdentity(1, "student"), m.RequireAdmin(), func(c *fiber.Ctx) error {
		handlerRan = true
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/refund", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusForbidden)
	}
	if handlerRan {
		t.Error("downstream handler must not run for a non-admin user")
	}
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	m := NewAuthMiddleware(nil, nil)

	handlerRan := false
	app := fiber.New()
	app.Post("/refund", seedIdentity(1, "admin"), m.RequireAdmin(), func(c *fiber.Ctx) error {
		handlerRan = true
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/refund", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}
	if !handlerRan {
		t.Error("downstream handler should run for an admin user")
	}
}

func TestRequireAdminBlocksMissingRole(t *testing.T) {
	m := NewAuthMiddleware(nil, nil)

	handlerRan := false
	app := fiber.New()
	app.Post("/refund", m.RequireAdmin(), func(c *fiber.Ctx) error {
		handlerRan = true
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/refund", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusForbidden)
	}
	if handlerRan {
		t.Error("downstream handler must not run without an authenticated role")
	}
}
