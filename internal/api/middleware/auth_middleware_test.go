package middleware

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	config "github.com/IlyaVishnyakMuz/apgram-backend/configs"
	"github.com/IlyaVishnyakMuz/apgram-backend/internal/models"
	"github.com/IlyaVishnyakMuz/apgram-backend/pkg/utils"
)

type fakeUsers struct {
	apiKeys map[string]int64
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (*models.User, bool, error) {
	return &models.User{ID: id}, true, nil
}

func (f *fakeUsers) GetByApiKey(ctx context.Context, apiKey string) (*int64, bool, error) {
	if id, ok := f.apiKeys[apiKey]; ok {
		return &id, true, nil
	}
	return nil, false, nil
}

func testApp(cfg config.Config) *fiber.App {
	resolver := NewRequesterResolver(cfg, &fakeUsers{apiKeys: map[string]int64{"legacy-key": 42}})
	m := NewAuthMiddleware(resolver)

	app := fiber.New()
	app.Get("/whoami", m.AuthMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString(fmt.Sprintf("%d", c.Locals("user_id")))
	})
	return app
}

func TestResolveFromTokenCookie(t *testing.T) {
	cfg := config.Config{SecretKey: "test-secret", CookieName: "apgram_token"}
	app := testApp(cfg)

	token, err := utils.GenerateToken(cfg.SecretKey, "42", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Cookie", cfg.CookieName+"="+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestResolveFallsBackToLegacyKey(t *testing.T) {
	cfg := config.Config{SecretKey: "test-secret", CookieName: "apgram_token"}
	app := testApp(cfg)

	req := httptest.NewRequest("GET", "/whoami?api_key=legacy-key", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestMissingCredentialsRejected(t *testing.T) {
	cfg := config.Config{SecretKey: "test-secret", CookieName: "apgram_token"}
	app := testApp(cfg)

	req := httptest.NewRequest("GET", "/whoami", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
}

func TestBadTokenRejected(t *testing.T) {
	cfg := config.Config{SecretKey: "test-secret", CookieName: "apgram_token"}
	app := testApp(cfg)

	token, err := utils.GenerateToken("wrong-secret", "42", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Cookie", cfg.CookieName+"="+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
}
