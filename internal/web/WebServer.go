package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/NeRF-or-Nothing/go-user-service/internal/common"
	"github.com/NeRF-or-Nothing/go-user-service/internal/log"
	"github.com/NeRF-or-Nothing/go-user-service/internal/models/user"
)

// UserService is what the web server needs to serve the user routes.
type UserService interface {
	ListUsers(ctx context.Context) ([]user.User, error)
	CreateUsers(ctx context.Context, users []user.User) ([]user.User, error)
	UpdateUser(ctx context.Context, id string, fields user.Fields) (*user.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type WebServer struct {
	app         *fiber.App
	userService UserService
	health      HealthChecker
	logger      *log.Logger
}

func NewWebServer(userService UserService, health HealthChecker, logger *log.Logger) *WebServer {
	s := &WebServer{
		userService: userService,
		health:      health,
		logger:      logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "go-user-service",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Content-Type",
	}))
	s.app.Use(s.logRequest)

	s.SetupRoutes()
	return s
}

// Run binds addr and serves until Shutdown is called.
func (s *WebServer) Run(addr string) error {
	s.logger.Infof("Server is running on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *WebServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *WebServer) SetupRoutes() {
	s.app.Get("/users", s.listUsers)
	s.app.Post("/users/bulk", s.createUsers)
	s.app.Put("/users/:id", s.updateUser)
	s.app.Delete("/users/:id", s.deleteUser)
	s.app.Get("/routes", s.getRoutes)
	s.app.Get("/health", s.healthCheck)
}

func (s *WebServer) logRequest(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debugw("Request handled",
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"latency", time.Since(start),
	)
	return err
}

// handleError answers errors returned by handlers and middleware, including recovered panics.
func (s *WebServer) handleError(c *fiber.Ctx, err error) error {
	code := http.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	if code >= http.StatusInternalServerError {
		s.logger.Errorf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(code).SendString(http.StatusText(code))
	}
	return c.Status(code).SendString(err.Error())
}

func (s *WebServer) listUsers(c *fiber.Ctx) error {
	s.logger.Info("List users request received")

	users, err := s.userService.ListUsers(c.UserContext())
	if err != nil {
		s.logger.Error("Failed to list users: ", err.Error())
		return c.Status(http.StatusInternalServerError).SendString("Error retrieving users")
	}

	return c.Status(http.StatusOK).JSON(users)
}

func (s *WebServer) createUsers(c *fiber.Ctx) error {
	s.logger.Info("Bulk create request received")
	s.logger.Debugf("Received body: %s", c.Body())

	users, parseErr := ParseUserBatch(c.Body())
	if errors.Is(parseErr, ErrNotAnArray) {
		s.logger.Info("Bulk create rejected: body is not an array")
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": parseErr.Error()})
	}

	// users holds the valid prefix; it is inserted even when a later element was rejected
	created := []user.User{}
	if len(users) > 0 || parseErr == nil {
		var err error
		created, err = s.userService.CreateUsers(c.UserContext(), users)
		if err != nil {
			s.logger.Info("Insert failed: ", err.Error())
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}
	if parseErr != nil {
		s.logger.Infof("Insert stopped after %d users: %s", len(created), parseErr.Error())
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": parseErr.Error()})
	}

	return c.Status(http.StatusCreated).JSON(created)
}

func (s *WebServer) updateUser(c *fiber.Ctx) error {
	s.logger.Info("Update user request received")

	var req common.UpdateUserRequest
	if err := ValidateRequest(c, &req); err != nil {
		s.logger.Info("Update user request validation failed: ", err.Error())
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	updated, err := s.userService.UpdateUser(c.UserContext(), req.ID, req.ToFields())
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return c.Status(http.StatusNotFound).SendString("User not found")
		}
		s.logger.Error("Failed to update user: ", err.Error())
		return c.Status(http.StatusInternalServerError).SendString("Error updating user")
	}

	s.logger.Infof("User %s updated", updated.ID.Hex())
	return c.Status(http.StatusOK).JSON(updated)
}

func (s *WebServer) deleteUser(c *fiber.Ctx) error {
	s.logger.Info("Delete user request received")

	var req common.DeleteUserRequest
	if err := ValidateRequest(c, &req); err != nil {
		s.logger.Info("Delete user request validation failed: ", err.Error())
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := s.userService.DeleteUser(c.UserContext(), req.ID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return c.Status(http.StatusNotFound).SendString("User not found")
		}
		s.logger.Error("Failed to delete user: ", err.Error())
		return c.Status(http.StatusInternalServerError).SendString("Error deleting user")
	}

	s.logger.Infof("User %s deleted", req.ID)
	return c.Status(http.StatusOK).SendString("User deleted")
}

func (s *WebServer) getRoutes(c *fiber.Ctx) error {
	s.logger.Info("Get routes request received")
	routes := s.app.GetRoutes(true)
	return c.Status(http.StatusOK).JSON(routes)
}

func (s *WebServer) healthCheck(c *fiber.Ctx) error {
	if s.health != nil {
		if err := s.health.Ping(c.UserContext()); err != nil {
			s.logger.Error("Health check failed: ", err.Error())
			return c.Status(http.StatusServiceUnavailable).SendString("Database unavailable")
		}
	}
	return c.SendString("OK")
}
