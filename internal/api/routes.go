package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/sayword/domain/entities"
	"github.com/satriahrh/sayword/domain/repositories"
	"github.com/satriahrh/sayword/internal/auth"
	"github.com/satriahrh/sayword/internal/websocket"
	"github.com/satriahrh/sayword/internal/wordlist"
	"github.com/satriahrh/sayword/usecase"
)

// Services are the dependencies of the HTTP handlers
type Services struct {
	Hub     *websocket.Hub
	Players *usecase.PlayerService
	Results *usecase.ResultService
	Issuer  *auth.TokenIssuer
	Words   []entities.Word
	// Ping checks the result store; nil means always healthy
	Ping func(context.Context) error
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, svc Services, logger *zap.Logger) {
	e.GET("/health", func(c echo.Context) error {
		if svc.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := svc.Ping(ctx); err != nil {
				logger.Warn("Health check failed", zap.Error(err))
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"status":  "unavailable",
					"service": "sayword-server",
				})
			}
		}
		players := 0
		if svc.Hub != nil {
			players = len(svc.Hub.GetActivePlayers())
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":         "ok",
			"service":        "sayword-server",
			"active_players": players,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")

	v1.POST("/players", func(c echo.Context) error {
		return registerPlayer(c, svc, logger)
	})
	v1.GET("/words", func(c echo.Context) error {
		return listWords(c, svc.Words)
	})

	authed := v1.Group("", auth.Middleware(svc.Issuer, logger))
	authed.GET("/results", func(c echo.Context) error {
		return listResults(c, svc.Results, logger)
	})
	authed.GET("/results/:id", func(c echo.Context) error {
		return getResult(c, svc.Results, logger)
	})

	e.GET("/ws", func(c echo.Context) error {
		claims, ok := auth.ClaimsFrom(c)
		if !ok || claims.Role != auth.RolePlayer {
			logger.Warn("WebSocket connection rejected: invalid role")
			return c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "invalid_role",
				Message: "Only player tokens are allowed for WebSocket connections",
			})
		}

		logger.Info("WebSocket connection authenticated", zap.String("playerID", claims.PlayerID))
		return websocket.HandleWebSocket(svc.Hub, c, claims.PlayerID, logger)
	}, auth.Middleware(svc.Issuer, logger))
}

func registerPlayer(c echo.Context, svc Services, logger *zap.Logger) error {
	var req RegisterPlayerRequest
	if err := c.Bind(&req); err != nil {
		logger.Warn("Failed to bind player registration request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	player, err := svc.Players.Register(c.Request().Context(), req.Name)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_name",
				Message: "Name is required and must be at most 64 characters",
			})
		}
		logger.Error("Failed to register player", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to register player",
		})
	}

	token, expiresAt, err := svc.Issuer.GeneratePlayerToken(player.ID, player.Name)
	if err != nil {
		logger.Error("Failed to generate player token", zap.String("playerID", player.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusCreated, RegisterPlayerResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		PlayerID:  player.ID,
		Name:      player.Name,
	})
}

func listWords(c echo.Context, words []entities.Word) error {
	d := entities.Difficulty(c.QueryParam("difficulty"))
	if d != "" && !d.IsValid() {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_difficulty",
			Message: "difficulty must be one of: easy, medium, hard",
		})
	}

	filtered := wordlist.FilterByDifficulty(words, d)
	if filtered == nil {
		filtered = []entities.Word{}
	}
	return c.JSON(http.StatusOK, WordsResponse{Words: filtered, Count: len(filtered)})
}

func listResults(c echo.Context, results *usecase.ResultService, logger *zap.Logger) error {
	claims, _ := auth.ClaimsFrom(c)

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
			})
		}
		limit = n
	}

	list, err := results.List(c.Request().Context(), claims.PlayerID, limit)
	if err != nil {
		logger.Error("Failed to list results", zap.String("playerID", claims.PlayerID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list results",
		})
	}

	resp := ResultsResponse{Results: make([]ResultSummary, 0, len(list))}
	for _, r := range list {
		resp.Results = append(resp.Results, summarize(r))
	}
	return c.JSON(http.StatusOK, resp)
}

func getResult(c echo.Context, results *usecase.ResultService, logger *zap.Logger) error {
	claims, _ := auth.ClaimsFrom(c)

	result, err := results.Get(c.Request().Context(), claims.PlayerID, c.Param("id"))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, result)
	case errors.Is(err, repositories.ErrNotFound), errors.Is(err, usecase.ErrForbidden):
		// another player's result is reported as missing
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Result not found",
		})
	default:
		logger.Error("Failed to get result", zap.String("resultID", c.Param("id")), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to get result",
		})
	}
}
