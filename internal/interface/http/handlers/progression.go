package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/pulsepet/progression/internal/application/progression"
	"github.com/pulsepet/progression/internal/application/saga"
	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/domain/challenge"
	"github.com/pulsepet/progression/internal/domain/cosmetic"
	"github.com/pulsepet/progression/internal/domain/health"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/internal/domain/streak"
	"github.com/pulsepet/progression/pkg/logger"
)

// HealthUpdater runs the daily pipeline.
type HealthUpdater interface {
	Execute(ctx context.Context, input saga.HealthUpdate) (*saga.HealthUpdateResult, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler maps domain errors to HTTP statuses: not found 404, missing
// ownership 409, invalid input 400, everything else 500.
func ErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, kind := fiber.StatusInternalServerError, "internal_error"
		msg := "internal server error"

		var ferr *fiber.Error
		switch {
		case errors.As(err, &ferr):
			code, kind, msg = ferr.Code, "http_error", ferr.Message
		case shared.IsNotFound(err):
			code, kind, msg = fiber.StatusNotFound, "not_found", err.Error()
		case errors.Is(err, shared.ErrNotOwned):
			code, kind, msg = fiber.StatusConflict, "not_owned", err.Error()
		case shared.IsValidation(err):
			code, kind, msg = fiber.StatusBadRequest, "invalid_input", err.Error()
		default:
			log.Error("unhandled request error",
				logger.RequestID(RequestIDFrom(c)),
				logger.String("path", c.Path()),
				logger.Err(err),
			)
		}

		return c.Status(code).JSON(ErrorResponse{Error: kind, Message: msg, RequestID: RequestIDFrom(c)})
	}
}

func badRequest(message string) error {
	return shared.NewDomainError("http", "request", shared.ErrInvalidInput, message)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionHandler exposes the engine over HTTP.
type ProgressionHandler struct {
	engine  *progression.Engine
	updater HealthUpdater
}

// NewProgressionHandler creates the handler.
func NewProgressionHandler(engine *progression.Engine, updater HealthUpdater) *ProgressionHandler {
	return &ProgressionHandler{engine: engine, updater: updater}
}

// Register mounts the per-user routes under /users/:userID. The reset route
// goes through admin and is not mounted when admin is nil.
func (h *ProgressionHandler) Register(api fiber.Router, admin fiber.Handler) {
	api.Get("/catalog/achievements", h.AchievementCatalog)
	api.Get("/catalog/cosmetics", h.CosmeticCatalog)

	users := api.Group("/users/:userID")
	users.Post("/health", h.RecordHealth)
	users.Get("/achievements", h.ListAchievements)
	users.Get("/achievements/stats", h.AchievementStats)
	users.Get("/streak", h.GetStreak)
	users.Get("/challenges", h.GetChallenges)
	users.Post("/challenges/generate", h.GenerateChallenges)
	users.Get("/cosmetics", h.GetInventory)
	users.Post("/cosmetics/:id/equip", h.Equip)
	users.Delete("/cosmetics/:id/equip", h.Unequip)
	users.Get("/cosmetics/layers", h.Layers)
	users.Get("/cosmetics/preview/:id", h.Preview)
	if admin != nil {
		users.Delete("", admin, h.ResetUser)
	}
}

// HealthRequest is the body of POST /users/:userID/health.
type HealthRequest struct {
	Today          health.DailyMetrics   `json:"today"`
	Qualifying     bool                  `json:"qualifying"`
	Week           []health.DailyMetrics `json:"week,omitempty"`
	EvolutionCount *int                  `json:"evolution_count,omitempty"`
}

// RecordHealth runs the daily pipeline for the user.
func (h *ProgressionHandler) RecordHealth(c *fiber.Ctx) error {
	var req HealthRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}
	res, err := h.updater.Execute(c.UserContext(), saga.HealthUpdate{
		UserID:         c.Params("userID"),
		Today:          req.Today,
		Qualifying:     req.Qualifying,
		Week:           req.Week,
		EvolutionCount: req.EvolutionCount,
	})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// ListAchievements lists the catalog with the user's layer, filtered by
// category, status and rarity query parameters.
func (h *ProgressionHandler) ListAchievements(c *fiber.Ctx) error {
	f := achievement.Filter{
		Category: achievement.Category(c.Query("category")),
		Status:   achievement.Status(c.Query("status")),
		Rarity:   achievement.Rarity(c.Query("rarity")),
	}
	if f.Category != "" && !f.Category.IsValid() {
		return badRequest("unknown category " + string(f.Category))
	}
	if f.Rarity != "" && !f.Rarity.IsValid() {
		return badRequest("unknown rarity " + string(f.Rarity))
	}
	switch f.Status {
	case achievement.StatusAll, achievement.StatusEarned, achievement.StatusLocked:
	default:
		return badRequest("status must be earned or locked")
	}

	views, err := h.engine.Achievements.List(c.UserContext(), c.Params("userID"), f)
	if err != nil {
		return err
	}
	if views == nil {
		views = []achievement.View{}
	}
	return c.JSON(fiber.Map{"achievements": views})
}

// AchievementStats returns earned counts, rarest and recent unlocks.
func (h *ProgressionHandler) AchievementStats(c *fiber.Ctx) error {
	recent, err := strconv.Atoi(c.Query("recent", "5"))
	if err != nil || recent < 0 || recent > 50 {
		return badRequest("recent must be between 0 and 50")
	}
	stats, err := h.engine.Achievements.Statistics(c.UserContext(), c.Params("userID"), recent)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// StreakResponse adds the next milestone to the streak counters.
type StreakResponse struct {
	*streak.State
	NextMilestone *streak.Milestone `json:"next_milestone,omitempty"`
}

// GetStreak returns the streak counters.
func (h *ProgressionHandler) GetStreak(c *fiber.Ctx) error {
	state, err := h.engine.Streaks.Current(c.UserContext(), c.Params("userID"))
	if err != nil {
		return err
	}
	resp := StreakResponse{State: state}
	if m, ok := streak.NextMilestone(state.Current); ok {
		resp.NextMilestone = &m
	}
	return c.JSON(resp)
}

// GetChallenges returns the stored week and totals.
func (h *ProgressionHandler) GetChallenges(c *fiber.Ctx) error {
	state, err := h.engine.Challenges.Current(c.UserContext(), c.Params("userID"))
	if err != nil {
		return err
	}
	return c.JSON(state)
}

// GenerateChallenges regenerates the current week from the stored history.
func (h *ProgressionHandler) GenerateChallenges(c *fiber.Ctx) error {
	ctx, userID := c.UserContext(), c.Params("userID")
	history, err := h.engine.LoadHistory(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Warn("generating without history", logger.UserID(userID), logger.Err(err))
	}
	generated, err := h.engine.Challenges.GenerateWeeklyChallenges(ctx, userID, history)
	if err != nil {
		return err
	}
	if generated == nil {
		generated = []challenge.Challenge{}
	}
	return c.JSON(fiber.Map{"challenges": generated})
}

// GetInventory returns the owned cosmetics.
func (h *ProgressionHandler) GetInventory(c *fiber.Ctx) error {
	inv, err := h.engine.Cosmetics.Inventory(c.UserContext(), c.Params("userID"))
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// Equip puts an owned cosmetic on.
func (h *ProgressionHandler) Equip(c *fiber.Ctx) error {
	res, err := h.engine.Cosmetics.Equip(c.UserContext(), c.Params("userID"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// Unequip takes a cosmetic off if it is the one equipped.
func (h *ProgressionHandler) Unequip(c *fiber.Ctx) error {
	removed, err := h.engine.Cosmetics.Unequip(c.UserContext(), c.Params("userID"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"unequipped": removed})
}

// Layers returns the render stack of the pet.
func (h *ProgressionHandler) Layers(c *fiber.Ctx) error {
	layers, err := h.engine.Cosmetics.Layers(c.UserContext(), c.Params("userID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"layers": layers})
}

// Preview returns the render stack with one candidate swapped in.
func (h *ProgressionHandler) Preview(c *fiber.Ctx) error {
	layers, err := h.engine.Cosmetics.PreviewLayers(c.UserContext(), c.Params("userID"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"layers": layers})
}

// ResetUser removes all progression of the user.
func (h *ProgressionHandler) ResetUser(c *fiber.Ctx) error {
	if err := h.engine.ResetUser(c.UserContext(), c.Params("userID")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AchievementCatalog lists every achievement definition.
func (h *ProgressionHandler) AchievementCatalog(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"achievements": h.engine.Achievements.Catalog().All()})
}

// CosmeticCatalog lists every cosmetic, optionally filtered by category.
func (h *ProgressionHandler) CosmeticCatalog(c *fiber.Ctx) error {
	category := cosmetic.Category(c.Query("category"))
	if category != "" && !category.IsValid() {
		return badRequest("unknown category " + string(category))
	}
	items := make([]cosmetic.Cosmetic, 0)
	for _, item := range h.engine.Cosmetics.Catalog().All() {
		if category == "" || item.Category == category {
			items = append(items, item)
		}
	}
	return c.JSON(fiber.Map{"cosmetics": items})
}
