package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pulsepet/progression/config"
)

// FeatureAdmin is the runtime side of the feature flags.
type FeatureAdmin interface {
	GetAllFeatures() map[string]*config.Feature
	SetRolloutPercent(featureName string, percent int) error
	EnableFeature(featureName string) error
	DisableFeature(featureName string) error
	SetUserOverride(userID, featureName string, enabled bool)
	ClearUserOverrides(userID string)
}

// FeatureHandler lets operators flip flags without a restart.
type FeatureHandler struct {
	flags FeatureAdmin
}

// NewFeatureHandler creates the handler.
func NewFeatureHandler(flags FeatureAdmin) *FeatureHandler {
	return &FeatureHandler{flags: flags}
}

// Register mounts the flag routes behind auth.
func (h *FeatureHandler) Register(api fiber.Router, auth fiber.Handler) {
	admin := api.Group("/admin", auth)
	admin.Get("/features", h.List)
	admin.Put("/features/:name", h.Update)
	admin.Put("/features/:name/users/:userID", h.SetUserOverride)
	admin.Delete("/users/:userID/features", h.ClearUserOverrides)
}

// FeatureUpdateRequest is the body of PUT /admin/features/:name. Enabled
// wins over RolloutPercent when both are set.
type FeatureUpdateRequest struct {
	Enabled        *bool `json:"enabled,omitempty"`
	RolloutPercent *int  `json:"rollout_percent,omitempty"`
}

// List returns every flag with its current rollout.
func (h *FeatureHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"features": h.flags.GetAllFeatures()})
}

// Update switches a flag or changes its rollout percentage.
func (h *FeatureHandler) Update(c *fiber.Ctx) error {
	var req FeatureUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request body")
	}

	name := c.Params("name")
	var err error
	switch {
	case req.Enabled != nil && *req.Enabled:
		err = h.flags.EnableFeature(name)
	case req.Enabled != nil:
		err = h.flags.DisableFeature(name)
	case req.RolloutPercent != nil:
		err = h.flags.SetRolloutPercent(name, *req.RolloutPercent)
	default:
		return badRequest("enabled or rollout_percent is required")
	}
	if err != nil {
		return featureError(err)
	}
	return c.JSON(h.flags.GetAllFeatures()[name])
}

// SetUserOverride pins a flag on or off for one user.
func (h *FeatureHandler) SetUserOverride(c *fiber.Ctx) error {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return badRequest("enabled is required")
	}

	name, userID := c.Params("name"), c.Params("userID")
	if _, ok := h.flags.GetAllFeatures()[name]; !ok {
		return featureError(config.ErrFeatureNotFound)
	}
	h.flags.SetUserOverride(userID, name, *req.Enabled)
	return c.JSON(fiber.Map{"feature": name, "user_id": userID, "enabled": *req.Enabled})
}

// ClearUserOverrides drops every override of the user.
func (h *FeatureHandler) ClearUserOverrides(c *fiber.Ctx) error {
	h.flags.ClearUserOverrides(c.Params("userID"))
	return c.SendStatus(fiber.StatusNoContent)
}

func featureError(err error) error {
	switch {
	case errors.Is(err, config.ErrFeatureNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, config.ErrInvalidRolloutPercent):
		return badRequest(err.Error())
	}
	return err
}
