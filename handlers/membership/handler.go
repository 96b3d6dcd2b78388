package membership

import (
	"github.com/gofiber/fiber/v2"
	"github.com/xuebang/xuebang-api/services"
	"github.com/xuebang/xuebang-api/utils/middleware"
	"github.com/xuebang/xuebang-api/utils/response"
)

// MembershipHandler exposes the tier catalog and the user's entitlement state
type MembershipHandler struct {
	tiers       *services.TierService
	entitlement *services.EntitlementService
}

// NewMembershipHandler creates a new membership handler
func NewMembershipHandler(tiers *services.TierService, entitlement *services.EntitlementService) *MembershipHandler {
	return &MembershipHandler{
		tiers:       tiers,
		entitlement: entitlement,
	}
}

// ListTiers handles GET /api/membership/tiers
func (h *MembershipHandler) ListTiers(c *fiber.Ctx) error {
	tiers, err := h.tiers.ListTiers()
	if err != nil {
		return response.InternalServerError(c, "Failed to load tiers")
	}
	return response.Success(c, tiers)
}

// Current handles GET /api/membership/current
func (h *MembershipHandler) Current(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	membership, tier, err := h.entitlement.GetCurrentMembership(userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load membership")
	}

	res := fiber.Map{
		"tier": fiber.Map{
			"code":  tier.Code,
			"name":  tier.Name,
			"level": tier.Level,
		},
	}
	if membership != nil {
		res["start_date"] = membership.StartDate
		res["end_date"] = membership.EndDate
	}
	return response.Success(c, res)
}

// Usage handles GET /api/membership/usage
func (h *MembershipHandler) Usage(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	summary, err := h.entitlement.GetUsageSummary(userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load usage")
	}
	return response.Success(c, summary)
}
