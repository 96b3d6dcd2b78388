package payment

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/xuebang/xuebang-api/model"
	"github.com/xuebang/xuebang-api/services"
	paymentsvc "github.com/xuebang/xuebang-api/services/payment"
	"github.com/xuebang/xuebang-api/utils/middleware"
	"github.com/xuebang/xuebang-api/utils/response"
)

// PaymentHandler exposes order creation, queries and gateway callbacks
type PaymentHandler struct {
	orders *services.OrderService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(orders *services.OrderService) *PaymentHandler {
	return &PaymentHandler{orders: orders}
}

func orderError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrTierNotFound):
		return response.NotFound(c, "会员套餐不存在")
	case errors.Is(err, services.ErrTierSoldOut):
		return response.SoldOut(c, "该套餐已售罄")
	case errors.Is(err, services.ErrOrderNotFound):
		return response.NotFound(c, "订单不存在")
	case errors.Is(err, services.ErrOrderNotCancellable):
		return response.Conflict(c, "订单当前状态无法取消")
	case errors.Is(err, services.ErrOrderNotRefundable):
		return response.Conflict(c, "订单当前状态无法退款")
	case errors.Is(err, paymentsvc.ErrGatewayUnconfigured):
		return response.ServiceUnavailable(c, "支付服务未配置")
	}
	return response.InternalServerError(c, err.Error())
}

// CreateOrderRequest selects the tier and payment surface
type CreateOrderRequest struct {
	TierID uint   `json:"tier_id" validate:"required"`
	Method string `json:"method"` // alipay_web (default) or alipay_wap
}

// CreateOrder handles POST /api/payment/create-order
func (h *PaymentHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.TierID == 0 {
		return response.BadRequest(c, "tier_id is required")
	}

	method := model.PaymentMethodAlipayWeb
	if req.Method == string(model.PaymentMethodAlipayWap) {
		method = model.PaymentMethodAlipayWap
	}

	order, err := h.orders.CreateOrder(c.Context(), userID, req.TierID, method)
	if err != nil {
		return orderError(c, err)
	}

	return response.Success(c, fiber.Map{
		"order_number": order.OrderNumber,
		"amount":       order.Amount,
		"payment_url":  order.PaymentURL,
		"expires_at":   order.ExpiresAt,
	})
}

// ListOrders handles GET /api/payment/orders
func (h *PaymentHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	orders, err := h.orders.ListOrders(userID, c.QueryInt("limit", 20))
	if err != nil {
		return orderError(c, err)
	}
	return response.Success(c, orders)
}

// GetOrder handles GET /api/payment/orders/:order_number
func (h *PaymentHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	order, err := h.orders.GetOrder(userID, c.Params("order_number"))
	if err != nil {
		return orderError(c, err)
	}
	return response.Success(c, order)
}

// CancelOrder handles POST /api/payment/orders/:order_number/cancel
func (h *PaymentHandler) CancelOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	if err := h.orders.CancelOrder(c.Context(), userID, c.Params("order_number")); err != nil {
		return orderError(c, err)
	}
	return response.SuccessWithMessage(c, "订单已取消", nil)
}

// RefundRequest names the order and reason for an admin refund
type RefundRequest struct {
	OrderNumber string `json:"order_number" validate:"required"`
	Reason      string `json:"reason"`
}

// Refund handles POST /api/payment/refund (admin only)
func (h *PaymentHandler) Refund(c *fiber.Ctx) error {
	var req RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.OrderNumber == "" {
		return response.BadRequest(c, "order_number is required")
	}

	if err := h.orders.RefundOrder(c.Context(), req.OrderNumber, req.Reason); err != nil {
		return orderError(c, err)
	}
	return response.SuccessWithMessage(c, "退款已受理", nil)
}
