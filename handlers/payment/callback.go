package payment

import (
	"log"
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// AlipayNotify handles POST /api/payment/alipay/callback, the asynchronous
// gateway notification. The gateway expects a literal "success" body to
// stop retrying; anything else makes it redeliver.
func (h *PaymentHandler) AlipayNotify(c *fiber.Ctx) error {
	values, err := url.ParseQuery(string(c.Body()))
	if err != nil {
		log.Printf("alipay notify: unreadable body: %v", err)
		return c.SendString("fail")
	}

	if err := h.orders.HandleNotification(c.Context(), values); err != nil {
		log.Printf("alipay notify rejected: %v", err)
		return c.SendString("fail")
	}

	return c.SendString("success")
}

// AlipayReturn handles GET /api/payment/alipay/return, the synchronous
// redirect after payment. It never trusts the query parameters for state;
// the async callback is authoritative. The signature is still checked so
// even the redirect target cannot be steered by an unsigned out_trade_no.
func (h *PaymentHandler) AlipayReturn(c *fiber.Ctx) error {
	values, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return c.Redirect("/orders", fiber.StatusFound)
	}

	if err := h.orders.VerifyReturn(values); err != nil {
		log.Printf("alipay return: %v", err)
		return c.Redirect("/orders", fiber.StatusFound)
	}

	orderNumber := values.Get("out_trade_no")
	if orderNumber == "" {
		return c.Redirect("/orders", fiber.StatusFound)
	}
	return c.Redirect("/orders?order_number="+url.QueryEscape(orderNumber), fiber.StatusFound)
}
