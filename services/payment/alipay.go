package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/smartwalle/alipay/v3"
	"github.com/xuebang/xuebang-api/model"
)

var (
	// ErrGatewayUnconfigured is returned when gateway credentials are
	// missing. Handlers map it to 503.
	ErrGatewayUnconfigured = errors.New("payment gateway not configured")

	// ErrInvalidSignature is returned when a callback fails RSA2
	// signature verification.
	ErrInvalidSignature = errors.New("callback signature verification failed")
)

// Trade status values surfaced to the order service.
const (
	TradeStatusSuccess  = "TRADE_SUCCESS"
	TradeStatusFinished = "TRADE_FINISHED"
	TradeStatusClosed   = "TRADE_CLOSED"
	TradeStatusWaitPay  = "WAIT_BUYER_PAY"
)

// PaymentRequest describes the order to collect payment for.
type PaymentRequest struct {
	OrderNumber string
	Subject     string
	Amount      float64
	Method      model.PaymentMethod
}

// Notification is a verified asynchronous payment callback.
type Notification struct {
	OrderNumber string
	TradeNo     string
	TradeStatus string
	TotalAmount float64
	Raw         url.Values
}

// Gateway abstracts the payment provider so the order service can be
// tested against a fake.
type Gateway interface {
	// CreatePayment returns the URL the buyer is redirected to.
	CreatePayment(ctx context.Context, req PaymentRequest) (string, error)
	// VerifyNotification checks the callback signature and decodes it.
	VerifyNotification(values url.Values) (*Notification, error)
	// VerifyReturn checks the signature on the synchronous return redirect.
	VerifyReturn(values url.Values) error
	// QueryTrade asks the provider for the current trade state.
	QueryTrade(ctx context.Context, orderNumber string) (*Notification, error)
	// CloseTrade voids an unpaid trade at the provider.
	CloseTrade(ctx context.Context, orderNumber string) error
	// Refund returns money for a completed trade.
	Refund(ctx context.Context, orderNumber string, amount float64, reason string) error
}

// AlipayGateway implements Gateway on top of the Alipay open platform,
// using RSA2-signed requests and callbacks.
type AlipayGateway struct {
	client    *alipay.Client
	returnURL string
	notifyURL string
}

// AlipayConfig holds the gateway credentials and callback endpoints.
type AlipayConfig struct {
	AppID        string
	PrivateKey   string
	AliPublicKey string
	IsProduction bool
	ReturnURL    string
	NotifyURL    string
}

// NewAlipayGateway creates a configured Alipay gateway. Missing credentials
// return ErrGatewayUnconfigured so the platform can boot without payment.
func NewAlipayGateway(config AlipayConfig) (*AlipayGateway, error) {
	if config.AppID == "" || config.PrivateKey == "" {
		return nil, ErrGatewayUnconfigured
	}

	client, err := alipay.New(config.AppID, config.PrivateKey, config.IsProduction)
	if err != nil {
		return nil, fmt.Errorf("failed to init alipay client: %w", err)
	}

	if config.AliPublicKey != "" {
		if err := client.LoadAliPayPublicKey(config.AliPublicKey); err != nil {
			return nil, fmt.Errorf("failed to load alipay public key: %w", err)
		}
	}

	return &AlipayGateway{
		client:    client,
		returnURL: config.ReturnURL,
		notifyURL: config.NotifyURL,
	}, nil
}

// CreatePayment builds a signed payment URL for the desktop or mobile surface
func (g *AlipayGateway) CreatePayment(ctx context.Context, req PaymentRequest) (string, error) {
	trade := alipay.Trade{
		Subject:     req.Subject,
		OutTradeNo:  req.OrderNumber,
		TotalAmount: fmt.Sprintf("%.2f", req.Amount),
		ReturnURL:   g.returnURL,
		NotifyURL:   g.notifyURL,
	}

	switch req.Method {
	case model.PaymentMethodAlipayWap:
		trade.ProductCode = "QUICK_WAP_WAY"
		payURL, err := g.client.TradeWapPay(alipay.TradeWapPay{Trade: trade})
		if err != nil {
			return "", fmt.Errorf("failed to create wap payment: %w", err)
		}
		return payURL.String(), nil
	default:
		trade.ProductCode = "FAST_INSTANT_TRADE_PAY"
		payURL, err := g.client.TradePagePay(alipay.TradePagePay{Trade: trade})
		if err != nil {
			return "", fmt.Errorf("failed to create page payment: %w", err)
		}
		return payURL.String(), nil
	}
}

// VerifyNotification validates the RSA2 signature on a callback and decodes
// the fields the order service needs.
func (g *AlipayGateway) VerifyNotification(values url.Values) (*Notification, error) {
	noti, err := g.client.DecodeNotification(values)
	if err != nil {
		log.Printf("alipay notification rejected: %v", err)
		return nil, ErrInvalidSignature
	}

	amount, err := strconv.ParseFloat(noti.TotalAmount, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid total_amount %q in notification", noti.TotalAmount)
	}

	return &Notification{
		OrderNumber: noti.OutTradeNo,
		TradeNo:     noti.TradeNo,
		TradeStatus: string(noti.TradeStatus),
		TotalAmount: amount,
		Raw:         values,
	}, nil
}

// VerifyReturn validates the RSA2 signature on the synchronous return
// parameters. The return never drives state, but an unsigned out_trade_no
// is not trusted even for a redirect.
func (g *AlipayGateway) VerifyReturn(values url.Values) error {
	if err := g.client.VerifySign(values); err != nil {
		log.Printf("alipay return rejected: %v", err)
		return ErrInvalidSignature
	}
	return nil
}

// QueryTrade fetches the provider-side state of a trade
func (g *AlipayGateway) QueryTrade(ctx context.Context, orderNumber string) (*Notification, error) {
	rsp, err := g.client.TradeQuery(ctx, alipay.TradeQuery{OutTradeNo: orderNumber})
	if err != nil {
		return nil, fmt.Errorf("trade query failed for %s: %w", orderNumber, err)
	}
	if rsp.IsFailure() {
		return nil, fmt.Errorf("trade query rejected for %s: %s %s", orderNumber, rsp.SubCode, rsp.SubMsg)
	}

	amount, _ := strconv.ParseFloat(rsp.TotalAmount, 64)
	return &Notification{
		OrderNumber: rsp.OutTradeNo,
		TradeNo:     rsp.TradeNo,
		TradeStatus: string(rsp.TradeStatus),
		TotalAmount: amount,
	}, nil
}

// CloseTrade voids an unpaid trade so a late payment cannot land
func (g *AlipayGateway) CloseTrade(ctx context.Context, orderNumber string) error {
	rsp, err := g.client.TradeClose(ctx, alipay.TradeClose{OutTradeNo: orderNumber})
	if err != nil {
		return fmt.Errorf("trade close failed for %s: %w", orderNumber, err)
	}
	if rsp.IsFailure() {
		return fmt.Errorf("trade close rejected for %s: %s %s", orderNumber, rsp.SubCode, rsp.SubMsg)
	}
	return nil
}

// Refund returns money for a completed trade
func (g *AlipayGateway) Refund(ctx context.Context, orderNumber string, amount float64, reason string) error {
	rsp, err := g.client.TradeRefund(ctx, alipay.TradeRefund{
		OutTradeNo:   orderNumber,
		RefundAmount: fmt.Sprintf("%.2f", amount),
		RefundReason: reason,
	})
	if err != nil {
		return fmt.Errorf("refund failed for %s: %w", orderNumber, err)
	}
	if rsp.IsFailure() {
		return fmt.Errorf("refund rejected for %s: %s %s", orderNumber, rsp.SubCode, rsp.SubMsg)
	}
	return nil
}
