package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vitalinkhq/vitalink/internal/obs"
	"github.com/vitalinkhq/vitalink/internal/transport/twilio"
)

// emptyTwiML acknowledges a webhook without queuing a transport-side reply;
// outbound messages go through the REST client instead.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// InboundDispatcher runs one message turn.
type InboundDispatcher interface {
	HandleInbound(ctx context.Context, msg twilio.InboundMessage) error
}

type WebhookHandler struct {
	dispatcher    InboundDispatcher
	validator     *twilio.SignatureValidator
	publicBaseURL string
	logger        *slog.Logger
}

// NewWebhookHandler creates the inbound WhatsApp webhook handler.
// publicBaseURL is the externally visible origin Twilio signs against.
func NewWebhookHandler(log *slog.Logger, dispatcher InboundDispatcher, validator *twilio.SignatureValidator, publicBaseURL string) *WebhookHandler {
	return &WebhookHandler{
		dispatcher:    dispatcher,
		validator:     validator,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook/whatsapp", h.Inbound)
}

// Inbound handles one webhook delivery. After the signature passes, the
// response is always a 200 acknowledgment so the transport does not
// retry-storm; turn failures are logged and surfaced to the user through
// the turn itself.
func (h *WebhookHandler) Inbound(c echo.Context) error {
	if err := c.Request().ParseForm(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form body")
	}
	form := c.Request().PostForm

	if h.validator != nil {
		requestURL := h.publicBaseURL + c.Request().RequestURI
		signature := c.Request().Header.Get("X-Twilio-Signature")
		if err := h.validator.Validate(requestURL, form, signature); err != nil {
			h.logger.Warn("rejected unsigned webhook", slog.String("remote", c.RealIP()))
			return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
		}
	}

	msg, err := twilio.ParseInbound(form)
	if err != nil {
		h.logger.Warn("unparseable webhook form", slog.Any("error", err))
		obs.CountTurn("rejected")
		return c.XMLBlob(http.StatusOK, []byte(emptyTwiML))
	}

	if err := h.dispatcher.HandleInbound(c.Request().Context(), msg); err != nil {
		h.logger.Warn("turn failed", slog.Any("error", err))
		obs.CountTurn("failed")
	} else {
		obs.CountTurn("handled")
	}
	return c.XMLBlob(http.StatusOK, []byte(emptyTwiML))
}
