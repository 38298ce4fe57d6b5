package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vitalinkhq/vitalink/internal/identity"
	"github.com/vitalinkhq/vitalink/internal/link"
)

type LinkHandler struct {
	service *link.Service
	logger  *slog.Logger
}

func NewLinkHandler(log *slog.Logger, service *link.Service) *LinkHandler {
	return &LinkHandler{
		service: service,
		logger:  log.With(slog.String("handler", "link")),
	}
}

func (h *LinkHandler) Register(e *echo.Echo) {
	e.GET("/auth/login", h.Login)
	e.GET("/auth/callback", h.Callback)
}

// Login returns the provider authorization URL for a phone number, for
// flows that start outside the chat (e.g. a web page or QR code).
func (h *LinkHandler) Login(c echo.Context) error {
	phone := c.QueryParam("phone")
	authURL, err := h.service.BuildAuthorizationRequest(phone)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidIdentity) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid phone number")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"url": authURL})
}

// Callback completes the OAuth round trip and drops the user back into the
// WhatsApp conversation they started from.
func (h *LinkHandler) Callback(c echo.Context) error {
	outcome, err := h.service.HandleCallback(c.Request().Context(), c.QueryParam("code"), c.QueryParam("state"))
	if err != nil {
		switch {
		case errors.Is(err, link.ErrInvalidState):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid state parameter")
		case errors.Is(err, link.ErrMissingCode):
			return echo.NewHTTPError(http.StatusBadRequest, "missing authorization code")
		default:
			var exchangeErr *link.TokenExchangeError
			if errors.As(err, &exchangeErr) {
				h.logger.Error("token exchange failed",
					slog.Int("status", exchangeErr.Status),
					slog.String("body", exchangeErr.Body),
				)
				return echo.NewHTTPError(http.StatusBadGateway, "token exchange failed")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Redirect(http.StatusFound, "https://wa.me/"+outcome.Identity)
}
