package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vitalinkhq/vitalink/internal/identity"
	"github.com/vitalinkhq/vitalink/internal/ingest"
	"github.com/vitalinkhq/vitalink/internal/obs"
)

const uploadPreviewChars = 400

type UploadHandler struct {
	pipeline *ingest.Pipeline
	logger   *slog.Logger
}

func NewUploadHandler(log *slog.Logger, pipeline *ingest.Pipeline) *UploadHandler {
	return &UploadHandler{
		pipeline: pipeline,
		logger:   log.With(slog.String("handler", "uploads")),
	}
}

func (h *UploadHandler) Register(e *echo.Echo) {
	e.POST("/uploads", h.Upload)
}

type uploadResponse struct {
	Markers   map[string]float64 `json:"markers"`
	Persisted bool               `json:"persisted"`
	Note      string             `json:"note"`
	Preview   string             `json:"preview,omitempty"`
}

// Upload ingests a lab document submitted directly over HTTP, outside the
// chat. The same pipeline runs as for chat attachments.
func (h *UploadHandler) Upload(c echo.Context) error {
	id, err := identity.NormalizeAndValidate(c.FormValue("phone"))
	if err != nil {
		if errors.Is(err, identity.ErrInvalidIdentity) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid phone number")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable file")
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	result := h.pipeline.IngestDocument(c.Request().Context(), id, file, contentType)
	if result.Persisted {
		obs.CountIngestedDocument("persisted")
	} else {
		obs.CountIngestedDocument("skipped")
	}

	preview := result.CleanedText
	if len(preview) > uploadPreviewChars {
		cut := uploadPreviewChars
		for cut > 0 && preview[cut]&0xC0 == 0x80 {
			cut--
		}
		preview = preview[:cut]
	}
	return c.JSON(http.StatusOK, uploadResponse{
		Markers:   result.Markers,
		Persisted: result.Persisted,
		Note:      result.Note,
		Preview:   preview,
	})
}
