package blobstore

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cliniq/cliniq/internal/platform/auth"
)

// Handler exposes multipart upload and download of attachment payloads. The
// returned key is used as the raw value for attachment questions.
type Handler struct {
	store   Store
	maxSize int64
}

func NewHandler(store Store, maxSize int64) *Handler {
	return &Handler{store: store, maxSize: maxSize}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/uploads", h.Upload)
	api.GET("/uploads/:key", h.Download)
}

func (h *Handler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file part is required")
	}
	if h.maxSize > 0 && fileHeader.Size > h.maxSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error())
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer src.Close()

	obj := Object{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		UploadedBy:  auth.UserIDFromContext(c.Request().Context()),
	}

	stored, err := h.store.Put(c.Request().Context(), obj, src)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		}
		if errors.Is(err, ErrMissingFileName) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, stored)
}

func (h *Handler) Download(c echo.Context) error {
	key := c.Param("key")

	obj, r, err := h.store.Get(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "attachment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer r.Close()

	c.Response().Header().Set("Content-Disposition", `attachment; filename="`+obj.FileName+`"`)
	return c.Stream(http.StatusOK, obj.ContentType, r)
}
