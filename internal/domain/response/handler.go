package response

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cliniq/cliniq/internal/domain/questionnaire"
	"github.com/cliniq/cliniq/internal/platform/auth"
	"github.com/cliniq/cliniq/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Form rendering and submission are open to any authenticated user;
	// browsing and deleting collected responses is staff work.
	api.GET("/questionnaires/:id/form", h.RenderForm)
	api.POST("/questionnaires/:id/responses", h.Submit)
	api.PUT("/responses/:id", h.Resubmit)

	staff := api.Group("", auth.RequireRole("staff"))
	staff.GET("/responses", h.List)
	staff.GET("/responses/:id", h.Get)
	staff.DELETE("/responses/:id", h.Delete)
}

// mapPipelineError distinguishes a broken questionnaire structure (503: the
// resource exists but cannot serve submissions until repaired) from plain bad
// input.
func mapPipelineError(err error) error {
	var ge *questionnaire.GraphError
	if errors.As(err, &ge) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, ge.Error())
	}
	if errors.Is(err, ErrQuestionnaireNotOpen) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func (h *Handler) RenderForm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var responseID *uuid.UUID
	if rid := c.QueryParam("response_id"); rid != "" {
		parsed, err := uuid.Parse(rid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid response_id")
		}
		responseID = &parsed
	}

	fields, err := h.svc.RenderForm(c.Request().Context(), id, responseID)
	if err != nil {
		return mapPipelineError(err)
	}
	return c.JSON(http.StatusOK, fields)
}

func (h *Handler) submit(c echo.Context, questionnaireID uuid.UUID, responseID *uuid.UUID) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.ResponseID = responseID
	if ip := c.RealIP(); ip != "" {
		req.IPAddress = &ip
	}
	if ua := c.Request().UserAgent(); ua != "" {
		req.UserAgent = &ua
	}
	if req.Respondent == nil {
		if userID := auth.UserIDFromContext(c.Request().Context()); userID != "" {
			req.Respondent = &userID
		}
	}

	result, err := h.svc.Submit(c.Request().Context(), questionnaireID, req)
	if err != nil {
		return mapPipelineError(err)
	}
	if result.State == StateRejected {
		return c.JSON(http.StatusUnprocessableEntity, result)
	}
	status := http.StatusCreated
	if responseID != nil {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}

func (h *Handler) Submit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return h.submit(c, id, nil)
}

// Resubmit re-runs the pipeline against an existing response, replacing its
// answer set.
func (h *Handler) Resubmit(c echo.Context) error {
	responseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	existing, err := h.svc.repo.GetResponse(c.Request().Context(), responseID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "response not found")
	}
	return h.submit(c, existing.QuestionnaireID, &responseID)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	detail, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "response not found")
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	filters := map[string]string{}
	for _, key := range []string{"questionnaire_id", "patient_id", "is_complete"} {
		if v := c.QueryParam(key); v != "" {
			filters[key] = v
		}
	}
	items, total, err := h.svc.List(c.Request().Context(), filters, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
