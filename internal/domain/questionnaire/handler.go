package questionnaire

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	staff := api.Group("", auth.RequireRole("staff"))

	staff.POST("/questionnaires", h.Create)
	staff.GET("/questionnaires", h.List)
	staff.GET("/questionnaires/:id", h.Get)
	staff.PUT("/questionnaires/:id", h.Update)
	staff.DELETE("/questionnaires/:id", h.Delete)
	staff.POST("/questionnaires/:id/activate", h.Activate)
	staff.POST("/questionnaires/:id/archive", h.Archive)

	staff.GET("/questionnaires/:id/questions", h.ListQuestions)
	staff.POST("/questionnaires/:id/questions", h.AddQuestion)
	staff.PUT("/questionnaires/:id/questions/reorder", h.ReorderQuestions)
	staff.GET("/questions/:id", h.GetQuestion)
	staff.PUT("/questions/:id", h.UpdateQuestion)
	staff.DELETE("/questions/:id", h.DeleteQuestion)

	staff.GET("/questions/:id/options", h.ListOptions)
	staff.POST("/questions/:id/options", h.AddOption)
	staff.PUT("/options/:id", h.UpdateOption)
	staff.DELETE("/options/:id", h.DeleteOption)
}

// graphHTTPError maps a broken-forest error to 422 so clients can tell a
// structural defect apart from a plain bad request.
func graphHTTPError(err error) error {
	var ge *GraphError
	if errors.As(err, &ge) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, ge.Error())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

// -- Questionnaires --

type questionnaireRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
	Version     string `json:"version" validate:"omitempty,max=20"`
	Status      string `json:"status" validate:"omitempty,oneof=draft active archived"`
	Type        string `json:"questionnaire_type" validate:"omitempty,oneof=screening assessment follow_up custom"`
}

func (h *Handler) Create(c echo.Context) error {
	var req questionnaireRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	q := &Questionnaire{
		Title:       req.Title,
		Description: req.Description,
		Version:     req.Version,
		Status:      req.Status,
		Type:        req.Type,
	}
	if userID := auth.UserIDFromContext(c.Request().Context()); userID != "" {
		q.CreatedBy = &userID
	}
	if err := h.svc.Create(c.Request().Context(), q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, q)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	q, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "questionnaire not found")
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	filters := map[string]string{}
	if s := c.QueryParam("status"); s != "" {
		filters["status"] = s
	}
	if t := c.QueryParam("questionnaire_type"); t != "" {
		filters["questionnaire_type"] = t
	}
	items, total, err := h.svc.List(c.Request().Context(), filters, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	existing, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "questionnaire not found")
	}

	var req questionnaireRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	existing.Title = req.Title
	existing.Description = req.Description
	if req.Version != "" {
		existing.Version = req.Version
	}
	if req.Status != "" {
		existing.Status = req.Status
	}
	if req.Type != "" {
		existing.Type = req.Type
	}
	if err := h.svc.Update(c.Request().Context(), existing); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, existing)
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

func (h *Handler) Activate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	q, err := h.svc.Activate(c.Request().Context(), id)
	if err != nil {
		return graphHTTPError(err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) Archive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	q, err := h.svc.Archive(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, q)
}

// -- Questions --

type questionRequest struct {
	Text         string     `json:"question_text" validate:"required"`
	HelpText     string     `json:"help_text"`
	Kind         string     `json:"question_type" validate:"required,oneof=yes_no true_false multiple_choice short_answer attachment"`
	IsRequired   bool       `json:"is_required"`
	Order        int        `json:"display_order" validate:"omitempty,min=0"`
	ParentID     *uuid.UUID `json:"parent_id"`
	TriggerValue *string    `json:"trigger_value"`
}

// questionNode is the rendered forest entry: the question with its display
// number, its declared options, and its dependents nested beneath it.
type questionNode struct {
	*Question
	DisplayNumber string            `json:"display_number"`
	Options       []*QuestionOption `json:"options,omitempty"`
	Children      []*questionNode   `json:"children,omitempty"`
}

func (h *Handler) ListQuestions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	g, err := h.svc.Forest(c.Request().Context(), id)
	if err != nil {
		return graphHTTPError(err)
	}
	options, err := h.svc.Options(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	numbers := g.DisplayNumbers()
	var build func(q *Question) *questionNode
	build = func(q *Question) *questionNode {
		node := &questionNode{
			Question:      q,
			DisplayNumber: numbers[q.ID],
			Options:       options[q.ID],
		}
		for _, child := range g.Children(q.ID) {
			node.Children = append(node.Children, build(child))
		}
		return node
	}
	forest := make([]*questionNode, 0, len(g.Roots()))
	for _, root := range g.Roots() {
		forest = append(forest, build(root))
	}
	return c.JSON(http.StatusOK, forest)
}

func (h *Handler) AddQuestion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req questionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	q := &Question{
		QuestionnaireID: id,
		Text:            req.Text,
		HelpText:        req.HelpText,
		Kind:            req.Kind,
		IsRequired:      req.IsRequired,
		Order:           req.Order,
		ParentID:        req.ParentID,
		TriggerValue:    req.TriggerValue,
	}
	if err := h.svc.AddQuestion(c.Request().Context(), q); err != nil {
		return graphHTTPError(err)
	}
	return c.JSON(http.StatusCreated, q)
}

func (h *Handler) GetQuestion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	q, err := h.svc.GetQuestion(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "question not found")
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) UpdateQuestion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	existing, err := h.svc.GetQuestion(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "question not found")
	}

	var req questionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	existing.Text = req.Text
	existing.HelpText = req.HelpText
	existing.Kind = req.Kind
	existing.IsRequired = req.IsRequired
	if req.Order != 0 {
		existing.Order = req.Order
	}
	existing.ParentID = req.ParentID
	existing.TriggerValue = req.TriggerValue

	if err := h.svc.UpdateQuestion(c.Request().Context(), existing); err != nil {
		return graphHTTPError(err)
	}
	return c.JSON(http.StatusOK, existing)
}

func (h *Handler) DeleteQuestion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteQuestion(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "question not found")
	}
	return c.NoContent(http.StatusNoContent)
}

type reorderRequest struct {
	QuestionIDs []uuid.UUID `json:"question_ids" validate:"required,min=1"`
}

func (h *Handler) ReorderQuestions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.svc.ReorderQuestions(c.Request().Context(), id, req.QuestionIDs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Options --

type optionRequest struct {
	Text     string  `json:"option_text" validate:"required"`
	Value    string  `json:"option_value"`
	ImageURL *string `json:"image_url" validate:"omitempty,url"`
	Order    int     `json:"display_order" validate:"omitempty,min=0"`
}

func (h *Handler) ListOptions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	options, err := h.svc.ListOptions(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, options)
}

func (h *Handler) AddOption(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req optionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	o := &QuestionOption{
		QuestionID: id,
		Text:       req.Text,
		Value:      req.Value,
		ImageURL:   req.ImageURL,
		Order:      req.Order,
	}
	if err := h.svc.AddOption(c.Request().Context(), o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) UpdateOption(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	existing, err := h.svc.GetOption(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "option not found")
	}

	var req optionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	existing.Text = req.Text
	existing.Value = req.Value
	existing.ImageURL = req.ImageURL
	if req.Order != 0 {
		existing.Order = req.Order
	}
	if err := h.svc.UpdateOption(c.Request().Context(), existing); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, existing)
}

func (h *Handler) DeleteOption(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteOption(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "option not found")
	}
	return c.NoContent(http.StatusNoContent)
}
