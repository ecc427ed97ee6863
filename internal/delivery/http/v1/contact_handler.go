package v1

import (
	"errors"
	"net/http"

	"contact-form-service/internal/delivery/http/middleware"
	"contact-form-service/internal/delivery/http/response"
	"contact-form-service/internal/domain"
	"contact-form-service/pkg/apperror"
	"contact-form-service/pkg/validation"

	"github.com/gin-gonic/gin"
)

// ContactRequest is a whole form sent at once
type ContactRequest struct {
	FirstName string `json:"firstName" binding:"max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
	Email     string `json:"email" binding:"max=254"`
	QueryType string `json:"queryType" binding:"query_type"`
	Msg       string `json:"msg" binding:"max=5000"`
	Consent   bool   `json:"consent"`
}

// Actions converts the request into one update per field followed by a submit
func (r ContactRequest) Actions() []domain.Action {
	return []domain.Action{
		domain.SetTextField{Field: domain.FieldFirstName, Value: r.FirstName},
		domain.SetTextField{Field: domain.FieldLastName, Value: r.LastName},
		domain.SetTextField{Field: domain.FieldEmail, Value: r.Email},
		domain.SetTextField{Field: domain.FieldQueryType, Value: r.QueryType},
		domain.SetTextField{Field: domain.FieldMsg, Value: r.Msg},
		domain.SetConsent{Value: r.Consent},
		domain.Submit{},
	}
}

type fieldURI struct {
	Field string `uri:"field" binding:"required,form_field"`
}

// FieldUpdateRequest changes one field. Text fields use Value, consent uses Checked.
type FieldUpdateRequest struct {
	Value   string `json:"value" binding:"max=5000"`
	Checked bool   `json:"checked"`
}

// StateResponse is the JSON view of a form state
type StateResponse struct {
	Data           domain.FormData  `json:"data"`
	Phase          domain.FormPhase `json:"phase"`
	Errors         domain.ErrorMap  `json:"errors"`
	SuccessMessage string           `json:"successMessage"`
}

func NewStateResponse(s domain.FormState) StateResponse {
	errs := s.Errors
	if errs == nil {
		errs = domain.ErrorMap{}
	}
	return StateResponse{
		Data:           s.Data,
		Phase:          s.Phase,
		Errors:         errs,
		SuccessMessage: s.SuccessMessage(),
	}
}

type ContactHandler struct {
	contactUC domain.ContactUsecase
}

// NewContactHandler registers the contact routes. writes wraps the
// state-changing routes, typically with the rate limiter.
func NewContactHandler(public *gin.RouterGroup, contactUC domain.ContactUsecase, writes ...gin.HandlerFunc) {
	handler := &ContactHandler{
		contactUC: contactUC,
	}

	contact := public.Group("/contact")
	contact.GET("", handler.GetState)

	mutating := contact.Group("", writes...)
	mutating.POST("", handler.SubmitContact)
	mutating.PUT("/fields/:field", handler.UpdateField)
	mutating.POST("/submit", handler.Submit)
	mutating.DELETE("", handler.Reset)
}

// GetState returns the session's form state
func (h *ContactHandler) GetState(c *gin.Context) {
	state, err := h.contactUC.State(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		c.Error(apperror.ServiceUnavailable("Contact form temporarily unavailable", err))
		return
	}
	response.Success(c, http.StatusOK, "Form state", NewStateResponse(state))
}

// SubmitContact replaces every field with the request body and submits
func (h *ContactHandler) SubmitContact(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("Invalid contact form payload").WithDetails(validation.FormatValidationErrors(err)))
		return
	}

	h.applyAndSubmit(c, req.Actions()...)
}

// Submit validates the fields stored so far
func (h *ContactHandler) Submit(c *gin.Context) {
	h.applyAndSubmit(c, domain.Submit{})
}

// UpdateField replaces a single field of the session's form
func (h *ContactHandler) UpdateField(c *gin.Context) {
	var uri fieldURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.Error(apperror.NotFound("Unknown form field"))
		return
	}
	field := domain.Field(uri.Field)

	var req FieldUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("Invalid field payload").WithDetails(validation.FormatValidationErrors(err)))
		return
	}

	action, err := fieldAction(field, req)
	if err != nil {
		c.Error(apperror.BadRequest(err.Error()))
		return
	}

	state, err := h.contactUC.Apply(c.Request.Context(), middleware.SessionID(c), action)
	if err != nil {
		h.applyError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Field updated", NewStateResponse(state))
}

// Reset drops the session's form state
func (h *ContactHandler) Reset(c *gin.Context) {
	if err := h.contactUC.Reset(c.Request.Context(), middleware.SessionID(c)); err != nil {
		c.Error(apperror.ServiceUnavailable("Contact form temporarily unavailable", err))
		return
	}
	response.Success(c, http.StatusOK, "Form reset", NewStateResponse(domain.NewFormState()))
}

func (h *ContactHandler) applyAndSubmit(c *gin.Context, actions ...domain.Action) {
	state, err := h.contactUC.Apply(c.Request.Context(), middleware.SessionID(c), actions...)
	if err != nil {
		h.applyError(c, err)
		return
	}

	if state.Phase != domain.PhaseSuccess {
		response.Fail(c, http.StatusUnprocessableEntity, "Please correct the highlighted fields", NewStateResponse(state), state.Errors)
		return
	}
	response.Success(c, http.StatusOK, state.SuccessMessage(), NewStateResponse(state))
}

func (h *ContactHandler) applyError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrUnknownField) || errors.Is(err, domain.ErrUnknownAction) {
		c.Error(apperror.BadRequest(err.Error()))
		return
	}
	c.Error(apperror.ServiceUnavailable("Contact form temporarily unavailable", err))
}

// fieldAction maps a field update to its reducer action
func fieldAction(field domain.Field, req FieldUpdateRequest) (domain.Action, error) {
	if field == domain.FieldConsent {
		return domain.SetConsent{Value: req.Checked}, nil
	}
	if field == domain.FieldQueryType && req.Value != "" && !domain.IsQueryType(req.Value) {
		return nil, errUnknownQueryType
	}
	return domain.SetTextField{Field: field, Value: req.Value}, nil
}

var errUnknownQueryType = errors.New("queryType must be one of: " + domain.QueryTypeGeneral + ", " + domain.QueryTypeSupport)
