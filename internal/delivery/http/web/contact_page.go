// Package web serves the server rendered contact page. Requests sent by
// htmx (HX-Request header) receive only the form fragment.
package web

import (
	"embed"
	"html/template"
	"net/http"

	"contact-form-service/internal/delivery/http/middleware"
	"contact-form-service/internal/delivery/http/response"
	"contact-form-service/internal/domain"
	"contact-form-service/pkg/security"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates parses the embedded page templates.
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templatesFS, "templates/*.html"))
}

const (
	pageTemplate     = "contact_page"
	fragmentTemplate = "contact_form"

	msgUnknownQueryType = "Please select one of the listed query types"

	// HTMXScript is loaded by the page; the security headers allow its origin.
	HTMXScript = "https://unpkg.com/htmx.org@1.9.12/dist/htmx.min.js"
)

var fieldLabels = map[domain.Field]string{
	domain.FieldFirstName: "First Name",
	domain.FieldLastName:  "Last Name",
	domain.FieldEmail:     "Email Address",
	domain.FieldQueryType: "Query Type",
	domain.FieldMsg:       "Message",
	domain.FieldConsent:   "Consent",
}

type fieldView struct {
	Name    string
	Label   string
	Value   string
	Error   string
	Invalid bool
}

type optionView struct {
	Value   string
	Checked bool
}

type pageView struct {
	HTMXScript     string
	Success        string
	CSRFToken      string
	FirstName      fieldView
	LastName       fieldView
	Email          fieldView
	Msg            fieldView
	QueryTypes     []optionView
	QueryTypeError string
	Consent        bool
	ConsentError   string
}

func newPageView(s domain.FormState, csrfToken string) pageView {
	text := func(f domain.Field) fieldView {
		v, _ := s.Data.Get(f)
		return fieldView{
			Name:    string(f),
			Label:   fieldLabels[f],
			Value:   v,
			Error:   s.ErrorFor(f),
			Invalid: s.HasError(f),
		}
	}

	options := make([]optionView, 0, len(domain.QueryTypes))
	for _, q := range domain.QueryTypes {
		options = append(options, optionView{Value: q, Checked: s.Data.QueryType == q})
	}

	return pageView{
		HTMXScript:     HTMXScript,
		Success:        s.SuccessMessage(),
		CSRFToken:      csrfToken,
		FirstName:      text(domain.FieldFirstName),
		LastName:       text(domain.FieldLastName),
		Email:          text(domain.FieldEmail),
		Msg:            text(domain.FieldMsg),
		QueryTypes:     options,
		QueryTypeError: s.ErrorFor(domain.FieldQueryType),
		Consent:        s.Data.Consent,
		ConsentError:   s.ErrorFor(domain.FieldConsent),
	}
}

type ContactPageHandler struct {
	contactUC domain.ContactUsecase
}

// NewContactPageHandler registers the HTML contact routes
func NewContactPageHandler(public *gin.RouterGroup, contactUC domain.ContactUsecase, writes ...gin.HandlerFunc) {
	handler := &ContactPageHandler{contactUC: contactUC}

	public.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, "/contact")
	})
	public.GET("/contact", handler.Show)

	mutating := public.Group("/contact", writes...)
	mutating.POST("", handler.Submit)
	mutating.POST("/fields/:field", handler.UpdateField)
}

// Show renders the session's form
func (h *ContactPageHandler) Show(c *gin.Context) {
	state, err := h.contactUC.State(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		h.unavailable(c, err)
		return
	}
	h.render(c, http.StatusOK, state)
}

// Submit takes every field from the posted form and submits. The browser
// posts the whole form, so a missing text field means an empty one and a
// missing checkbox means no consent.
func (h *ContactPageHandler) Submit(c *gin.Context) {
	queryType := c.PostForm(string(domain.FieldQueryType))
	if queryType != "" && !domain.IsQueryType(queryType) {
		h.rejectQueryType(c)
		return
	}

	actions := make([]domain.Action, 0, len(domain.Fields)+1)
	for _, f := range domain.TextFields {
		actions = append(actions, domain.SetTextField{Field: f, Value: c.PostForm(string(f))})
	}
	actions = append(actions,
		domain.SetConsent{Value: c.PostForm(string(domain.FieldConsent)) != ""},
		domain.Submit{},
	)

	state, err := h.contactUC.Apply(c.Request.Context(), middleware.SessionID(c), actions...)
	if err != nil {
		h.unavailable(c, err)
		return
	}

	status := http.StatusOK
	if state.Phase != domain.PhaseSuccess {
		status = http.StatusUnprocessableEntity
	}
	h.render(c, status, state)
}

// UpdateField stores one field when its input changes. htmx posts the
// whole enclosing form, so the field's own input is read when no explicit
// value (or checked, for consent) is sent.
func (h *ContactPageHandler) UpdateField(c *gin.Context) {
	field, err := domain.ParseField(c.Param("field"))
	if err != nil {
		c.String(http.StatusNotFound, "Unknown form field")
		return
	}

	var action domain.Action
	switch field {
	case domain.FieldConsent:
		checked := c.PostForm("checked") != "" || c.PostForm(string(domain.FieldConsent)) != ""
		action = domain.SetConsent{Value: checked}
	default:
		value, ok := c.GetPostForm("value")
		if !ok {
			value = c.PostForm(string(field))
		}
		if field == domain.FieldQueryType && value != "" && !domain.IsQueryType(value) {
			h.rejectQueryType(c)
			return
		}
		action = domain.SetTextField{Field: field, Value: value}
	}

	state, err := h.contactUC.Apply(c.Request.Context(), middleware.SessionID(c), action)
	if err != nil {
		h.unavailable(c, err)
		return
	}

	if !isHTMX(c) {
		c.Redirect(http.StatusSeeOther, "/contact")
		return
	}
	h.render(c, http.StatusOK, state)
}

func (h *ContactPageHandler) render(c *gin.Context, status int, state domain.FormState) {
	view := newPageView(state, c.GetString(middleware.CSRFTokenContextKey))
	if isHTMX(c) {
		c.HTML(status, fragmentTemplate, view)
		return
	}
	c.HTML(status, pageTemplate, view)
}

// rejectQueryType re-renders the stored form with a query type error. The
// posted values are not applied.
func (h *ContactPageHandler) rejectQueryType(c *gin.Context) {
	logSuspicious(c, domain.FieldQueryType)

	state, err := h.contactUC.State(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		h.unavailable(c, err)
		return
	}
	state.Phase = domain.PhaseEditing
	state.Errors = state.Errors.Clone()
	if state.Errors == nil {
		state.Errors = domain.ErrorMap{}
	}
	state.Errors[domain.FieldQueryType] = msgUnknownQueryType
	h.render(c, http.StatusBadRequest, state)
}

func (h *ContactPageHandler) unavailable(c *gin.Context, err error) {
	c.Error(err)
	c.String(http.StatusServiceUnavailable, "The contact form is temporarily unavailable. Please try again later.")
}

// isHTMX reports whether the request was issued by htmx
func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// logSuspicious records a value the rendered radio buttons cannot send
func logSuspicious(c *gin.Context, field domain.Field) {
	security.DefaultLogger().LogSuspiciousInput(
		c.Request.Context(),
		middleware.SessionID(c),
		c.ClientIP(),
		c.GetString(response.RequestIDKey),
		string(field),
	)
}
