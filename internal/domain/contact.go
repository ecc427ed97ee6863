package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Field names a contact form field. Values match the JSON and HTML names.
type Field string

const (
	FieldFirstName Field = "firstName"
	FieldLastName  Field = "lastName"
	FieldEmail     Field = "email"
	FieldQueryType Field = "queryType"
	FieldMsg       Field = "msg"
	FieldConsent   Field = "consent"
)

// Fields lists every form field in display order.
var Fields = []Field{
	FieldFirstName,
	FieldLastName,
	FieldEmail,
	FieldQueryType,
	FieldMsg,
	FieldConsent,
}

// TextFields lists the fields holding free text, in validation order.
var TextFields = []Field{
	FieldFirstName,
	FieldLastName,
	FieldEmail,
	FieldQueryType,
	FieldMsg,
}

// ParseField returns the Field named s.
func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Query types offered by the form.
const (
	QueryTypeGeneral = "General Enquiry"
	QueryTypeSupport = "Support Request"
)

// QueryTypes lists the accepted query types in display order.
var QueryTypes = []string{QueryTypeGeneral, QueryTypeSupport}

// IsQueryType reports whether s is one of QueryTypes.
func IsQueryType(s string) bool {
	for _, q := range QueryTypes {
		if q == s {
			return true
		}
	}
	return false
}

// User facing messages.
const (
	MsgInvalidEmail   = "Please enter a valid email address"
	MsgConsent        = "To submit this form, please consent to being contacted."
	MsgSubmitted      = "Form submitted successfully!"
	requiredMsgSuffix = " is required"
)

// RequiredMessage returns the message recorded for an empty required field.
func RequiredMessage(f Field) string {
	return string(f) + requiredMsgSuffix
}

var (
	ErrUnknownField  = errors.New("unknown form field")
	ErrUnknownAction = errors.New("unknown form action")
)

// FormData holds the values entered by the user.
type FormData struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	QueryType string `json:"queryType"`
	Msg       string `json:"msg"`
	Consent   bool   `json:"consent"`
}

// Get returns the value of a text field.
func (d FormData) Get(f Field) (string, bool) {
	switch f {
	case FieldFirstName:
		return d.FirstName, true
	case FieldLastName:
		return d.LastName, true
	case FieldEmail:
		return d.Email, true
	case FieldQueryType:
		return d.QueryType, true
	case FieldMsg:
		return d.Msg, true
	}
	return "", false
}

// SetText replaces one text field and leaves the others untouched.
// The value is stored as given.
func (d *FormData) SetText(f Field, value string) error {
	switch f {
	case FieldFirstName:
		d.FirstName = value
	case FieldLastName:
		d.LastName = value
	case FieldEmail:
		d.Email = value
	case FieldQueryType:
		d.QueryType = value
	case FieldMsg:
		d.Msg = value
	default:
		return fmt.Errorf("%w: %q is not a text field", ErrUnknownField, string(f))
	}
	return nil
}

// SetConsent replaces the consent flag.
func (d *FormData) SetConsent(v bool) {
	d.Consent = v
}

// ErrorMap maps invalid fields to their message. Valid fields have no key.
type ErrorMap map[Field]string

// Clone returns a copy of m. A nil map clones to nil.
func (m ErrorMap) Clone() ErrorMap {
	if m == nil {
		return nil
	}
	out := make(ErrorMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FormPhase is the visible phase of the form.
type FormPhase string

const (
	PhaseEditing FormPhase = "editing"
	PhaseSuccess FormPhase = "success"
)

// FormState is everything needed to render one form.
// Errors is only populated while Phase is PhaseEditing.
type FormState struct {
	Data   FormData  `json:"data"`
	Phase  FormPhase `json:"phase"`
	Errors ErrorMap  `json:"errors,omitempty"`
}

// NewFormState returns the state of a form nobody has touched yet.
func NewFormState() FormState {
	return FormState{Phase: PhaseEditing}
}

// SuccessMessage returns the confirmation text, or "" outside the success phase.
func (s FormState) SuccessMessage() string {
	if s.Phase == PhaseSuccess {
		return MsgSubmitted
	}
	return ""
}

// ErrorFor returns the message for f, or "" if f is valid.
func (s FormState) ErrorFor(f Field) string {
	return s.Errors[f]
}

// HasError reports whether f is currently flagged.
func (s FormState) HasError(f Field) bool {
	_, ok := s.Errors[f]
	return ok
}

// Action is an input event for the form reducer.
type Action interface {
	action()
}

// SetTextField replaces the value of a text field.
type SetTextField struct {
	Field Field
	Value string
}

// SetConsent replaces the consent flag.
type SetConsent struct {
	Value bool
}

// Submit validates the form and moves it to its next phase.
type Submit struct{}

func (SetTextField) action() {}
func (SetConsent) action()   {}
func (Submit) action()       {}

// Submission is a form accepted by a successful submit.
type Submission struct {
	SessionID   string    `json:"session_id"`
	Data        FormData  `json:"data"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// FormStateStore keeps one FormState per session.
type FormStateStore interface {
	// Get returns the stored state and whether it exists.
	Get(ctx context.Context, sessionID string) (FormState, bool, error)
	// Update loads the state (zero state if missing), applies fn and saves
	// the result atomically with respect to other updates of the session.
	Update(ctx context.Context, sessionID string, fn func(FormState) (FormState, error)) (FormState, error)
	Delete(ctx context.Context, sessionID string) error
}

// SubmissionNotifier receives accepted submissions.
type SubmissionNotifier interface {
	Notify(ctx context.Context, sub Submission) error
}

// ContactUsecase drives the contact form for a session.
type ContactUsecase interface {
	// State returns the current form state of the session.
	State(ctx context.Context, sessionID string) (FormState, error)
	// Apply reduces the actions in order and returns the resulting state.
	Apply(ctx context.Context, sessionID string, actions ...Action) (FormState, error)
	// Reset forgets the session's form.
	Reset(ctx context.Context, sessionID string) error
}
