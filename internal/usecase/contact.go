package usecase

import (
	"context"
	"fmt"
	"time"

	"contact-form-service/internal/domain"
	"contact-form-service/internal/metrics"
	"contact-form-service/pkg/logger"
	"contact-form-service/pkg/security"
)

type contactUsecase struct {
	store    domain.FormStateStore
	notifier domain.SubmissionNotifier
	now      func() time.Time
}

// NewContactUsecase creates a new contact usecase. A nil notifier only logs
// accepted submissions.
func NewContactUsecase(store domain.FormStateStore, notifier domain.SubmissionNotifier) domain.ContactUsecase {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &contactUsecase{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// State returns the session's form, or a fresh one if none is stored
func (uc *contactUsecase) State(ctx context.Context, sessionID string) (domain.FormState, error) {
	s, ok, err := uc.store.Get(ctx, sessionID)
	if err != nil {
		return domain.FormState{}, fmt.Errorf("failed to load form state: %w", err)
	}
	if !ok {
		return domain.NewFormState(), nil
	}
	return s, nil
}

// Apply reduces the actions against the stored state in one store update
func (uc *contactUsecase) Apply(ctx context.Context, sessionID string, actions ...domain.Action) (domain.FormState, error) {
	var accepted []domain.FormData

	next, err := uc.store.Update(ctx, sessionID, func(s domain.FormState) (domain.FormState, error) {
		// Update may retry fn, so only the last run counts.
		accepted = accepted[:0]
		return ReduceAll(s, func(a domain.Action, prev, next domain.FormState) {
			if Accepted(a, next) {
				accepted = append(accepted, prev.Data)
			}
		}, actions...)
	})
	if err != nil {
		return domain.FormState{}, err
	}

	recordActions(actions, next, len(accepted))

	for _, data := range accepted {
		sub := domain.Submission{
			SessionID:   sessionID,
			Data:        data,
			SubmittedAt: uc.now().UTC(),
		}
		// Delivery is outside the form flow; the user still sees success.
		if err := uc.notifier.Notify(ctx, sub); err != nil {
			metrics.NotifyErrorsTotal.Inc()
			logger.Log.Error("Failed to deliver contact submission",
				"session_id", sessionID,
				"request_id", requestID(ctx),
				"error", err,
			)
		}
	}

	return next, nil
}

// Reset forgets the session's form
func (uc *contactUsecase) Reset(ctx context.Context, sessionID string) error {
	if err := uc.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to reset form state: %w", err)
	}
	return nil
}

func recordActions(actions []domain.Action, final domain.FormState, successes int) {
	for _, a := range actions {
		switch act := a.(type) {
		case domain.SetTextField:
			metrics.FieldUpdatesTotal.WithLabelValues(string(act.Field)).Inc()
		case domain.SetConsent:
			metrics.FieldUpdatesTotal.WithLabelValues(string(domain.FieldConsent)).Inc()
		}
	}

	submits := 0
	for _, a := range actions {
		if _, ok := a.(domain.Submit); ok {
			submits++
		}
	}
	if successes > 0 {
		metrics.SubmitAttemptsTotal.WithLabelValues(metrics.OutcomeSuccess).Add(float64(successes))
	}
	if failed := submits - successes; failed > 0 {
		metrics.SubmitAttemptsTotal.WithLabelValues(metrics.OutcomeInvalid).Add(float64(failed))
		for f := range final.Errors {
			metrics.FieldErrorsTotal.WithLabelValues(string(f)).Inc()
		}
	}
}

// LogNotifier accepts submissions by logging them. No data leaves the process.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, sub domain.Submission) error {
	logger.Log.Info("Contact form submitted",
		"session_id", sub.SessionID,
		"request_id", requestID(ctx),
		"query_type", sub.Data.QueryType,
		"email", security.MaskEmail(sub.Data.Email),
		"submitted_at", sub.SubmittedAt,
	)
	return nil
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(domain.KeyRequestID).(string)
	return id
}
