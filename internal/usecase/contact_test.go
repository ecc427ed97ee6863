package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"contact-form-service/internal/domain"
	"contact-form-service/internal/repository/memory"
	"contact-form-service/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, sub domain.Submission) error {
	return m.Called(ctx, sub).Error(0)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, sessionID string) (domain.FormState, bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(domain.FormState), args.Bool(1), args.Error(2)
}

func (m *MockStore) Update(ctx context.Context, sessionID string, fn func(domain.FormState) (domain.FormState, error)) (domain.FormState, error) {
	args := m.Called(ctx, sessionID, fn)
	return args.Get(0).(domain.FormState), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func newStore(t *testing.T) *memory.FormStateStore {
	t.Helper()
	store := memory.NewFormStateStore(time.Hour, 0)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fillActions(d domain.FormData) []domain.Action {
	return []domain.Action{
		domain.SetTextField{Field: domain.FieldFirstName, Value: d.FirstName},
		domain.SetTextField{Field: domain.FieldLastName, Value: d.LastName},
		domain.SetTextField{Field: domain.FieldEmail, Value: d.Email},
		domain.SetTextField{Field: domain.FieldQueryType, Value: d.QueryType},
		domain.SetTextField{Field: domain.FieldMsg, Value: d.Msg},
		domain.SetConsent{Value: d.Consent},
	}
}

func TestContactUsecaseState(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewContactUsecase(newStore(t), nil)

	t.Run("Should start with a fresh form", func(t *testing.T) {
		s, err := uc.State(ctx, "unknown")
		require.NoError(t, err)
		assert.Equal(t, domain.NewFormState(), s)
	})

	t.Run("Should keep input between requests", func(t *testing.T) {
		_, err := uc.Apply(ctx, "s1", domain.SetTextField{Field: domain.FieldFirstName, Value: "Ann"})
		require.NoError(t, err)
		_, err = uc.Apply(ctx, "s1", domain.SetTextField{Field: domain.FieldLastName, Value: "Lee"})
		require.NoError(t, err)

		s, err := uc.State(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Ann", s.Data.FirstName)
		assert.Equal(t, "Lee", s.Data.LastName)
	})

	t.Run("Should isolate sessions", func(t *testing.T) {
		s, err := uc.State(ctx, "s2")
		require.NoError(t, err)
		assert.Empty(t, s.Data.FirstName)
	})

	t.Run("Should forget the form on reset", func(t *testing.T) {
		require.NoError(t, uc.Reset(ctx, "s1"))

		s, err := uc.State(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.NewFormState(), s)
	})
}

func TestContactUsecaseSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("Should notify once with the submitted data", func(t *testing.T) {
		notifier := new(MockNotifier)
		uc := usecase.NewContactUsecase(newStore(t), notifier)

		notifier.On("Notify", ctx, mock.MatchedBy(func(sub domain.Submission) bool {
			return sub.SessionID == "s1" && sub.Data == validData() && !sub.SubmittedAt.IsZero()
		})).Return(nil).Once()

		actions := append(fillActions(validData()), domain.Submit{})
		s, err := uc.Apply(ctx, "s1", actions...)
		require.NoError(t, err)

		assert.Equal(t, domain.PhaseSuccess, s.Phase)
		assert.Equal(t, domain.FormData{}, s.Data)
		notifier.AssertExpectations(t)

		stored, err := uc.State(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, s, stored)
	})

	t.Run("Should not notify on a failed submit", func(t *testing.T) {
		notifier := new(MockNotifier)
		uc := usecase.NewContactUsecase(newStore(t), notifier)

		data := validData()
		data.Email = "not-an-email"
		s, err := uc.Apply(ctx, "s1", append(fillActions(data), domain.Submit{})...)
		require.NoError(t, err)

		assert.Equal(t, domain.ErrorMap{domain.FieldEmail: domain.MsgInvalidEmail}, s.Errors)
		assert.Equal(t, data, s.Data)
		notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	})

	t.Run("Should report success even if delivery fails", func(t *testing.T) {
		notifier := new(MockNotifier)
		uc := usecase.NewContactUsecase(newStore(t), notifier)
		notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

		s, err := uc.Apply(ctx, "s1", append(fillActions(validData()), domain.Submit{})...)
		require.NoError(t, err)
		assert.Equal(t, "Form submitted successfully!", s.SuccessMessage())
		notifier.AssertExpectations(t)
	})

	t.Run("Should leave the stored state untouched on a bad action", func(t *testing.T) {
		uc := usecase.NewContactUsecase(newStore(t), nil)
		_, err := uc.Apply(ctx, "s1", domain.SetTextField{Field: domain.FieldFirstName, Value: "Ann"})
		require.NoError(t, err)

		_, err = uc.Apply(ctx, "s1",
			domain.SetTextField{Field: domain.FieldLastName, Value: "Lee"},
			domain.SetTextField{Field: "phone", Value: "123"},
		)
		assert.ErrorIs(t, err, domain.ErrUnknownField)

		s, err := uc.State(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Ann", s.Data.FirstName)
		assert.Empty(t, s.Data.LastName)
	})
}

func TestContactUsecaseStoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("store down")

	store := new(MockStore)
	store.On("Get", ctx, "s1").Return(domain.FormState{}, false, boom)
	store.On("Update", ctx, "s1", mock.Anything).Return(domain.FormState{}, boom)
	store.On("Delete", ctx, "s1").Return(boom)

	notifier := new(MockNotifier)
	uc := usecase.NewContactUsecase(store, notifier)

	_, err := uc.State(ctx, "s1")
	assert.ErrorIs(t, err, boom)

	_, err = uc.Apply(ctx, "s1", domain.Submit{})
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, uc.Reset(ctx, "s1"), boom)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}
