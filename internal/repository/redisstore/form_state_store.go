package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"contact-form-service/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

const (
	// DefaultKeyPrefix namespaces form state keys.
	DefaultKeyPrefix = "contact:form:"
	// maxUpdateRetries bounds optimistic transaction retries per update.
	maxUpdateRetries = 5
)

var ErrConflict = errors.New("form state changed concurrently")

// getter is satisfied by both *goredis.Client and *goredis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

// FormStateStore keeps form states as JSON strings in Redis.
type FormStateStore struct {
	client    *goredis.Client
	ttl       time.Duration
	keyPrefix string
}

// NewFormStateStore creates a Redis backed store. Keys expire ttl after
// their last update.
func NewFormStateStore(client *goredis.Client, ttl time.Duration) *FormStateStore {
	return &FormStateStore{
		client:    client,
		ttl:       ttl,
		keyPrefix: DefaultKeyPrefix,
	}
}

func (s *FormStateStore) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

func (s *FormStateStore) Get(ctx context.Context, sessionID string) (domain.FormState, bool, error) {
	return s.get(ctx, s.client, s.key(sessionID))
}

// Update runs fn inside a WATCH/MULTI transaction and retries on conflict.
func (s *FormStateStore) Update(ctx context.Context, sessionID string, fn func(domain.FormState) (domain.FormState, error)) (domain.FormState, error) {
	key := s.key(sessionID)
	var next domain.FormState

	txf := func(tx *goredis.Tx) error {
		current, ok, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}
		if !ok {
			current = domain.NewFormState()
		}

		next, err = fn(current)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("redis: encode form state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return domain.FormState{}, err
	}
	return domain.FormState{}, ErrConflict
}

func (s *FormStateStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis: delete form state: %w", err)
	}
	return nil
}

func (s *FormStateStore) get(ctx context.Context, c getter, key string) (domain.FormState, bool, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.FormState{}, false, nil
	}
	if err != nil {
		return domain.FormState{}, false, fmt.Errorf("redis: get form state: %w", err)
	}

	var st domain.FormState
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.FormState{}, false, fmt.Errorf("redis: decode form state: %w", err)
	}
	return st, true, nil
}
