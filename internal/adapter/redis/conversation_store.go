package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/metrics"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/crypto"
)

const (
	// DefaultMaxRetries bounds optimistic retries of one Update.
	DefaultMaxRetries = 10

	conversationKeyPrefix = "conversation:"
	scanCount             = 100
)

// ErrTooManyConflicts is returned when an Update keeps losing the WATCH race.
var ErrTooManyConflicts = errors.New("conversation update: too many concurrent writers")

// ConversationStore keeps conversation state in Redis as JSON, optionally
// encrypted. Update is optimistic: WATCH the key, run fn, commit in MULTI
// and retry when another writer got there first.
type ConversationStore struct {
	rdb        *goredis.Client
	cipher     crypto.Cipher
	ttl        time.Duration
	maxRetries int
	metrics    *metrics.StoreMetrics
}

var _ domain.ConversationStore = (*ConversationStore)(nil)

// NewConversationStore creates a store. cipher may be nil for plaintext and
// m may be nil to disable metrics.
func NewConversationStore(rdb *goredis.Client, cipher crypto.Cipher, ttl time.Duration, m *metrics.StoreMetrics) *ConversationStore {
	if cipher == nil {
		cipher = crypto.NoopCipher{}
	}
	return &ConversationStore{
		rdb:        rdb,
		cipher:     cipher,
		ttl:        ttl,
		maxRetries: DefaultMaxRetries,
		metrics:    m,
	}
}

func (s *ConversationStore) Get(ctx context.Context, userID string) (domain.ConversationState, bool, error) {
	start := time.Now()
	state, ok, err := s.load(ctx, s.rdb, userID)
	s.observe("get", start, err)
	if err != nil {
		return domain.ConversationState{UserID: userID}, false, err
	}
	return state, ok, nil
}

// fnError marks an error returned by the caller's mutation so it is not
// mistaken for a transaction failure.
type fnError struct{ err error }

func (e *fnError) Error() string { return e.err.Error() }
func (e *fnError) Unwrap() error { return e.err }

func (s *ConversationStore) Update(ctx context.Context, userID string, fn func(*domain.ConversationState) error) (domain.ConversationState, error) {
	if userID == "" {
		return domain.ConversationState{}, domain.ErrUserIDRequired
	}

	start := time.Now()
	key := conversationKey(userID)

	var committed domain.ConversationState
	txf := func(tx *goredis.Tx) error {
		state, _, err := s.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(&state); err != nil {
			return &fnError{err: err}
		}

		payload, err := s.encode(state)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		committed = state
		return nil
	}

	for range s.maxRetries {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			s.observe("update", start, nil)
			return committed, nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			if s.metrics != nil {
				s.metrics.Conflicts.Inc()
			}
			continue
		}

		var fe *fnError
		if errors.As(err, &fe) {
			s.observe("update", start, nil)
			return domain.ConversationState{}, fe.err
		}
		s.observe("update", start, err)
		return domain.ConversationState{}, fmt.Errorf("failed to update conversation: %w", err)
	}

	s.observe("update", start, ErrTooManyConflicts)
	return domain.ConversationState{}, ErrTooManyConflicts
}

func (s *ConversationStore) Delete(ctx context.Context, userID string) error {
	start := time.Now()
	err := s.rdb.Del(ctx, conversationKey(userID)).Err()
	s.observe("delete", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// ForEachUser calls fn for every user with stored conversation state. Keys
// written or removed during the scan may or may not be visited.
func (s *ConversationStore) ForEachUser(ctx context.Context, fn func(userID string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, conversationKeyPrefix+"*", scanCount).Result()
		if err != nil {
			return fmt.Errorf("failed to scan conversations: %w", err)
		}
		for _, key := range keys {
			if err := fn(strings.TrimPrefix(key, conversationKeyPrefix)); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *ConversationStore) load(ctx context.Context, c goredis.Cmdable, userID string) (domain.ConversationState, bool, error) {
	raw, err := c.Get(ctx, conversationKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.ConversationState{UserID: userID}, false, nil
	}
	if err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("failed to load conversation: %w", err)
	}

	plain, err := s.cipher.Decrypt(raw)
	if err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("failed to decrypt conversation: %w", err)
	}
	var state domain.ConversationState
	if err := json.Unmarshal(plain, &state); err != nil {
		return domain.ConversationState{}, false, fmt.Errorf("failed to decode conversation: %w", err)
	}
	state.UserID = userID
	return state, true, nil
}

func (s *ConversationStore) encode(state domain.ConversationState) ([]byte, error) {
	plain, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation: %w", err)
	}
	sealed, err := s.cipher.Encrypt(plain)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt conversation: %w", err)
	}
	return sealed, nil
}

func (s *ConversationStore) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	s.metrics.OperationDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}

func conversationKey(userID string) string {
	return conversationKeyPrefix + userID
}
