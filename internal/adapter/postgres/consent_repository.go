package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
)

const (
	getConsentSQL = `SELECT user_id, emotion_sensing, visual, audio, biometric,
       data_storage, data_sharing, anonymize, updated_at
FROM consents
WHERE user_id = $1`

	upsertConsentSQL = `INSERT INTO consents (user_id, emotion_sensing, visual, audio, biometric,
                      data_storage, data_sharing, anonymize, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (user_id) DO UPDATE SET
    emotion_sensing = EXCLUDED.emotion_sensing,
    visual          = EXCLUDED.visual,
    audio           = EXCLUDED.audio,
    biometric       = EXCLUDED.biometric,
    data_storage    = EXCLUDED.data_storage,
    data_sharing    = EXCLUDED.data_sharing,
    anonymize       = EXCLUDED.anonymize,
    updated_at      = EXCLUDED.updated_at`

	deleteConsentSQL = `DELETE FROM consents WHERE user_id = $1`
)

// ConsentRepo is the durable ConsentStore.
type ConsentRepo struct {
	pool *pgxpool.Pool
}

var _ domain.ConsentStore = (*ConsentRepo)(nil)

func NewConsentRepo(pool *pgxpool.Pool) *ConsentRepo {
	return &ConsentRepo{pool: pool}
}

func (r *ConsentRepo) Get(ctx context.Context, userID string) (domain.ConsentRecord, error) {
	var rec domain.ConsentRecord
	err := r.pool.QueryRow(ctx, getConsentSQL, userID).Scan(
		&rec.UserID,
		&rec.EmotionSensing,
		&rec.Visual,
		&rec.Audio,
		&rec.Biometric,
		&rec.DataStorage,
		&rec.DataSharing,
		&rec.Anonymize,
		&rec.LastUpdated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ConsentRecord{}, domain.ErrConsentNotFound
	}
	if err != nil {
		return domain.ConsentRecord{}, fmt.Errorf("failed to get consent: %w", err)
	}
	rec.LastUpdated = rec.LastUpdated.UTC()
	return rec, nil
}

func (r *ConsentRepo) Put(ctx context.Context, rec domain.ConsentRecord) error {
	_, err := r.pool.Exec(ctx, upsertConsentSQL,
		rec.UserID,
		rec.EmotionSensing,
		rec.Visual,
		rec.Audio,
		rec.Biometric,
		rec.DataStorage,
		rec.DataSharing,
		rec.Anonymize,
		rec.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert consent: %w", err)
	}
	return nil
}

// Delete is idempotent: deleting an unknown user is not an error.
func (r *ConsentRepo) Delete(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, deleteConsentSQL, userID); err != nil {
		return fmt.Errorf("failed to delete consent: %w", err)
	}
	return nil
}
