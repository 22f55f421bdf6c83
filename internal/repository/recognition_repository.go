package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/peerpoints/peerpoints/internal/database"
	"github.com/peerpoints/peerpoints/internal/model"
)

// RecognitionRepository handles recognition, reward and redemption
// persistence. Balance movements run inside a transaction so a recognition
// or redemption can never half-apply.
type RecognitionRepository struct {
	db *database.Postgres
}

// NewRecognitionRepository creates a new RecognitionRepository
func NewRecognitionRepository(db *database.Postgres) *RecognitionRepository {
	return &RecognitionRepository{db: db}
}

// CreateRecognition inserts the recognition and moves coins to points
// atomically: the giver's coin balance decreases, the recipient's point
// balance increases by the same amount.
func (r *RecognitionRepository) CreateRecognition(ctx context.Context, rec *model.Recognition) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET coins = coins - $1, updated_at = now()
		 WHERE id = $2 AND coins >= $1 AND deleted_at IS NULL`,
		rec.Coins, rec.FromUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to debit coins: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrInsufficientBalance
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE users SET points = points + $1, updated_at = now()
		 WHERE id = $2 AND deleted_at IS NULL`,
		rec.Coins, rec.ToUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to credit points: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO recognitions (id, from_user_id, to_user_id, coins, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.FromUserID, rec.ToUserID, rec.Coins, rec.Message, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert recognition: %w", err)
	}

	return tx.Commit()
}

// ListRecent returns the most recent recognitions, newest first.
func (r *RecognitionRepository) ListRecent(ctx context.Context, limit int) ([]*model.Recognition, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, from_user_id, to_user_id, coins, message, created_at
		 FROM recognitions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recognitions: %w", err)
	}
	defer rows.Close()

	var out []*model.Recognition
	for rows.Next() {
		var rec model.Recognition
		if err := rows.Scan(&rec.ID, &rec.FromUserID, &rec.ToUserID, &rec.Coins, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recognition: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// ListRewards returns the active reward catalog.
func (r *RecognitionRepository) ListRewards(ctx context.Context) ([]*model.Reward, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, points_cost, active, created_at
		 FROM rewards WHERE active ORDER BY points_cost ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	defer rows.Close()

	var out []*model.Reward
	for rows.Next() {
		var rw model.Reward
		if err := rows.Scan(&rw.ID, &rw.Name, &rw.Description, &rw.PointsCost, &rw.Active, &rw.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		out = append(out, &rw)
	}
	return out, rows.Err()
}

// GetReward returns a reward by ID.
func (r *RecognitionRepository) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	var rw model.Reward
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, points_cost, active, created_at
		 FROM rewards WHERE id = $1`, id).
		Scan(&rw.ID, &rw.Name, &rw.Description, &rw.PointsCost, &rw.Active, &rw.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}
	return &rw, nil
}

// CreateRedemption spends points on a reward atomically.
func (r *RecognitionRepository) CreateRedemption(ctx context.Context, red *model.Redemption) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET points = points - $1, updated_at = now()
		 WHERE id = $2 AND points >= $1 AND deleted_at IS NULL`,
		red.PointsSpent, red.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to debit points: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrInsufficientBalance
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO redemptions (id, user_id, reward_id, points_spent, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		red.ID, red.UserID, red.RewardID, red.PointsSpent, red.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert redemption: %w", err)
	}

	return tx.Commit()
}
