package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peerpoints/peerpoints/internal/logger"
	"github.com/peerpoints/peerpoints/internal/model"
	"github.com/peerpoints/peerpoints/internal/security"
)

// Recognition errors.
var (
	ErrSelfRecognition = errors.New("cannot give recognition to yourself")
	ErrRewardInactive  = errors.New("reward is not available")
)

// RecognitionStore is the persistence contract for recognitions, rewards
// and redemptions. Implemented by repository.RecognitionRepository.
type RecognitionStore interface {
	CreateRecognition(ctx context.Context, rec *model.Recognition) error
	ListRecent(ctx context.Context, limit int) ([]*model.Recognition, error)
	ListRewards(ctx context.Context) ([]*model.Reward, error)
	GetReward(ctx context.Context, id string) (*model.Reward, error)
	CreateRedemption(ctx context.Context, red *model.Redemption) error
}

// RecognitionService implements the coin/point flows. The arithmetic is
// deliberately trivial; balance integrity lives in the repository
// transactions.
type RecognitionService struct {
	store RecognitionStore
	users UserStore
	log   *logger.Logger
}

// NewRecognitionService creates a new RecognitionService
func NewRecognitionService(store RecognitionStore, users UserStore, log *logger.Logger) *RecognitionService {
	return &RecognitionService{
		store: store,
		users: users,
		log:   log.WithComponent("recognition"),
	}
}

// Give moves coins from the acting user to a peer, converting them to
// permanent points.
func (s *RecognitionService) Give(ctx context.Context, actor *security.Session, toUserID string, coins int, message string) (*model.Recognition, error) {
	if coins <= 0 {
		return nil, fmt.Errorf("%w: coins must be positive", ErrValidation)
	}
	if toUserID == actor.UserID {
		return nil, ErrSelfRecognition
	}

	recipient, err := s.users.GetByID(ctx, toUserID)
	if err != nil {
		return nil, err
	}
	if !recipient.IsActive() {
		return nil, fmt.Errorf("%w: recipient account is not active", ErrValidation)
	}

	rec := &model.Recognition{
		ID:         uuid.New().String(),
		FromUserID: actor.UserID,
		ToUserID:   toUserID,
		Coins:      coins,
		Message:    strings.TrimSpace(message),
		CreatedAt:  time.Now(),
	}

	if err := s.store.CreateRecognition(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("from", actor.UserID).
		Str("to", toUserID).
		Int("coins", coins).
		Msg("recognition given")
	return rec, nil
}

// Recent lists the most recent recognitions.
func (s *RecognitionService) Recent(ctx context.Context, limit int) ([]*model.Recognition, error) {
	return s.store.ListRecent(ctx, limit)
}

// Rewards lists the active reward catalog.
func (s *RecognitionService) Rewards(ctx context.Context) ([]*model.Reward, error) {
	return s.store.ListRewards(ctx)
}

// Redeem spends the acting user's points on a reward.
func (s *RecognitionService) Redeem(ctx context.Context, actor *security.Session, rewardID string) (*model.Redemption, error) {
	reward, err := s.store.GetReward(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if !reward.Active {
		return nil, ErrRewardInactive
	}

	red := &model.Redemption{
		ID:          uuid.New().String(),
		UserID:      actor.UserID,
		RewardID:    reward.ID,
		PointsSpent: reward.PointsCost,
		CreatedAt:   time.Now(),
	}

	if err := s.store.CreateRedemption(ctx, red); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", actor.UserID).
		Str("reward_id", reward.ID).
		Int("points", reward.PointsCost).
		Msg("reward redeemed")
	return red, nil
}
