package model

import "time"

// Recognition records coins given from one employee to another. The coins
// convert one-to-one into permanent points for the recipient.
type Recognition struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"fromUserId"`
	ToUserID   string    `json:"toUserId"`
	Coins      int       `json:"coins"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Reward is a catalog item redeemable with points.
type Reward struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PointsCost  int       `json:"pointsCost"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Redemption records a reward purchase.
type Redemption struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	RewardID    string    `json:"rewardId"`
	PointsSpent int       `json:"pointsSpent"`
	CreatedAt   time.Time `json:"createdAt"`
}
