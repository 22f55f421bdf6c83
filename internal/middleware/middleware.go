package middleware

import (
	"github.com/peerpoints/peerpoints/internal/config"
	"github.com/peerpoints/peerpoints/internal/logger"
	"github.com/peerpoints/peerpoints/internal/security"
)

// Middleware holds the request-gate dependencies shared by all routes.
type Middleware struct {
	validator *security.Validator
	csrf      *security.CSRFGuard
	limiter   *security.Limiter
	log       *logger.Logger
	cfg       *config.Config
}

// New creates a new Middleware instance
func New(validator *security.Validator, csrf *security.CSRFGuard, limiter *security.Limiter, log *logger.Logger, cfg *config.Config) *Middleware {
	return &Middleware{
		validator: validator,
		csrf:      csrf,
		limiter:   limiter,
		log:       log,
		cfg:       cfg,
	}
}
