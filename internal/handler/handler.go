package handler

import (
	"github.com/peerpoints/peerpoints/internal/config"
	"github.com/peerpoints/peerpoints/internal/database"
	"github.com/peerpoints/peerpoints/internal/logger"
	"github.com/peerpoints/peerpoints/internal/rbac"
	"github.com/peerpoints/peerpoints/internal/security"
	"github.com/peerpoints/peerpoints/internal/service"
)

// Handler holds all HTTP handlers
type Handler struct {
	db        *database.Postgres
	rdb       *database.Redis
	log       *logger.Logger
	cfg       *config.Config
	authSvc   *service.AuthService
	userSvc   *service.UserService
	recogSvc  *service.RecognitionService
	roles     *rbac.Manager
	validator *security.Validator
}

// New creates a new Handler instance
func New(db *database.Postgres, rdb *database.Redis, log *logger.Logger, cfg *config.Config, authSvc *service.AuthService, userSvc *service.UserService, recogSvc *service.RecognitionService, roles *rbac.Manager, validator *security.Validator) *Handler {
	return &Handler{
		db:        db,
		rdb:       rdb,
		log:       log,
		cfg:       cfg,
		authSvc:   authSvc,
		userSvc:   userSvc,
		recogSvc:  recogSvc,
		roles:     roles,
		validator: validator,
	}
}
