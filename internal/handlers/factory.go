package handlers

import (
	"context"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"xui-vpn-bot/internal/config"
	"xui-vpn-bot/internal/permissions"
	"xui-vpn-bot/internal/services"
)

// MessageHandler defines the interface for handling Telegram messages
type MessageHandler interface {
	Handle(ctx context.Context, c telebot.Context) error
	CanHandle(accessType permissions.AccessType) bool
}

// HandlerFactory creates message handlers
type HandlerFactory struct {
	provisionService *services.ProvisionService
	stateService     *services.UserStateService
	qrService        *services.QRService
	config           *config.Config
	logger           *logrus.Logger
}

// NewHandlerFactory creates a new handler factory
func NewHandlerFactory(
	provisionService *services.ProvisionService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	config *config.Config,
	logger *logrus.Logger,
) *HandlerFactory {
	return &HandlerFactory{
		provisionService: provisionService,
		stateService:     stateService,
		qrService:        qrService,
		config:           config,
		logger:           logger,
	}
}

// CreateHandler creates a message handler for the given access type
func (f *HandlerFactory) CreateHandler(accessType permissions.AccessType) MessageHandler {
	switch accessType {
	case permissions.Admin:
		return NewAdminHandler(f.provisionService, f.stateService, f.qrService, f.config, f.logger)
	case permissions.Member:
		return NewMemberHandler(f.provisionService, f.stateService, f.qrService, f.config, f.logger)
	default:
		return NewGuestHandler(f.provisionService, f.stateService, f.qrService, f.config, f.logger)
	}
}
