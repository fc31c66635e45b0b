package handlers

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"xui-vpn-bot/internal/commands"
	"xui-vpn-bot/internal/config"
	"xui-vpn-bot/internal/helpers"
	"xui-vpn-bot/internal/permissions"
	"xui-vpn-bot/internal/services"
)

// GuestHandler handles users without VPN access
type GuestHandler struct {
	BaseHandler
	commandHandlers map[string]func(telebot.Context) error
}

// NewGuestHandler creates a new guest handler
func NewGuestHandler(
	provisionService *services.ProvisionService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	config *config.Config,
	logger *logrus.Logger,
) *GuestHandler {
	handler := &GuestHandler{
		BaseHandler: NewBaseHandler(provisionService, stateService, qrService, config, logger),
	}

	handler.initializeCommands()
	return handler
}

// CanHandle checks if the handler can handle the given access type
func (h *GuestHandler) CanHandle(accessType permissions.AccessType) bool {
	return accessType == permissions.Guest
}

// Handle handles a message from Telegram
func (h *GuestHandler) Handle(ctx context.Context, c telebot.Context) error {
	if handler, ok := h.commandHandlers[c.Text()]; ok {
		return handler(c)
	}
	return h.handleStart(c)
}

func (h *GuestHandler) initializeCommands() {
	h.commandHandlers = map[string]func(telebot.Context) error{
		commands.Start:            h.handleStart,
		commands.RequestAccess:    h.handleRequestAccess,
		commands.About:            h.handleAbout,
		commands.Help:             h.handleHelp,
		commands.ReturnToMainMenu: h.handleStart,
	}
}

// handleStart handles the /start command
func (h *GuestHandler) handleStart(c telebot.Context) error {
	sender := c.Sender()
	_, err := h.provisionService.RegisterUser(context.Background(), sender.ID, sender.Username, senderFullName(sender))
	if err != nil {
		h.logger.Errorf("Failed to register user %d: %v", sender.ID, err)
	}

	markup := h.createMainKeyboard(permissions.Guest)
	return h.sendTextMessage(c,
		"Welcome to the VPN bot!\nYou don't have VPN access yet. Use <b>Request Access</b> to ask an administrator for it.",
		markup)
}

// handleRequestAccess files an access request and pings the admins
func (h *GuestHandler) handleRequestAccess(c telebot.Context) error {
	sender := c.Sender()
	ctx := context.Background()

	request, err := h.provisionService.RequestAccess(ctx, sender.ID, sender.Username, senderFullName(sender))
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Guest))
	}

	user, err := h.provisionService.MemberByTgID(ctx, sender.ID)
	if err == nil {
		notice := fmt.Sprintf("🔔 New access request #%d from %s (tg %d)",
			request.ID, helpers.DisplayName(user), sender.ID)
		for _, adminID := range h.config.Telegram.AdminIDs {
			h.notifyUser(c, adminID, notice)
		}
	}

	return h.sendTextMessage(c,
		"✅ Your access request has been submitted. You will be notified once an administrator reviews it.",
		h.createMainKeyboard(permissions.Guest))
}

// handleAbout handles the About command
func (h *GuestHandler) handleAbout(c telebot.Context) error {
	return h.sendTextMessage(c,
		"This bot provisions VPN access through a 3x-ui panel. Access is granted by the administrators.",
		h.createMainKeyboard(permissions.Guest))
}

// handleHelp handles the Help command
func (h *GuestHandler) handleHelp(c telebot.Context) error {
	return h.sendTextMessage(c,
		"Use <b>Request Access</b> to ask for VPN access. Once approved you will receive a connection link and a QR code.",
		h.createMainKeyboard(permissions.Guest))
}

// senderFullName joins the first and last name of a Telegram sender
func senderFullName(sender *telebot.User) string {
	name := sender.FirstName
	if sender.LastName != "" {
		if name != "" {
			name += " "
		}
		name += sender.LastName
	}
	return name
}
