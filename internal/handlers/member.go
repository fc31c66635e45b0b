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

// MemberHandler handles approved VPN users
type MemberHandler struct {
	BaseHandler
	commandHandlers map[string]func(telebot.Context) error
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(
	provisionService *services.ProvisionService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	config *config.Config,
	logger *logrus.Logger,
) *MemberHandler {
	handler := &MemberHandler{
		BaseHandler: NewBaseHandler(provisionService, stateService, qrService, config, logger),
	}

	handler.initializeCommands()
	return handler
}

// CanHandle checks if the handler can handle the given access type
func (h *MemberHandler) CanHandle(accessType permissions.AccessType) bool {
	return accessType == permissions.Member
}

// Handle handles a message from Telegram
func (h *MemberHandler) Handle(ctx context.Context, c telebot.Context) error {
	if handler, ok := h.commandHandlers[c.Text()]; ok {
		return handler(c)
	}
	return h.handleStart(c)
}

func (h *MemberHandler) initializeCommands() {
	h.commandHandlers = map[string]func(telebot.Context) error{
		commands.Start:            h.handleStart,
		commands.ConnectionInfo:   h.handleConnectionInfo,
		commands.MyTraffic:        h.handleMyTraffic,
		commands.ReturnToMainMenu: h.handleStart,
	}
}

// handleStart handles the /start command
func (h *MemberHandler) handleStart(c telebot.Context) error {
	if err := h.stateService.ClearState(c.Sender().ID); err != nil {
		h.logger.Errorf("Failed to clear user state: %v", err)
	}

	markup := h.createMainKeyboard(permissions.Member)
	return h.sendTextMessage(c, "Welcome back! Your VPN access is active.", markup)
}

// handleConnectionInfo sends the member's connection link and QR code
func (h *MemberHandler) handleConnectionInfo(c telebot.Context) error {
	ctx := context.Background()

	user, err := h.provisionService.MemberByTgID(ctx, c.Sender().ID)
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Member))
	}

	link, err := h.provisionService.ConnectionLink(ctx, user.ID)
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Member))
	}
	if link == "" {
		return h.sendTextMessage(c,
			"⚠️ No connection link is available right now. Ask an administrator for your configuration.",
			h.createMainKeyboard(permissions.Member))
	}

	if err := h.sendTextMessage(c,
		fmt.Sprintf("Your connection link:\n\n<code>%s</code>", link),
		h.createMainKeyboard(permissions.Member)); err != nil {
		return err
	}

	return h.sendQRCode(c, link)
}

// handleMyTraffic reports the member's traffic usage
func (h *MemberHandler) handleMyTraffic(c telebot.Context) error {
	ctx := context.Background()

	user, err := h.provisionService.MemberByTgID(ctx, c.Sender().ID)
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Member))
	}

	traffic, err := h.provisionService.MemberTraffic(ctx, user.ID)
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Member))
	}

	text := fmt.Sprintf("Your traffic usage:\n⬇️ %s GB\n⬆️ %s GB",
		helpers.FormatGB(traffic.Down), helpers.FormatGB(traffic.Up))
	return h.sendTextMessage(c, text, h.createMainKeyboard(permissions.Member))
}
