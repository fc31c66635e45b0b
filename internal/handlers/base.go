package handlers

import (
	"bytes"
	stderrors "errors"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"xui-vpn-bot/internal/commands"
	"xui-vpn-bot/internal/config"
	"xui-vpn-bot/internal/errors"
	"xui-vpn-bot/internal/permissions"
	"xui-vpn-bot/internal/services"
	"xui-vpn-bot/internal/storage"
)

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	provisionService *services.ProvisionService
	stateService     *services.UserStateService
	qrService        *services.QRService
	config           *config.Config
	logger           *logrus.Logger
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(
	provisionService *services.ProvisionService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	config *config.Config,
	logger *logrus.Logger,
) BaseHandler {
	return BaseHandler{
		provisionService: provisionService,
		stateService:     stateService,
		qrService:        qrService,
		config:           config,
		logger:           logger,
	}
}

// CanHandle checks if the handler can handle the given access type
func (h *BaseHandler) CanHandle(accessType permissions.AccessType) bool {
	return false
}

// sendTextMessage sends a text message with optional markup
func (h *BaseHandler) sendTextMessage(c telebot.Context, text string, markup *telebot.ReplyMarkup) error {
	opts := &telebot.SendOptions{
		ParseMode: telebot.ModeHTML,
	}

	if markup != nil {
		opts.ReplyMarkup = markup
	}

	_, err := c.Bot().Send(c.Recipient(), text, opts)
	if err != nil {
		h.logger.Errorf("Failed to send message: %v", err)
	}
	return err
}

// sendQRCode sends a QR code for the given connection link
func (h *BaseHandler) sendQRCode(c telebot.Context, link string) error {
	qrBytes, err := h.qrService.GenerateQR(link)
	if err != nil {
		h.logger.Errorf("Failed to generate QR code: %v", err)
		return err
	}

	reader := bytes.NewReader(qrBytes)
	photo := &telebot.Photo{File: telebot.FromReader(reader)}

	_, err = c.Bot().Send(c.Recipient(), photo)
	if err != nil {
		h.logger.Errorf("Failed to send QR code: %v", err)
	}
	return err
}

// notifyUser sends a message to an arbitrary Telegram user
func (h *BaseHandler) notifyUser(c telebot.Context, tgID int64, text string) {
	_, err := c.Bot().Send(&telebot.User{ID: tgID}, text, &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	if err != nil {
		h.logger.Errorf("Failed to notify user %d: %v", tgID, err)
	}
}

// createMainKeyboard creates the main keyboard for the given access type
func (h *BaseHandler) createMainKeyboard(accessType permissions.AccessType) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard: true,
	}

	var rows []telebot.Row

	switch accessType {
	case permissions.Admin:
		rows = []telebot.Row{
			{
				telebot.Btn{Text: commands.PendingRequests},
				telebot.Btn{Text: commands.Members},
			},
			{
				telebot.Btn{Text: commands.NetworkUsage},
			},
		}
	case permissions.Member:
		rows = []telebot.Row{
			{
				telebot.Btn{Text: commands.ConnectionInfo},
				telebot.Btn{Text: commands.MyTraffic},
			},
		}
	case permissions.Guest:
		rows = []telebot.Row{
			{
				telebot.Btn{Text: commands.RequestAccess},
			},
			{
				telebot.Btn{Text: commands.About},
				telebot.Btn{Text: commands.Help},
			},
		}
	}

	markup.Reply(rows...)
	return markup
}

// createReturnKeyboard creates a keyboard with a return button
func (h *BaseHandler) createReturnKeyboard() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard: true,
	}

	markup.Reply(
		telebot.Row{
			telebot.Btn{Text: commands.ReturnToMainMenu},
		},
	)

	return markup
}

// createConfirmKeyboard creates a keyboard with confirm/cancel buttons
func (h *BaseHandler) createConfirmKeyboard() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard: true,
	}

	markup.Reply(
		telebot.Row{
			telebot.Btn{Text: commands.Confirm},
			telebot.Btn{Text: commands.Cancel},
		},
	)

	return markup
}

// userFacingError translates panel and storage errors into a chat message.
// Errors never crash the bot; every failure ends in a readable reply.
func (h *BaseHandler) userFacingError(err error) string {
	var dupErr *errors.DuplicateClientError
	if stderrors.As(err, &dupErr) {
		return "⚠️ " + dupErr.Error() + "\nResolve the existing client on the panel first."
	}

	var corruptErr *errors.ConfigCorruptionError
	if stderrors.As(err, &corruptErr) {
		return "⚠️ " + corruptErr.Error() + "\nClean up the inbound on the panel before retrying."
	}

	var authErr *errors.AuthError
	if stderrors.As(err, &authErr) {
		return "❌ Panel authentication failed. Check the panel credentials."
	}

	var timeoutErr *errors.TimeoutError
	if stderrors.As(err, &timeoutErr) {
		return "❌ The panel did not respond in time. Try again later."
	}

	var netErr *errors.NetworkError
	if stderrors.As(err, &netErr) {
		return "❌ Cannot reach the panel. Try again later."
	}

	var notFoundErr *errors.NotFoundError
	if stderrors.As(err, &notFoundErr) {
		return "⚠️ " + notFoundErr.Error()
	}

	if stderrors.Is(err, storage.ErrNotFound) {
		return "⚠️ Record not found. It may have been removed already."
	}

	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		return "❌ The panel rejected the request. Check the panel logs."
	}

	return "❌ Something went wrong: " + err.Error()
}
