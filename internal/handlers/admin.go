package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"xui-vpn-bot/internal/commands"
	"xui-vpn-bot/internal/config"
	"xui-vpn-bot/internal/helpers"
	"xui-vpn-bot/internal/models"
	"xui-vpn-bot/internal/permissions"
	"xui-vpn-bot/internal/services"
	"xui-vpn-bot/internal/validation"
)

// AdminHandler handles administrator commands
type AdminHandler struct {
	BaseHandler
	commandHandlers map[string]func(telebot.Context) error
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	provisionService *services.ProvisionService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	config *config.Config,
	logger *logrus.Logger,
) *AdminHandler {
	handler := &AdminHandler{
		BaseHandler: NewBaseHandler(provisionService, stateService, qrService, config, logger),
	}

	handler.initializeCommands()
	return handler
}

// CanHandle checks if the handler can handle the given access type
func (h *AdminHandler) CanHandle(accessType permissions.AccessType) bool {
	return accessType == permissions.Admin
}

// Handle handles a message from Telegram
func (h *AdminHandler) Handle(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID

	state, err := h.stateService.GetState(userID)
	if err != nil {
		h.logger.Errorf("Failed to get user state: %v", err)
		return err
	}

	if c.Text() == commands.Cancel || c.Text() == commands.ReturnToMainMenu {
		return h.handleStart(c)
	}

	switch state.State {
	case models.Default:
		return h.handleDefaultState(c)
	case models.AwaitSelectRequest:
		return h.handleSelectRequest(c)
	case models.AwaitRequestAction:
		return h.handleRequestAction(c, state)
	case models.AwaitSelectInbound:
		return h.handleSelectInbound(c, state)
	case models.AwaitSelectMember:
		return h.handleSelectMember(c)
	case models.AwaitMemberAction:
		return h.handleMemberAction(c, state)
	case models.AwaitConfirmMemberDeletion:
		return h.handleConfirmMemberDeletion(c, state)
	default:
		h.logger.Warnf("Unknown state: %d", state.State)
		return h.handleStart(c)
	}
}

func (h *AdminHandler) initializeCommands() {
	h.commandHandlers = map[string]func(telebot.Context) error{
		commands.Start:           h.handleStart,
		commands.PendingRequests: h.handlePendingRequests,
		commands.Members:         h.handleMembers,
		commands.NetworkUsage:    h.handleNetworkUsage,
	}
}

// handleDefaultState handles the default state
func (h *AdminHandler) handleDefaultState(c telebot.Context) error {
	if handler, ok := h.commandHandlers[c.Text()]; ok {
		return handler(c)
	}
	return h.handleStart(c)
}

// handleStart handles the /start command
func (h *AdminHandler) handleStart(c telebot.Context) error {
	if err := h.stateService.ClearState(c.Sender().ID); err != nil {
		h.logger.Errorf("Failed to clear user state: %v", err)
	}

	markup := h.createMainKeyboard(permissions.Admin)
	return h.sendTextMessage(c, "Welcome to the VPN admin bot!", markup)
}

// handlePendingRequests lists pending access requests for selection
func (h *AdminHandler) handlePendingRequests(c telebot.Context) error {
	ctx := context.Background()

	requests, users, err := h.provisionService.PendingRequests(ctx)
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Admin))
	}
	if len(requests) == 0 {
		return h.sendTextMessage(c, "No pending access requests.", h.createMainKeyboard(permissions.Admin))
	}

	var sb strings.Builder
	sb.WriteString("<b>Pending requests:</b>\n")
	for i, request := range requests {
		sb.WriteString(fmt.Sprintf("%d. %s (tg %d), requested %s\n",
			i+1, helpers.DisplayName(users[request.UserID]), users[request.UserID].TgID,
			request.CreatedAt.Format("2006-01-02 15:04")))
	}
	sb.WriteString("\nSend the number of the request to review.")

	if err := h.stateService.WithConversationState(c.Sender().ID, models.AwaitSelectRequest); err != nil {
		return err
	}
	return h.sendTextMessage(c, sb.String(), h.createReturnKeyboard())
}

// handleSelectRequest stores the chosen request and asks for an action
func (h *AdminHandler) handleSelectRequest(c telebot.Context) error {
	ctx := context.Background()

	requests, users, err := h.provisionService.PendingRequests(ctx)
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Admin))
	}

	index, err := validation.ParseSelection(c.Text(), len(requests))
	if err != nil {
		return h.sendTextMessage(c, "⚠️ "+err.Error(), h.createReturnKeyboard())
	}

	request := requests[index]
	if err := h.stateService.SetState(c.Sender().ID, models.UserState{
		State:   models.AwaitRequestAction,
		Payload: payloadFromID(request.ID),
	}); err != nil {
		return err
	}

	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}
	markup.Reply(
		telebot.Row{
			telebot.Btn{Text: commands.Approve},
			telebot.Btn{Text: commands.Reject},
		},
		telebot.Row{
			telebot.Btn{Text: commands.Cancel},
		},
	)

	text := fmt.Sprintf("Request #%d from %s.\nApprove or reject?",
		request.ID, helpers.DisplayName(users[request.UserID]))
	return h.sendTextMessage(c, text, markup)
}

// handleRequestAction dispatches the approve/reject decision
func (h *AdminHandler) handleRequestAction(c telebot.Context, state *models.UserState) error {
	requestID, err := idFromPayload(state.Payload)
	if err != nil {
		h.logger.Errorf("Invalid request payload: %v", err)
		return h.handleStart(c)
	}

	switch c.Text() {
	case commands.Approve:
		return h.askForInbound(c, requestID)
	case commands.Reject:
		return h.rejectRequest(c, requestID)
	default:
		return h.sendTextMessage(c, "Use the Approve or Reject buttons.", nil)
	}
}

// askForInbound lists panel inbounds for the admin to choose the target
func (h *AdminHandler) askForInbound(c telebot.Context, requestID int64) error {
	ctx := context.Background()

	inbounds, err := h.provisionService.ListInbounds(ctx)
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Admin))
	}
	if len(inbounds) == 0 {
		return h.sendTextMessage(c, "⚠️ The panel has no inbounds to provision into.", h.createMainKeyboard(permissions.Admin))
	}

	var sb strings.Builder
	sb.WriteString("<b>Select the target inbound:</b>\n")
	for i, inbound := range inbounds {
		remark := inbound.Remark
		if remark == "" {
			remark = fmt.Sprintf("inbound %d", inbound.ID)
		}
		sb.WriteString(fmt.Sprintf("%d. %s (%s, port %d)\n", i+1, remark, inbound.Protocol, inbound.Port))
	}
	sb.WriteString("\nSend the number of the inbound.")

	if err := h.stateService.SetState(c.Sender().ID, models.UserState{
		State:   models.AwaitSelectInbound,
		Payload: payloadFromID(requestID),
	}); err != nil {
		return err
	}
	return h.sendTextMessage(c, sb.String(), h.createReturnKeyboard())
}

// handleSelectInbound provisions the client once the inbound is chosen
func (h *AdminHandler) handleSelectInbound(c telebot.Context, state *models.UserState) error {
	ctx := context.Background()

	requestID, err := idFromPayload(state.Payload)
	if err != nil {
		h.logger.Errorf("Invalid request payload: %v", err)
		return h.handleStart(c)
	}

	inbounds, err := h.provisionService.ListInbounds(ctx)
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Admin))
	}

	index, err := validation.ParseSelection(c.Text(), len(inbounds))
	if err != nil {
		return h.sendTextMessage(c, "⚠️ "+err.Error(), h.createReturnKeyboard())
	}

	user, link, err := h.provisionService.ApproveRequest(ctx, requestID, c.Sender().ID, inbounds[index].ID)
	if err != nil {
		if clearErr := h.stateService.ClearState(c.Sender().ID); clearErr != nil {
			h.logger.Errorf("Failed to clear user state: %v", clearErr)
		}
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Admin))
	}

	if link != "" {
		h.notifyUser(c, user.TgID, fmt.Sprintf(
			"🎉 Your VPN access has been approved!\n\nConnection link:\n<code>%s</code>\n\nUse /start to open your menu.", link))
	} else {
		h.notifyUser(c, user.TgID,
			"🎉 Your VPN access has been approved! Use /start and Connection Info to fetch your configuration.")
	}

	if err := h.stateService.ClearState(c.Sender().ID); err != nil {
		h.logger.Errorf("Failed to clear user state: %v", err)
	}
	return h.sendTextMessage(c,
		fmt.Sprintf("✅ Approved: %s provisioned in inbound %d.", helpers.DisplayName(user), inbounds[index].ID),
		h.createMainKeyboard(permissions.Admin))
}

// rejectRequest marks a request rejected and notifies the requester
func (h *AdminHandler) rejectRequest(c telebot.Context, requestID int64) error {
	ctx := context.Background()

	user, err := h.provisionService.RejectRequest(ctx, requestID, c.Sender().ID)
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Admin))
	}

	h.notifyUser(c, user.TgID, "Your VPN access request has been declined.")

	if err := h.stateService.ClearState(c.Sender().ID); err != nil {
		h.logger.Errorf("Failed to clear user state: %v", err)
	}
	return h.sendTextMessage(c,
		fmt.Sprintf("Request #%d rejected.", requestID),
		h.createMainKeyboard(permissions.Admin))
}

// handleMembers lists approved members for selection
func (h *AdminHandler) handleMembers(c telebot.Context) error {
	ctx := context.Background()

	members, err := h.provisionService.Members(ctx)
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Admin))
	}
	if len(members) == 0 {
		return h.sendTextMessage(c, "No members yet.", h.createMainKeyboard(permissions.Admin))
	}

	var sb strings.Builder
	sb.WriteString("<b>Members:</b>\n")
	for i, member := range members {
		status := "🟢"
		if !member.IsActive {
			status = "🔴"
		}
		sb.WriteString(fmt.Sprintf("%d. %s %s (%s)\n", i+1, status, helpers.DisplayName(&member), member.Email))
	}
	sb.WriteString("\nSend the number of the member to manage.")

	if err := h.stateService.WithConversationState(c.Sender().ID, models.AwaitSelectMember); err != nil {
		return err
	}
	return h.sendTextMessage(c, sb.String(), h.createReturnKeyboard())
}

// handleSelectMember shows the member card and the action keyboard
func (h *AdminHandler) handleSelectMember(c telebot.Context) error {
	ctx := context.Background()

	members, err := h.provisionService.Members(ctx)
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Admin))
	}

	index, err := validation.ParseSelection(c.Text(), len(members))
	if err != nil {
		return h.sendTextMessage(c, "⚠️ "+err.Error(), h.createReturnKeyboard())
	}

	member := members[index]
	if err := h.stateService.SetState(c.Sender().ID, models.UserState{
		State:   models.AwaitMemberAction,
		Payload: payloadFromID(member.ID),
	}); err != nil {
		return err
	}

	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}
	toggle := commands.DisableMember
	if !member.IsActive {
		toggle = commands.EnableMember
	}
	markup.Reply(
		telebot.Row{
			telebot.Btn{Text: commands.ShowLink},
			telebot.Btn{Text: toggle},
		},
		telebot.Row{
			telebot.Btn{Text: commands.Delete},
			telebot.Btn{Text: commands.Cancel},
		},
	)

	status := "active"
	if !member.IsActive {
		status = "disabled"
	}
	text := fmt.Sprintf("<b>%s</b>\nEmail: %s\nInbound: %d\nStatus: %s\nTraffic: ⬇️ %s GB / ⬆️ %s GB",
		helpers.DisplayName(&member), member.Email, member.InboundID, status,
		helpers.FormatGB(member.Down), helpers.FormatGB(member.Up))
	return h.sendTextMessage(c, text, markup)
}

// handleMemberAction dispatches a member management action
func (h *AdminHandler) handleMemberAction(c telebot.Context, state *models.UserState) error {
	ctx := context.Background()

	memberID, err := idFromPayload(state.Payload)
	if err != nil {
		h.logger.Errorf("Invalid member payload: %v", err)
		return h.handleStart(c)
	}

	switch c.Text() {
	case commands.ShowLink:
		link, err := h.provisionService.ConnectionLink(ctx, memberID)
		if err != nil {
			return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Admin))
		}
		if link == "" {
			return h.sendTextMessage(c, "⚠️ No connection link is available for this member.", nil)
		}
		if err := h.sendTextMessage(c, fmt.Sprintf("<code>%s</code>", link), nil); err != nil {
			return err
		}
		return h.sendQRCode(c, link)

	case commands.EnableMember, commands.DisableMember:
		enable := c.Text() == commands.EnableMember
		if err := h.provisionService.SetMemberActive(ctx, memberID, enable); err != nil {
			return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Admin))
		}
		verb := "disabled"
		if enable {
			verb = "enabled"
		}
		if err := h.stateService.ClearState(c.Sender().ID); err != nil {
			h.logger.Errorf("Failed to clear user state: %v", err)
		}
		return h.sendTextMessage(c, fmt.Sprintf("✅ Member %s.", verb), h.createMainKeyboard(permissions.Admin))

	case commands.Delete:
		if err := h.stateService.SetState(c.Sender().ID, models.UserState{
			State:   models.AwaitConfirmMemberDeletion,
			Payload: state.Payload,
		}); err != nil {
			return err
		}
		return h.sendTextMessage(c,
			"⚠️ This removes the member's VPN client and record. Confirm?",
			h.createConfirmKeyboard())

	default:
		return h.sendTextMessage(c, "Use the action buttons.", nil)
	}
}

// handleConfirmMemberDeletion performs the deletion once confirmed
func (h *AdminHandler) handleConfirmMemberDeletion(c telebot.Context, state *models.UserState) error {
	if c.Text() != commands.Confirm {
		return h.handleStart(c)
	}

	memberID, err := idFromPayload(state.Payload)
	if err != nil {
		h.logger.Errorf("Invalid member payload: %v", err)
		return h.handleStart(c)
	}

	if err := h.provisionService.DeleteMember(context.Background(), memberID); err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Admin))
	}

	if err := h.stateService.ClearState(c.Sender().ID); err != nil {
		h.logger.Errorf("Failed to clear user state: %v", err)
	}
	return h.sendTextMessage(c, "✅ Member deleted.", h.createMainKeyboard(permissions.Admin))
}

// handleNetworkUsage refreshes and reports traffic for all members
func (h *AdminHandler) handleNetworkUsage(c telebot.Context) error {
	ctx := context.Background()

	if err := h.provisionService.SyncTraffic(ctx); err != nil {
		h.logger.Warnf("Traffic refresh before report failed: %v", err)
	}

	members, err := h.provisionService.Members(ctx)
	if err != nil {
		return h.sendTextMessage(c, h.userFacingError(err), h.createMainKeyboard(permissions.Admin))
	}
	if len(members) == 0 {
		return h.sendTextMessage(c, "No members yet.", h.createMainKeyboard(permissions.Admin))
	}

	return h.sendTextMessage(c, helpers.FormatUsageReport(members), h.createMainKeyboard(permissions.Admin))
}

func payloadFromID(id int64) *string {
	payload := strconv.FormatInt(id, 10)
	return &payload
}

func idFromPayload(payload *string) (int64, error) {
	if payload == nil {
		return 0, fmt.Errorf("empty payload")
	}
	return strconv.ParseInt(*payload, 10, 64)
}
