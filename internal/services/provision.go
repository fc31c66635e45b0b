package services

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"xui-vpn-bot/internal/config"
	"xui-vpn-bot/internal/errors"
	"xui-vpn-bot/internal/helpers"
	"xui-vpn-bot/internal/models"
	"xui-vpn-bot/internal/storage"
	"xui-vpn-bot/pkg/xuiclient"
)

// ProvisionService orchestrates VPN access provisioning: it ties the local
// user database to the 3x-ui panel. Every panel interaction happens inside a
// short-lived session scoped to one logical operation.
type ProvisionService struct {
	store  *storage.Store
	cfg    *config.Config
	logger *logrus.Logger
}

// NewProvisionService creates a new provisioning service
func NewProvisionService(store *storage.Store, cfg *config.Config, logger *logrus.Logger) *ProvisionService {
	return &ProvisionService{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// withClient runs fn against a freshly opened panel session and closes it after
func (s *ProvisionService) withClient(ctx context.Context, fn func(*xuiclient.Client) error) error {
	client := xuiclient.New(s.cfg, s.logger)
	if err := client.Open(ctx); err != nil {
		return err
	}
	defer client.Close()

	return fn(client)
}

// RegisterUser records (or refreshes) a Telegram user in the local database
func (s *ProvisionService) RegisterUser(ctx context.Context, tgID int64, username, fullName string) (*models.User, error) {
	user, err := s.store.GetUserByTgID(ctx, tgID)
	if err == nil {
		if user.Username != username || user.FullName != fullName {
			if err := s.store.UpdateUserProfile(ctx, user.ID, username, fullName); err != nil {
				return nil, err
			}
			user.Username = username
			user.FullName = fullName
		}
		return user, nil
	}
	if !stderrors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	id, err := s.store.CreateUser(ctx, &models.User{
		TgID:     tgID,
		Username: username,
		FullName: fullName,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Registered new user %d (tg %d)", id, tgID)
	return s.store.GetUserByID(ctx, id)
}

// RequestAccess files a pending access request for a user. Approved users and
// users with a pending request get no second request.
func (s *ProvisionService) RequestAccess(ctx context.Context, tgID int64, username, fullName string) (*models.AccessRequest, error) {
	user, err := s.RegisterUser(ctx, tgID, username, fullName)
	if err != nil {
		return nil, err
	}

	if user.IsApproved {
		return nil, fmt.Errorf("user %d already has access", user.ID)
	}

	if pending, err := s.store.GetPendingRequestForUser(ctx, user.ID); err == nil {
		s.logger.Debugf("User %d already has pending request %d", user.ID, pending.ID)
		return pending, nil
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	id, err := s.store.CreateAccessRequest(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("Access request %d created for user %d", id, user.ID)
	return s.store.GetAccessRequest(ctx, id)
}

// PendingRequests returns all pending requests with their users resolved
func (s *ProvisionService) PendingRequests(ctx context.Context) ([]models.AccessRequest, map[int64]*models.User, error) {
	requests, err := s.store.ListPendingRequests(ctx)
	if err != nil {
		return nil, nil, err
	}

	users := make(map[int64]*models.User, len(requests))
	for _, request := range requests {
		user, err := s.store.GetUserByID(ctx, request.UserID)
		if err != nil {
			return nil, nil, err
		}
		users[request.UserID] = user
	}
	return requests, users, nil
}

// ListInbounds returns the inbounds available on the panel
func (s *ProvisionService) ListInbounds(ctx context.Context) ([]models.Inbound, error) {
	var inbounds []models.Inbound
	err := s.withClient(ctx, func(client *xuiclient.Client) error {
		var err error
		inbounds, err = client.ListInbounds(ctx)
		return err
	})
	return inbounds, err
}

// ApproveRequest provisions a panel client for the requesting user, marks the
// request approved and returns the user together with their connection link.
// The link may be empty when the panel cannot produce one; callers present
// the documented manual fallback in that case.
func (s *ProvisionService) ApproveRequest(ctx context.Context, requestID, adminID int64, inboundID int) (*models.User, string, error) {
	request, err := s.store.GetAccessRequest(ctx, requestID)
	if err != nil {
		return nil, "", err
	}
	if request.Status != models.RequestPending {
		return nil, "", fmt.Errorf("request %d is already %s", requestID, request.Status)
	}

	user, err := s.store.GetUserByID(ctx, request.UserID)
	if err != nil {
		return nil, "", err
	}

	email := helpers.ClientEmail(user.TgID)
	clientUUID := uuid.NewString()

	var link string
	err = s.withClient(ctx, func(client *xuiclient.Client) error {
		if _, err := client.CreateClient(ctx, inboundID, email, clientUUID, true); err != nil {
			return err
		}
		link = client.ClientLink(ctx, inboundID, email)
		if link == "" {
			link = client.FallbackLink(clientUUID, email)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	if err := s.store.SetUserProvisioned(ctx, user.ID, clientUUID, email, inboundID); err != nil {
		return nil, "", err
	}
	if err := s.store.SetRequestStatus(ctx, requestID, models.RequestApproved, adminID); err != nil {
		return nil, "", err
	}

	s.logger.Infof("Request %d approved by %d: user %d provisioned as %s in inbound %d",
		requestID, adminID, user.ID, email, inboundID)

	user, err = s.store.GetUserByID(ctx, user.ID)
	return user, link, err
}

// RejectRequest marks a pending request rejected
func (s *ProvisionService) RejectRequest(ctx context.Context, requestID, adminID int64) (*models.User, error) {
	request, err := s.store.GetAccessRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestPending {
		return nil, fmt.Errorf("request %d is already %s", requestID, request.Status)
	}

	if err := s.store.SetRequestStatus(ctx, requestID, models.RequestRejected, adminID); err != nil {
		return nil, err
	}

	s.logger.Infof("Request %d rejected by %d", requestID, adminID)
	return s.store.GetUserByID(ctx, request.UserID)
}

// IsApprovedMember reports whether a Telegram user is an approved member.
// It implements the permissions.MemberDirectory contract.
func (s *ProvisionService) IsApprovedMember(tgID int64) bool {
	user, err := s.store.GetUserByTgID(context.Background(), tgID)
	return err == nil && user.IsApproved
}

// Members returns all approved users
func (s *ProvisionService) Members(ctx context.Context) ([]models.User, error) {
	return s.store.ListApprovedUsers(ctx)
}

// Member returns one approved user by id
func (s *ProvisionService) Member(ctx context.Context, userID int64) (*models.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// MemberByTgID returns a user by Telegram id
func (s *ProvisionService) MemberByTgID(ctx context.Context, tgID int64) (*models.User, error) {
	return s.store.GetUserByTgID(ctx, tgID)
}

// SetMemberActive enables or disables a member's panel client and mirrors the
// flag in the local database.
func (s *ProvisionService) SetMemberActive(ctx context.Context, userID int64, active bool) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsApproved {
		return fmt.Errorf("user %d has no VPN access to toggle", userID)
	}

	err = s.withClient(ctx, func(client *xuiclient.Client) error {
		return client.UpdateClientStatus(ctx, user.InboundID, user.Email, user.UUID, active)
	})
	if err != nil {
		return err
	}

	return s.store.SetUserActive(ctx, userID, active)
}

// DeleteMember removes a member's panel client and local record. The panel
// client may already be gone; that is not an error.
func (s *ProvisionService) DeleteMember(ctx context.Context, userID int64) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.Email != "" {
		err = s.withClient(ctx, func(client *xuiclient.Client) error {
			deleted, err := client.DeleteClientByEmailAnywhere(ctx, user.Email)
			if err != nil {
				return err
			}
			if !deleted {
				s.logger.Warnf("Panel client for user %d (%s) was already gone", userID, user.Email)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}

	s.logger.Infof("Deleted user %d (%s)", userID, user.Email)
	return nil
}

// ConnectionLink produces a fresh connection link for a member
func (s *ProvisionService) ConnectionLink(ctx context.Context, userID int64) (string, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.IsApproved {
		return "", &errors.NotFoundError{Kind: "client", Key: user.Email}
	}

	var link string
	err = s.withClient(ctx, func(client *xuiclient.Client) error {
		link = client.ClientLink(ctx, user.InboundID, user.Email)
		if link == "" {
			link = client.FallbackLink(user.UUID, user.Email)
		}
		return nil
	})
	return link, err
}

// MemberTraffic fetches a member's traffic counters from the panel and
// stores the result locally.
func (s *ProvisionService) MemberTraffic(ctx context.Context, userID int64) (*xuiclient.Traffic, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var traffic *xuiclient.Traffic
	err = s.withClient(ctx, func(client *xuiclient.Client) error {
		var err error
		traffic, err = client.GetClientTraffic(ctx, user.Email)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateUserTraffic(ctx, user.ID, traffic.Up, traffic.Down); err != nil {
		s.logger.Warnf("Failed to persist traffic for user %d: %v", user.ID, err)
	}
	return traffic, nil
}

// SyncTraffic refreshes the stored traffic counters of every approved user
// within a single panel session.
func (s *ProvisionService) SyncTraffic(ctx context.Context) error {
	users, err := s.store.ListApprovedUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}

	return s.withClient(ctx, func(client *xuiclient.Client) error {
		for _, user := range users {
			traffic, err := client.GetClientTraffic(ctx, user.Email)
			if err != nil {
				s.logger.Warnf("Traffic sync failed for %s: %v", user.Email, err)
				continue
			}
			if err := s.store.UpdateUserTraffic(ctx, user.ID, traffic.Up, traffic.Down); err != nil {
				return err
			}
		}
		s.logger.Debugf("Traffic synced for %d users", len(users))
		return nil
	})
}
