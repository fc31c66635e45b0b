package xuiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"xui-vpn-bot/internal/config"
	"xui-vpn-bot/internal/constants"
	"xui-vpn-bot/internal/errors"
	"xui-vpn-bot/internal/models"
)

var duplicateEmailPattern = regexp.MustCompile(`Duplicate email:\s*(.+)`)

// Client is a high-level 3x-ui panel client. It wraps one Session and exposes
// the inbound/client operations the bot needs. Open a client per logical
// operation and Close it when done.
type Client struct {
	session *Session
	cfg     *config.Config
	logger  *logrus.Logger
}

// ClientMatch is the result of a panel-wide client lookup
type ClientMatch struct {
	InboundID     int
	InboundRemark string
	Client        models.ClientEntry
}

// Traffic holds usage counters for a single client
type Traffic struct {
	Up    int64
	Down  int64
	Total int64
}

// New creates a panel client from the application configuration
func New(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		session: NewSession(cfg.Panel, logger),
		cfg:     cfg,
		logger:  logger,
	}
}

// Open authenticates the underlying session
func (c *Client) Open(ctx context.Context) error {
	return c.session.Open(ctx)
}

// Close releases the underlying session
func (c *Client) Close() {
	c.session.Close()
}

// ListInbounds returns all inbounds configured on the panel. A panel-side
// failure is logged and yields an empty list rather than an error.
func (c *Client) ListInbounds(ctx context.Context) ([]models.Inbound, error) {
	resp, err := c.session.request(ctx, http.MethodGet, "/panel/api/inbounds/list", nil)
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		c.logger.Warnf("Panel reported failure listing inbounds: %s", resp.Msg)
		return []models.Inbound{}, nil
	}

	var inbounds []models.Inbound
	if err := json.Unmarshal(resp.Obj, &inbounds); err != nil {
		return nil, &errors.DecodeError{Op: "list inbounds", Err: err}
	}

	c.logger.Debugf("Fetched %d inbounds from panel", len(inbounds))
	return inbounds, nil
}

// GetInbound returns a single inbound by its numeric id
func (c *Client) GetInbound(ctx context.Context, inboundID int) (*models.Inbound, error) {
	path := "/panel/api/inbounds/get/" + strconv.Itoa(inboundID)
	resp, err := c.session.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, &errors.NotFoundError{Kind: "inbound", Key: strconv.Itoa(inboundID)}
	}

	var inbound models.Inbound
	if err := json.Unmarshal(resp.Obj, &inbound); err != nil {
		return nil, &errors.DecodeError{Op: "get inbound " + strconv.Itoa(inboundID), Err: err}
	}

	return &inbound, nil
}

// FindClientByEmail searches every inbound for a client with the given email.
// It returns (nil, nil) when no such client exists. Inbounds whose settings
// cannot be parsed are skipped with a warning.
func (c *Client) FindClientByEmail(ctx context.Context, email string) (*ClientMatch, error) {
	inbounds, err := c.ListInbounds(ctx)
	if err != nil {
		return nil, err
	}

	for i := range inbounds {
		inbound := &inbounds[i]
		settings, err := inbound.ParseSettings()
		if err != nil {
			c.logger.Warnf("Skipping inbound %d: %v", inbound.ID, err)
			continue
		}

		for _, client := range settings.Clients {
			if client.Email == email {
				return &ClientMatch{
					InboundID:     inbound.ID,
					InboundRemark: inbound.Remark,
					Client:        client,
				}, nil
			}
		}
	}

	return nil, nil
}

// CreateClient adds a client with the given email and uuid to an inbound.
// The email must be unique across the whole panel; a duplicate in any inbound
// aborts the operation, and a duplicate within the target inbound itself is
// reported as configuration corruption.
func (c *Client) CreateClient(ctx context.Context, inboundID int, email, uuid string, enable bool) (*models.ClientEntry, error) {
	match, err := c.FindClientByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if match != nil {
		c.logger.Warnf("Client %s already exists in inbound %d (%s)", email, match.InboundID, match.InboundRemark)
		return nil, &errors.DuplicateClientError{Email: email, InboundRemark: match.InboundRemark}
	}

	inbound, err := c.GetInbound(ctx, inboundID)
	if err != nil {
		return nil, err
	}

	settings, err := inbound.ParseSettings()
	if err != nil {
		return nil, err
	}

	if duplicates := duplicateEmails(settings.Clients); len(duplicates) > 0 {
		c.logger.Errorf("Inbound %d contains duplicate client emails: %v", inboundID, duplicates)
		return nil, &errors.ConfigCorruptionError{InboundID: inboundID, DuplicateEmails: duplicates}
	}

	entry := models.ClientEntry{
		ID:     uuid,
		Email:  email,
		Enable: enable,
		SubID:  models.DeriveSubID(email, uuid),
	}

	stream, err := inbound.ParseStreamSettings()
	if err != nil {
		return nil, err
	}
	if inbound.Protocol == "vless" && stream.Security == "reality" {
		entry.Flow = constants.RealityFlow
		entry.Fingerprint = constants.DefaultFingerprint
		if stream.RealitySettings != nil && stream.RealitySettings.Fingerprint != "" {
			entry.Fingerprint = stream.RealitySettings.Fingerprint
		}
	}

	settingsJSON, err := json.Marshal(map[string]interface{}{
		"clients": []map[string]interface{}{entry.ToDictionary()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize client settings: %w", err)
	}

	resp, err := c.session.request(ctx, http.MethodPost, "/panel/api/inbounds/addClient",
		func(r *resty.Request) *resty.Request {
			return r.SetFormData(map[string]string{
				"id":       strconv.Itoa(inboundID),
				"settings": string(settingsJSON),
			})
		})
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		if m := duplicateEmailPattern.FindStringSubmatch(resp.Msg); m != nil {
			existing := strings.TrimSpace(m[1])
			c.logger.Warnf("Panel rejected client %s as duplicate of %s", email, existing)
			return nil, &errors.DuplicateClientError{Email: email, ExistingEmail: existing}
		}
		return nil, fmt.Errorf("failed to create client %s: %s", email, resp.Msg)
	}

	c.logger.Infof("Created client %s in inbound %d", email, inboundID)
	return &entry, nil
}

// UpdateClientStatus enables or disables a client located by email or uuid
func (c *Client) UpdateClientStatus(ctx context.Context, inboundID int, email, uuid string, enable bool) error {
	inbound, err := c.GetInbound(ctx, inboundID)
	if err != nil {
		return err
	}

	settings, err := inbound.ParseSettings()
	if err != nil {
		return err
	}

	var target *models.ClientEntry
	for i := range settings.Clients {
		client := &settings.Clients[i]
		if client.Email == email || (uuid != "" && client.Identifier() == uuid) {
			target = client
			break
		}
	}
	if target == nil {
		return &errors.NotFoundError{Kind: "client", Key: email}
	}

	path := "/panel/api/inbounds/updateClient/" + target.Identifier()
	resp, err := c.session.request(ctx, http.MethodPost, path,
		func(r *resty.Request) *resty.Request {
			return r.SetHeader("Content-Type", "application/json").
				SetBody(map[string]interface{}{
					"id":        target.Identifier(),
					"inboundId": inboundID,
					"enable":    enable,
				})
		})
	if err != nil {
		return err
	}

	if !resp.Success {
		return fmt.Errorf("failed to update client %s: %s", email, resp.Msg)
	}

	c.logger.Infof("Client %s in inbound %d set to enable=%t", email, inboundID, enable)
	return nil
}

// DeleteClient removes a client from an inbound by uuid
func (c *Client) DeleteClient(ctx context.Context, inboundID int, uuid string) error {
	path := fmt.Sprintf("/panel/api/inbounds/%d/delClient/%s", inboundID, uuid)
	resp, err := c.session.request(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}

	if !resp.Success {
		return &errors.DeleteError{Msg: resp.Msg}
	}

	c.logger.Infof("Deleted client %s from inbound %d", uuid, inboundID)
	return nil
}

// DeleteClientByEmailAnywhere finds a client by email in any inbound and
// deletes it. The returned bool reports whether a client was deleted; a
// missing client is not an error.
func (c *Client) DeleteClientByEmailAnywhere(ctx context.Context, email string) (bool, error) {
	match, err := c.FindClientByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if match == nil {
		c.logger.Infof("No client with email %s found on the panel", email)
		return false, nil
	}

	if err := c.DeleteClient(ctx, match.InboundID, match.Client.Identifier()); err != nil {
		return false, err
	}
	return true, nil
}

// GetClientTraffic returns usage counters for a client by email. An unknown
// email yields zero counters rather than an error.
func (c *Client) GetClientTraffic(ctx context.Context, email string) (*Traffic, error) {
	path := "/panel/api/inbounds/getClientTraffics/" + email
	resp, err := c.session.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	if !resp.Success || len(resp.Obj) == 0 || string(resp.Obj) == "null" {
		c.logger.Warnf("No traffic data for client %s", email)
		return &Traffic{}, nil
	}

	var stat models.ClientStat
	if err := json.Unmarshal(resp.Obj, &stat); err != nil {
		return nil, &errors.DecodeError{Op: "get client traffic for " + email, Err: err}
	}

	// The panel's own "total" field is the quota limit, not usage.
	return &Traffic{Up: stat.Up, Down: stat.Down, Total: stat.Up + stat.Down}, nil
}

// duplicateEmails returns the sorted list of emails that appear more than once
func duplicateEmails(clients []models.ClientEntry) []string {
	counts := make(map[string]int, len(clients))
	for _, client := range clients {
		counts[client.Email]++
	}

	var duplicates []string
	for email, count := range counts {
		if count > 1 {
			duplicates = append(duplicates, email)
		}
	}
	sort.Strings(duplicates)
	return duplicates
}
