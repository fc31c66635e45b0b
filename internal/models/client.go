package models

import (
	"crypto/md5"
	"encoding/hex"

	"xui-vpn-bot/internal/constants"
)

// ClientEntry represents one client inside an inbound's clients array.
// ID is a UUID for VLESS/VMess; Trojan clients carry Password instead.
type ClientEntry struct {
	ID          string `json:"id"`
	Password    string `json:"password,omitempty"`
	Email       string `json:"email"`
	Enable      bool   `json:"enable"`
	Flow        string `json:"flow"`
	LimitIP     int    `json:"limitIp"`
	TotalGB     int64  `json:"totalGB"`
	ExpiryTime  int64  `json:"expiryTime"`
	TgID        string `json:"tgId"`
	SubID       string `json:"subId"`
	Reset       int64  `json:"reset"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// ToDictionary converts the client to a map for the addClient API request
func (c *ClientEntry) ToDictionary() map[string]interface{} {
	result := map[string]interface{}{
		"id":         c.ID,
		"email":      c.Email,
		"enable":     c.Enable,
		"flow":       c.Flow,
		"limitIp":    c.LimitIP,
		"totalGB":    c.TotalGB,
		"expiryTime": c.ExpiryTime,
		"tgId":       c.TgID,
		"subId":      c.SubID,
		"reset":      c.Reset,
	}

	if c.Fingerprint != "" {
		result["fingerprint"] = c.Fingerprint
	}

	return result
}

// Identifier returns the value the panel keys the client by: the UUID for
// VLESS/VMess clients, the password for Trojan clients.
func (c *ClientEntry) Identifier() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Password
}

// DeriveSubID derives the deterministic subscription id for a client.
// The same (email, uuid) pair always yields the same 16 hex characters.
func DeriveSubID(email, uuid string) string {
	sum := md5.Sum([]byte(email + uuid))
	return hex.EncodeToString(sum[:])[:constants.SubIDLength]
}
