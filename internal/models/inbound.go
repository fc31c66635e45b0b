package models

import (
	"encoding/json"
	"fmt"
)

// Inbound represents a 3x-ui inbound (listener) configuration.
// Settings and StreamSettings arrive as JSON serialized into strings and
// must be parsed through ParseSettings / ParseStreamSettings.
type Inbound struct {
	ID             int          `json:"id"`
	Up             int64        `json:"up"`
	Down           int64        `json:"down"`
	Total          int64        `json:"total"`
	Remark         string       `json:"remark"`
	Enable         bool         `json:"enable"`
	ExpiryTime     int64        `json:"expiryTime"`
	ClientStats    []ClientStat `json:"clientStats"`
	Listen         string       `json:"listen"`
	Port           int          `json:"port"`
	Protocol       string       `json:"protocol"`
	Settings       string       `json:"settings"`
	StreamSettings string       `json:"streamSettings"`
}

// ClientStat represents panel-side traffic statistics for a client
type ClientStat struct {
	ID         int    `json:"id"`
	InboundID  int    `json:"inboundId"`
	Enable     bool   `json:"enable"`
	Email      string `json:"email"`
	Up         int64  `json:"up"`
	Down       int64  `json:"down"`
	ExpiryTime int64  `json:"expiryTime"`
	Total      int64  `json:"total"`
	Reset      int64  `json:"reset"`
}

// InboundSettings is the parsed form of Inbound.Settings
type InboundSettings struct {
	Clients []ClientEntry `json:"clients"`
}

// StreamSettings is the parsed form of Inbound.StreamSettings
type StreamSettings struct {
	Network         string           `json:"network"`
	Security        string           `json:"security"`
	TLSSettings     *TLSSettings     `json:"tlsSettings,omitempty"`
	RealitySettings *RealitySettings `json:"realitySettings,omitempty"`
	WSSettings      *WSSettings      `json:"wsSettings,omitempty"`
	GRPCSettings    *GRPCSettings    `json:"grpcSettings,omitempty"`
	TCPSettings     *TCPSettings     `json:"tcpSettings,omitempty"`
}

// TLSSettings holds the TLS security parameters of an inbound
type TLSSettings struct {
	ServerName string   `json:"serverName"`
	ALPN       []string `json:"alpn,omitempty"`
}

// RealitySettings holds the Reality security parameters of an inbound
type RealitySettings struct {
	PublicKey   string   `json:"publicKey"`
	Fingerprint string   `json:"fingerprint"`
	ServerNames []string `json:"serverNames"`
	ShortIDs    []string `json:"shortIds"`
	SpiderX     string   `json:"spiderX"`
}

// WSSettings holds the WebSocket transport parameters of an inbound
type WSSettings struct {
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
}

// GRPCSettings holds the gRPC transport parameters of an inbound
type GRPCSettings struct {
	ServiceName string `json:"serviceName"`
}

// TCPSettings holds the raw TCP transport parameters of an inbound
type TCPSettings struct {
	Header *TCPHeader `json:"header,omitempty"`
}

// TCPHeader describes TCP header obfuscation
type TCPHeader struct {
	Type string `json:"type"`
}

// ParseSettings parses the serialized settings of the inbound
func (i *Inbound) ParseSettings() (*InboundSettings, error) {
	var settings InboundSettings
	if i.Settings == "" {
		return &settings, nil
	}
	if err := json.Unmarshal([]byte(i.Settings), &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings of inbound %d: %w", i.ID, err)
	}
	return &settings, nil
}

// ParseStreamSettings parses the serialized stream settings of the inbound.
// Network defaults to tcp and security to none when the panel omits them.
func (i *Inbound) ParseStreamSettings() (*StreamSettings, error) {
	stream := StreamSettings{
		Network:  "tcp",
		Security: "none",
	}
	if i.StreamSettings == "" {
		return &stream, nil
	}
	if err := json.Unmarshal([]byte(i.StreamSettings), &stream); err != nil {
		return nil, fmt.Errorf("failed to parse stream settings of inbound %d: %w", i.ID, err)
	}
	if stream.Network == "" {
		stream.Network = "tcp"
	}
	if stream.Security == "" {
		stream.Security = "none"
	}
	return &stream, nil
}
