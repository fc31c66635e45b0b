package xuiclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"xui-vpn-bot/internal/models"
)

// queryParams collects query parameters preserving insertion order. Some
// client apps are sensitive to parameter order, so url.Values (which sorts
// keys) cannot be used here. Values are appended pre-encoded.
type queryParams struct {
	pairs []string
}

func (q *queryParams) add(key, value string) {
	q.pairs = append(q.pairs, key+"="+value)
}

func (q *queryParams) encode() string {
	return strings.Join(q.pairs, "&")
}

// vmessConfig is the JSON payload encoded into a vmess:// link
type vmessConfig struct {
	V    string `json:"v"`
	PS   string `json:"ps"`
	Add  string `json:"add"`
	Port string `json:"port"`
	ID   string `json:"id"`
	Aid  string `json:"aid"`
	Net  string `json:"net"`
	Type string `json:"type"`
	Host string `json:"host"`
	Path string `json:"path"`
	TLS  string `json:"tls"`
}

// ClientLink produces a connection link for the client with the given email
// in the given inbound. It prefers the panel's subscription endpoint when the
// client has a subscription id and falls back to building the URI manually.
// Any failure degrades to an empty string; link building never takes the
// whole operation down.
func (c *Client) ClientLink(ctx context.Context, inboundID int, email string) string {
	inbound, err := c.GetInbound(ctx, inboundID)
	if err != nil {
		c.logger.Errorf("Cannot build link for %s: %v", email, err)
		return ""
	}

	settings, err := inbound.ParseSettings()
	if err != nil {
		c.logger.Errorf("Cannot build link for %s: %v", email, err)
		return ""
	}

	var client *models.ClientEntry
	for i := range settings.Clients {
		if settings.Clients[i].Email == email {
			client = &settings.Clients[i]
			break
		}
	}
	if client == nil {
		c.logger.Warnf("Client %s not found in inbound %d, no link to build", email, inboundID)
		return ""
	}

	if client.SubID != "" {
		if link := c.subscriptionLink(ctx, client.SubID); link != "" {
			return link
		}
		c.logger.Debugf("Subscription link unavailable for %s, building manually", email)
	}

	stream, err := inbound.ParseStreamSettings()
	if err != nil {
		c.logger.Errorf("Cannot build link for %s: %v", email, err)
		return ""
	}

	switch inbound.Protocol {
	case "vless":
		return c.buildVLESSLink(client, inbound, stream)
	case "vmess":
		return c.buildVMessLink(client, inbound, stream)
	case "trojan":
		return c.buildTrojanLink(client, inbound, stream)
	default:
		c.logger.Warnf("Unsupported protocol %q on inbound %d, no link to build", inbound.Protocol, inbound.ID)
		return ""
	}
}

// subscriptionLink fetches the client's subscription content from the panel.
// The subscription endpoint lives on the panel host without the /panel path
// prefix. The body may be plain text or base64; anything without a scheme
// separator is discarded.
func (c *Client) subscriptionLink(ctx context.Context, subID string) string {
	base := c.cfg.Panel.BaseURL
	if parsed, err := url.Parse(base); err == nil {
		// only the path component may carry the /panel prefix; the host
		// itself often contains the word "panel"
		parsed.Path = strings.TrimSuffix(strings.TrimRight(parsed.Path, "/"), "/panel")
		parsed.RawQuery = ""
		base = strings.TrimRight(parsed.String(), "/")
	}

	body, err := c.session.requestRaw(ctx, http.MethodGet, base+"/sub/"+subID, nil)
	if err != nil {
		c.logger.Warnf("Subscription fetch failed for %s: %v", subID, err)
		return ""
	}

	content := strings.TrimSpace(string(body))
	if content == "" {
		return ""
	}
	if strings.Contains(content, "://") {
		return content
	}
	if decoded, err := base64.StdEncoding.DecodeString(content); err == nil {
		text := strings.TrimSpace(string(decoded))
		if strings.Contains(text, "://") {
			return text
		}
	}

	c.logger.Warnf("Subscription response for %s is not a connection link", subID)
	return ""
}

// resolveHost picks the address clients should connect to: the configured
// external address wins, then the inbound's listen address unless it is a
// wildcard or loopback, then the panel's own hostname.
func (c *Client) resolveHost(inbound *models.Inbound) (string, int) {
	if c.cfg.Link.ExternalAddress != "" {
		return c.cfg.Link.ExternalAddress, c.cfg.Link.ExternalPort
	}

	host := inbound.Listen
	switch host {
	case "", "0.0.0.0", "::", "localhost", "127.0.0.1":
		host = c.panelHost()
	}
	return host, inbound.Port
}

// panelHost extracts the hostname from the configured panel base URL
func (c *Client) panelHost() string {
	parsed, err := url.Parse(c.cfg.Panel.BaseURL)
	if err != nil || parsed.Hostname() == "" {
		c.logger.Warnf("Cannot extract host from panel URL %q", c.cfg.Panel.BaseURL)
		return ""
	}
	return parsed.Hostname()
}

func (c *Client) buildVLESSLink(client *models.ClientEntry, inbound *models.Inbound, stream *models.StreamSettings) string {
	host, port := c.resolveHost(inbound)
	if host == "" {
		return ""
	}

	params := &queryParams{}
	params.add("type", stream.Network)
	params.add("encryption", "none")

	switch stream.Security {
	case "tls":
		params.add("security", "tls")
		if stream.TLSSettings != nil {
			if stream.TLSSettings.ServerName != "" {
				params.add("sni", stream.TLSSettings.ServerName)
			}
			if len(stream.TLSSettings.ALPN) > 0 {
				params.add("alpn", strings.Join(stream.TLSSettings.ALPN, ","))
			}
		}
	case "reality":
		params.add("security", "reality")
		c.addRealityParams(params, inbound, stream.RealitySettings)
	}

	if client.Flow != "" {
		params.add("flow", client.Flow)
	}

	c.addTransportParams(params, stream)

	remark := inbound.Remark
	if remark == "" {
		remark = "VPN"
	}
	fragment := escapeFragment(fmt.Sprintf("%s - %s", remark, client.Email))

	return fmt.Sprintf("vless://%s@%s:%d?%s#%s", client.ID, host, port, params.encode(), fragment)
}

// addRealityParams appends the Reality security parameters, warning about
// each field the inbound leaves unset instead of failing.
func (c *Client) addRealityParams(params *queryParams, inbound *models.Inbound, reality *models.RealitySettings) {
	if reality == nil {
		c.logger.Warnf("Reality settings missing on inbound %d", inbound.ID)
		return
	}

	if reality.PublicKey != "" {
		params.add("pbk", reality.PublicKey)
	} else {
		c.logger.Warnf("Reality public key not set on inbound %d", inbound.ID)
	}

	if reality.Fingerprint != "" {
		params.add("fp", reality.Fingerprint)
	} else {
		c.logger.Warnf("Reality fingerprint not set on inbound %d", inbound.ID)
	}

	if len(reality.ServerNames) > 0 {
		params.add("sni", reality.ServerNames[0])
	} else {
		c.logger.Warnf("Reality server names not set on inbound %d", inbound.ID)
	}

	if len(reality.ShortIDs) > 0 {
		params.add("sid", reality.ShortIDs[0])
	} else {
		c.logger.Warnf("Reality short ids not set on inbound %d", inbound.ID)
	}

	if reality.SpiderX != "" {
		params.add("spx", url.QueryEscape(reality.SpiderX))
	}
}

// addTransportParams appends the network-specific parameters
func (c *Client) addTransportParams(params *queryParams, stream *models.StreamSettings) {
	switch stream.Network {
	case "ws":
		path := "/"
		var hostHeader string
		if stream.WSSettings != nil {
			if stream.WSSettings.Path != "" {
				path = stream.WSSettings.Path
			}
			hostHeader = stream.WSSettings.Headers["Host"]
		}
		params.add("path", url.QueryEscape(path))
		if hostHeader != "" {
			params.add("host", hostHeader)
		}
	case "grpc":
		if stream.GRPCSettings != nil && stream.GRPCSettings.ServiceName != "" {
			params.add("serviceName", url.QueryEscape(stream.GRPCSettings.ServiceName))
		}
	case "tcp":
		if stream.TCPSettings != nil && stream.TCPSettings.Header != nil &&
			stream.TCPSettings.Header.Type != "" && stream.TCPSettings.Header.Type != "none" {
			params.add("headerType", stream.TCPSettings.Header.Type)
		}
	}
}

func (c *Client) buildVMessLink(client *models.ClientEntry, inbound *models.Inbound, stream *models.StreamSettings) string {
	host, port := c.resolveHost(inbound)
	if host == "" {
		return ""
	}

	cfg := vmessConfig{
		V:    "2",
		PS:   client.Email,
		Add:  host,
		Port: strconv.Itoa(port),
		ID:   client.ID,
		Aid:  "0",
		Net:  stream.Network,
		Type: "none",
	}

	if stream.Network == "ws" && stream.WSSettings != nil {
		cfg.Path = stream.WSSettings.Path
		cfg.Host = stream.WSSettings.Headers["Host"]
	}
	if stream.Security == "tls" {
		cfg.TLS = "tls"
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		c.logger.Errorf("Cannot serialize vmess link for %s: %v", client.Email, err)
		return ""
	}

	return "vmess://" + base64.StdEncoding.EncodeToString(payload)
}

func (c *Client) buildTrojanLink(client *models.ClientEntry, inbound *models.Inbound, stream *models.StreamSettings) string {
	host, port := c.resolveHost(inbound)
	if host == "" {
		return ""
	}

	password := client.Password
	if password == "" {
		password = client.ID
	}

	params := &queryParams{}
	params.add("type", stream.Network)
	params.add("security", stream.Security)
	if stream.Security == "tls" && stream.TLSSettings != nil && stream.TLSSettings.ServerName != "" {
		params.add("sni", stream.TLSSettings.ServerName)
	}

	return fmt.Sprintf("trojan://%s@%s:%d?%s#%s",
		password, host, port, params.encode(), escapeFragment(client.Email))
}

// FallbackLink builds a plain VLESS link from the statically configured
// connection parameters. Used when the panel cannot provide one.
func (c *Client) FallbackLink(uuid, email string) string {
	fallback := c.cfg.Link.Fallback
	if fallback.Server == "" {
		c.logger.Warn("Fallback link requested but no fallback server configured")
		return ""
	}

	params := &queryParams{}
	params.add("type", fallback.Type)
	params.add("encryption", "none")
	if fallback.Security != "" && fallback.Security != "none" {
		params.add("security", fallback.Security)
		if fallback.SNI != "" {
			params.add("sni", fallback.SNI)
		}
	}

	return fmt.Sprintf("vless://%s@%s:%d?%s#%s",
		uuid, fallback.Server, fallback.Port, params.encode(), escapeFragment(email))
}

// escapeFragment encodes a link fragment, using %20 for spaces since many
// client apps do not understand + outside of query strings.
func escapeFragment(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
