package xuiclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"xui-vpn-bot/internal/config"
	"xui-vpn-bot/internal/models"
)

func linkTestClient(cfg *config.Config) *Client {
	if cfg.Panel.BaseURL == "" {
		cfg.Panel.BaseURL = "https://panel.example.com:2053/panel"
	}
	return New(cfg, testLogger())
}

func TestVLESSLinkWSWithTLS(t *testing.T) {
	client := linkTestClient(&config.Config{})

	inbound := &models.Inbound{ID: 3, Remark: "Home VPN", Port: 443, Protocol: "vless"}
	entry := &models.ClientEntry{ID: "abc-uuid", Email: "user_42"}
	stream := &models.StreamSettings{
		Network:  "ws",
		Security: "tls",
		TLSSettings: &models.TLSSettings{
			ServerName: "example.com",
		},
		WSSettings: &models.WSSettings{
			Path:    "/ray",
			Headers: map[string]string{"Host": "example.com"},
		},
	}

	got := client.buildVLESSLink(entry, inbound, stream)
	want := "vless://abc-uuid@panel.example.com:443" +
		"?type=ws&encryption=none&security=tls&sni=example.com&path=%2Fray&host=example.com" +
		"#Home%20VPN%20-%20user_42"
	if got != want {
		t.Errorf("link = %q\nwant   %q", got, want)
	}
}

func TestVLESSLinkReality(t *testing.T) {
	client := linkTestClient(&config.Config{})

	inbound := &models.Inbound{ID: 1, Remark: "Reality", Port: 8443, Protocol: "vless"}
	entry := &models.ClientEntry{ID: "r-uuid", Email: "user_9", Flow: "xtls-rprx-vision"}
	stream := &models.StreamSettings{
		Network:  "tcp",
		Security: "reality",
		RealitySettings: &models.RealitySettings{
			PublicKey:   "PBK",
			Fingerprint: "firefox",
			ServerNames: []string{"site.com", "alt.site.com"},
			ShortIDs:    []string{"ab12", "cd34"},
			SpiderX:     "/",
		},
	}

	got := client.buildVLESSLink(entry, inbound, stream)
	want := "vless://r-uuid@panel.example.com:8443" +
		"?type=tcp&encryption=none&security=reality&pbk=PBK&fp=firefox&sni=site.com&sid=ab12&spx=%2F&flow=xtls-rprx-vision" +
		"#Reality%20-%20user_9"
	if got != want {
		t.Errorf("link = %q\nwant   %q", got, want)
	}
}

func TestVLESSLinkRealityMissingFields(t *testing.T) {
	client := linkTestClient(&config.Config{})

	inbound := &models.Inbound{ID: 1, Remark: "Reality", Port: 8443, Protocol: "vless"}
	entry := &models.ClientEntry{ID: "r-uuid", Email: "user_9"}
	stream := &models.StreamSettings{
		Network:         "tcp",
		Security:        "reality",
		RealitySettings: &models.RealitySettings{},
	}

	got := client.buildVLESSLink(entry, inbound, stream)
	if got == "" {
		t.Fatal("missing Reality fields must degrade, not drop the link")
	}
	if strings.Contains(got, "pbk=") || strings.Contains(got, "sni=") || strings.Contains(got, "sid=") {
		t.Errorf("link %q contains parameters for unset Reality fields", got)
	}
}

func TestVMessLink(t *testing.T) {
	client := linkTestClient(&config.Config{})

	inbound := &models.Inbound{ID: 2, Remark: "VMess", Port: 443, Protocol: "vmess"}
	entry := &models.ClientEntry{ID: "vm-uuid", Email: "user_11"}
	stream := &models.StreamSettings{
		Network:  "ws",
		Security: "tls",
		WSSettings: &models.WSSettings{
			Path:    "/vm",
			Headers: map[string]string{"Host": "cdn.example.com"},
		},
	}

	got := client.buildVMessLink(entry, inbound, stream)
	if !strings.HasPrefix(got, "vmess://") {
		t.Fatalf("link = %q, want vmess:// prefix", got)
	}

	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(got, "vmess://"))
	if err != nil {
		t.Fatalf("link payload is not base64: %v", err)
	}

	var decoded map[string]string
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("link payload is not JSON: %v", err)
	}

	for key, want := range map[string]string{
		"v":    "2",
		"ps":   "user_11",
		"add":  "panel.example.com",
		"port": "443",
		"id":   "vm-uuid",
		"aid":  "0",
		"net":  "ws",
		"host": "cdn.example.com",
		"path": "/vm",
		"tls":  "tls",
	} {
		if decoded[key] != want {
			t.Errorf("field %s = %q, want %q", key, decoded[key], want)
		}
	}
}

func TestTrojanLink(t *testing.T) {
	client := linkTestClient(&config.Config{})

	inbound := &models.Inbound{ID: 4, Remark: "Trojan", Port: 443, Protocol: "trojan"}
	entry := &models.ClientEntry{Password: "pass-1", Email: "user_3"}
	stream := &models.StreamSettings{
		Network:     "tcp",
		Security:    "tls",
		TLSSettings: &models.TLSSettings{ServerName: "example.com"},
	}

	got := client.buildTrojanLink(entry, inbound, stream)
	want := "trojan://pass-1@panel.example.com:443?type=tcp&security=tls&sni=example.com#user_3"
	if got != want {
		t.Errorf("link = %q, want %q", got, want)
	}
}

func TestResolveHostPrecedence(t *testing.T) {
	inbound := &models.Inbound{Listen: "10.0.0.5", Port: 8080}

	client := linkTestClient(&config.Config{
		Link: config.LinkConfig{ExternalAddress: "vpn.example.org", ExternalPort: 443},
	})
	host, port := client.resolveHost(inbound)
	if host != "vpn.example.org" || port != 443 {
		t.Errorf("host = %s:%d, want vpn.example.org:443 (external override)", host, port)
	}

	client = linkTestClient(&config.Config{})
	host, port = client.resolveHost(inbound)
	if host != "10.0.0.5" || port != 8080 {
		t.Errorf("host = %s:%d, want 10.0.0.5:8080 (listen address)", host, port)
	}

	for _, listen := range []string{"", "0.0.0.0", "::", "localhost", "127.0.0.1"} {
		host, _ = client.resolveHost(&models.Inbound{Listen: listen, Port: 8080})
		if host != "panel.example.com" {
			t.Errorf("listen %q resolved to %q, want panel hostname", listen, host)
		}
	}
}

func TestSubscriptionFastPath(t *testing.T) {
	subBody := "vless://sub-uuid@vpn.example.org:443?type=tcp#sub"
	inbounds := []models.Inbound{
		{ID: 1, Remark: "Home", Protocol: "vless", Port: 443,
			Settings: settingsString(t, models.ClientEntry{ID: "uuid-1", Email: "user_1", SubID: "deadbeef"})},
	}

	mux := panelMux(inbounds)
	mux.HandleFunc("/sub/deadbeef", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(subBody))
	})

	client, cleanup := openTestClient(t, mux)
	defer cleanup()

	if got := client.ClientLink(context.Background(), 1, "user_1"); got != subBody {
		t.Errorf("link = %q, want subscription body verbatim", got)
	}
}

func TestSubscriptionFastPathBase64(t *testing.T) {
	subBody := "vless://sub-uuid@vpn.example.org:443?type=tcp#sub"
	inbounds := []models.Inbound{
		{ID: 1, Remark: "Home", Protocol: "vless", Port: 443,
			Settings: settingsString(t, models.ClientEntry{ID: "uuid-1", Email: "user_1", SubID: "cafebabe"})},
	}

	mux := panelMux(inbounds)
	mux.HandleFunc("/sub/cafebabe", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(base64.StdEncoding.EncodeToString([]byte(subBody))))
	})

	client, cleanup := openTestClient(t, mux)
	defer cleanup()

	if got := client.ClientLink(context.Background(), 1, "user_1"); got != subBody {
		t.Errorf("link = %q, want decoded subscription body", got)
	}
}

func TestClientLinkDegradesToEmpty(t *testing.T) {
	client, cleanup := openTestClient(t, panelMux(nil))
	defer cleanup()

	if got := client.ClientLink(context.Background(), 42, "user_1"); got != "" {
		t.Errorf("link = %q, want empty for missing inbound", got)
	}
}

func TestFallbackLink(t *testing.T) {
	client := linkTestClient(&config.Config{
		Link: config.LinkConfig{
			Fallback: config.FallbackLinkConfig{
				Server:   "vpn.example.org",
				Port:     443,
				SNI:      "example.com",
				Security: "tls",
				Type:     "tcp",
			},
		},
	})

	got := client.FallbackLink("fb-uuid", "user_1")
	want := "vless://fb-uuid@vpn.example.org:443?type=tcp&encryption=none&security=tls&sni=example.com#user_1"
	if got != want {
		t.Errorf("link = %q, want %q", got, want)
	}

	client = linkTestClient(&config.Config{})
	if got := client.FallbackLink("fb-uuid", "user_1"); got != "" {
		t.Errorf("link = %q, want empty without fallback server", got)
	}
}
