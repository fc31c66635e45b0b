package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"xui-vpn-bot/internal/config"
	"xui-vpn-bot/internal/models"
	"xui-vpn-bot/internal/storage"
)

// fakePanel emulates the 3x-ui endpoints the provisioning flows touch
type fakePanel struct {
	mux     *http.ServeMux
	clients map[string]models.ClientEntry
	deleted []string
	enabled map[string]bool
}

func newFakePanel(t *testing.T) *fakePanel {
	t.Helper()
	panel := &fakePanel{
		mux:     http.NewServeMux(),
		clients: make(map[string]models.ClientEntry),
		enabled: make(map[string]bool),
	}

	writeEnvelope := func(w http.ResponseWriter, success bool, msg string, obj interface{}) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": success, "msg": msg, "obj": obj})
	}

	inbound := func() models.Inbound {
		var entries []models.ClientEntry
		for _, entry := range panel.clients {
			entries = append(entries, entry)
		}
		settings, _ := json.Marshal(models.InboundSettings{Clients: entries})
		return models.Inbound{
			ID:       1,
			Remark:   "Main",
			Port:     443,
			Protocol: "vless",
			Settings: string(settings),
			StreamSettings: `{"network":"tcp","security":"reality","realitySettings":` +
				`{"publicKey":"PBK","fingerprint":"chrome","serverNames":["site.com"],"shortIds":["ab12"]}}`,
		}
	}

	panel.mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "3x-ui", Value: "session"})
	})
	panel.mux.HandleFunc("/panel/api/inbounds/list", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, true, "", []models.Inbound{inbound()})
	})
	panel.mux.HandleFunc("/panel/api/inbounds/get/1", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, true, "", inbound())
	})
	panel.mux.HandleFunc("/panel/api/inbounds/addClient", func(w http.ResponseWriter, r *http.Request) {
		var settings models.InboundSettings
		if err := json.Unmarshal([]byte(r.FormValue("settings")), &settings); err != nil || len(settings.Clients) != 1 {
			writeEnvelope(w, false, "bad settings", nil)
			return
		}
		client := settings.Clients[0]
		panel.clients[client.Email] = client
		panel.enabled[client.Email] = true
		writeEnvelope(w, true, "", nil)
	})
	panel.mux.HandleFunc("/panel/api/inbounds/updateClient/", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Enable bool `json:"enable"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		uuid := strings.TrimPrefix(r.URL.Path, "/panel/api/inbounds/updateClient/")
		for email, client := range panel.clients {
			if client.ID == uuid {
				panel.enabled[email] = body.Enable
			}
		}
		writeEnvelope(w, true, "", nil)
	})
	panel.mux.HandleFunc("/panel/api/inbounds/1/delClient/", func(w http.ResponseWriter, r *http.Request) {
		uuid := strings.TrimPrefix(r.URL.Path, "/panel/api/inbounds/1/delClient/")
		for email, client := range panel.clients {
			if client.ID == uuid {
				delete(panel.clients, email)
				panel.deleted = append(panel.deleted, email)
			}
		}
		writeEnvelope(w, true, "", nil)
	})
	panel.mux.HandleFunc("/panel/api/inbounds/getClientTraffics/", func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimPrefix(r.URL.Path, "/panel/api/inbounds/getClientTraffics/")
		if _, ok := panel.clients[email]; !ok {
			writeEnvelope(w, true, "", nil)
			return
		}
		writeEnvelope(w, true, "", models.ClientStat{Email: email, Up: 111, Down: 222})
	})

	return panel
}

func newTestProvision(t *testing.T) (*ProvisionService, *fakePanel) {
	t.Helper()

	panel := newFakePanel(t)
	server := httptest.NewServer(panel.mux)
	t.Cleanup(server.Close)

	store, err := storage.Open(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		Panel: config.PanelConfig{
			BaseURL:  server.URL,
			Username: "admin",
			Password: "secret",
		},
	}

	return NewProvisionService(store, cfg, logger), panel
}

func TestApproveRequestProvisionsClient(t *testing.T) {
	provision, panel := newTestProvision(t)
	ctx := context.Background()

	request, err := provision.RequestAccess(ctx, 555, "bob", "Bob B")
	if err != nil {
		t.Fatalf("RequestAccess failed: %v", err)
	}

	user, link, err := provision.ApproveRequest(ctx, request.ID, 1, 1)
	if err != nil {
		t.Fatalf("ApproveRequest failed: %v", err)
	}

	if !user.IsApproved || !user.IsActive {
		t.Errorf("user = %+v, want approved and active", user)
	}
	if user.Email != "user_555" {
		t.Errorf("email = %q, want user_555", user.Email)
	}
	if user.InboundID != 1 {
		t.Errorf("inbound = %d, want 1", user.InboundID)
	}

	created, ok := panel.clients["user_555"]
	if !ok {
		t.Fatal("panel has no client for the approved user")
	}
	if created.Flow != "xtls-rprx-vision" {
		t.Errorf("flow = %q, want xtls-rprx-vision for a Reality inbound", created.Flow)
	}
	if created.ID != user.UUID {
		t.Errorf("panel uuid %q != stored uuid %q", created.ID, user.UUID)
	}

	if !strings.HasPrefix(link, "vless://"+user.UUID+"@") {
		t.Errorf("link = %q, want vless link for the new uuid", link)
	}

	if !provision.IsApprovedMember(555) {
		t.Error("approved user is not reported as member")
	}

	// approving the same request twice must fail
	if _, _, err := provision.ApproveRequest(ctx, request.ID, 1, 1); err == nil {
		t.Error("second approval of the same request succeeded")
	}
}

func TestRequestAccessIsIdempotentWhilePending(t *testing.T) {
	provision, _ := newTestProvision(t)
	ctx := context.Background()

	first, err := provision.RequestAccess(ctx, 7, "eve", "Eve")
	if err != nil {
		t.Fatalf("RequestAccess failed: %v", err)
	}
	second, err := provision.RequestAccess(ctx, 7, "eve", "Eve")
	if err != nil {
		t.Fatalf("repeated RequestAccess failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("repeated request created a new row: %d != %d", first.ID, second.ID)
	}
}

func TestRejectRequest(t *testing.T) {
	provision, panel := newTestProvision(t)
	ctx := context.Background()

	request, _ := provision.RequestAccess(ctx, 8, "mallory", "Mallory")

	user, err := provision.RejectRequest(ctx, request.ID, 1)
	if err != nil {
		t.Fatalf("RejectRequest failed: %v", err)
	}
	if user.IsApproved {
		t.Error("rejected user is approved")
	}
	if len(panel.clients) != 0 {
		t.Error("rejection created a panel client")
	}
}

func TestSetMemberActiveAndDelete(t *testing.T) {
	provision, panel := newTestProvision(t)
	ctx := context.Background()

	request, _ := provision.RequestAccess(ctx, 9, "carol", "Carol")
	user, _, err := provision.ApproveRequest(ctx, request.ID, 1, 1)
	if err != nil {
		t.Fatalf("ApproveRequest failed: %v", err)
	}

	if err := provision.SetMemberActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetMemberActive failed: %v", err)
	}
	if panel.enabled["user_9"] {
		t.Error("panel client still enabled after disable")
	}
	member, _ := provision.Member(ctx, user.ID)
	if member.IsActive {
		t.Error("stored user still active after disable")
	}

	if err := provision.DeleteMember(ctx, user.ID); err != nil {
		t.Fatalf("DeleteMember failed: %v", err)
	}
	if len(panel.deleted) != 1 || panel.deleted[0] != "user_9" {
		t.Errorf("panel deletions = %v, want [user_9]", panel.deleted)
	}
	if provision.IsApprovedMember(9) {
		t.Error("deleted user is still reported as member")
	}
}

func TestSyncTraffic(t *testing.T) {
	provision, _ := newTestProvision(t)
	ctx := context.Background()

	request, _ := provision.RequestAccess(ctx, 10, "dave", "Dave")
	user, _, err := provision.ApproveRequest(ctx, request.ID, 1, 1)
	if err != nil {
		t.Fatalf("ApproveRequest failed: %v", err)
	}

	if err := provision.SyncTraffic(ctx); err != nil {
		t.Fatalf("SyncTraffic failed: %v", err)
	}

	member, err := provision.Member(ctx, user.ID)
	if err != nil {
		t.Fatalf("Member failed: %v", err)
	}
	if member.Up != 111 || member.Down != 222 {
		t.Errorf("traffic = %d/%d, want 111/222", member.Up, member.Down)
	}
}

func TestMemberTraffic(t *testing.T) {
	provision, _ := newTestProvision(t)
	ctx := context.Background()

	request, _ := provision.RequestAccess(ctx, 11, "frank", "Frank")
	user, _, err := provision.ApproveRequest(ctx, request.ID, 1, 1)
	if err != nil {
		t.Fatalf("ApproveRequest failed: %v", err)
	}

	traffic, err := provision.MemberTraffic(ctx, user.ID)
	if err != nil {
		t.Fatalf("MemberTraffic failed: %v", err)
	}
	if traffic.Up != 111 || traffic.Down != 222 {
		t.Errorf("traffic = %+v, want 111/222", traffic)
	}

	member, _ := provision.Member(ctx, user.ID)
	if member.Up != 111 {
		t.Errorf("stored up = %d, want 111 after fetch", member.Up)
	}
}
