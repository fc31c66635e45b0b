package xuiclient

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"xui-vpn-bot/internal/config"
	"xui-vpn-bot/internal/errors"
)

func asError(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testClient(serverURL string) *Client {
	cfg := &config.Config{
		Panel: config.PanelConfig{
			BaseURL:  serverURL,
			Username: "admin",
			Password: "secret",
		},
	}
	return New(cfg, testLogger())
}

func writeEnvelope(w http.ResponseWriter, success bool, msg string, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": success,
		"msg":     msg,
		"obj":     obj,
	})
}

func TestOpenCollectsAllCookies(t *testing.T) {
	var seenCookie string

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "admin" || r.FormValue("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "3x-ui", Value: "token123"})
		http.SetCookie(w, &http.Cookie{Name: "lang", Value: "en"})
	})
	mux.HandleFunc("/panel/api/inbounds/list", func(w http.ResponseWriter, r *http.Request) {
		seenCookie = r.Header.Get("Cookie")
		writeEnvelope(w, true, "", []interface{}{})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := testClient(server.URL)
	if err := client.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer client.Close()

	if _, err := client.ListInbounds(context.Background()); err != nil {
		t.Fatalf("ListInbounds failed: %v", err)
	}

	want := "3x-ui=token123; lang=en"
	if seenCookie != want {
		t.Errorf("Cookie header = %q, want %q", seenCookie, want)
	}
}

func TestOpenFailsOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := testClient(server.URL)
	err := client.Open(context.Background())
	if err == nil {
		t.Fatal("Open succeeded against a rejecting panel")
	}

	var authErr *errors.AuthError
	if !asError(err, &authErr) {
		t.Fatalf("error = %T, want *errors.AuthError", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", authErr.Status)
	}
}

func TestOpenFailsWithoutCookies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, true, "", nil)
	}))
	defer server.Close()

	client := testClient(server.URL)
	err := client.Open(context.Background())

	var authErr *errors.AuthError
	if !asError(err, &authErr) {
		t.Fatalf("error = %T, want *errors.AuthError", err)
	}
}

func TestReauthenticatesOnceOn401(t *testing.T) {
	logins := 0
	listCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		logins++
		http.SetCookie(w, &http.Cookie{Name: "3x-ui", Value: "session"})
	})
	mux.HandleFunc("/panel/api/inbounds/list", func(w http.ResponseWriter, r *http.Request) {
		listCalls++
		if listCalls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeEnvelope(w, true, "", []interface{}{})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := testClient(server.URL)
	if err := client.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer client.Close()

	inbounds, err := client.ListInbounds(context.Background())
	if err != nil {
		t.Fatalf("ListInbounds failed after re-authentication: %v", err)
	}
	if len(inbounds) != 0 {
		t.Errorf("inbounds = %v, want empty", inbounds)
	}
	if logins != 2 {
		t.Errorf("login count = %d, want 2 (initial + one re-auth)", logins)
	}
	if listCalls != 2 {
		t.Errorf("list calls = %d, want 2 (original + one retry)", listCalls)
	}
}

func TestSecondConsecutive401Fails(t *testing.T) {
	logins := 0
	listCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		logins++
		http.SetCookie(w, &http.Cookie{Name: "3x-ui", Value: "session"})
	})
	mux.HandleFunc("/panel/api/inbounds/list", func(w http.ResponseWriter, r *http.Request) {
		listCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := testClient(server.URL)
	if err := client.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer client.Close()

	_, err := client.ListInbounds(context.Background())
	var apiErr *errors.APIError
	if !asError(err, &apiErr) {
		t.Fatalf("error = %T (%v), want *errors.APIError", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.Status)
	}
	if listCalls != 2 {
		t.Errorf("list calls = %d, want exactly 2 (no retry loop)", listCalls)
	}
	if logins != 2 {
		t.Errorf("login count = %d, want 2", logins)
	}
}

func TestRequestRequiresOpenSession(t *testing.T) {
	client := testClient("http://127.0.0.1:1")
	if _, err := client.ListInbounds(context.Background()); err == nil {
		t.Fatal("request on an unopened session succeeded")
	}
}
