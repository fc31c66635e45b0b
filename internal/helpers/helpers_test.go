package helpers

import (
	"testing"

	"xui-vpn-bot/internal/models"
)

func TestClientEmail(t *testing.T) {
	if got := ClientEmail(123456); got != "user_123456" {
		t.Errorf("ClientEmail = %q, want user_123456", got)
	}
}

func TestFormatGB(t *testing.T) {
	if got := FormatGB(1610612736); got != "1.50" {
		t.Errorf("FormatGB = %q, want 1.50", got)
	}
	if got := FormatGB(0); got != "0.00" {
		t.Errorf("FormatGB = %q, want 0.00", got)
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName(&models.User{Username: "alice", FullName: "Alice A"}); got != "@alice" {
		t.Errorf("DisplayName = %q, want @alice", got)
	}
	if got := DisplayName(&models.User{FullName: "Bob B"}); got != "Bob B" {
		t.Errorf("DisplayName = %q, want Bob B", got)
	}
	if got := DisplayName(&models.User{Email: "user_7"}); got != "user_7" {
		t.Errorf("DisplayName = %q, want user_7", got)
	}
}
