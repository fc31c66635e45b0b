package models

import "testing"

func TestDeriveSubID(t *testing.T) {
	first := DeriveSubID("user_42", "abc-uuid")
	second := DeriveSubID("user_42", "abc-uuid")

	if first != second {
		t.Errorf("DeriveSubID is not deterministic: %q != %q", first, second)
	}
	if len(first) != 16 {
		t.Errorf("subId length = %d, want 16", len(first))
	}
	for _, r := range first {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Errorf("subId %q contains non-hex character %q", first, r)
		}
	}

	if other := DeriveSubID("user_43", "abc-uuid"); other == first {
		t.Error("different emails produced the same subId")
	}
}

func TestIdentifier(t *testing.T) {
	vless := ClientEntry{ID: "uuid-1", Email: "user_1"}
	if vless.Identifier() != "uuid-1" {
		t.Errorf("identifier = %q, want uuid-1", vless.Identifier())
	}

	trojan := ClientEntry{Password: "pass-1", Email: "user_2"}
	if trojan.Identifier() != "pass-1" {
		t.Errorf("identifier = %q, want pass-1", trojan.Identifier())
	}
}

func TestParseStreamSettingsDefaults(t *testing.T) {
	inbound := Inbound{ID: 1}

	stream, err := inbound.ParseStreamSettings()
	if err != nil {
		t.Fatalf("ParseStreamSettings failed on empty input: %v", err)
	}
	if stream.Network != "tcp" || stream.Security != "none" {
		t.Errorf("defaults = %s/%s, want tcp/none", stream.Network, stream.Security)
	}

	inbound.StreamSettings = `{"network":"","security":""}`
	stream, err = inbound.ParseStreamSettings()
	if err != nil {
		t.Fatalf("ParseStreamSettings failed: %v", err)
	}
	if stream.Network != "tcp" || stream.Security != "none" {
		t.Errorf("empty fields = %s/%s, want tcp/none", stream.Network, stream.Security)
	}
}
