package bittensor

import (
	"strings"
	"testing"

	"github.com/mr-tron/base58"
)

func TestParseHeader(t *testing.T) {
	validSig := strings.Repeat("ab", 64)

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{
			name:   "valid header",
			header: `Bittensor ss58="5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",sig="` + validSig + `"`,
		},
		{
			name:    "missing scheme",
			header:  `Basic abcdef`,
			wantErr: true,
		},
		{
			name:    "missing sig field",
			header:  `Bittensor ss58="5Grw..."`,
			wantErr: true,
		},
		{
			name:    "odd-length hex signature",
			header:  `Bittensor ss58="5Grw...",sig="abc"`,
			wantErr: true,
		},
		{
			name:    "signature wrong length",
			header:  `Bittensor ss58="5Grw...",sig="` + strings.Repeat("ab", 10) + `"`,
			wantErr: true,
		},
		{
			name:    "non-hex signature",
			header:  `Bittensor ss58="5Grw...",sig="zz` + strings.Repeat("ab", 63) + `"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseHeader(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHeader() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(parsed.Signature) != 64 {
				t.Errorf("Signature length = %d, want 64", len(parsed.Signature))
			}
		})
	}
}

func TestParseHeader_VerificationErrorCode(t *testing.T) {
	_, err := ParseHeader("not a bittensor header")
	var verr *VerificationError
	if !asVerificationError(err, &verr) {
		t.Fatalf("expected *VerificationError, got %T", err)
	}
	if verr.Code != "malformed_header" {
		t.Errorf("Code = %q, want malformed_header", verr.Code)
	}
}

func asVerificationError(err error, target **VerificationError) bool {
	e, ok := err.(*VerificationError)
	if !ok {
		return false
	}
	*target = e
	return true
}

func TestBuildCanonicalRequest_Deterministic(t *testing.T) {
	body := []byte(`{"tool":"search_web"}`)
	a := BuildCanonicalRequest("POST", "/v1/tools/execute", body)
	b := BuildCanonicalRequest("POST", "/v1/tools/execute", body)
	if string(a) != string(b) {
		t.Error("expected identical inputs to produce identical canonical bytes")
	}

	other := BuildCanonicalRequest("POST", "/v1/tools/execute", []byte(`{"tool":"search_x"}`))
	if string(a) == string(other) {
		t.Error("expected different bodies to produce different canonical bytes")
	}

	if !strings.HasPrefix(string(a), "POST\n/v1/tools/execute\n") {
		t.Errorf("canonical request = %q, want METHOD\\nPATH prefix", a)
	}
}

func TestPublicKeyFromSS58(t *testing.T) {
	raw := make([]byte, 35)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	encoded := base58.Encode(raw)

	pubkey, err := publicKeyFromSS58(encoded)
	if err != nil {
		t.Fatalf("publicKeyFromSS58() error = %v", err)
	}
	for i := 0; i < 32; i++ {
		if pubkey[i] != raw[i+1] {
			t.Fatalf("pubkey[%d] = %d, want %d", i, pubkey[i], raw[i+1])
		}
	}
}

func TestPublicKeyFromSS58_WrongLength(t *testing.T) {
	encoded := base58.Encode([]byte{1, 2, 3})
	if _, err := publicKeyFromSS58(encoded); err == nil {
		t.Error("expected error decoding a too-short ss58 address")
	}
}

func TestAllowListAllows(t *testing.T) {
	empty := AllowList(nil)
	if !empty.allows("anything") {
		t.Error("expected an empty allow-list to allow any address")
	}

	list := AllowList{"hotkey-a", "hotkey-b"}
	if !list.allows("hotkey-a") {
		t.Error("expected hotkey-a to be allowed")
	}
	if list.allows("hotkey-c") {
		t.Error("expected hotkey-c to be rejected")
	}
}

func TestVerifySignedRequest_RejectsDisallowedHotkey(t *testing.T) {
	validSig := strings.Repeat("ab", 64)
	header := `Bittensor ss58="not-in-allow-list",sig="` + validSig + `"`

	_, err := VerifySignedRequest(header, "POST", "/v1/tools/execute", nil, AllowList{"some-other-hotkey"})
	var verr *VerificationError
	if !asVerificationError(err, &verr) {
		t.Fatalf("expected *VerificationError, got %T (%v)", err, err)
	}
	if verr.Code != "hotkey_not_allowed" {
		t.Errorf("Code = %q, want hotkey_not_allowed", verr.Code)
	}
}
