// Package bittensor verifies sr25519-signed platform callbacks presented
// via the `Authorization: Bittensor ss58="...",sig="..."` header, grounded
// on caster_commons.bittensor.verify_signed_request. The canonical string
// signed by the caller is METHOD\nPATH?QUERY\nsha256hex(body), joined with
// newlines; subtensor/metagraph membership checks are out of scope here
// (they belong to the subtensor client, a pure external collaborator per
// the purpose-and-scope notes).
package bittensor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/mr-tron/base58"
)

var headerPattern = regexp.MustCompile(`^Bittensor\s+ss58="(?P<ss58>[^"]+)",\s*sig="(?P<sig>[0-9a-fA-F]+)"$`)

// VerificationError mirrors the reference implementation's
// VerificationError(code, message) exception shape so handlers can map it
// to a stable error code in their JSON response.
type VerificationError struct {
	Code    string
	Message string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func verrf(code, format string, args ...any) error {
	return &VerificationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ParsedHeader is the ss58 address and raw signature bytes extracted from
// an Authorization header.
type ParsedHeader struct {
	SS58      string
	Signature []byte
}

// ParseHeader parses the "Bittensor ss58=\"...\",sig=\"...\"" scheme.
func ParseHeader(header string) (ParsedHeader, error) {
	match := headerPattern.FindStringSubmatch(header)
	if match == nil {
		return ParsedHeader{}, verrf("malformed_header", "authorization header does not match the Bittensor scheme")
	}
	ss58 := match[1]
	sigHex := match[2]

	sig, err := decodeSignature(sigHex)
	if err != nil {
		return ParsedHeader{}, err
	}
	return ParsedHeader{SS58: ss58, Signature: sig}, nil
}

func decodeSignature(sigHex string) ([]byte, error) {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return nil, verrf("invalid_signature_encoding", "signature is not valid hex")
	}
	if len(sig) != 64 {
		return nil, verrf("invalid_signature_length", "signature must be 64 bytes, got %d", len(sig))
	}
	return sig, nil
}

// BuildCanonicalRequest reproduces the exact byte string the caller signs:
// METHOD\nPATH?QUERY\nsha256hex(body).
func BuildCanonicalRequest(method, pathWithQuery string, body []byte) []byte {
	bodyHash := sha256.Sum256(body)
	canonical := method + "\n" + pathWithQuery + "\n" + hex.EncodeToString(bodyHash[:])
	return []byte(canonical)
}

// publicKeyFromSS58 decodes an SS58-encoded address to its 32-byte public
// key, dropping the network-id prefix byte and the 2-byte checksum suffix.
func publicKeyFromSS58(address string) ([32]byte, error) {
	var pubkey [32]byte
	decoded, err := base58.Decode(address)
	if err != nil {
		return pubkey, verrf("invalid_ss58_address", "ss58 address %q is not valid base58: %v", address, err)
	}
	if len(decoded) != 35 {
		return pubkey, verrf("invalid_ss58_address", "ss58 address %q has unexpected length", address)
	}
	copy(pubkey[:], decoded[1:33])
	return pubkey, nil
}

// AllowList restricts verification to a known set of hotkeys. A nil or
// empty list accepts any address with a valid signature.
type AllowList []string

func (a AllowList) allows(ss58 string) bool {
	if len(a) == 0 {
		return true
	}
	for _, allowed := range a {
		if allowed == ss58 {
			return true
		}
	}
	return false
}

// VerifySignedRequest checks a caller-presented header against the
// canonical request bytes, returning the verified ss58 hotkey on success.
func VerifySignedRequest(header string, method, pathWithQuery string, body []byte, allowed AllowList) (string, error) {
	parsed, err := ParseHeader(header)
	if err != nil {
		return "", err
	}
	if !allowed.allows(parsed.SS58) {
		return "", verrf("hotkey_not_allowed", "ss58 %q is not in the allow-list", parsed.SS58)
	}

	pubkeyBytes, err := publicKeyFromSS58(parsed.SS58)
	if err != nil {
		return "", err
	}

	canonical := BuildCanonicalRequest(method, pathWithQuery, body)

	var pubkey schnorrkel.PublicKey
	if err := pubkey.Decode(pubkeyBytes); err != nil {
		return "", verrf("invalid_public_key", "failed to decode sr25519 public key: %v", err)
	}

	var sigArr [64]byte
	copy(sigArr[:], parsed.Signature)
	var sig schnorrkel.Signature
	if err := sig.Decode(sigArr); err != nil {
		return "", verrf("invalid_signature", "failed to decode sr25519 signature: %v", err)
	}

	transcript := schnorrkel.NewSigningContext([]byte("substrate"), canonical)
	ok, err := pubkey.Verify(&sig, transcript)
	if err != nil {
		return "", verrf("verification_error", "signature verification error: %v", err)
	}
	if !ok {
		return "", verrf("invalid_signature", "signature does not match the canonical request")
	}
	return parsed.SS58, nil
}
