package dnscheck

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// tokenSalt is a constant, non-secret domain separator for the verification
// token. It does not need to stay private — the token's unforgeability
// comes from the offer being the only thing that can publish the matching
// TXT record and serve the matching ping response, not from this salt.
const tokenSalt = "autoguard-domain-verify-v1"

// DeriveToken computes the deterministic verification token for an offer's
// subdomain: HMAC-SHA256(salt, subdomain), base64-url-encoded and truncated
// to 12 characters with padding/URL-unsafe characters stripped.
func DeriveToken(subdomain string) string {
	mac := hmac.New(sha256.New, []byte(tokenSalt))
	mac.Write([]byte(subdomain))
	sum := mac.Sum(nil)

	encoded := base64.URLEncoding.EncodeToString(sum)
	encoded = strings.NewReplacer("+", "", "/", "", "=", "").Replace(encoded)
	if len(encoded) > 12 {
		encoded = encoded[:12]
	}
	return encoded
}
