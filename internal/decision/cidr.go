package decision

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// CIDRRange is a parsed IPv4 network stored as a (network, mask) pair of
// big-endian uint32s, per the design mandate: the hot path does integer
// bitwise containment, not string/net.IPNet parsing, on every request.
// IPv6 is not supported by design — L1 CIDR bypasses IPv6 requests.
type CIDRRange struct {
	Network uint32
	Mask    uint32
}

// ParseCIDR parses "a.b.c.d/p" (0<=p<=32) into a CIDRRange. It does not use
// net.ParseCIDR's IPNet result for the hot path representation — only for
// validating octet/prefix shape — because the decision engine must not
// re-parse strings per request.
func ParseCIDR(s string) (CIDRRange, error) {
	slash := strings.IndexByte(s, '/')
	if slash < 0 {
		return CIDRRange{}, fmt.Errorf("cidr %q: missing prefix", s)
	}
	ipPart, prefixPart := s[:slash], s[slash+1:]

	ip := net.ParseIP(ipPart)
	if ip == nil {
		return CIDRRange{}, fmt.Errorf("cidr %q: invalid address", s)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return CIDRRange{}, fmt.Errorf("cidr %q: not IPv4", s)
	}

	prefix, err := strconv.Atoi(prefixPart)
	if err != nil || prefix < 0 || prefix > 32 {
		return CIDRRange{}, fmt.Errorf("cidr %q: invalid prefix", s)
	}

	network := binary.BigEndian.Uint32(ip4)
	mask := maskForPrefix(prefix)
	return CIDRRange{Network: network & mask, Mask: mask}, nil
}

func maskForPrefix(prefix int) uint32 {
	if prefix == 0 {
		return 0
	}
	return ^uint32(0) << (32 - prefix)
}

// ParseIPv4 converts a dotted-quad string to its big-endian uint32 form.
// Returns ok=false for anything that isn't a valid IPv4 address, including
// IPv6 literals.
func ParseIPv4(s string) (v uint32, ok bool) {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0, false
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(ip4), true
}

// Contains reports whether ip (as a uint32) falls within r. This is the
// only per-request CIDR operation: a single bitwise AND and compare.
func (r CIDRRange) Contains(ip uint32) bool {
	return ip&r.Mask == r.Network
}

// MatchAny reports whether ip matches any of ranges — the linear scan
// spec.md mandates for CIDR membership (the materialized form is a single
// opaque list, not a trie).
func MatchAny(ranges []CIDRRange, ip uint32) bool {
	for _, r := range ranges {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}
