package materializer

import (
	"bufio"
	"strings"

	"github.com/autoguard/cloak/internal/decision"
)

// ParsedSource is the result of classifying an external blacklist source's
// feed into the two families that ingestion can populate.
type ParsedSource struct {
	IPs     []string
	CIDRs   []string
	Dropped int
}

// ParseSourceFeed reads one entry per line. "#", "//", and ";" prefix a
// comment (the whole line is discarded). The CSV form "value,reason" takes
// only the first field. Valid IPv4 addresses go to IPs, valid IPv4 CIDRs
// go to CIDRs, everything else is counted as Dropped per spec.md §4.C.
func ParseSourceFeed(raw string) ParsedSource {
	var out ParsedSource

	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") || strings.HasPrefix(line, ";") {
			continue
		}

		value := line
		if idx := strings.IndexByte(line, ','); idx >= 0 {
			value = strings.TrimSpace(line[:idx])
		}
		if value == "" {
			out.Dropped++
			continue
		}

		if strings.Contains(value, "/") {
			if _, err := decision.ParseCIDR(value); err == nil {
				out.CIDRs = append(out.CIDRs, value)
				continue
			}
			out.Dropped++
			continue
		}

		if _, ok := decision.ParseIPv4(value); ok {
			out.IPs = append(out.IPs, value)
			continue
		}

		out.Dropped++
	}
	return out
}
