package k8sdns

import (
	"net"
	"sort"
)

// sortUniqueIPs returns the textual representation of ips, ascending
// lexicographically, with duplicates removed. This is the canonicalization
// spec invariant 1 requires and the basis for change detection between
// successive resolutions.
func sortUniqueIPs(ips []net.IP) []string {
	seen := make(map[string]struct{}, len(ips))
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		s := ip.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// addrsEqual reports whether a and b contain the same sequence of
// addresses in the same order. Both are assumed already canonicalized by
// sortUniqueIPs.
func addrsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
