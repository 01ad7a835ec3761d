package cidr

import (
	"net/netip"
	"sort"
)

// SortPrefixes orders blocks by numeric network address. Equal addresses
// order by ascending prefix length so the broader block comes first.
func SortPrefixes(prefixes []netip.Prefix) {
	sort.Slice(prefixes, func(i, j int) bool {
		if c := prefixes[i].Addr().Compare(prefixes[j].Addr()); c != 0 {
			return c < 0
		}
		return prefixes[i].Bits() < prefixes[j].Bits()
	})
}
