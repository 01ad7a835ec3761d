package lookup

import (
	"net/netip"

	"github.com/gaissmai/bart"

	"jackdaw/internal/delegated"
	"jackdaw/internal/domain"
)

// Match is the country a looked-up address belongs to.
type Match struct {
	Country string        `json:"country"`
	Family  domain.Family `json:"family"`
}

// Index answers IP→country questions with longest-prefix matching over the
// blocks of the last good snapshot. An Index is immutable after Build; the
// refresh job swaps whole indexes atomically.
type Index struct {
	table *bart.Table[string]
}

// Build folds every block of every (country, family) group into one routing
// table. bart keeps separate roots per family, so both live in one table.
func Build(groups delegated.Groups) *Index {
	table := new(bart.Table[string])
	for key, blocks := range groups {
		if !key.Family.IsIP() {
			continue
		}
		for _, block := range blocks {
			if block.IsValid() {
				table.Insert(block, key.Country)
			}
		}
	}
	return &Index{table: table}
}

// Lookup resolves one address. IPv4-mapped IPv6 input is unmapped first so
// ::ffff:a.b.c.d matches IPv4 blocks (bart requires native addresses).
func (ix *Index) Lookup(ip netip.Addr) (Match, bool) {
	if ix == nil || !ip.IsValid() {
		return Match{}, false
	}
	if ip.Is4In6() {
		ip = netip.AddrFrom4(ip.As4())
	}

	country, ok := ix.table.Lookup(ip)
	if !ok {
		return Match{}, false
	}

	family := domain.FamilyIPv6
	if ip.Is4() {
		family = domain.FamilyIPv4
	}
	return Match{Country: country, Family: family}, true
}

// Size returns the number of indexed blocks.
func (ix *Index) Size() int {
	if ix == nil {
		return 0
	}
	return ix.table.Size()
}
