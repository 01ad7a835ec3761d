package delegated

import (
	"net/netip"
	"sort"

	"jackdaw/internal/cidr"
	"jackdaw/internal/domain"
)

// GroupKey addresses one per-country block list of a single family.
type GroupKey struct {
	Country string
	Family  domain.Family
}

// Groups holds the numerically sorted CIDR blocks of every (country, family)
// pair seen in a snapshot. Families are never interleaved.
type Groups map[GroupKey][]netip.Prefix

// BuildGroups folds accepted records into per-country block lists with a
// single deterministic reduction. asn records never contribute blocks.
func BuildGroups(records []domain.Record) Groups {
	groups := make(Groups)
	for _, rec := range records {
		if !rec.Family.IsIP() || len(rec.Blocks) == 0 {
			continue
		}
		key := GroupKey{Country: rec.Country, Family: rec.Family}
		groups[key] = append(groups[key], rec.Blocks...)
	}
	for key := range groups {
		cidr.SortPrefixes(groups[key])
	}
	return groups
}

// Blocks returns the sorted list for one country, or the unfiltered
// all-countries list of the family when country is empty.
func (g Groups) Blocks(family domain.Family, country string) []netip.Prefix {
	if country != "" {
		return g[GroupKey{Country: country, Family: family}]
	}

	var all []netip.Prefix
	for key, blocks := range g {
		if key.Family != family {
			continue
		}
		all = append(all, blocks...)
	}
	cidr.SortPrefixes(all)
	return all
}

// Countries returns the distinct country codes holding blocks of the family,
// in ascending order.
func (g Groups) Countries(family domain.Family) []string {
	var codes []string
	for key := range g {
		if key.Family == family {
			codes = append(codes, key.Country)
		}
	}
	sort.Strings(codes)
	return codes
}
