package geolite

import (
	"net"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"jackdaw/internal/delegated"
)

const defaultSamplePerCountry = 5

// Report summarizes one cross-check of ledger country codes against a
// GeoLite database. It is a data-quality signal only; disagreement never
// drops a record.
type Report struct {
	Checked    int `json:"checked"`
	Agreed     int `json:"agreed"`
	Disagreed  int `json:"disagreed"`
	Unresolved int `json:"unresolved"`
}

// CrossCheck samples the first address of up to samplePerCountry blocks per
// (country, family) pair and asks the resolver where it thinks each address
// lives. Addresses the resolver cannot place count as unresolved.
func CrossCheck(groups delegated.Groups, resolver CountryResolver, samplePerCountry int) Report {
	var report Report
	if resolver == nil || len(groups) == 0 {
		return report
	}
	if samplePerCountry <= 0 {
		samplePerCountry = defaultSamplePerCountry
	}

	keys := make([]delegated.GroupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Country != keys[j].Country {
			return keys[i].Country < keys[j].Country
		}
		return keys[i].Family < keys[j].Family
	})

	for _, key := range keys {
		blocks := groups[key]
		limit := samplePerCountry
		if limit > len(blocks) {
			limit = len(blocks)
		}

		for _, block := range blocks[:limit] {
			report.Checked++

			code, err := resolver.Country(net.IP(block.Addr().AsSlice()))
			if err != nil || code == "" {
				report.Unresolved++
				continue
			}
			if strings.EqualFold(code, key.Country) {
				report.Agreed++
				continue
			}

			report.Disagreed++
			log.Debug("GeoLite disagrees with ledger country",
				"country", key.Country,
				"family", key.Family,
				"block", block,
				"geolite", code,
			)
		}
	}

	return report
}
