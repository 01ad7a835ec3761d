package delegated

import (
	"net/netip"

	"jackdaw/internal/cidr"
	"jackdaw/internal/domain"
)

// ValidateRecord re-checks an expanded record before it is accepted: the
// start address must parse under the record's family, the count must be
// positive, every block must round-trip in canonical form, and the blocks
// must tile the allocation exactly. Any failure drops the whole record.
func ValidateRecord(rec domain.Record) bool {
	if rec.Count == 0 {
		return false
	}
	if rec.Family == domain.FamilyASN {
		return len(rec.Blocks) == 0
	}
	if !rec.Family.IsIP() {
		return false
	}

	start, err := netip.ParseAddr(rec.Start)
	if err != nil {
		return false
	}

	for _, block := range rec.Blocks {
		reparsed, err := netip.ParsePrefix(block.String())
		if err != nil || reparsed != block || reparsed.Masked() != reparsed {
			return false
		}
	}

	return cidr.Covers(start, cidr.U128From64(rec.Count), rec.Family, rec.Blocks)
}
