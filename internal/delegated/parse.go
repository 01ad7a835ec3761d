package delegated

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"jackdaw/internal/cidr"
	"jackdaw/internal/domain"
)

// ParseLine turns one raw ledger line into an allocation record. Comment and
// blank lines, short lines, unknown family tokens and non-positive counts all
// reject the line; parsing never errors and never panics.
func ParseLine(line string) (domain.Record, bool) {
	if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
		return domain.Record{}, false
	}

	fields := strings.Split(line, "|")
	if len(fields) < 7 {
		return domain.Record{}, false
	}

	family, ok := domain.ParseFamily(fields[2])
	if !ok {
		return domain.Record{}, false
	}

	count, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil || count == 0 {
		return domain.Record{}, false
	}

	return domain.Record{
		Registry: fields[0],
		Country:  fields[1],
		Family:   family,
		Start:    fields[3],
		Count:    count,
		Date:     fields[5],
		Status:   fields[6],
	}, true
}

// Expand derives the end address and the minimal CIDR cover of a parsed
// record. asn records pass through untouched.
func Expand(rec domain.Record) (domain.Record, error) {
	if rec.Family == domain.FamilyASN {
		return rec, nil
	}

	start, err := netip.ParseAddr(rec.Start)
	if err != nil {
		return rec, fmt.Errorf("%w: %q", cidr.ErrInvalidAddress, rec.Start)
	}

	count := cidr.U128From64(rec.Count)
	blocks, err := cidr.Summarize(start, count, rec.Family)
	if err != nil {
		return rec, err
	}
	end, err := cidr.RangeEnd(start, count, rec.Family)
	if err != nil {
		return rec, err
	}

	rec.Blocks = blocks
	rec.End = end.String()
	return rec, nil
}
