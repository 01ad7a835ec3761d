package cidr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"jackdaw/internal/domain"
)

var (
	// ErrInvalidAddress rejects a start address that does not belong to the
	// requested family.
	ErrInvalidAddress = errors.New("cidr: start address invalid for family")
	// ErrOutOfRange rejects an empty range or a count that runs past the top
	// of the family's address space.
	ErrOutOfRange = errors.New("cidr: range exceeds address family space")
)

// Summarize produces the minimal canonical CIDR cover of the address range
// [start, start+count-1]. Blocks come back in increasing address order,
// pairwise disjoint, each the largest block that both starts aligned at the
// cursor and fits into the remaining count.
func Summarize(start netip.Addr, count Uint128, family domain.Family) ([]netip.Prefix, error) {
	width := family.Bits()
	cursor, ok := addrValue(start, family)
	if !ok {
		return nil, fmt.Errorf("%w: %s as %s", ErrInvalidAddress, start, family)
	}
	if err := checkRoom(start, cursor, count, width); err != nil {
		return nil, err
	}

	var blocks []netip.Prefix
	remaining := count
	for !remaining.IsZero() {
		align := cursor.TrailingZeros()
		if align > width {
			align = width
		}
		blockBits := remaining.BitLen() - 1
		if align < blockBits {
			blockBits = align
		}

		blocks = append(blocks, netip.PrefixFrom(valueAddr(cursor, family), width-blockBits))

		step := U128From64(1).Lsh(uint(blockBits))
		cursor = cursor.Add(step)
		remaining = remaining.Sub(step)
	}
	return blocks, nil
}

// RangeEnd returns the inclusive last address of the range, under the same
// contract as Summarize.
func RangeEnd(start netip.Addr, count Uint128, family domain.Family) (netip.Addr, error) {
	value, ok := addrValue(start, family)
	if !ok {
		return netip.Addr{}, fmt.Errorf("%w: %s as %s", ErrInvalidAddress, start, family)
	}
	if err := checkRoom(start, value, count, family.Bits()); err != nil {
		return netip.Addr{}, err
	}
	return valueAddr(value.Add(count.Sub(U128From64(1))), family), nil
}

// Covers reports whether blocks tile [start, start+count-1] exactly: in
// increasing order, gap-free and with nothing left over.
func Covers(start netip.Addr, count Uint128, family domain.Family, blocks []netip.Prefix) bool {
	width := family.Bits()
	cursor, ok := addrValue(start, family)
	if !ok || count.IsZero() {
		return false
	}

	remaining := count
	for _, block := range blocks {
		value, ok := addrValue(block.Addr(), family)
		if !ok || block.Bits() < 0 || block.Bits() > width {
			return false
		}
		if value.Cmp(cursor) != 0 {
			return false
		}
		size := U128From64(1).Lsh(uint(width - block.Bits()))
		if size.IsZero() || size.Cmp(remaining) > 0 {
			return false
		}
		cursor = cursor.Add(size)
		remaining = remaining.Sub(size)
	}
	return remaining.IsZero()
}

// checkRoom enforces count >= 1 and start+count-1 <= family maximum. All
// comparisons stay within 128 bits, so no step can overflow.
func checkRoom(start netip.Addr, value, count Uint128, width int) error {
	if count.IsZero() {
		return fmt.Errorf("%w: count is zero", ErrOutOfRange)
	}
	room := maxValue(width).Sub(value)
	if count.Sub(U128From64(1)).Cmp(room) > 0 {
		return fmt.Errorf("%w: range starting at %s does not fit a %d-bit space", ErrOutOfRange, start, width)
	}
	return nil
}

func maxValue(width int) Uint128 {
	if width == 32 {
		return U128From64(1<<32 - 1)
	}
	return Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}
}

func addrValue(addr netip.Addr, family domain.Family) (Uint128, bool) {
	switch family {
	case domain.FamilyIPv4:
		unmapped := addr.Unmap()
		if !unmapped.Is4() {
			return Uint128{}, false
		}
		b := unmapped.As4()
		return U128From64(uint64(b[0])<<24 | uint64(b[1])<<16 | uint64(b[2])<<8 | uint64(b[3])), true
	case domain.FamilyIPv6:
		if !addr.Is6() || addr.Is4In6() {
			return Uint128{}, false
		}
		b := addr.As16()
		return Uint128{
			Hi: binary.BigEndian.Uint64(b[:8]),
			Lo: binary.BigEndian.Uint64(b[8:]),
		}, true
	}
	return Uint128{}, false
}

func valueAddr(value Uint128, family domain.Family) netip.Addr {
	if family == domain.FamilyIPv4 {
		v := uint32(value.Lo)
		return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
	}
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], value.Hi)
	binary.BigEndian.PutUint64(b[8:], value.Lo)
	return netip.AddrFrom16(b)
}
