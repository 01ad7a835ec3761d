package domain

// Family identifies the address family of a ledger allocation.
type Family string

const (
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
	FamilyASN  Family = "asn"
)

// ParseFamily maps the ledger's type field onto a Family. Only the three
// literal tokens of the delegated-statistics format are accepted.
func ParseFamily(raw string) (Family, bool) {
	switch Family(raw) {
	case FamilyIPv4, FamilyIPv6, FamilyASN:
		return Family(raw), true
	}
	return "", false
}

// Bits returns the address width of the family, or 0 for non-IP families.
func (f Family) Bits() int {
	switch f {
	case FamilyIPv4:
		return 32
	case FamilyIPv6:
		return 128
	}
	return 0
}

// IsIP reports whether the family describes IP address space.
func (f Family) IsIP() bool {
	return f == FamilyIPv4 || f == FamilyIPv6
}

func (f Family) String() string {
	return string(f)
}
