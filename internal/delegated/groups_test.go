package delegated

import (
	"net/netip"
	"reflect"
	"testing"

	"jackdaw/internal/domain"
)

func snapshotRecords(t *testing.T, lines ...string) []domain.Record {
	t.Helper()

	records := make([]domain.Record, 0, len(lines))
	for _, line := range lines {
		rec := expandLine(t, line)
		if !ValidateRecord(rec) {
			t.Fatalf("record from %q failed validation", line)
		}
		records = append(records, rec)
	}
	return records
}

func blockStrings(blocks []netip.Prefix) []string {
	out := make([]string, len(blocks))
	for i, block := range blocks {
		out[i] = block.String()
	}
	return out
}

func TestBuildGroupsGroupsByCountryAndFamily(t *testing.T) {
	records := snapshotRecords(t,
		"apnic|CN|ipv4|1.0.2.0|512|20110414|allocated",
		"apnic|CN|ipv4|1.0.1.0|256|20110414|allocated",
		"apnic|JP|ipv4|1.0.0.0|256|20110412|assigned",
		"apnic|CN|ipv6|2001:dc7::|65536|20040611|allocated",
		"apnic|JP|asn|173|1|20020801|allocated",
	)

	groups := BuildGroups(records)
	if len(groups) != 3 {
		t.Fatalf("BuildGroups produced %d groups, want 3", len(groups))
	}

	cn := groups[GroupKey{Country: "CN", Family: domain.FamilyIPv4}]
	if want := []string{"1.0.1.0/24", "1.0.2.0/23"}; !reflect.DeepEqual(blockStrings(cn), want) {
		t.Errorf("CN ipv4 blocks = %v, want %v", blockStrings(cn), want)
	}

	jp := groups[GroupKey{Country: "JP", Family: domain.FamilyIPv4}]
	if want := []string{"1.0.0.0/24"}; !reflect.DeepEqual(blockStrings(jp), want) {
		t.Errorf("JP ipv4 blocks = %v, want %v", blockStrings(jp), want)
	}

	if _, ok := groups[GroupKey{Country: "JP", Family: domain.FamilyASN}]; ok {
		t.Error("BuildGroups created a group for asn records")
	}
}

func TestBuildGroupsSortsNumerically(t *testing.T) {
	records := snapshotRecords(t,
		"arin|US|ipv4|10.0.0.0|16777216|19940301|allocated",
		"arin|US|ipv4|9.0.0.0|16777216|19920101|allocated",
		"ripencc|DE|ipv6|2001:1200::|65536|20021112|allocated",
		"ripencc|DE|ipv6|2001:200::|65536|19990813|allocated",
	)

	groups := BuildGroups(records)

	v4 := blockStrings(groups[GroupKey{Country: "US", Family: domain.FamilyIPv4}])
	if want := []string{"9.0.0.0/8", "10.0.0.0/8"}; !reflect.DeepEqual(v4, want) {
		t.Errorf("US ipv4 blocks = %v, want %v", v4, want)
	}

	// Lexical order would put 2001:1200:: first; numeric order must not.
	v6 := blockStrings(groups[GroupKey{Country: "DE", Family: domain.FamilyIPv6}])
	if want := []string{"2001:200::/112", "2001:1200::/112"}; !reflect.DeepEqual(v6, want) {
		t.Errorf("DE ipv6 blocks = %v, want %v", v6, want)
	}
}

func TestBuildGroupsDeterministic(t *testing.T) {
	forward := snapshotRecords(t,
		"apnic|CN|ipv4|1.0.1.0|256|20110414|allocated",
		"apnic|CN|ipv4|1.0.2.0|512|20110414|allocated",
		"apnic|CN|ipv4|1.0.8.0|1024|20110414|allocated",
	)
	reversed := []domain.Record{forward[2], forward[1], forward[0]}

	key := GroupKey{Country: "CN", Family: domain.FamilyIPv4}
	got := BuildGroups(reversed)[key]
	want := BuildGroups(forward)[key]
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildGroups depends on input order: %v vs %v", blockStrings(got), blockStrings(want))
	}
}

func TestGroupsBlocksMergesAllCountries(t *testing.T) {
	records := snapshotRecords(t,
		"arin|US|ipv4|10.0.0.0|16777216|19940301|allocated",
		"apnic|CN|ipv4|1.0.1.0|256|20110414|allocated",
		"arin|US|ipv4|9.0.0.0|16777216|19920101|allocated",
		"apnic|JP|ipv6|2001:200::|65536|19990813|allocated",
	)
	groups := BuildGroups(records)

	all := blockStrings(groups.Blocks(domain.FamilyIPv4, ""))
	if want := []string{"1.0.1.0/24", "9.0.0.0/8", "10.0.0.0/8"}; !reflect.DeepEqual(all, want) {
		t.Errorf("merged ipv4 blocks = %v, want %v", all, want)
	}

	us := blockStrings(groups.Blocks(domain.FamilyIPv4, "US"))
	if want := []string{"9.0.0.0/8", "10.0.0.0/8"}; !reflect.DeepEqual(us, want) {
		t.Errorf("US ipv4 blocks = %v, want %v", us, want)
	}

	if got := groups.Blocks(domain.FamilyIPv6, "US"); got != nil {
		t.Errorf("Blocks returned %v for a country with no ipv6 records", blockStrings(got))
	}
}

func TestGroupsCountries(t *testing.T) {
	records := snapshotRecords(t,
		"arin|US|ipv4|9.0.0.0|16777216|19920101|allocated",
		"apnic|CN|ipv4|1.0.1.0|256|20110414|allocated",
		"apnic|JP|ipv6|2001:200::|65536|19990813|allocated",
	)
	groups := BuildGroups(records)

	if got, want := groups.Countries(domain.FamilyIPv4), []string{"CN", "US"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ipv4 countries = %v, want %v", got, want)
	}
	if got, want := groups.Countries(domain.FamilyIPv6), []string{"JP"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ipv6 countries = %v, want %v", got, want)
	}
	if got := groups.Countries(domain.FamilyASN); got != nil {
		t.Errorf("asn countries = %v, want none", got)
	}
}
