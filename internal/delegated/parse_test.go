package delegated

import (
	"errors"
	"reflect"
	"testing"

	"jackdaw/internal/cidr"
	"jackdaw/internal/domain"
)

func TestParseLineAcceptsAllocation(t *testing.T) {
	rec, ok := ParseLine("apnic|CN|ipv4|1.0.1.0|256|20110414|allocated")
	if !ok {
		t.Fatal("ParseLine rejected a well-formed allocation line")
	}

	want := domain.Record{
		Registry: "apnic",
		Country:  "CN",
		Family:   domain.FamilyIPv4,
		Start:    "1.0.1.0",
		Count:    256,
		Date:     "20110414",
		Status:   "allocated",
	}
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("ParseLine returned %+v, want %+v", rec, want)
	}
}

func TestParseLineKeepsExtensionFields(t *testing.T) {
	rec, ok := ParseLine("ripencc|NL|ipv6|2001:600::|32|19990826|allocated|e05bf941")
	if !ok {
		t.Fatal("ParseLine rejected a line carrying registry extensions")
	}
	if rec.Status != "allocated" {
		t.Fatalf("ParseLine returned status %q, want allocated", rec.Status)
	}
}

func TestParseLinePreservesFieldText(t *testing.T) {
	rec, ok := ParseLine("afrinic|zz|asn|327680|16|20050101|reserved")
	if !ok {
		t.Fatal("ParseLine rejected asn line")
	}
	if rec.Country != "zz" {
		t.Fatalf("ParseLine changed country casing: got %q, want zz", rec.Country)
	}
	if rec.Start != "327680" {
		t.Fatalf("ParseLine changed start text: got %q, want 327680", rec.Start)
	}
}

func TestParseLineRejects(t *testing.T) {
	cases := []struct {
		line     string
		testName string
	}{
		{"", "empty line"},
		{"   ", "whitespace only"},
		{"#delegated-apnic-latest", "comment line"},
		{"# spaced comment", "comment with space"},
		{"2|apnic|20110113|53557|19830613|20110112|+1000", "version header"},
		{"apnic|*|ipv4|*|53557|summary", "summary line"},
		{"apnic|CN|ipv4|1.0.1.0|256|20110414", "six fields"},
		{"apnic|CN|IPv4|1.0.1.0|256|20110414|allocated", "uppercase family"},
		{"apnic|CN|ipv5|1.0.1.0|256|20110414|allocated", "unknown family"},
		{"apnic|CN| ipv4|1.0.1.0|256|20110414|allocated", "padded family"},
		{"apnic|CN|ipv4|1.0.1.0|0|20110414|allocated", "zero count"},
		{"apnic|CN|ipv4|1.0.1.0|abc|20110414|allocated", "non-numeric count"},
		{"apnic|CN|ipv4|1.0.1.0|-5|20110414|allocated", "negative count"},
		{"apnic|CN|ipv4|1.0.1.0|+5|20110414|allocated", "signed count"},
		{"apnic|CN|ipv4|1.0.1.0|2.5|20110414|allocated", "fractional count"},
		{"apnic|CN|ipv4|1.0.1.0|18446744073709551616|20110414|allocated", "count overflows uint64"},
	}

	for _, tc := range cases {
		if _, ok := ParseLine(tc.line); ok {
			t.Errorf("%s: ParseLine accepted %q", tc.testName, tc.line)
		}
	}
}

func TestExpandDerivesBlocksAndEnd(t *testing.T) {
	cases := []struct {
		line     string
		blocks   []string
		end      string
		testName string
	}{
		{"apnic|CN|ipv4|1.0.1.0|256|20110414|allocated", []string{"1.0.1.0/24"}, "1.0.1.255", "aligned /24"},
		{"apnic|CN|ipv4|1.0.2.0|512|20110414|allocated", []string{"1.0.2.0/23"}, "1.0.3.255", "aligned /23"},
		{"apnic|JP|ipv6|2001:200::|32|19990813|allocated", []string{"2001:200::/123"}, "2001:200::1f", "32 addresses give /123"},
		{"arin|US|ipv4|192.168.0.1|4|20000101|assigned", []string{"192.168.0.1/32", "192.168.0.2/31", "192.168.0.4/32"}, "192.168.0.4", "misaligned start"},
	}

	for _, tc := range cases {
		rec, ok := ParseLine(tc.line)
		if !ok {
			t.Fatalf("%s: ParseLine rejected %q", tc.testName, tc.line)
		}

		expanded, err := Expand(rec)
		if err != nil {
			t.Fatalf("%s: Expand returned error: %v", tc.testName, err)
		}

		got := make([]string, len(expanded.Blocks))
		for i, block := range expanded.Blocks {
			got[i] = block.String()
		}
		if !reflect.DeepEqual(got, tc.blocks) {
			t.Errorf("%s: Expand produced blocks %v, want %v", tc.testName, got, tc.blocks)
		}
		if expanded.End != tc.end {
			t.Errorf("%s: Expand produced end %q, want %q", tc.testName, expanded.End, tc.end)
		}
	}
}

func TestExpandLeavesASNUntouched(t *testing.T) {
	rec, ok := ParseLine("apnic|JP|asn|173|1|20020801|allocated")
	if !ok {
		t.Fatal("ParseLine rejected asn line")
	}

	expanded, err := Expand(rec)
	if err != nil {
		t.Fatalf("Expand returned error for asn record: %v", err)
	}
	if !reflect.DeepEqual(expanded, rec) {
		t.Fatalf("Expand modified asn record: got %+v, want %+v", expanded, rec)
	}
	if expanded.Blocks != nil || expanded.End != "" {
		t.Fatal("Expand derived blocks for an asn record")
	}
}

func TestExpandErrors(t *testing.T) {
	cases := []struct {
		line     string
		wantErr  error
		testName string
	}{
		{"apnic|CN|ipv4|not-an-address|256|20110414|allocated", cidr.ErrInvalidAddress, "unparsable start"},
		{"apnic|CN|ipv4|2001:db8::|256|20110414|allocated", cidr.ErrInvalidAddress, "ipv6 start on ipv4 line"},
		{"apnic|JP|ipv6|1.0.1.0|32|19990813|allocated", cidr.ErrInvalidAddress, "ipv4 start on ipv6 line"},
		{"arin|US|ipv4|255.255.255.0|512|20000101|assigned", cidr.ErrOutOfRange, "count past top of space"},
	}

	for _, tc := range cases {
		rec, ok := ParseLine(tc.line)
		if !ok {
			t.Fatalf("%s: ParseLine rejected %q", tc.testName, tc.line)
		}
		if _, err := Expand(rec); !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: Expand returned %v, want %v", tc.testName, err, tc.wantErr)
		}
	}
}
