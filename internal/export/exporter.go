package export

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jackdaw/internal/delegated"
	"jackdaw/internal/domain"
)

// Meta describes the run an export belongs to.
type Meta struct {
	Registry    string
	Source      string
	LastUpdated time.Time
}

// Exporter writes the parsed snapshot of one registry under Dir. Every file
// is written to a temp file first and renamed into place, so consumers never
// observe a half-written list.
type Exporter struct {
	Dir string
}

type snapshotDocument struct {
	IPv4     []domain.Record `json:"ipv4"`
	IPv6     []domain.Record `json:"ipv6"`
	ASN      []domain.Record `json:"asn"`
	Metadata metadata        `json:"metadata"`
}

type metadata struct {
	LastUpdated string `json:"last_updated"`
	Source      string `json:"source"`
}

type statsDocument struct {
	TotalIPv4Entries  int    `json:"total_ipv4_entries"`
	TotalIPv6Entries  int    `json:"total_ipv6_entries"`
	TotalASNEntries   int    `json:"total_asn_entries"`
	CountriesWithIPv4 int    `json:"countries_with_ipv4"`
	CountriesWithIPv6 int    `json:"countries_with_ipv6"`
	TotalLines        int    `json:"total_lines"`
	ProcessedLines    int    `json:"processed_lines"`
	SkippedLines      int    `json:"skipped_lines"`
	LastUpdated       string `json:"last_updated"`
}

// Write produces the full export set: the snapshot JSON, the per-country
// JSON groupings, stats.json and the plain-text CIDR lists. countryFilter
// names countries whose list files must exist even when they hold no blocks.
func (e *Exporter) Write(snap *delegated.Snapshot, groups delegated.Groups, meta Meta, countryFilter []string) error {
	if err := e.writeSnapshot(snap, meta); err != nil {
		return err
	}
	if err := e.writeByCountry(snap); err != nil {
		return err
	}
	if err := e.writeStats(snap, meta); err != nil {
		return err
	}
	return e.writeCIDRLists(groups, countryFilter)
}

func (e *Exporter) writeSnapshot(snap *delegated.Snapshot, meta Meta) error {
	doc := snapshotDocument{
		IPv4: nonNil(snap.IPv4),
		IPv6: nonNil(snap.IPv6),
		ASN:  nonNil(snap.ASN),
		Metadata: metadata{
			LastUpdated: meta.LastUpdated.UTC().Format(time.RFC3339),
			Source:      meta.Source,
		},
	}
	return e.writeJSONFile(meta.Registry+"_data.json", doc)
}

func (e *Exporter) writeByCountry(snap *delegated.Snapshot) error {
	if err := e.writeJSONFile("ipv4_by_country.json", recordsByCountry(snap.IPv4)); err != nil {
		return err
	}
	return e.writeJSONFile("ipv6_by_country.json", recordsByCountry(snap.IPv6))
}

func (e *Exporter) writeStats(snap *delegated.Snapshot, meta Meta) error {
	doc := statsDocument{
		TotalIPv4Entries:  len(snap.IPv4),
		TotalIPv6Entries:  len(snap.IPv6),
		TotalASNEntries:   len(snap.ASN),
		CountriesWithIPv4: len(recordsByCountry(snap.IPv4)),
		CountriesWithIPv6: len(recordsByCountry(snap.IPv6)),
		TotalLines:        snap.Stats.TotalLines,
		ProcessedLines:    snap.Stats.ProcessedLines,
		SkippedLines:      snap.Stats.SkippedLines,
		LastUpdated:       meta.LastUpdated.UTC().Format(time.RFC3339),
	}
	return e.writeJSONFile("stats.json", doc)
}

func (e *Exporter) writeCIDRLists(groups delegated.Groups, countryFilter []string) error {
	for _, family := range []domain.Family{domain.FamilyIPv4, domain.FamilyIPv6} {
		all := groups.Blocks(family, "")
		if err := e.writeListFile(listFileName("all", family), all); err != nil {
			return err
		}

		written := make(map[string]struct{})
		for _, country := range groups.Countries(family) {
			blocks := groups.Blocks(family, country)
			if err := e.writeListFile(listFileName(country, family), blocks); err != nil {
				return err
			}
			written[strings.ToUpper(country)] = struct{}{}
		}

		// An explicitly requested country gets its files even when empty.
		for _, country := range countryFilter {
			if _, done := written[strings.ToUpper(country)]; done || country == "" {
				continue
			}
			if err := e.writeListFile(listFileName(country, family), nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// listFileName lower-cases the country only in the path; record data keeps
// the ledger's casing.
func listFileName(country string, family domain.Family) string {
	return filepath.Join("cidr_lists", strings.ToLower(country)+"_"+string(family)+".txt")
}

func (e *Exporter) writeListFile(name string, blocks []netip.Prefix) error {
	var b strings.Builder
	for _, block := range blocks {
		b.WriteString(block.String())
		b.WriteByte('\n')
	}
	return e.writeFile(name, []byte(b.String()))
}

func (e *Exporter) writeJSONFile(name string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal %s: %w", name, err)
	}
	return e.writeFile(name, append(data, '\n'))
}

func (e *Exporter) writeFile(name string, data []byte) error {
	destPath := filepath.Join(e.Dir, name)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("export: create dir for %s: %w", name, err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), "export-*.tmp")
	if err != nil {
		return fmt.Errorf("export: create temp file for %s: %w", name, err)
	}
	defer func() {
		_ = os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("export: write %s: %w", name, err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("export: sync %s: %w", name, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", name, err)
	}

	if err := os.Rename(tmpFile.Name(), destPath); err != nil {
		return fmt.Errorf("export: replace %s: %w", name, err)
	}
	return nil
}

func recordsByCountry(records []domain.Record) map[string][]domain.Record {
	grouped := make(map[string][]domain.Record)
	for _, rec := range records {
		grouped[rec.Country] = append(grouped[rec.Country], rec)
	}
	return grouped
}

func nonNil(records []domain.Record) []domain.Record {
	if records == nil {
		return []domain.Record{}
	}
	return records
}
