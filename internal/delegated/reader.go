package delegated

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"jackdaw/internal/domain"
)

const progressInterval = 10000

// Options tunes a ledger parse. Workers beyond one shard the lines across a
// bounded errgroup; the merged result is identical to the sequential path.
type Options struct {
	Workers int
}

// Stats counts what a parse saw and what it kept.
type Stats struct {
	TotalLines     int `json:"total_lines"`
	ProcessedLines int `json:"processed_lines"`
	SkippedLines   int `json:"skipped_lines"`
	IPv4Entries    int `json:"ipv4_entries"`
	IPv6Entries    int `json:"ipv6_entries"`
	ASNEntries     int `json:"asn_entries"`
}

// Snapshot is the accepted content of one ledger parse, bucketed by family.
// Records keep their ledger order within each bucket.
type Snapshot struct {
	IPv4 []domain.Record
	IPv6 []domain.Record
	ASN  []domain.Record

	Stats Stats
}

// IPRecords returns the accepted IP-family records, IPv4 bucket first.
func (s *Snapshot) IPRecords() []domain.Record {
	out := make([]domain.Record, 0, len(s.IPv4)+len(s.IPv6))
	out = append(out, s.IPv4...)
	out = append(out, s.IPv6...)
	return out
}

func (s *Snapshot) finalize(totalLines int) {
	s.Stats.TotalLines = totalLines
	s.Stats.ProcessedLines = totalLines - s.Stats.SkippedLines
	s.Stats.IPv4Entries = len(s.IPv4)
	s.Stats.IPv6Entries = len(s.IPv6)
	s.Stats.ASNEntries = len(s.ASN)
}

// ParseReader scans a ledger line by line, running each one through the
// parse, summarize and validate pipeline. Bad lines are skipped and counted,
// never fatal; only an unreadable input aborts.
func ParseReader(ctx context.Context, r io.Reader, opts Options) (*Snapshot, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, fmt.Errorf("delegated: read ledger: %w", err)
	}

	if opts.Workers > 1 {
		return parseSharded(ctx, lines, opts.Workers)
	}
	return parseSequential(ctx, lines)
}

func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	return lines, scanner.Err()
}

func parseSequential(ctx context.Context, lines []string) (*Snapshot, error) {
	snap := &Snapshot{}
	started := time.Now()

	for i, line := range lines {
		if i%progressInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if i > 0 {
				log.Debug("Ledger parse progress", "processed", i, "total", len(lines), "elapsed", time.Since(started))
			}
		}
		consumeLine(snap, line)
	}

	snap.finalize(len(lines))
	return snap, nil
}

func parseSharded(ctx context.Context, lines []string, workers int) (*Snapshot, error) {
	if workers > len(lines) {
		workers = len(lines)
	}
	if workers < 2 {
		return parseSequential(ctx, lines)
	}

	shards := make([]*Snapshot, workers)
	chunk := (len(lines) + workers - 1) / workers

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i := 0; i < workers; i++ {
		lo := i * chunk
		hi := lo + chunk
		if hi > len(lines) {
			hi = len(lines)
		}

		shard := &Snapshot{}
		shards[i] = shard
		if lo >= hi {
			continue
		}

		slice := lines[lo:hi]
		group.Go(func() error {
			for j, line := range slice {
				if j%progressInterval == 0 {
					if err := groupCtx.Err(); err != nil {
						return err
					}
				}
				consumeLine(shard, line)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Concatenating in shard order restores ledger order per family, so the
	// merged snapshot matches the sequential result exactly.
	merged := &Snapshot{}
	for _, shard := range shards {
		merged.IPv4 = append(merged.IPv4, shard.IPv4...)
		merged.IPv6 = append(merged.IPv6, shard.IPv6...)
		merged.ASN = append(merged.ASN, shard.ASN...)
		merged.Stats.SkippedLines += shard.Stats.SkippedLines
	}
	merged.finalize(len(lines))
	return merged, nil
}

func consumeLine(snap *Snapshot, line string) {
	rec, ok := ParseLine(line)
	if !ok {
		snap.Stats.SkippedLines++
		return
	}

	expanded, err := Expand(rec)
	if err != nil {
		snap.Stats.SkippedLines++
		return
	}
	if !ValidateRecord(expanded) {
		snap.Stats.SkippedLines++
		return
	}

	switch expanded.Family {
	case domain.FamilyIPv4:
		snap.IPv4 = append(snap.IPv4, expanded)
	case domain.FamilyIPv6:
		snap.IPv6 = append(snap.IPv6, expanded)
	case domain.FamilyASN:
		snap.ASN = append(snap.ASN, expanded)
	}
}
