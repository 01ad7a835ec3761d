package domain

import "net/netip"

// Record is one accepted allocation line of a delegated-statistics ledger.
// Registry, country, date and status pass through unmodified and Start keeps
// the exact address text the ledger carried. End and Blocks are derived once
// by the range summarizer; after validation the record is never mutated.
type Record struct {
	Registry string `json:"registry"`
	Country  string `json:"country"`
	Family   Family `json:"type"`
	Start    string `json:"start"`
	Count    uint64 `json:"count"`
	Date     string `json:"date"`
	Status   string `json:"status"`

	// End is the last address of the allocation, empty for asn records.
	End string `json:"end,omitempty"`
	// Blocks is the minimal canonical CIDR cover of the allocation in
	// increasing address order, nil for asn records.
	Blocks []netip.Prefix `json:"cidrs,omitempty"`
}
