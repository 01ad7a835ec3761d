package domain

import "time"

// Run captures one completed ingestion of a registry ledger.
type Run struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	Registry string `gorm:"size:16;not null;index"`
	Source   string `gorm:"size:255"`

	TotalLines     int
	ProcessedLines int
	SkippedLines   int

	IPv4Entries   int
	IPv6Entries   int
	ASNEntries    int
	IPv4Countries int
	IPv6Countries int

	DurationMs int64

	Allocations []Allocation `gorm:"foreignKey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

// Allocation archives one accepted ledger record of a run.
type Allocation struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	RunID    uint64 `gorm:"not null;index"`
	Registry string `gorm:"size:16;not null"`
	Country  string `gorm:"size:8;index:idx_allocation_group,priority:1"`
	Family   Family `gorm:"size:8;index:idx_allocation_group,priority:2"`
	Start    string `gorm:"size:64;not null"`
	Count    uint64 `gorm:"not null"`
	Date     string `gorm:"size:16"`
	Status   string `gorm:"size:24"`
	End      string `gorm:"size:64"`

	CIDRs CIDRList `gorm:"type:json"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}
