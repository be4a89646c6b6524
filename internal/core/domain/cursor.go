package domain

import "time"

// Cursor is the highest block height already scanned for a chain (inclusive).
type Cursor struct {
	ChainID     string
	BlockNumber uint64
	UpdatedAt   time.Time
}
