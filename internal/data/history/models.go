package history

import "time"

const SchemaVersion = 2

// Run is one persisted analysis of a program.
type Run struct {
	ID        string
	Project   string
	Program   string
	Frontend  string
	Input     string
	Timestamp time.Time
	Duration  time.Duration

	Routines     int
	Failures     int
	Instructions int
	Reads        int
	Writes       int
	Calls        int
	Width        int
	Depth        int

	// Regions is filled by LoadRun only.
	Regions []Region
}

// Region is the persisted record of one analyzed region, keyed by its path
// ("routine" or "routine/loop/subloop").
type Region struct {
	Path         string
	Kind         string
	Instructions int
	Blocks       int
	Reads        int
	Writes       int
	Calls        int
	Width        int
	Depth        int
	Skipped      bool
	Error        string
}
