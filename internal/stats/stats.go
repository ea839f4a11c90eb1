// Package stats holds the small in-process counters the CLI logs when a
// run ends or fails: geometry failures, rows flushed, rows deleted (§8).
package stats

import (
	"strconv"
	"sync/atomic"
)

// Counters accumulates run-wide counts. All fields are safe for
// concurrent use (the Propagate phase updates them from worker
// goroutines).
type Counters struct {
	NodesProcessed     atomic.Int64
	WaysProcessed      atomic.Int64
	RelationsProcessed atomic.Int64
	GeometryFailures   atomic.Int64
	RowsFlushed        atomic.Int64
	RowsDeleted        atomic.Int64
}

// Snapshot is a point-in-time copy of Counters' values, suitable for
// logging or JSON output.
type Snapshot struct {
	NodesProcessed     int64
	WaysProcessed      int64
	RelationsProcessed int64
	GeometryFailures   int64
	RowsFlushed        int64
	RowsDeleted        int64
}

// Snapshot reads every counter's current value.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		NodesProcessed:     c.NodesProcessed.Load(),
		WaysProcessed:      c.WaysProcessed.Load(),
		RelationsProcessed: c.RelationsProcessed.Load(),
		GeometryFailures:   c.GeometryFailures.Load(),
		RowsFlushed:        c.RowsFlushed.Load(),
		RowsDeleted:        c.RowsDeleted.Load(),
	}
}

// String renders a compact one-line summary suitable for a log line.
func (s Snapshot) String() string {
	i := strconv.FormatInt
	return "nodes=" + i(s.NodesProcessed, 10) +
		" ways=" + i(s.WaysProcessed, 10) +
		" relations=" + i(s.RelationsProcessed, 10) +
		" geometry_failures=" + i(s.GeometryFailures, 10) +
		" rows_flushed=" + i(s.RowsFlushed, 10) +
		" rows_deleted=" + i(s.RowsDeleted, 10)
}
