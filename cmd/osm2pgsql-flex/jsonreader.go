package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"osm2pgsql-flex/internal/dispatcher"
	"osm2pgsql-flex/internal/osm"
)

// jsonEvent is the on-the-wire shape of one newline-delimited JSON event
// (§6.1): one object per line, discriminated by "kind".
type jsonEvent struct {
	Kind     dispatcher.EventKind `json:"kind"`
	Node     *osm.Node            `json:"node,omitempty"`
	Way      *osm.Way             `json:"way,omitempty"`
	Relation *osm.Relation        `json:"relation,omitempty"`
	DeleteID osm.ID               `json:"delete_id,omitempty"`
}

// ndjsonReader implements dispatcher.Reader over a newline-delimited JSON
// event log, standing in for a real .osm.pbf/diff decoder.
type ndjsonReader struct {
	scanner *bufio.Scanner
}

func newNDJSONReader(r io.Reader) *ndjsonReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &ndjsonReader{scanner: scanner}
}

func (r *ndjsonReader) Next(ctx context.Context) (dispatcher.Event, error) {
	if err := ctx.Err(); err != nil {
		return dispatcher.Event{}, err
	}
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var je jsonEvent
		if err := json.Unmarshal(line, &je); err != nil {
			return dispatcher.Event{}, fmt.Errorf("ndjson reader: decode event: %w", err)
		}
		return dispatcher.Event{
			Kind:     je.Kind,
			Node:     je.Node,
			Way:      je.Way,
			Relation: je.Relation,
			DeleteID: je.DeleteID,
		}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return dispatcher.Event{}, fmt.Errorf("ndjson reader: %w", err)
	}
	return dispatcher.Event{}, io.EOF
}
