package pipeline

import (
	"encoding/json"

	"github.com/labops/glosa/pkg/audit"
	"github.com/labops/glosa/pkg/classify"
)

// Batch is an ordered, bounded group of divergence records dispatched in a
// single audit call.
type Batch struct {
	Ordinal int // 1-based position in the run
	Records []classify.Record
}

// split partitions records into batches bounded by both an item count and an
// estimated payload budget. Order is preserved and concatenating all batches
// reproduces the input exactly. A record whose view alone exceeds the byte
// budget still gets its own batch; nothing is dropped.
func split(records []classify.Record, maxItems, maxBytes int) []Batch {
	if len(records) == 0 {
		return nil
	}

	var batches []Batch
	var current []classify.Record
	currentBytes := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		batches = append(batches, Batch{Ordinal: len(batches) + 1, Records: current})
		current = nil
		currentBytes = 0
	}

	for _, r := range records {
		size := viewSize(r)
		if len(current) > 0 && (len(current) >= maxItems || currentBytes+size > maxBytes) {
			flush()
		}
		current = append(current, r)
		currentBytes += size
	}
	flush()

	return batches
}

// viewSize estimates a record's contribution to the request payload.
func viewSize(r classify.Record) int {
	data, err := json.Marshal(audit.View(r))
	if err != nil {
		// Views marshal unless decimals are corrupt; assume a generous size
		// so the batch still fits the downstream limit.
		return 256
	}
	return len(data) + 1 // separator
}
