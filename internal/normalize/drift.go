package normalize

import (
	"encoding/json"
	"io"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/caldarium/qa-bench/internal/model"
)

// DriftLog collects drift records from the normalizer and the schema
// validator. Safe for concurrent appends; records are never mutated or
// removed once added.
type DriftLog struct {
	mu      sync.Mutex
	records []model.DriftRecord
}

// NewDriftLog creates an empty drift log.
func NewDriftLog() *DriftLog {
	return &DriftLog{}
}

// Append adds one drift record.
func (d *DriftLog) Append(rec model.DriftRecord) {
	d.mu.Lock()
	d.records = append(d.records, rec)
	d.mu.Unlock()
}

// AppendAll adds a batch of records in one lock acquisition.
func (d *DriftLog) AppendAll(recs []model.DriftRecord) {
	if len(recs) == 0 {
		return
	}
	d.mu.Lock()
	d.records = append(d.records, recs...)
	d.mu.Unlock()
}

// Len returns the number of collected records.
func (d *DriftLog) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}

// Records returns a sorted copy of the collected records. Sorting keeps the
// output stable regardless of worker scheduling.
func (d *DriftLog) Records() []model.DriftRecord {
	d.mu.Lock()
	out := make([]model.DriftRecord, len(d.records))
	copy(out, d.records)
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DocID != out[j].DocID {
			return out[i].DocID < out[j].DocID
		}
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Rule < out[j].Rule
	})
	return out
}

// WriteJSONL writes the records to w, one JSON object per line.
func (d *DriftLog) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, rec := range d.Records() {
		if err := enc.Encode(rec); err != nil {
			return eris.Wrap(err, "normalize: write drift record")
		}
	}
	return nil
}
