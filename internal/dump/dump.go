// Package dump records everything every source answered for every record,
// for debugging matches and for reuse of the fetched metadata.
package dump

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matsen/bibfill/internal/dispatch"
	"github.com/matsen/bibfill/internal/merge"
)

// Attempt is one query sent to a source.
type Attempt struct {
	Query      string `json:"query"`
	URL        string `json:"url,omitempty"`
	Status     int    `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Candidates int    `json:"candidates"`
	Score      int    `json:"score"`
	Error      string `json:"error,omitempty"`

	RateLimited bool `json:"rate_limited,omitempty"`
}

// SourceData is one source's answer for one record.
type SourceData struct {
	Source   string            `json:"source"`
	Skipped  bool              `json:"skipped,omitempty"`
	Score    int               `json:"score"`
	Fields   map[string]string `json:"fields,omitempty"` // The confirmed candidate
	Attempts []Attempt         `json:"attempts,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Record is the dump of one input record. Index is the position of the
// record among the queried entries of Input.
type Record struct {
	Input   string         `json:"input"`
	Index   int            `json:"index"`
	Entry   string         `json:"entry"`
	Sources []SourceData   `json:"sources"`
	Changes []merge.Change `json:"changes,omitempty"`
}

// Dump is the document written by --dump-data.
type Dump struct {
	RunID    string    `json:"run_id"`
	Started  time.Time `json:"started"`
	Input    string    `json:"input"`
	Records  []Record  `json:"records"`
	Complete bool      `json:"complete"` // False when the run was interrupted

	mu sync.Mutex
}

// New starts a dump for input with a fresh run identifier.
func New(input string, started time.Time) *Dump {
	return &Dump{
		RunID:   uuid.Must(uuid.NewV7()).String(),
		Started: started,
		Input:   input,
		Records: []Record{},
	}
}

// Add appends the record built from the reports of one merged record of
// input.
func (d *Dump) Add(input string, index int, entry string, reports []dispatch.Report, changes []merge.Change) {
	rec := Record{Input: input, Index: index, Entry: entry, Changes: changes}
	for _, rep := range reports {
		rec.Sources = append(rec.Sources, sourceData(rep))
	}
	d.mu.Lock()
	d.Records = append(d.Records, rec)
	d.mu.Unlock()
}

func sourceData(rep dispatch.Report) SourceData {
	sd := SourceData{Source: rep.Source, Skipped: rep.Skipped, Score: rep.Result.Score}
	if rep.Err != nil {
		sd.Error = rep.Err.Error()
	}
	if c := rep.Result.Contribution; c != nil {
		sd.Fields = c.Strings()
	}
	for _, att := range rep.Result.Attempts {
		a := Attempt{
			Query:      att.Query.String(),
			URL:        att.URL,
			Status:     att.Status,
			DurationMS: att.Duration.Milliseconds(),
			Candidates: att.Candidates,
			Score:      att.Score,

			RateLimited: att.RateLimited,
		}
		if att.Err != nil {
			a.Error = att.Err.Error()
		}
		sd.Attempts = append(sd.Attempts, a)
	}
	return sd
}

// Write encodes the dump as indented JSON.
func (d *Dump) Write(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("writing data dump: %w", err)
	}
	return nil
}
