package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Tuple is one externally observed interaction in a JSONL feed file.
type Tuple struct {
	ExternalRef string  `json:"external_ref"`
	Kind        string  `json:"kind"`
	Weight      float64 `json:"weight"`
	ObservedAt  int64   `json:"observed_at"`
	SourceID    string  `json:"source_id"`
	// CreatedAt, when present, discovers the content with an authoritative
	// creation timestamp before the event is recorded.
	CreatedAt int64 `json:"created_at,omitempty"`
}

// ParseFile reads a JSONL feed file into tuples. Malformed lines are
// skipped, not fatal; upstream feed exporters truncate mid-write.
func ParseFile(path string) ([]Tuple, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed file: %w", err)
	}
	defer f.Close()

	var tuples []Tuple
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var t Tuple
		if err := json.Unmarshal(line, &t); err != nil {
			continue
		}
		if t.ExternalRef == "" || t.Kind == "" {
			continue
		}
		tuples = append(tuples, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan feed file: %w", err)
	}
	return tuples, nil
}

// Report summarizes one ingestion run.
type Report struct {
	Recorded   int
	Duplicates int
	Failed     int
}

// Push delivers tuples to the server. Content is discovered before its
// first event; duplicate responses count as delivered.
func Push(c *Client, tuples []Tuple) (*Report, error) {
	report := &Report{}
	discovered := make(map[string]bool)

	for _, t := range tuples {
		if !discovered[t.ExternalRef] {
			createdAt := t.CreatedAt
			if createdAt <= 0 {
				// Feed lines without an authoritative creation time anchor
				// the content at the first observation.
				createdAt = t.ObservedAt
			}
			body, err := json.Marshal(map[string]any{
				"external_ref": t.ExternalRef,
				"created_at":   createdAt,
			})
			if err != nil {
				return report, err
			}
			if _, _, err := c.Post("/api/content", body); err != nil {
				report.Failed++
				continue
			}
			discovered[t.ExternalRef] = true
		}

		body, err := json.Marshal(map[string]any{
			"kind":        t.Kind,
			"weight":      t.Weight,
			"observed_at": t.ObservedAt,
			"source_id":   t.SourceID,
		})
		if err != nil {
			return report, err
		}
		_, status, err := c.Post("/api/content/"+t.ExternalRef+"/events", body)
		switch {
		case err != nil:
			report.Failed++
		case status == 200:
			report.Duplicates++
		default:
			report.Recorded++
		}
	}
	return report, nil
}
