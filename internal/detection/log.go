package detection

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultRecent = 10
	CSVHeader     = "Timestamp,Label,Confidence"
)

type Record struct {
	Timestamp  string `json:"timestamp"`
	Label      string `json:"label"`
	Confidence string `json:"confidence"`
}

// Log is the in-memory detection history of one listening session.
// Records are kept in insertion order; Clear is the only way to drop them.
type Log struct {
	mu      sync.RWMutex
	records []Record
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(timestamp, label string, confidence float64) Record {
	rec := Record{
		Timestamp:  timestamp,
		Label:      label,
		Confidence: FormatConfidence(confidence),
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()

	return rec
}

// Recent returns up to n records, newest first.
func (l *Log) Recent(n int) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || len(l.records) == 0 {
		return []Record{}
	}
	if n > len(l.records) {
		n = len(l.records)
	}

	out := make([]Record, 0, n)
	for i := len(l.records) - 1; i >= len(l.records)-n; i-- {
		out = append(out, l.records[i])
	}
	return out
}

func (l *Log) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// CSV serializes the whole log in chronological order. Fields are joined
// as-is; a label containing a comma will shift columns.
func (l *Log) CSV() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	b.WriteString(CSVHeader)
	b.WriteByte('\n')
	for i, rec := range l.records {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(rec.Timestamp)
		b.WriteByte(',')
		b.WriteString(rec.Label)
		b.WriteByte(',')
		b.WriteString(rec.Confidence)
	}
	return b.String()
}

func (l *Log) Clear() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *Log) IsEmpty() bool {
	return l.Len() == 0
}

// FormatConfidence renders a [0,1] score as a percentage with one decimal.
func FormatConfidence(confidence float64) string {
	return strconv.FormatFloat(confidence*100, 'f', 1, 64)
}

func ExportFilename(t time.Time) string {
	return "listening-log-" + t.Format("2006-01-02") + ".csv"
}
