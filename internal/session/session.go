// Package session coordinates one browser client's listening session: the
// loaded label set, the listening flag, the status line and the detection
// log fed by inference ticks.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kdimtricp/listenlog/internal/decoder"
	"github.com/kdimtricp/listenlog/internal/detection"
	"github.com/kdimtricp/listenlog/internal/model"
	"github.com/kdimtricp/listenlog/internal/palette"
)

var (
	ErrNoModel      = errors.New("no model loaded")
	ErrNotListening = errors.New("session is not listening")
)

type StatusKind string

const (
	StatusInfo    StatusKind = "info"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

type Status struct {
	Kind    StatusKind `json:"kind"`
	Message string     `json:"message"`
}

type Options struct {
	RecentSize      int
	TimestampLayout string

	// Now is the clock used for record timestamps. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RecentSize <= 0 {
		o.RecentSize = detection.DefaultRecent
	}
	if o.TimestampLayout == "" {
		o.TimestampLayout = "3:04:05 PM"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Tick is what the page renders after one inference callback.
type Tick struct {
	Label          string             `json:"label"`
	Confidence     float64            `json:"confidence"`
	ConfidenceText string             `json:"confidenceText"`
	Color          string             `json:"color"`
	Record         detection.Record   `json:"record"`
	Recent         []detection.Record `json:"recent"`
	HasContent     bool               `json:"hasContent"`
}

// State is a point-in-time copy of the session flags.
type State struct {
	ModelLoaded bool        `json:"modelLoaded"`
	Listening   bool        `json:"listening"`
	HasContent  bool        `json:"hasContent"`
	Status      Status      `json:"status"`
	Model       *model.Info `json:"model,omitempty"`
}

type Session struct {
	ID        string
	CreatedAt time.Time

	opts Options
	log  *detection.Log

	mu        sync.Mutex
	model     *model.Info
	listening bool
	status    Status
	lastSeen  time.Time
}

func newSession(id string, opts Options) *Session {
	opts = opts.withDefaults()
	now := opts.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		opts:      opts,
		log:       detection.NewLog(),
		lastSeen:  now,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		ModelLoaded: s.model != nil,
		Listening:   s.listening,
		HasContent:  !s.log.IsEmpty(),
		Status:      s.status,
		Model:       s.model,
	}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return nil
	}
	return append([]string(nil), s.model.Labels...)
}

// setModel installs a freshly loaded model and starts listening, the same
// way the page does right after a successful load.
func (s *Session) setModel(info *model.Info) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()
	s.model = info
	s.status = Status{
		Kind: StatusSuccess,
		Message: fmt.Sprintf("Model loaded successfully. Found %d classes: %s",
			len(info.Labels), strings.Join(info.Labels, ", ")),
	}
	s.startLocked()
}

func (s *Session) setStatus(kind StatusKind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.status = Status{Kind: kind, Message: message}
}

func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()
	if s.model == nil {
		return ErrNoModel
	}
	s.startLocked()
	return nil
}

func (s *Session) startLocked() {
	s.listening = true
	s.status = Status{Kind: StatusSuccess, Message: "Listening... Speak or make sounds"}
}

// Stop reports whether the session was listening.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()
	if !s.listening {
		return false
	}
	s.listening = false
	s.status = Status{Kind: StatusInfo, Message: "Stopped listening"}
	return true
}

// Observe decodes one score vector against the loaded labels and appends
// the decision to the log. Nothing is appended when decoding fails.
func (s *Session) Observe(scores []float64) (Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()
	if !s.listening || s.model == nil {
		return Tick{}, ErrNotListening
	}

	d, err := decoder.Decide(scores, s.model.Labels)
	if err != nil {
		return Tick{}, err
	}

	ts := s.opts.Now().Format(s.opts.TimestampLayout)
	rec := s.log.Append(ts, d.Label, d.Confidence)

	return Tick{
		Label:          d.Label,
		Confidence:     d.Confidence,
		ConfidenceText: rec.Confidence + "% confidence",
		Color:          palette.For(d.Confidence).CSS(),
		Record:         rec,
		Recent:         s.log.Recent(s.opts.RecentSize),
		HasContent:     true,
	}, nil
}

func (s *Session) Recent() []detection.Record {
	return s.log.Recent(s.opts.RecentSize)
}

func (s *Session) HasContent() bool {
	return !s.log.IsEmpty()
}

// Export returns the whole log as CSV. ok is false, and nothing changes,
// when the log is empty.
func (s *Session) Export() (csv string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()
	if s.log.IsEmpty() {
		return "", false
	}
	csv = s.log.CSV()
	s.status = Status{Kind: StatusSuccess, Message: "Log saved successfully"}
	return csv, true
}

func (s *Session) ExportFilename() string {
	return detection.ExportFilename(s.opts.Now())
}

func (s *Session) ClearLog() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()
	s.log.Clear()
	s.status = Status{Kind: StatusInfo, Message: "Log cleared"}
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// touch must be called with s.mu held.
func (s *Session) touch() {
	s.lastSeen = s.opts.Now()
}
