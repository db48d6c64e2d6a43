// Package diag carries human readable calibration progress to whatever is
// listening. Sinks never influence calibration: a sink that fails or panics
// is ignored.
package diag

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dougsko/scumcal/pkg/logging"
	"github.com/dougsko/scumcal/pkg/tuning"
)

// Kind classifies a diagnostic event
type Kind string

const (
	KindCandidate    Kind = "candidate"
	KindCalibrated   Kind = "calibrated"
	KindFeedback     Kind = "feedback"
	KindSweepWrapped Kind = "sweep_wrapped"
	KindRadioError   Kind = "radio_error"
	KindMilestone    Kind = "milestone"
)

// Event is one line of calibration progress
type Event struct {
	Time    time.Time   `json:"time"`
	Kind    Kind        `json:"kind"`
	Channel int         `json:"channel,omitempty"`
	Mode    tuning.Mode `json:"mode"`
	Code    tuning.Code `json:"code"`
	Message string      `json:"message,omitempty"`
}

// Line renders the event the way the mote prints it on its serial port
func (e Event) Line() string {
	switch e.Kind {
	case KindCandidate:
		return fmt.Sprintf("%s %d %s", e.Mode, e.Channel, e.Code)
	case KindCalibrated:
		return fmt.Sprintf("%s %d *", e.Mode, e.Channel)
	case KindFeedback:
		return fmt.Sprintf("~%d %s", e.Channel, e.Code)
	case KindSweepWrapped:
		return fmt.Sprintf("%s %d wrap %s", e.Mode, e.Channel, e.Code)
	case KindRadioError:
		return "ERR " + e.Message
	default:
		return e.Message
	}
}

// Sink receives diagnostic events
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(Event)

// Emit calls f(e)
func (f SinkFunc) Emit(e Event) { f(e) }

type discard struct{}

func (discard) Emit(Event) {}

// Discard drops every event
var Discard Sink = discard{}

// LineWriter writes one serial style line per event. Write errors are
// dropped.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineWriter creates a LineWriter over w
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// Emit writes the event line
func (lw *LineWriter) Emit(e Event) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, _ = io.WriteString(lw.w, e.Line()+"\n")
}

// LogSink forwards events to the component logger
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a sink logging under the "CAL" component
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit logs the event; radio errors at warn level, candidates at debug
func (s *LogSink) Emit(e Event) {
	fields := map[string]interface{}{"kind": string(e.Kind)}
	if e.Channel != 0 {
		fields["channel"] = e.Channel
		fields["mode"] = e.Mode.String()
	}
	switch e.Kind {
	case KindRadioError:
		s.logger.Warn("CAL", e.Line(), fields)
	case KindCandidate, KindFeedback:
		s.logger.Debug("CAL", e.Line(), fields)
	default:
		s.logger.Info("CAL", e.Line(), fields)
	}
}

// fanout delivers to several sinks, isolating each from the others
type fanout []Sink

// Fanout returns a sink emitting to every non-nil sink in order
func Fanout(sinks ...Sink) Sink {
	var f fanout
	for _, s := range sinks {
		if s != nil {
			f = append(f, s)
		}
	}
	return f
}

func (f fanout) Emit(e Event) {
	for _, s := range f {
		safeEmit(s, e)
	}
}

func safeEmit(s Sink, e Event) {
	defer func() {
		_ = recover()
	}()
	s.Emit(e)
}

// Stamp fills in a zero event time with now
func Stamp(e Event) Event {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	return e
}

// Recorder keeps every event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records the event
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of one kind
func (r *Recorder) OfKind(k Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops the recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
