// Package events defines the SessionLog event struct (§3 SessionLog) and
// the Listener seam that lets Orchestrator.Run and Orchestrator.StreamEvents
// share one implementation, per the §9 redesign note "separate the core's
// synchronous run() from the streaming adapter by letting run accept a
// listener". It logs each pipeline stage transition via
// log.Info().Str("stage", ...) but keeps a structured, in-process return
// value available to callers instead of only writing to stderr.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Kind enumerates the required event kinds of §6.
type Kind string

const (
	KindPlanning             Kind = "planning"
	KindLegalBriefReady      Kind = "legal_brief_ready"
	KindRepoFetchStart       Kind = "repo_fetch_start"
	KindRepoFetchDone        Kind = "repo_fetch_done"
	KindIndexBuildDone       Kind = "index_build_done"
	KindFileAnalyzed         Kind = "file_analyzed"
	KindPatternTranslateDone Kind = "pattern_translate_done"
	KindPass1Complete        Kind = "pass1_complete"
	KindCandidatesSelected   Kind = "candidates_selected"
	KindPass2Complete        Kind = "pass2_complete"
	KindMergeDone            Kind = "merge_done"
	KindToolFailed           Kind = "tool_failed"
	KindDone                 Kind = "done"
)

// Event is one entry of the append-only SessionLog (§3).
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Stage     Kind                   `json:"stage"`
	Message   string                 `json:"message"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Listener receives each Event as it is emitted. A nil Listener is valid and
// simply means nobody is streaming (the HTTP/SSE shell is the typical
// consumer, but tests use it too).
type Listener func(Event)

// Log is an append-only, mutex-guarded sequence of Events, backing both
// Orchestrator.session_history() and any live listener registered for
// Orchestrator.stream_events (§3, §9).
type Log struct {
	mu       sync.Mutex
	events   []Event
	listener Listener
}

// SetListener installs fn as the live listener. Passing nil disables
// streaming without affecting the retained history.
func (l *Log) SetListener(fn Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listener = fn
}

// Emit appends a new Event and, if a listener is installed, delivers it
// synchronously. Every emission is also mirrored to zerolog at Info level.
func (l *Log) Emit(stage Kind, message string, payload map[string]interface{}) {
	ev := Event{Timestamp: time.Now().UTC(), Stage: stage, Message: message, Payload: payload}

	logEvt := log.Info().Str("stage", string(stage))
	for k, v := range payload {
		logEvt = logEvt.Interface(k, v)
	}
	logEvt.Msg(message)

	l.mu.Lock()
	l.events = append(l.events, ev)
	listener := l.listener
	l.mu.Unlock()

	if listener != nil {
		listener(ev)
	}
}

// Events returns a copy of the retained history (§4.1 session_history()).
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Clear drops the retained history (§4.1 clear_history()) without touching
// the installed listener.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}
