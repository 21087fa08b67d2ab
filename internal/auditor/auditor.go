// Package auditor implements the Code Auditor's three modes: exhaustive
// line-by-line audit, guideline-wise semantic compliance, and the hybrid
// pipeline that combines both (§4.3). It shares its file walk, chunking, and
// worker pool with the rest of the module (internal/codescan) and takes its
// evidence-grounding pass from internal/verify, keeping fetch, aggregate,
// select, synth, and verify independently testable.
package auditor

import (
	"time"

	"github.com/kolipakulaharsha/guardian/internal/cache"
	"github.com/kolipakulaharsha/guardian/internal/codescan"
	"github.com/kolipakulaharsha/guardian/internal/events"
	"github.com/kolipakulaharsha/guardian/internal/llm"
	"github.com/kolipakulaharsha/guardian/internal/repofetch"
	"github.com/kolipakulaharsha/guardian/internal/synth"
	"github.com/kolipakulaharsha/guardian/internal/verify"
)

// Auditor runs any of the three Code Auditor modes against a freshly cloned
// repository. One Auditor is reused across runs; all per-run state lives in
// the run's own local variables: a stateless-service shape (like
// repofetch.RepoFetcher, synth.Synthesizer) rather than an object with mutable
// run state.
type Auditor struct {
	Client  llm.Client
	Cache   *cache.LLMCache
	Model   string
	Fetcher *repofetch.RepoFetcher

	// Workers, BaseBackoff, and MaxAttempts configure the shared worker pool
	// (§5, default 3 workers / 1s base backoff / 3 attempts).
	Workers     int
	BaseBackoff time.Duration
	MaxAttempts int

	// ChunkSize and Overlap configure audit mode's line-chunking (§4.3.1,
	// default 30 lines / 2-line overlap).
	ChunkSize int
	Overlap   int

	// IndexChunkChars and IndexOverlapChars configure the RAG index shared by
	// compliance and hybrid mode (§4.3.2, default ~1000 chars / 200 overlap).
	IndexChunkChars   int
	IndexOverlapChars int

	// MaxCandidates caps hybrid mode's pass-2 candidate set (§4.3.3 step 4,
	// default 50).
	MaxCandidates int

	// Log receives every stage transition as a SessionLog event (§6). A nil
	// Log is valid; events are simply not recorded.
	Log *events.Log

	synth    *synth.Synthesizer
	verifier *verify.Verifier
}

func (a *Auditor) pool() *codescan.Pool {
	return &codescan.Pool{Workers: a.Workers, BaseBackoff: a.BaseBackoff, MaxAttempts: a.MaxAttempts}
}

func (a *Auditor) chunkSize() int {
	if a.ChunkSize <= 0 {
		return codescan.DefaultChunkSize
	}
	return a.ChunkSize
}

func (a *Auditor) overlap() int {
	if a.Overlap < 0 {
		return codescan.DefaultOverlap
	}
	return a.Overlap
}

func (a *Auditor) indexChunkChars() int {
	if a.IndexChunkChars <= 0 {
		return 1000
	}
	return a.IndexChunkChars
}

func (a *Auditor) indexOverlapChars() int {
	if a.IndexOverlapChars <= 0 {
		return 200
	}
	return a.IndexOverlapChars
}

func (a *Auditor) maxCandidates() int {
	if a.MaxCandidates <= 0 {
		return 50
	}
	return a.MaxCandidates
}

func (a *Auditor) synthesizer() *synth.Synthesizer {
	if a.synth == nil {
		a.synth = &synth.Synthesizer{Client: a.Client, Cache: a.Cache}
	}
	return a.synth
}

func (a *Auditor) groundingVerifier() *verify.Verifier {
	if a.verifier == nil {
		a.verifier = &verify.Verifier{Client: a.Client, Cache: a.Cache, Model: a.Model}
	}
	return a.verifier
}

func (a *Auditor) emit(stage events.Kind, message string, payload map[string]interface{}) {
	if a.Log == nil {
		return
	}
	a.Log.Emit(stage, message, payload)
}
