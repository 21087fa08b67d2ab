package codescan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kolipakulaharsha/guardian/internal/core"
)

// WorkItem is a single unit of analysis work dispatched to the pool: one
// chunk of one file (§9 "workers receive (file_path, chunk_index,
// chunk_text) work items from a queue").
type WorkItem struct {
	FilePath   string
	ChunkIndex int
	Chunk      Chunk
}

// AnalyzeFunc performs the actual per-chunk LLM analysis. It returns
// core.ErrRateLimit (or an error wrapping it) to signal a rate-limited
// response so the pool's backoff applies; any other error is treated as a
// permanent per-chunk failure after retries are exhausted.
type AnalyzeFunc func(ctx context.Context, item WorkItem) (interface{}, error)

// Pool runs AnalyzeFunc over a stream of WorkItems with bounded concurrency,
// using a concurrency gate (acquire/release via a buffered channel
// semaphore) to keep at most Workers chunk-analysis LLM calls in flight
// (§5, §9).
type Pool struct {
	// Workers bounds concurrent in-flight analyses. Default 3 (free-tier
	// quota), configurable up to 10-20 (§5).
	Workers int
	// BaseBackoff is the base of the exponential backoff schedule
	// (base * 2^attempt). Default 1 second (§5).
	BaseBackoff time.Duration
	// MaxAttempts caps retries per chunk before it is marked failed.
	// Default 3 (§5).
	MaxAttempts int
	// Sleep is overridable in tests to avoid real waits.
	Sleep func(time.Duration)
}

// Result pairs a WorkItem with its outcome: either a decoded value or a
// terminal failure after MaxAttempts.
type Result struct {
	Item   WorkItem
	Value  interface{}
	Failed bool
	Err    error
}

func (p *Pool) workers() int {
	if p.Workers <= 0 {
		return 3
	}
	return p.Workers
}

func (p *Pool) baseBackoff() time.Duration {
	if p.BaseBackoff <= 0 {
		return time.Second
	}
	return p.BaseBackoff
}

func (p *Pool) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 3
	}
	return p.MaxAttempts
}

func (p *Pool) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Run dispatches items to Workers goroutines, each retrying rate-limited
// calls with exponential backoff (base * 2^attempt, capped at MaxAttempts)
// before marking the chunk analysis-failed and continuing — a worker never
// aborts the whole job on a single chunk's failure (§5, §7 RateLimitError,
// §8 scenario 5 "rate-limit survival"). Results are delivered on the
// returned channel in completion order (as-each-completes, §5); callers that
// need deterministic output must sort.
func (p *Pool) Run(ctx context.Context, items []WorkItem, analyze AnalyzeFunc) <-chan Result {
	out := make(chan Result, len(items))
	sem := make(chan struct{}, p.workers())
	var wg sync.WaitGroup

	for _, item := range items {
		item := item
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out <- p.runOne(ctx, item, analyze)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (p *Pool) runOne(ctx context.Context, item WorkItem, analyze AnalyzeFunc) Result {
	attempts := p.maxAttempts()
	base := p.baseBackoff()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return Result{Item: item, Failed: true, Err: ctx.Err()}
		}
		value, err := analyze(ctx, item)
		if err == nil {
			return Result{Item: item, Value: value}
		}
		lastErr = err
		if !errors.Is(err, core.ErrRateLimit) {
			break
		}
		if attempt == attempts-1 {
			break
		}
		wait := base * time.Duration(1<<uint(attempt))
		log.Warn().Str("stage", "scanning").Str("file", item.FilePath).Int("chunk", item.ChunkIndex).Dur("backoff", wait).Msg("rate limited, retrying")
		p.sleep(wait)
	}
	log.Warn().Str("stage", "scanning").Str("file", item.FilePath).Int("chunk", item.ChunkIndex).Err(lastErr).Msg("chunk analysis failed")
	return Result{Item: item, Failed: true, Err: lastErr}
}
