package core

import "errors"

// Error taxonomy (§7). Each sentinel is wrapped with call-site context via
// fmt.Errorf("...: %w", err) rather than carrying its own payload.
var (
	// ErrConfiguration covers missing credentials or unparseable options.
	// It is fatal at startup: the CLI adapter exits non-zero on this class
	// of error only (§6 exit code policy).
	ErrConfiguration = errors.New("configuration error")

	// ErrTransport covers network/LLM transport failures. llm.OpenAIClient
	// wraps every non-rate-limit provider error in it on the first failure;
	// the client does not retry these.
	ErrTransport = errors.New("transport error")

	// ErrParse covers an LLM response that could not be parsed as the
	// expected JSON shape after the repair cascade (§9).
	ErrParse = errors.New("parse error")

	// ErrRateLimit marks a rate-limited LLM response. codescan.Pool retries
	// work that fails with it, with backoff, and marks the chunk failed once
	// its attempts run out, then continues (§5, §7).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrIngest covers an unreadable PDF or repository.
	ErrIngest = errors.New("ingest error")

	// ErrCancelled covers cooperative cancellation via context.
	ErrCancelled = errors.New("cancelled")

	// ErrNoUsableContent is returned when a tool produced zero usable
	// excerpts (e.g. the legal corpus yielded no chunks, or a repository
	// contained no includable files).
	ErrNoUsableContent = errors.New("no usable content")
)
