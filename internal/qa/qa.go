// Package qa implements Repository QA (§4.4): a single live session lets the
// user ask repeated questions against one repository with its RAG index
// built only once. It is grounded on the same clone-walk-index shape as
// internal/auditor's compliance mode, narrowed to the Orchestrator's "at
// most one active session" invariant (§3 QASession, §4.4).
package qa

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kolipakulaharsha/guardian/internal/codescan"
	"github.com/kolipakulaharsha/guardian/internal/core"
	"github.com/kolipakulaharsha/guardian/internal/events"
	"github.com/kolipakulaharsha/guardian/internal/llm"
	"github.com/kolipakulaharsha/guardian/internal/repofetch"
	"github.com/kolipakulaharsha/guardian/internal/synth"
	"github.com/kolipakulaharsha/guardian/internal/vectorstore"
)

// DefaultTopK is the retrieval depth for Ask (§4.4, default 5).
const DefaultTopK = 5

// noRelevantContext is the literal fallback answer of §4.4 when retrieval
// returns nothing.
const noRelevantContext = "no relevant context found in repository."

// session is the live QA session's private state: a cloned repo plus its
// index, torn down together on EndSession or replacement.
type session struct {
	repoURL string
	repo    *repofetch.ClonedRepo
	index   *vectorstore.Index
	info    core.QASessionInfo
}

// Manager owns at most one live session at a time (§3 "exactly zero or one
// live session", §4.4 invariant).
type Manager struct {
	Client            llm.Client
	Fetcher           *repofetch.RepoFetcher
	Model             string
	TopK              int
	IndexChunkChars   int
	IndexOverlapChars int
	Log               *events.Log
	Synth             *synth.Synthesizer

	mu  sync.Mutex
	cur *session
}

func (m *Manager) topK() int {
	if m.TopK <= 0 {
		return DefaultTopK
	}
	return m.TopK
}

func (m *Manager) indexChunkChars() int {
	if m.IndexChunkChars <= 0 {
		return 1000
	}
	return m.IndexChunkChars
}

func (m *Manager) indexOverlapChars() int {
	if m.IndexOverlapChars <= 0 {
		return 200
	}
	return m.IndexOverlapChars
}

func (m *Manager) emit(stage events.Kind, message string, payload map[string]interface{}) {
	if m.Log == nil {
		return
	}
	m.Log.Emit(stage, message, payload)
}

// EnsureSession implements §4.4's ensure_session: a no-op if the current
// session already targets repoURL, otherwise destroys any current session
// and clones+indexes a fresh one.
func (m *Manager) EnsureSession(ctx context.Context, repoURL string) (core.QASessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cur != nil && m.cur.repoURL == repoURL {
		return m.cur.info, nil
	}
	if m.cur != nil {
		_ = m.cur.repo.Close()
		m.cur = nil
	}

	m.emit(events.KindRepoFetchStart, "qa repository fetch starting", map[string]interface{}{"repo_url": repoURL})
	clone, err := m.Fetcher.Clone(ctx, repoURL)
	if err != nil {
		return core.QASessionInfo{}, err
	}
	m.emit(events.KindRepoFetchDone, "qa repository cloned", map[string]interface{}{"repo_url": repoURL})

	files, _, err := codescan.Walk(clone.Path, codescan.Options{})
	if err != nil {
		_ = clone.Close()
		return core.QASessionInfo{}, fmt.Errorf("%w: walk qa repository: %v", core.ErrIngest, err)
	}
	idx, chunkCount, err := codescan.BuildIndex(ctx, m.Client, files, m.indexChunkChars(), m.indexOverlapChars())
	if err != nil {
		_ = clone.Close()
		return core.QASessionInfo{}, fmt.Errorf("%w: build qa index: %v", core.ErrTransport, err)
	}
	m.emit(events.KindIndexBuildDone, "qa index built", map[string]interface{}{"chunks": chunkCount})

	info := core.QASessionInfo{
		RepoURL: repoURL, RepoLocalPath: clone.Path,
		ChunkCount: chunkCount, DocCount: len(files), CreatedAt: time.Now().UTC(),
	}
	m.cur = &session{repoURL: repoURL, repo: clone, index: idx, info: info}
	return info, nil
}

// Ask retrieves the top-k chunks for question and synthesizes an answer
// citing only retrieved sources (§4.4 "ask(question)"). An empty retrieval
// set short-circuits to the literal no-context answer without calling the
// model.
func (m *Manager) Ask(ctx context.Context, question string) (core.QAAnswer, error) {
	m.mu.Lock()
	cur := m.cur
	m.mu.Unlock()
	if cur == nil {
		return core.QAAnswer{}, fmt.Errorf("%w: no active qa session", core.ErrConfiguration)
	}

	vec, err := m.Client.Embed(ctx, []string{question})
	if err != nil {
		return core.QAAnswer{}, fmt.Errorf("%w: embed question: %v", core.ErrTransport, err)
	}
	hits := cur.index.TopK(vec[0], m.topK(), nil)
	if len(hits) == 0 {
		return core.QAAnswer{Answer: noRelevantContext}, nil
	}

	system := "You are answering a question about a source repository using only the provided excerpts. " +
		"Cite only files that appear in the excerpts below; never invent a file path. Be concise."
	user := buildQuestionPrompt(question, hits)
	s := m.Synth
	if s == nil {
		s = &synth.Synthesizer{Client: m.Client}
	}
	text, err := s.Synthesize(ctx, m.Model, system, user)
	if err != nil {
		return core.QAAnswer{}, fmt.Errorf("%w: synthesize qa answer: %v", core.ErrTransport, err)
	}

	return core.QAAnswer{Answer: text, Sources: sourcesOf(hits)}, nil
}

// EndSession implements §4.4's end_session: destroys the temp dir and drops
// the index. Calling it with no active session is a no-op.
func (m *Manager) EndSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return nil
	}
	err := m.cur.repo.Close()
	m.cur = nil
	return err
}

// Info reports the current session, if any.
func (m *Manager) Info() (core.QASessionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return core.QASessionInfo{}, false
	}
	return m.cur.info, true
}

// CurrentRepoURL reports the live session's repository URL, or "" if none,
// letting the planner resolve "the repo"/"it"-style references (§4.1).
func (m *Manager) CurrentRepoURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return ""
	}
	return m.cur.repoURL
}

func sourcesOf(hits []vectorstore.Hit) []string {
	seen := map[string]bool{}
	var out []string
	for _, h := range hits {
		if h.Metadata.FilePath == "" || seen[h.Metadata.FilePath] {
			continue
		}
		seen[h.Metadata.FilePath] = true
		out = append(out, h.Metadata.FilePath)
	}
	return out
}

func buildQuestionPrompt(question string, hits []vectorstore.Hit) string {
	out := "Question: " + question + "\n\nExcerpts:\n"
	for _, h := range hits {
		out += fmt.Sprintf("\n[file: %s]\n%s\n", h.Metadata.FilePath, h.Metadata.Text)
	}
	return out
}
