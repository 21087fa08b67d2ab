// Command guardian-llmstub is a deterministic OpenAI-compatible HTTP stub
// used by integration tests in place of a real model: it routes on the
// distinctive phrasing of the system prompts Guardian's tools send, rather
// than hand-maintaining a request-shape union. The evidence-grounding
// checker's prompt (internal/verify) is not routed and gets a 400.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/embeddings", handleEmbeddings)
	mux.HandleFunc("/v1/chat/completions", handleChat)

	log.Printf("guardian-llmstub listening on %s (model=%s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

// handleEmbeddings returns a small deterministic vector per input string so
// vectorstore cosine similarity is stable across test runs without needing a
// real embedding model.
func handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req embeddingRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	data := make([]map[string]any, len(req.Input))
	for i, text := range req.Input {
		data[i] = map[string]any{
			"embedding": toyVector(text),
			"index":     i,
			"object":    "embedding",
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "object": "list"})
}

// toyVector derives a short vector from text (its byte length, letter count,
// and digit count), so identical text always embeds identically. It does not
// look at vocabulary: texts with similar letter/digit proportions score
// close under cosine similarity whatever their words.
func toyVector(text string) []float32 {
	var letters, digits, length float32
	length = float32(len(text))
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			letters++
		case r >= '0' && r <= '9':
			digits++
		}
	}
	return []float32{length, letters, digits}
}

func handleChat(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req chatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	sys, user := "", ""
	if len(req.Messages) > 0 {
		sys = strings.TrimSpace(req.Messages[0].Content)
	}
	if len(req.Messages) > 1 {
		user = req.Messages[1].Content
	}

	content, ok := routeChat(sys, user)
	if !ok {
		http.Error(w, "unexpected system prompt", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
}

func routeChat(sys, user string) (string, bool) {
	switch {
	case strings.Contains(sys, "planning assistant for a compliance-auditing pipeline"):
		return plannerReply(user), true
	case strings.Contains(sys, "compliance analyst"):
		// Legal Analyst: both the brief and the Q&A system prompts start
		// this way, so fall back to plain prose either way.
		return "Document requires: no hardcoded credentials, encrypt data at rest, log access to sensitive records.", true
	case strings.Contains(sys, "meticulous code auditor"):
		return "[]", true
	case strings.Contains(sys, "translate compliance guidelines"):
		return `{"keywords": ["credential", "password"], "code_patterns": ["hardcoded"], "file_globs": ["**/*.go"]}`, true
	case strings.Contains(sys, "triaging a guideline"):
		return `{"status": "inconclusive", "assessment": "no strong signal", "confidence": "low", "candidate_files": []}`, true
	case strings.Contains(sys, "compliance auditor"):
		return `{"status": "pass", "assessment": "no violations found in excerpts", "confidence": "medium", "evidence": []}`, true
	case strings.Contains(sys, "answering a question about a source repository"):
		return "Based on the excerpts, this repository implements the described functionality.", true
	case strings.Contains(sys, "final-answer synthesizer"):
		return "Summary: see tool results for details.", true
	default:
		return "", false
	}
}

func plannerReply(user string) string {
	plan := map[string]any{
		"tools_needed":    []string{"QA"},
		"execution_order": []string{"QA"},
		"reasoning":       "stub planner: defaulting to QA",
	}
	if strings.Contains(user, ".pdf") {
		plan["tools_needed"] = []string{"LegalAnalyst"}
		plan["execution_order"] = []string{"LegalAnalyst"}
	}
	b, _ := json.Marshal(plan)
	return string(b)
}
