// Package chat answers product questions from canned replies, RAG search
// results and, when configured, an Anthropic model.
package chat

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chem-advisor/internal/config"
	"github.com/sells-group/chem-advisor/internal/model"
	"github.com/sells-group/chem-advisor/internal/rag"
	"github.com/sells-group/chem-advisor/pkg/anthropic"
)

// Answer modes.
const (
	ModeMock           = "mock"
	ModeDisambiguation = "disambiguation"
	ModeLLM            = "llm"
	ModeSearch         = "search"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
	noContextAnswer  = "I could not find information about that. Try naming the product or its manufacturer."
)

// Searcher runs a RAG search. Satisfied by *rag.Service.
type Searcher interface {
	Search(ctx context.Context, query string) (*model.SearchResult, error)
}

// Service produces chat answers.
type Service struct {
	search    Searcher
	llm       anthropic.Client
	prompt    string
	mocks     map[string]string
	model     string
	maxTokens int64
}

// NewService creates a Service. A nil llm returns search content directly.
func NewService(search Searcher, llm anthropic.Client, cfg config.ChatConfig, ac config.AnthropicConfig) *Service {
	mocks := make(map[string]string, len(cfg.MockResponses))
	for k, v := range cfg.MockResponses {
		mocks[mockKey(k)] = v
	}
	s := &Service{
		search:    search,
		llm:       llm,
		prompt:    cfg.SystemPrompt,
		mocks:     mocks,
		model:     ac.Model,
		maxTokens: ac.MaxTokens,
	}
	if s.model == "" {
		s.model = defaultModel
	}
	if s.maxTokens <= 0 {
		s.maxTokens = defaultMaxTokens
	}
	return s
}

// Ask answers one question. Canned replies win, then an ambiguous search
// short-circuits with the selectable options, then the model (or the raw
// search content when no model is configured) answers.
func (s *Service) Ask(ctx context.Context, question string) (*model.ChatAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, eris.New("chat: question is empty")
	}
	ans := &model.ChatAnswer{Question: question}

	if reply, ok := s.mocks[mockKey(question)]; ok {
		ans.Answer = reply
		ans.Mode = ModeMock
		return ans, nil
	}

	res, err := s.search.Search(ctx, question)
	if err != nil {
		return nil, eris.Wrap(err, "chat: search")
	}
	ans.Sources = res.Sources

	if res.DisambiguationDetected && res.Disambiguation != nil {
		ans.Mode = ModeDisambiguation
		ans.Disambiguation = res.Disambiguation
		ans.Answer = res.Disambiguation.Instructions
		return ans, nil
	}

	if s.llm == nil {
		ans.Mode = ModeSearch
		ans.Answer = res.Content
		if strings.TrimSpace(ans.Answer) == "" {
			ans.Answer = noContextAnswer
		}
		return ans, nil
	}

	resp, err := s.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    s.system(res.Content),
		Messages:  []anthropic.Message{{Role: "user", Content: question}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "chat: create message")
	}
	resp.Usage.LogCost(s.model, "chat.ask")

	ans.Mode = ModeLLM
	ans.Model = resp.Model
	if ans.Model == "" {
		ans.Model = s.model
	}
	ans.Answer = resp.Text()
	if ans.Answer == "" {
		zap.L().Warn("chat: empty model reply, falling back to search content", zap.String("question", question))
		ans.Answer = res.Content
	}
	return ans, nil
}

// system puts the fixed prompt first so its cache breakpoint covers it, and
// appends the per-question context uncached.
func (s *Service) system(content string) []anthropic.SystemBlock {
	var blocks []anthropic.SystemBlock
	if s.prompt != "" {
		blocks = anthropic.CachedSystem(s.prompt)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		content = "(no search results)"
	}
	return append(blocks, anthropic.SystemBlock{Text: "Search context:\n" + content})
}

// mockKey normalizes a question for canned-reply lookup.
func mockKey(q string) string {
	return strings.Trim(rag.NormalizeQuery(q), " !?.,;:")
}
