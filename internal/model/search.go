package model

import (
	"encoding/json"
	"time"
)

// SearchSource is a document the RAG service cited.
type SearchSource struct {
	Title string  `json:"title"`
	URL   string  `json:"url,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// SearchResult is the answer returned by the RAG search service.
type SearchResult struct {
	Query                  string              `json:"query"`
	Content                string              `json:"content"`
	Sources                []SearchSource      `json:"sources,omitempty"`
	DisambiguationDetected bool                `json:"disambiguation_detected"`
	Disambiguation         *DisambiguationData `json:"disambiguation,omitempty"`
	Cached                 bool                `json:"cached"`
	Raw                    json.RawMessage     `json:"raw,omitempty"`
	Duration               time.Duration       `json:"duration_ns"`
}

// ChatAnswer is the reply produced for one chat question.
type ChatAnswer struct {
	Question       string              `json:"question"`
	Answer         string              `json:"answer"`
	Mode           string              `json:"mode"`
	Sources        []SearchSource      `json:"sources,omitempty"`
	Disambiguation *DisambiguationData `json:"disambiguation,omitempty"`
	Model          string              `json:"model,omitempty"`
}
