// Package knowledge implements retrieval-augmented context for agent
// replies. Retrieval degrades through three modes: vector similarity,
// full-text search, and a plain listing of the agent's knowledge bases.
package knowledge

// Retrieval tuning. TopK bounds every search mode; ContextMax bounds how
// many items reach the prompt.
const (
	TopK                = 10
	ContextMax          = 5
	SimilarityThreshold = 0.7
	VectorDimension     = 768
)

// Retrieval modes, recorded in the decision trace.
const (
	ModeNone   = "none"
	ModeVector = "vector"
	ModeText   = "text"
	ModeSimple = "simple"
)
