package ingest

import (
	"fmt"
	"strings"
	"time"
)

// Strategy identifies one ordered step of the ingestion fallback chain.
type Strategy int

const (
	StrategyPrimaryService Strategy = iota
	StrategyAlternateParser
	StrategyPlainText
)

func (s Strategy) String() string {
	switch s {
	case StrategyPrimaryService:
		return "primary_service"
	case StrategyAlternateParser:
		return "alternate_parser"
	case StrategyPlainText:
		return "plain_text"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// Outcome records whether a strategy produced content.
type Outcome int

const (
	OutcomeFailure Outcome = iota
	OutcomeSuccess
)

func (o Outcome) String() string {
	if o == OutcomeSuccess {
		return "success"
	}
	return "failure"
}

// Attempt is one immutable entry of the per-file audit trail. The ordered
// sequence of attempts records which strategies ran and why each failed.
type Attempt struct {
	Strategy      Strategy      `json:"strategy"`
	Outcome       Outcome       `json:"outcome"`
	FailureReason string        `json:"failureReason,omitempty"`
	Duration      time.Duration `json:"durationMs"`
}

// Node is one unit of extracted content. Title and Page are optional
// structure recovered by the parser; Text is never empty on a stored node.
type Node struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
	Page  int    `json:"page,omitempty"`
}

// Result is the outcome of a successful ingestion. Exactly one attempt in
// Attempts has OutcomeSuccess, and Nodes comes from that attempt alone.
type Result struct {
	FileID        string    `json:"fileId"`
	FinalStrategy Strategy  `json:"finalStrategy"`
	Nodes         []Node    `json:"nodes"`
	Attempts      []Attempt `json:"attempts"`
}

// ExhaustedError reports that every applicable strategy failed. It carries
// the full attempt trail so callers can surface what was tried.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	reasons := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		reasons = append(reasons, fmt.Sprintf("%s: %s", a.Strategy, a.FailureReason))
	}
	return "all ingestion strategies exhausted: " + strings.Join(reasons, "; ")
}
