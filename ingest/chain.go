package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// primaryParser is the networked document parser the chain tries first.
// *ParserServiceClient satisfies it; tests substitute fakes.
type primaryParser interface {
	Parse(ctx context.Context, filePath string) ([]Node, error)
}

// Chain turns a file into extracted content by trying ordered strategies
// until one succeeds: the cloud parser service, a local structural parser
// for recognized types, then a raw UTF-8 read. Strategies run sequentially
// so the attempt trail stays ordered and the paid parser is called at most
// once per file.
type Chain struct {
	primary      primaryParser
	maxNodeRunes int
	logger       *zap.Logger
}

func NewChain(primary primaryParser, maxNodeRunes int, logger *zap.Logger) *Chain {
	return &Chain{
		primary:      primary,
		maxNodeRunes: maxNodeRunes,
		logger:       logger,
	}
}

// Ingest runs the fallback chain for one file. fileID may be empty, in which
// case one is generated. The returned Result is owned by the caller; nothing
// is shared across requests.
func (c *Chain) Ingest(ctx context.Context, fileID, filePath, mimeHint string) (*Result, error) {
	if fileID == "" {
		fileID = uuid.NewString()
	}
	kind := detectKind(filePath, mimeHint)

	type step struct {
		strategy Strategy
		run      func() ([]Node, error)
	}

	steps := []step{
		{StrategyPrimaryService, func() ([]Node, error) {
			return c.primary.Parse(ctx, filePath)
		}},
	}
	// Plain text has no structural parser of its own; it falls straight
	// through to the raw-text strategy.
	if hasStructuralParser(kind) {
		steps = append(steps, step{StrategyAlternateParser, func() ([]Node, error) {
			return parseLocal(filePath, kind)
		}})
	}
	steps = append(steps, step{StrategyPlainText, func() ([]Node, error) {
		return readPlainText(filePath)
	}})

	attempts := make([]Attempt, 0, len(steps))
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		nodes, err := s.run()
		attempt := Attempt{Strategy: s.strategy, Duration: time.Since(start)}
		if err != nil {
			attempt.Outcome = OutcomeFailure
			attempt.FailureReason = err.Error()
			attempts = append(attempts, attempt)
			c.logger.Warn("Ingestion strategy failed, trying next",
				zap.String("file_id", fileID),
				zap.String("strategy", s.strategy.String()),
				zap.Error(err))
			continue
		}

		attempt.Outcome = OutcomeSuccess
		attempts = append(attempts, attempt)
		c.logger.Info("Ingestion succeeded",
			zap.String("file_id", fileID),
			zap.String("strategy", s.strategy.String()),
			zap.Int("nodes", len(nodes)),
			zap.Int("attempts", len(attempts)))

		return &Result{
			FileID:        fileID,
			FinalStrategy: s.strategy,
			Nodes:         splitOversized(nodes, c.maxNodeRunes, c.logger),
			Attempts:      attempts,
		}, nil
	}

	c.logger.Error("All ingestion strategies exhausted",
		zap.String("file_id", fileID),
		zap.Int("attempts", len(attempts)))
	return nil, &ExhaustedError{Attempts: attempts}
}
