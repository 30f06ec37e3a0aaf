package router

import (
	"context"
	"fmt"
	"sort"

	"rag-gateway/config"
	apperrors "rag-gateway/errors"
	"rag-gateway/web/types"

	"go.uber.org/zap"
)

// LocalPipeline is the v1 collaborator: an in-process call into the local
// retrieval+generation pipeline.
type LocalPipeline interface {
	Answer(ctx context.Context, query string, history []types.Message) (map[string]any, error)
}

// RemoteService is the v2 collaborator: the NodeRAG service reached over
// the network.
type RemoteService interface {
	GenerateResponse(ctx context.Context, orgID, query string, history []types.Message, maxTokens int, temperature float64) (map[string]any, error)
}

// Request is one query to route. Version is fixed for the request's
// lifetime.
type Request struct {
	Query   string
	OrgID   string
	Version Version
	History []types.Message
}

// Envelope is the single backend-agnostic response contract. It is
// assembled once per query and never mutated afterwards.
type Envelope struct {
	Query    string         `json:"query"`
	OrgID    string         `json:"organizationId"`
	Answer   string         `json:"answerText"`
	Sources  []string       `json:"sources"`
	Usage    TokenUsage     `json:"token_usage"`
	Version  string         `json:"backendVersion"`
	Metadata map[string]any `json:"metadata"`
}

// Router dispatches queries by backend version and normalizes the raw
// backend payload into an Envelope. Version selection is the caller's
// explicit contract: a failing backend surfaces as unavailable rather than
// silently answering with the other backend's retrieval semantics.
type Router struct {
	cfg    *config.Config
	local  LocalPipeline
	remote RemoteService
	logger *zap.Logger
}

func New(cfg *config.Config, local LocalPipeline, remote RemoteService, logger *zap.Logger) *Router {
	return &Router{
		cfg:    cfg,
		local:  local,
		remote: remote,
		logger: logger,
	}
}

// Route answers a query against the requested backend version.
func (r *Router) Route(ctx context.Context, req Request) (*Envelope, error) {
	var raw map[string]any
	var err error

	switch req.Version {
	case V1Local:
		raw, err = r.local.Answer(ctx, req.Query, req.History)
	case V2Remote:
		queryCtx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
		defer cancel()
		raw, err = r.remote.GenerateResponse(queryCtx, req.OrgID, req.Query, req.History, r.cfg.MaxAnswerTokens, r.cfg.LLMTemperature)
	default:
		return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidVersion, int(req.Version))
	}

	if err != nil {
		r.logger.Error("Backend invocation failed",
			zap.String("version", req.Version.String()),
			zap.String("org_id", req.OrgID),
			zap.Error(err))
		return nil, fmt.Errorf("%w (%s): %w", apperrors.ErrBackendUnavailable, req.Version, err)
	}

	return r.assemble(raw, req), nil
}

// assemble builds the canonical envelope from a raw backend payload. Fields
// the envelope does not model are passed through in Metadata so downstream
// consumers keep access to backend-specific diagnostics.
func (r *Router) assemble(raw map[string]any, req Request) *Envelope {
	usage, available := NormalizeUsage(raw, req.Version, UsageOptions{ToleranceTokens: r.cfg.ToleranceTokens}, r.logger)

	metadata := make(map[string]any)
	for key, value := range raw {
		switch key {
		case "answer", "response", "sources", "usage":
			continue
		}
		metadata[key] = value
	}
	if !available {
		metadata["usage_unavailable"] = true
	}

	return &Envelope{
		Query:    req.Query,
		OrgID:    req.OrgID,
		Answer:   answerText(raw),
		Sources:  sourceSet(raw["sources"]),
		Usage:    usage,
		Version:  req.Version.String(),
		Metadata: metadata,
	}
}

// answerText accepts both backends' answer field names.
func answerText(raw map[string]any) string {
	if s, ok := raw["answer"].(string); ok {
		return s
	}
	if s, ok := raw["response"].(string); ok {
		return s
	}
	return ""
}

// sourceSet coerces the backend's source list to a deduplicated set.
// Order is not significant; sorting keeps the output deterministic.
func sourceSet(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if strs, ok := v.([]string); ok {
			items = make([]any, len(strs))
			for i, s := range strs {
				items[i] = s
			}
		}
	}

	seen := make(map[string]struct{}, len(items))
	sources := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}
