// Package assist delegates clustering of a question's responses to a remote
// language model service and falls back to local clustering when that fails.
package assist

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thebtf/feudsurvey/internal/telemetry"
	"github.com/thebtf/feudsurvey/pkg/models"
	"github.com/thebtf/feudsurvey/pkg/similarity"
)

var tracer = otel.Tracer(telemetry.Scope + "/assist")

// Adapter runs assisted clustering against one provider.
type Adapter struct {
	provider Provider
	err      error
}

// New returns an adapter backed by provider.
func New(provider Provider) *Adapter {
	return &Adapter{provider: provider}
}

// FromConfig resolves a provider from cfg. The adapter is always usable: when
// no provider is configured every call fails with KindNotConfigured.
func FromConfig(cfg Config) *Adapter {
	p, err := NewProvider(cfg)
	if err != nil {
		return &Adapter{err: err}
	}
	return &Adapter{provider: p}
}

// Configured reports whether the adapter has a provider.
func (a *Adapter) Configured() bool {
	return a != nil && a.provider != nil
}

// ProviderName returns the active provider's name or "".
func (a *Adapter) ProviderName() string {
	if !a.Configured() {
		return ""
	}
	return a.provider.Name()
}

// Cluster sends one request for the earliest MaxBatch responses and returns
// the validated clusters. There are no retries.
func (a *Adapter) Cluster(ctx context.Context, questionText string, rules models.SynonymRuleSet, responses []models.RawResponse) ([]models.Cluster, error) {
	if !a.Configured() {
		if a != nil && a.err != nil {
			return nil, a.err
		}
		return nil, notConfigured("no provider credentials configured")
	}

	submitted := batch(responses)
	req, err := BuildRequest(questionText, rules, submitted)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "assist.Cluster")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", a.provider.Name()),
		attribute.Int("responses", len(responses)),
		attribute.Int("submitted", len(submitted)),
	)

	log.Debug().
		Str("provider", a.provider.Name()).
		Int("responses", len(responses)).
		Int("submitted", len(submitted)).
		Int("prompt_tokens", estimateTokens(req.System)+estimateTokens(req.Prompt)).
		Msg("Requesting assisted clustering")

	start := time.Now()
	content, err := a.provider.Complete(ctx, req)
	telemetry.RecordAssistDuration(ctx, a.provider.Name(), time.Since(start))
	if err != nil {
		var ae *Error
		if !errors.As(err, &ae) {
			err = upstream(a.provider.Name(), 0, "", err)
		}
		span.RecordError(err)
		return nil, err
	}

	clusters, err := Validate(content, submitted, len(responses))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return clusters, nil
}

// Result is the outcome of Run.
type Result struct {
	Failure  error
	Source   models.ClusterSource
	Clusters []models.Cluster
}

// Run attempts assisted clustering and, on any failure, returns the local
// clustering of the same responses and rules together with the failure.
func (a *Adapter) Run(ctx context.Context, questionText string, rules models.SynonymRuleSet, responses []models.RawResponse) Result {
	if len(responses) == 0 {
		return Result{Source: models.SourceAssisted, Clusters: []models.Cluster{}}
	}

	clusters, err := a.Cluster(ctx, questionText, rules, responses)
	if err == nil {
		return Result{Source: models.SourceAssisted, Clusters: clusters}
	}

	kind := KindOf(err)
	if kind == "" {
		kind = KindUpstream
	}
	telemetry.RecordAssistFailure(ctx, string(kind))
	log.Warn().Err(err).Str("kind", string(kind)).Msg("Assisted clustering failed, falling back to local clustering")

	return Result{
		Source:   models.SourceLocal,
		Clusters: similarity.ClusterResponses(responses, rules),
		Failure:  err,
	}
}
