package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/feudsurvey/internal/curation"
	"github.com/thebtf/feudsurvey/internal/telemetry"
	"github.com/thebtf/feudsurvey/internal/worker/sse"
	"github.com/thebtf/feudsurvey/pkg/models"
	"github.com/thebtf/feudsurvey/pkg/similarity"
)

// loadQuestion reads the responses to a question and the current synonym rules.
func (s *Service) loadQuestion(ctx context.Context, questionIndex int) ([]models.RawResponse, models.SynonymRuleSet, error) {
	responses, err := s.responseStore.List(ctx, questionIndex)
	if err != nil {
		return nil, models.SynonymRuleSet{}, fmt.Errorf("list responses: %w", err)
	}
	rules, err := s.synonymStore.Get(ctx)
	if err != nil {
		return nil, models.SynonymRuleSet{}, fmt.Errorf("load synonyms: %w", err)
	}
	return responses, rules, nil
}

// questionText returns the text shown for a question: the live question text
// when it is the current one, otherwise the text captured with its answers.
func (s *Service) questionText(ctx context.Context, questionIndex int, responses []models.RawResponse) string {
	state, err := s.surveyStore.Get(ctx)
	if err == nil && state.CurrentQuestionIndex == questionIndex && state.QuestionText != "" {
		return state.QuestionText
	}
	if len(responses) > 0 {
		return responses[0].QuestionText
	}
	return ""
}

// recompute runs a local pass over a question and installs it on its board.
// A pass overtaken by a newer operation is dropped and the board is left as is.
func (s *Service) recompute(ctx context.Context, questionIndex int) (curation.Snapshot, bool, error) {
	board := s.registry.Board(questionIndex)
	return s.localPass(ctx, board, board.Begin(), nil)
}

// localPass clusters locally under ticket. failure is the assisted failure
// the pass stands in for, if any.
func (s *Service) localPass(ctx context.Context, board *curation.Board, ticket curation.Ticket, failure error) (curation.Snapshot, bool, error) {
	responses, rules, err := s.loadQuestion(ctx, board.QuestionIndex())
	if err != nil {
		return curation.Snapshot{}, false, err
	}
	clusters := similarity.ClusterResponses(responses, rules)
	telemetry.RecordPass(ctx, string(models.SourceLocal))

	return s.install(board, ticket, curation.Pass{
		Failure:  failure,
		Source:   models.SourceLocal,
		Clusters: clusters,
		Total:    len(responses),
	})
}

// clusterAssisted runs an assisted pass, falling back to local clustering.
// Refreshes declined while the pass ran are picked up afterwards when the
// board ends up local.
func (s *Service) clusterAssisted(ctx context.Context, questionIndex int) (curation.Snapshot, bool, error) {
	board := s.registry.Board(questionIndex)
	ticket := board.BeginAssisted()

	responses, rules, err := s.loadQuestion(ctx, questionIndex)
	if err != nil {
		board.EndAssisted(ticket)
		return curation.Snapshot{}, false, err
	}
	result := s.assist.Run(ctx, s.questionText(ctx, questionIndex, responses), rules, responses)
	telemetry.RecordPass(ctx, string(result.Source))

	snap, stale, err := s.install(board, ticket, curation.Pass{
		Failure:  result.Failure,
		Source:   result.Source,
		Clusters: result.Clusters,
		Total:    len(responses),
	})
	if board.EndAssisted(ticket) && err == nil && !stale && result.Source == models.SourceLocal {
		// answers arrived while the fallback ran
		return s.localPass(ctx, board, board.Begin(), result.Failure)
	}
	return snap, stale, err
}

// install applies a pass and broadcasts the board. The bool reports whether
// the pass was stale.
func (s *Service) install(board *curation.Board, ticket curation.Ticket, pass curation.Pass) (curation.Snapshot, bool, error) {
	err := board.Replace(ticket, pass)
	if errors.Is(err, curation.ErrStale) {
		log.Debug().
			Int("question", board.QuestionIndex()).
			Str("source", string(pass.Source)).
			Msg("Discarded stale clustering pass")
		return board.Snapshot(), true, nil
	}
	if err != nil {
		return curation.Snapshot{}, false, err
	}

	snap := board.Snapshot()
	s.publishBoard(snap)
	return snap, false, nil
}

func (s *Service) publishBoard(snap curation.Snapshot) {
	s.sseBroadcaster.Publish(sse.EventClusters, snap)
}

// ensureBoard runs a first local pass for a board nobody has looked at yet.
func (s *Service) ensureBoard(ctx context.Context, questionIndex int) (curation.Snapshot, error) {
	board := s.registry.Board(questionIndex)
	if board.Loaded() {
		return board.Snapshot(), nil
	}
	snap, _, err := s.recompute(ctx, questionIndex)
	return snap, err
}

// refreshBoard re-runs local clustering for a question after its answers
// changed. Boards not yet opened, showing an assisted result or waiting on an
// assisted pass are left alone.
func (s *Service) refreshBoard(ctx context.Context, questionIndex int) {
	board := s.registry.Board(questionIndex)
	if !board.Loaded() || board.Source() != models.SourceLocal {
		return
	}
	ticket, ok := board.BeginRefresh()
	if !ok {
		log.Debug().Int("question", questionIndex).Msg("Assisted pass in flight, refresh deferred")
		return
	}
	if _, _, err := s.localPass(ctx, board, ticket, nil); err != nil {
		log.Error().Err(err).Int("question", questionIndex).Msg("Failed to refresh clusters")
	}
}

// refreshAll re-runs local clustering on every open board.
func (s *Service) refreshAll(ctx context.Context) {
	for _, board := range s.registry.Loaded() {
		if _, _, err := s.recompute(ctx, board.QuestionIndex()); err != nil {
			log.Error().Err(err).Int("question", board.QuestionIndex()).Msg("Failed to refresh clusters")
		}
	}
}
