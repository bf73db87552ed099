package worker

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/feudsurvey/internal/assist"
	"github.com/thebtf/feudsurvey/internal/curation"
	"github.com/thebtf/feudsurvey/internal/export"
	"github.com/thebtf/feudsurvey/pkg/models"
)

type clustersResponse struct {
	Action curation.MergeAction `json:"action,omitempty"`
	curation.Snapshot
	OK    bool `json:"ok"`
	Stale bool `json:"stale,omitempty"`
}

type questionRequest struct {
	QuestionIndex *int `json:"questionIndex"`
}

type labelRequest struct {
	Label string `json:"label"`
}

// questionIndex resolves the question a request addresses: an explicit body
// value, then the questionIndex query parameter, then the live question.
func (s *Service) questionIndex(r *http.Request, explicit *int) (int, error) {
	if explicit != nil && *explicit >= 0 {
		return *explicit, nil
	}
	if q := r.URL.Query().Get("questionIndex"); q != "" {
		if idx, err := strconv.Atoi(q); err == nil && idx >= 0 {
			return idx, nil
		}
	}
	state, err := s.surveyStore.Get(r.Context())
	if err != nil {
		return 0, err
	}
	return state.CurrentQuestionIndex, nil
}

func (s *Service) handleAIConfig(w http.ResponseWriter, _ *http.Request) {
	status := assist.ResolveStatus(s.config.Assist())
	var provider any
	if status.Provider != "" {
		provider = status.Provider
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": status.Available, "provider": provider})
}

func (s *Service) handleGetClusters(w http.ResponseWriter, r *http.Request) {
	q, err := s.questionIndex(r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve question")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	snap, err := s.ensureBoard(r.Context(), q)
	if err != nil {
		log.Error().Err(err).Int("question", q).Msg("Failed to cluster responses")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, clustersResponse{OK: true, Snapshot: snap})
}

func (s *Service) handleRecompute(w http.ResponseWriter, r *http.Request) {
	var body questionRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	q, err := s.questionIndex(r, body.QuestionIndex)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve question")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	snap, stale, err := s.recompute(r.Context(), q)
	if err != nil {
		log.Error().Err(err).Int("question", q).Msg("Failed to cluster responses")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, clustersResponse{OK: true, Stale: stale, Snapshot: snap})
}

// handleAICluster runs assisted clustering. Failures of the assisted path are
// reported in the snapshot while the board falls back to local clusters.
func (s *Service) handleAICluster(w http.ResponseWriter, r *http.Request) {
	var body questionRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	q, err := s.questionIndex(r, body.QuestionIndex)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve question")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	snap, stale, err := s.clusterAssisted(r.Context(), q)
	if err != nil {
		log.Error().Err(err).Int("question", q).Msg("Assisted clustering request failed")
		writeError(w, http.StatusInternalServerError, "ai_server_error")
		return
	}
	writeJSON(w, http.StatusOK, clustersResponse{OK: true, Stale: stale, Snapshot: snap})
}

func (s *Service) handleMerge(w http.ResponseWriter, r *http.Request) {
	q, err := s.questionIndex(r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve question")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	board := s.registry.Board(q)
	action, err := board.Merge(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, curation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Merge failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	snap := board.Snapshot()
	s.publishBoard(snap)
	writeJSON(w, http.StatusOK, clustersResponse{OK: true, Action: action, Snapshot: snap})
}

func (s *Service) handleEditLabel(w http.ResponseWriter, r *http.Request) {
	var body labelRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	q, err := s.questionIndex(r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve question")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	board := s.registry.Board(q)
	if _, err := board.EditLabel(chi.URLParam(r, "id"), body.Label); err != nil {
		if errors.Is(err, curation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		log.Error().Err(err).Msg("Label edit failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if s.config.RecomputeOnLabelEdit && board.Source() == models.SourceLocal {
		snap, stale, err := s.recompute(r.Context(), q)
		if err != nil {
			log.Error().Err(err).Int("question", q).Msg("Failed to cluster responses")
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		writeJSON(w, http.StatusOK, clustersResponse{OK: true, Stale: stale, Snapshot: snap})
		return
	}

	snap := board.Snapshot()
	s.publishBoard(snap)
	writeJSON(w, http.StatusOK, clustersResponse{OK: true, Snapshot: snap})
}

func (s *Service) handleReviewSheet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := s.questionIndex(r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve question")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	snap, err := s.ensureBoard(ctx, q)
	if err != nil {
		log.Error().Err(err).Int("question", q).Msg("Failed to cluster responses")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	responses, err := s.responseStore.List(ctx, q)
	if err != nil {
		log.Error().Err(err).Int("question", q).Msg("Failed to list responses")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReview(&buf, s.questionText(ctx, q, responses), r.URL.Query().Get("round"), snap.Clusters); err != nil {
		log.Error().Err(err).Msg("Failed to build review sheet")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.ReviewFilename+`"`)
	_, _ = w.Write(buf.Bytes())
}
