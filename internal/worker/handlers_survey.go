package worker

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/feudsurvey/internal/db/gorm"
	"github.com/thebtf/feudsurvey/internal/export"
	"github.com/thebtf/feudsurvey/internal/worker/sse"
	"github.com/thebtf/feudsurvey/pkg/models"
)

type stateResponse struct {
	models.SurveyState
	TotalResponses int64 `json:"totalResponses"`
}

type addResponseRequest struct {
	QuestionIndex *int   `json:"questionIndex"`
	Raw           string `json:"raw"`
	ClientID      string `json:"clientId"`
}

// decodeBody decodes a JSON request body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// clientIP returns the forwarded-for chain when present, else the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Service) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.surveyStore.Get(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read survey state")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	total, err := s.responseStore.Count(r.Context(), state.CurrentQuestionIndex)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count responses")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{SurveyState: state, TotalResponses: total})
}

func (s *Service) handleSetState(w http.ResponseWriter, r *http.Request) {
	var update models.SurveyStateUpdate
	if err := decodeBody(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	state, err := s.surveyStore.Update(r.Context(), update)
	if err != nil {
		log.Error().Err(err).Msg("Failed to update survey state")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	log.Info().
		Bool("active", state.Active).
		Int("question", state.CurrentQuestionIndex).
		Bool("has_text", state.QuestionText != "").
		Msg("Survey state changed")

	s.sseBroadcaster.Publish(sse.EventSurvey, state)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": state})
}

func (s *Service) handleAddResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, err := s.surveyStore.Get(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read survey state")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !state.Active {
		writeError(w, http.StatusBadRequest, "survey_inactive")
		return
	}

	var body addResponseRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	text := strings.TrimSpace(body.Raw)
	if text == "" {
		writeError(w, http.StatusBadRequest, "empty")
		return
	}

	questionIndex := state.CurrentQuestionIndex
	if body.QuestionIndex != nil && *body.QuestionIndex >= 0 {
		questionIndex = *body.QuestionIndex
	}

	resp := models.NewRawResponse(questionIndex, state.QuestionText, state.SessionID, body.ClientID, text)
	resp.IP = clientIP(r)
	id, err := s.responseStore.Append(ctx, resp)
	if err != nil {
		log.Error().Err(err).Msg("Failed to store response")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	clientTag := body.ClientID
	if len(clientTag) > 8 {
		clientTag = clientTag[:8]
	}
	log.Debug().Int("question", questionIndex).Int("len", len(text)).Str("client", clientTag).Msg("Response received")

	s.sseBroadcaster.Publish(sse.EventResponse, map[string]any{"id": id, "questionIndex": questionIndex})
	s.refreshBoard(ctx, questionIndex)

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (s *Service) handleGetResponses(w http.ResponseWriter, r *http.Request) {
	var (
		responses []models.RawResponse
		err       error
	)
	if q := r.URL.Query().Get("questionIndex"); q != "" {
		idx, convErr := strconv.Atoi(q)
		if convErr != nil || idx < 0 {
			writeError(w, http.StatusBadRequest, "invalid_question")
			return
		}
		responses, err = s.responseStore.List(r.Context(), idx)
	} else {
		responses, err = s.responseStore.All(r.Context(), gorm.ParseLimitParam(r, 0))
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to list responses")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": s.config.SessionID, "responses": responses})
}

func (s *Service) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	responses, err := s.responseStore.All(r.Context(), 0)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list responses for export")
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.CSVFilename+`"`)
	if err := export.WriteCSV(w, responses); err != nil {
		log.Error().Err(err).Msg("Failed to write CSV export")
	}
}
