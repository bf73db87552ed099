package worker

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/feudsurvey/internal/synonyms"
	"github.com/thebtf/feudsurvey/internal/worker/sse"
	"github.com/thebtf/feudsurvey/pkg/models"
)

// synonymsRequest accepts rules as an ordered array of {from,to}, as a
// from -> to object, or as "from => to" lines.
type synonymsRequest struct {
	Text     *string         `json:"text"`
	Synonyms json.RawMessage `json:"synonyms"`
}

type synonymsResponse struct {
	Text     string                `json:"text"`
	Synonyms models.SynonymRuleSet `json:"synonyms"`
	Count    int                   `json:"count"`
}

func (s *Service) handleGetSynonyms(w http.ResponseWriter, r *http.Request) {
	rules, err := s.synonymStore.Get(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load synonyms")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, synonymsResponse{Synonyms: rules, Text: rules.Text(), Count: rules.Len()})
}

func (s *Service) handleSetSynonyms(w http.ResponseWriter, r *http.Request) {
	var body synonymsRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	var rules models.SynonymRuleSet
	switch {
	case body.Text != nil:
		rules = synonyms.ParseText(*body.Text)
	case len(body.Synonyms) > 0 && string(body.Synonyms) != "null":
		// JSON is valid YAML, and the YAML parser keeps object key order.
		parsed, err := synonyms.Parse(body.Synonyms)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_synonyms")
			return
		}
		rules = parsed
	default:
		writeError(w, http.StatusBadRequest, "invalid_synonyms")
		return
	}

	if err := s.applySynonyms(r.Context(), rules); err != nil {
		log.Error().Err(err).Msg("Failed to store synonyms")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": rules.Len()})
}

// ReloadSynonyms replaces the stored rules with the contents of the
// configured synonyms file.
func (s *Service) ReloadSynonyms(ctx context.Context) error {
	path := s.config.SynonymsFile
	if path == "" {
		return nil
	}
	rules, err := synonyms.Load(path)
	if err != nil {
		return err
	}
	if err := s.applySynonyms(ctx, rules); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("rules", rules.Len()).Msg("Synonyms loaded from file")
	return nil
}

// applySynonyms stores rules, notifies listeners and reclusters open boards.
func (s *Service) applySynonyms(ctx context.Context, rules models.SynonymRuleSet) error {
	if err := s.synonymStore.Set(ctx, rules); err != nil {
		return fmt.Errorf("store synonyms: %w", err)
	}
	s.sseBroadcaster.Publish(sse.EventSynonyms, synonymsResponse{Synonyms: rules, Text: rules.Text(), Count: rules.Len()})
	s.refreshAll(ctx)
	return nil
}
