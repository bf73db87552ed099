package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/feudsurvey/internal/assist"
	"github.com/thebtf/feudsurvey/internal/config"
	"github.com/thebtf/feudsurvey/internal/synonyms"
	"github.com/thebtf/feudsurvey/pkg/models"
	"github.com/thebtf/feudsurvey/pkg/similarity"
)

type clusterOptions struct {
	input         string
	synonymsFile  string
	question      string
	format        string
	questionIndex int
	assisted      bool
}

func newClusterCommand() *cobra.Command {
	opts := clusterOptions{}

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster answers from a file",
		Long: `Cluster a set of answers offline. The input is either a JSON array of
responses or the object returned by GET /api/survey/responses.`,
		Example: `  feudsurvey cluster --input responses.json
  feudsurvey cluster --input responses.json --synonyms synonyms.yaml --assisted`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCluster(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Responses JSON file (- for stdin)")
	cmd.Flags().StringVarP(&opts.synonymsFile, "synonyms", "s", "", "Synonyms file")
	cmd.Flags().StringVar(&opts.question, "question", "", "Question text sent with assisted requests")
	cmd.Flags().IntVarP(&opts.questionIndex, "question-index", "q", -1, "Only cluster answers to this question")
	cmd.Flags().BoolVar(&opts.assisted, "assisted", false, "Use the configured language model, falling back to local clustering")
	cmd.Flags().StringVarP(&opts.format, "format", "o", "table", "Output format: table or json")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runCluster(cmd *cobra.Command, opts clusterOptions) error {
	responses, err := readResponses(opts.input, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if opts.questionIndex >= 0 {
		filtered := responses[:0]
		for _, r := range responses {
			if r.QuestionIndex == opts.questionIndex {
				filtered = append(filtered, r)
			}
		}
		responses = filtered
	}

	var rules models.SynonymRuleSet
	if opts.synonymsFile != "" {
		if rules, err = synonyms.Load(opts.synonymsFile); err != nil {
			return fmt.Errorf("load synonyms: %w", err)
		}
	}

	question := opts.question
	if question == "" && len(responses) > 0 {
		question = responses[0].QuestionText
	}

	result := assist.Result{Source: models.SourceLocal}
	if opts.assisted {
		adapter := assist.FromConfig(config.Get().Assist())
		result = adapter.Run(cmd.Context(), question, rules, responses)
		if result.Failure != nil {
			log.Warn().Err(result.Failure).Msg("Assisted clustering unavailable, showing local clusters")
		}
	} else {
		result.Clusters = similarity.ClusterResponses(responses, rules)
	}

	log.Info().
		Int("responses", len(responses)).
		Int("rules", rules.Len()).
		Int("clusters", len(result.Clusters)).
		Str("source", string(result.Source)).
		Msg("Clustering complete")

	out := cmd.OutOrStdout()
	switch strings.ToLower(opts.format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"source": result.Source, "clusters": result.Clusters})
	case "table", "":
		return renderClusters(out, result.Clusters)
	default:
		return fmt.Errorf("unknown format %q (supported: table, json)", opts.format)
	}
}

// readResponses decodes a response array, or an object holding one under
// "responses". Responses without an id get the next free "r<n>" in file
// order; ids present in the input are never reused.
func readResponses(path string, stdin io.Reader) ([]models.RawResponse, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var responses []models.RawResponse
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Responses []models.RawResponse `json:"responses"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
		responses = wrapped.Responses
	} else if err := json.Unmarshal(trimmed, &responses); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}

	taken := make(map[string]bool, len(responses))
	for _, r := range responses {
		if r.ID != "" {
			taken[r.ID] = true
		}
	}
	n := 0
	for i := range responses {
		if responses[i].ID != "" {
			continue
		}
		id := ""
		for id == "" || taken[id] {
			n++
			id = "r" + strconv.Itoa(n)
		}
		taken[id] = true
		responses[i].ID = id
	}
	return responses, nil
}

func renderClusters(w io.Writer, clusters []models.Cluster) error {
	table := tablewriter.NewTable(w)
	table.Header("#", "Label", "Count", "%", "Examples")
	for i, c := range clusters {
		if err := table.Append(
			strconv.Itoa(i+1),
			c.Label,
			strconv.Itoa(c.Count),
			strconv.Itoa(c.Percentage)+"%",
			strings.Join(c.Examples, " | "),
		); err != nil {
			return err
		}
	}
	return table.Render()
}
