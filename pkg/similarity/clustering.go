// Package similarity provides text similarity and clustering utilities.
package similarity

import (
	"github.com/thebtf/feudsurvey/pkg/models"
	"github.com/thebtf/feudsurvey/pkg/normalize"
)

// Threshold is the minimum Dice score for an answer to join an existing cluster.
const Threshold = 0.82

// ClusterResponses groups responses into canonical clusters in a single greedy pass.
//
// Responses are processed in arrival order. Each normalized answer is scored
// against the label of every cluster formed so far; the first cluster reaching
// the strictly highest score wins, and the answer joins it when that score is at
// least Threshold. Otherwise the answer starts a new cluster labeled with its
// normalized text (or the raw text when normalization leaves nothing).
//
// The result is recomputed from scratch on every call and is fully determined
// by the responses and rules.
func ClusterResponses(responses []models.RawResponse, rules models.SynonymRuleSet) []models.Cluster {
	n := normalize.Compile(rules)
	clusters := make([]models.Cluster, 0)

	for _, r := range responses {
		norm := n.Normalize(r.Text)

		best, bestScore := bestCluster(norm, clusters)

		if best >= 0 && bestScore >= Threshold {
			clusters[best].Members = append(clusters[best].Members, r.ID)
			clusters[best].AddExample(r.Text)
			continue
		}

		label := norm
		if label == "" {
			label = r.Text
		}
		clusters = append(clusters, models.Cluster{
			Label:    label,
			Members:  []string{r.ID},
			Examples: []string{r.Text},
		})
	}

	models.Recount(clusters, len(responses))
	return clusters
}

// bestCluster returns the index of the cluster whose label scores highest
// against text, or -1 when no label scores above zero. A later label must score
// strictly higher to displace an earlier one.
func bestCluster(text string, clusters []models.Cluster) (int, float64) {
	best := -1
	bestScore := 0.0
	for i := range clusters {
		if score := Dice(text, clusters[i].Label); score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best, bestScore
}
