// Package models contains domain models for feudsurvey.
package models

import (
	"math"
	"sort"
)

// MaxExamples is the number of raw answers kept on a cluster for display.
const MaxExamples = 4

// ClusterSource records which path produced a cluster list.
type ClusterSource string

const (
	SourceLocal    ClusterSource = "local"
	SourceAssisted ClusterSource = "assisted"
)

// Cluster is a canonical group of equivalent answers.
type Cluster struct {
	ID         string   `json:"id,omitempty"`
	Label      string   `json:"label"`
	Members    []string `json:"members"`
	Examples   []string `json:"examples"`
	Count      int      `json:"count"`
	Percentage int      `json:"percentage"`
}

// AddExample appends text unless the cluster already shows MaxExamples answers.
func (c *Cluster) AddExample(text string) {
	if len(c.Examples) < MaxExamples {
		c.Examples = append(c.Examples, text)
	}
}

// Clone returns a deep copy of the cluster.
func (c Cluster) Clone() Cluster {
	out := c
	out.Members = append([]string(nil), c.Members...)
	out.Examples = append([]string(nil), c.Examples...)
	return out
}

// Percentage returns round(count*100/max(1,total)), rounding halves up.
func Percentage(count, total int) int {
	if total < 1 {
		total = 1
	}
	return int(math.Round(float64(count*100) / float64(total)))
}

// Recount sets Count from the member list and Percentage against total
// for every cluster, then orders clusters by descending count. Ties keep
// their relative order.
func Recount(clusters []Cluster, total int) {
	for i := range clusters {
		clusters[i].Count = len(clusters[i].Members)
		clusters[i].Percentage = Percentage(clusters[i].Count, total)
	}
	sort.SliceStable(clusters, func(a, b int) bool {
		return clusters[a].Count > clusters[b].Count
	})
}

// CloneClusters deep-copies a cluster list.
func CloneClusters(clusters []Cluster) []Cluster {
	if clusters == nil {
		return nil
	}
	out := make([]Cluster, len(clusters))
	for i := range clusters {
		out[i] = clusters[i].Clone()
	}
	return out
}
