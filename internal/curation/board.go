// Package curation holds the per-question cluster boards an operator reviews:
// the current cluster list, the pending merge target and curated labels.
package curation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/thebtf/feudsurvey/internal/telemetry"
	"github.com/thebtf/feudsurvey/pkg/models"
)

var (
	// ErrNotFound is returned when a cluster id is not on the board.
	ErrNotFound = errors.New("cluster not found")
	// ErrStale is returned when a pass result was started before the
	// board's latest applied operation.
	ErrStale = errors.New("stale clustering result")
)

// Ticket orders operations on a board. Higher tickets started later.
type Ticket uint64

// Pass is the outcome of one clustering pass.
type Pass struct {
	Failure  error
	Source   models.ClusterSource
	Clusters []models.Cluster
	Total    int
}

// MergeAction describes what a Merge call did.
type MergeAction string

const (
	MergeArmed    MergeAction = "armed"
	MergeDisarmed MergeAction = "disarmed"
	MergeApplied  MergeAction = "merged"
)

// Snapshot is a copy of a board's state.
type Snapshot struct {
	Source        models.ClusterSource `json:"source,omitempty"`
	Failure       string               `json:"failure,omitempty"`
	FailureKind   string               `json:"failureKind,omitempty"`
	MergeTarget   string               `json:"mergeTarget,omitempty"`
	Clusters      []models.Cluster     `json:"clusters"`
	QuestionIndex int                  `json:"questionIndex"`
	Total         int                  `json:"total"`
	Loaded        bool                 `json:"loaded"`
}

// Board is the cluster list under review for one question.
type Board struct {
	failure       error
	computed      map[string]string // cluster id -> label produced by the pass
	curated       map[string]string // computed label -> operator label
	source        models.ClusterSource
	mergeTarget   string
	clusters      []models.Cluster
	issued        Ticket
	applied       Ticket
	assisting     Ticket // outstanding assisted pass, 0 when none
	missed        bool   // a refresh was declined while assisting
	total         int
	questionIndex int
	mu            sync.Mutex
}

// NewBoard returns an empty board for questionIndex.
func NewBoard(questionIndex int) *Board {
	return &Board{
		questionIndex: questionIndex,
		computed:      make(map[string]string),
		curated:       make(map[string]string),
	}
}

// QuestionIndex returns the question the board belongs to.
func (b *Board) QuestionIndex() int {
	return b.questionIndex
}

// Begin issues the ticket for a pass about to start.
func (b *Board) Begin() Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next()
}

// BeginAssisted issues the ticket for an assisted pass. Until EndAssisted is
// called with it, BeginRefresh declines to start passes on the board.
func (b *Board) BeginAssisted() Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assisting = b.next()
	return b.assisting
}

// EndAssisted clears the outstanding assisted pass t and reports whether a
// refresh was declined while it ran. A superseded t is ignored.
func (b *Board) EndAssisted(t Ticket) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.assisting != t {
		return false
	}
	missed := b.missed
	b.assisting = 0
	b.missed = false
	return missed
}

// BeginRefresh issues the ticket for a pass triggered by new answers. While an
// assisted pass is outstanding no ticket is issued and ok is false.
func (b *Board) BeginRefresh() (t Ticket, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.assisting != 0 {
		b.missed = true
		return 0, false
	}
	return b.next(), true
}

func (b *Board) next() Ticket {
	b.issued++
	return b.issued
}

// Replace installs a pass result. Results started before the last applied
// operation are dropped with ErrStale. Cluster ids are assigned, curated
// labels are reapplied and the pending merge target is cleared.
func (b *Board) Replace(t Ticket, pass Pass) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t <= b.applied {
		return ErrStale
	}
	b.applied = t

	clusters := models.CloneClusters(pass.Clusters)
	if clusters == nil {
		clusters = []models.Cluster{}
	}
	computed := make(map[string]string, len(clusters))
	for i := range clusters {
		clusters[i].ID = uuid.NewString()
		computed[clusters[i].ID] = clusters[i].Label
		if label, ok := b.curated[clusters[i].Label]; ok {
			clusters[i].Label = label
		}
	}

	b.clusters = clusters
	b.computed = computed
	b.source = pass.Source
	b.failure = pass.Failure
	b.total = pass.Total
	b.mergeTarget = ""
	return nil
}

// Merge implements the two-click merge. The first call arms id as the
// target; calling again with the same id disarms it; calling with another id
// moves that cluster's members and examples into the target and removes it.
// The target stays armed after a merge.
func (b *Board) Merge(ctx context.Context, id string) (MergeAction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	src := b.indexOf(id)
	if src < 0 {
		return "", ErrNotFound
	}
	if b.mergeTarget == "" {
		b.mergeTarget = id
		return MergeArmed, nil
	}
	if b.mergeTarget == id {
		b.mergeTarget = ""
		return MergeDisarmed, nil
	}

	dst := b.indexOf(b.mergeTarget)
	if dst < 0 {
		// target vanished under a replace; arm the new id instead
		b.mergeTarget = id
		return MergeArmed, nil
	}

	// merging supersedes any pass still in flight
	b.applied = b.next()

	target := &b.clusters[dst]
	absorbed := b.clusters[src]
	target.Members = append(target.Members, absorbed.Members...)
	examples := append(target.Examples, absorbed.Examples...)
	if len(examples) > models.MaxExamples {
		examples = examples[:models.MaxExamples]
	}
	target.Examples = examples

	b.clusters = append(b.clusters[:src], b.clusters[src+1:]...)
	delete(b.computed, absorbed.ID)
	models.Recount(b.clusters, b.total)

	telemetry.RecordMerge(ctx)
	return MergeApplied, nil
}

// EditLabel renames a cluster. The label is remembered against the label the
// pass computed, so later passes producing the same group keep the rename.
// An empty label restores the computed one.
func (b *Board) EditLabel(id, label string) (models.Cluster, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(id)
	if i < 0 {
		return models.Cluster{}, ErrNotFound
	}

	key := b.computed[id]
	label = strings.TrimSpace(label)
	if label == "" || label == key {
		delete(b.curated, key)
		b.clusters[i].Label = key
	} else {
		b.curated[key] = label
		b.clusters[i].Label = label
	}
	return b.clusters[i].Clone(), nil
}

// Source returns which path produced the current clusters.
func (b *Board) Source() models.ClusterSource {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.source
}

// Loaded reports whether any pass has been applied.
func (b *Board) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applied > 0
}

// Snapshot returns a copy of the board state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		QuestionIndex: b.questionIndex,
		Source:        b.source,
		Clusters:      models.CloneClusters(b.clusters),
		MergeTarget:   b.mergeTarget,
		Total:         b.total,
		Loaded:        b.applied > 0,
	}
	if snap.Clusters == nil {
		snap.Clusters = []models.Cluster{}
	}
	if b.failure != nil {
		snap.Failure = b.failure.Error()
		snap.FailureKind = kindOf(b.failure)
	}
	return snap
}

func (b *Board) indexOf(id string) int {
	for i := range b.clusters {
		if b.clusters[i].ID == id {
			return i
		}
	}
	return -1
}

// kinded is implemented by failures that carry a classification.
type kinded interface {
	FailureKind() string
}

func kindOf(err error) string {
	var k kinded
	if errors.As(err, &k) {
		return k.FailureKind()
	}
	return ""
}
