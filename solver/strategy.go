package solver

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kevsman/pokerplayer-sub002/internal/abstraction"
	"github.com/kevsman/pokerplayer-sub002/internal/fileutil"
)

const strategyFileVersion = 1

// probabilityTolerance bounds how far a stored row may drift from summing
// to one before a load rejects the file.
const probabilityTolerance = 1e-6

// AbstractionMeta fingerprints the abstraction an artifact was built
// under. Loads compare it against the consumer's own configuration and
// reject mismatches, since buckets from different abstractions are not
// comparable.
type AbstractionMeta struct {
	HandCeilings  []float64 `json:"hand_ceilings"`
	BucketSamples int       `json:"bucket_samples"`
	BucketSeed    int64     `json:"bucket_seed"`
	BoardBuckets  int       `json:"board_buckets"`
}

func (m AbstractionMeta) equal(other AbstractionMeta) bool {
	if m.BucketSamples != other.BucketSamples || m.BoardBuckets != other.BoardBuckets {
		return false
	}
	if m.BucketSeed != other.BucketSeed {
		return false
	}
	if len(m.HandCeilings) != len(other.HandCeilings) {
		return false
	}
	for i := range m.HandCeilings {
		if m.HandCeilings[i] != other.HandCeilings[i] {
			return false
		}
	}
	return true
}

// StrategyEntry is one table row: a probability distribution over the
// sorted legal action set, plus the accumulated strategy weight behind it.
type StrategyEntry struct {
	Actions       []string  `json:"actions"`
	Probabilities []float64 `json:"probabilities"`
	Weight        float64   `json:"weight"`
}

// StrategyTable is the persisted output of a training run: averaged
// strategies keyed by (street, hand bucket, board bucket, action set).
// Betting history is projected away, so every node sharing a projected key
// merges into one row weighted by its strategy mass.
type StrategyTable struct {
	Version     int                      `json:"version"`
	RunID       string                   `json:"run_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	Iterations  int                      `json:"iterations"`
	Abstraction AbstractionMeta          `json:"abstraction"`
	Entries     map[string]StrategyEntry `json:"entries"`
}

// NewStrategyTable returns an empty table carrying the run's metadata.
func NewStrategyTable(runID string, iterations int, meta AbstractionMeta) *StrategyTable {
	return &StrategyTable{
		Version:     strategyFileVersion,
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Iterations:  iterations,
		Abstraction: meta,
		Entries:     make(map[string]StrategyEntry),
	}
}

// Upsert merges one node's strategy weights into the row for the projected
// key. The row's probabilities are re-normalized from the weight-scaled
// sum of what was stored and what arrived.
func (t *StrategyTable) Upsert(street, handBucket, boardBucket int, actions []string, weights []float64) error {
	if len(actions) == 0 {
		return errors.New("solver: upsert with no actions")
	}
	if len(actions) != len(weights) {
		return fmt.Errorf("solver: %d actions with %d weights", len(actions), len(weights))
	}

	idx := make([]int, len(actions))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return actions[idx[a]] < actions[idx[b]] })

	sortedActions := make([]string, len(actions))
	sortedWeights := make([]float64, len(weights))
	total := 0.0
	for i, j := range idx {
		if weights[j] < 0 {
			return fmt.Errorf("solver: negative weight %v for %s", weights[j], actions[j])
		}
		sortedActions[i] = actions[j]
		sortedWeights[i] = weights[j]
		total += weights[j]
	}
	if total <= 0 {
		return errors.New("solver: upsert with no weight")
	}

	key := abstraction.TableKey(street, handBucket, boardBucket, sortedActions)
	entry, ok := t.Entries[key]
	if !ok {
		probs := make([]float64, len(sortedWeights))
		for i, w := range sortedWeights {
			probs[i] = w / total
		}
		t.Entries[key] = StrategyEntry{Actions: sortedActions, Probabilities: probs, Weight: total}
		return nil
	}

	newWeight := entry.Weight + total
	probs := make([]float64, len(entry.Probabilities))
	for i := range probs {
		probs[i] = (entry.Probabilities[i]*entry.Weight + sortedWeights[i]) / newWeight
	}
	t.Entries[key] = StrategyEntry{Actions: sortedActions, Probabilities: probs, Weight: newWeight}
	return nil
}

// Lookup returns the stored distribution for the projected key as an
// action-name map. It hits only when the action set matches the stored
// row exactly; ordering does not matter.
func (t *StrategyTable) Lookup(street, handBucket, boardBucket int, actions []string) (map[string]float64, bool) {
	entry, ok := t.Entries[abstraction.TableKey(street, handBucket, boardBucket, actions)]
	if !ok {
		return nil, false
	}
	out := make(map[string]float64, len(entry.Actions))
	for i, a := range entry.Actions {
		out[a] = entry.Probabilities[i]
	}
	return out, true
}

// Save writes the table as indented JSON via an atomic rename.
func (t *StrategyTable) Save(path string) error {
	if path == "" {
		return errors.New("solver: strategy table path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("solver: create strategy dir: %w", err)
	}
	if err := fileutil.WriteJSONAtomic(path, t, 0o644); err != nil {
		return fmt.Errorf("solver: write strategy table: %w", err)
	}
	return nil
}

// LoadStrategyTable reads and validates a table written by Save. Every row
// must be a proper distribution over a non-empty action set.
func LoadStrategyTable(path string) (*StrategyTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var table StrategyTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("solver: decode strategy table: %w", err)
	}
	if table.Version != strategyFileVersion {
		return nil, fmt.Errorf("solver: unsupported strategy table version %d", table.Version)
	}
	for key, entry := range table.Entries {
		if len(entry.Actions) == 0 || len(entry.Actions) != len(entry.Probabilities) {
			return nil, fmt.Errorf("solver: malformed strategy entry %s", key)
		}
		sum := 0.0
		for _, p := range entry.Probabilities {
			sum += p
		}
		if math.Abs(sum-1) > probabilityTolerance {
			return nil, fmt.Errorf("solver: strategy entry %s sums to %v", key, sum)
		}
	}
	if table.Entries == nil {
		table.Entries = make(map[string]StrategyEntry)
	}
	return &table, nil
}

// BuildStrategyTable projects the node table into a strategy table. Nodes
// that never accumulated strategy weight are skipped. Nodes merge in
// sorted key order so the merged probabilities do not depend on map
// iteration order.
func (t *Trainer) BuildStrategyTable() (*StrategyTable, error) {
	entries := t.nodes.Entries()
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	table := NewStrategyTable(t.runID, int(t.iteration.Load()), t.abstractionMeta())
	for _, key := range keys {
		node := entries[key]
		weights, total := node.Weights()
		if total <= 0 {
			continue
		}
		if err := table.Upsert(node.Key.Street, node.Key.HandBucket, node.Key.BoardBucket, node.Actions, weights); err != nil {
			return nil, err
		}
	}
	return table, nil
}
