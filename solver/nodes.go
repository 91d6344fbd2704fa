package solver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kevsman/pokerplayer-sub002/internal/abstraction"
)

// ErrActionSetMismatch reports that a stored node carries a different legal
// action set than the one it is being used with. Identical keys must see
// identical action sets; a mismatch means the game configuration changed
// under an existing table and every accumulator in it is suspect, so
// training stops rather than continue averaging over mismatched vectors.
var ErrActionSetMismatch = errors.New("solver: info set action set changed")

// Node accumulates regrets and strategy sums for one information set. All
// vectors are indexed by the key's sorted action order.
type Node struct {
	Key     abstraction.InfoSetKey
	Actions []string

	mu          sync.Mutex
	regretSum   []float64
	strategySum []float64
}

func newNode(key abstraction.InfoSetKey) *Node {
	n := len(key.Actions)
	return &Node{
		Key:         key,
		Actions:     append([]string(nil), key.Actions...),
		regretSum:   make([]float64, n),
		strategySum: make([]float64, n),
	}
}

func (n *Node) checkActions(actions []string) error {
	match := len(actions) == len(n.Actions)
	if match {
		for i := range actions {
			if actions[i] != n.Actions[i] {
				match = false
				break
			}
		}
	}
	if !match {
		return fmt.Errorf("%w: node %s has %v, fetched with %v", ErrActionSetMismatch, n.Key.String(), n.Actions, actions)
	}
	return nil
}

// Strategy returns the current regret-matching distribution: positive
// regrets normalized, uniform when no action has positive regret.
func (n *Node) Strategy() []float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	strat := make([]float64, len(n.regretSum))
	total := 0.0
	for i, r := range n.regretSum {
		if r > 0 {
			strat[i] = r
			total += r
		}
	}
	if total <= 0 {
		v := 1.0 / float64(len(strat))
		for i := range strat {
			strat[i] = v
		}
		return strat
	}
	for i := range strat {
		strat[i] /= total
	}
	return strat
}

// AverageStrategy returns the normalized strategy-sum vector, the policy
// the run converges on. Uniform when the node has never been updated.
func (n *Node) AverageStrategy() []float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	strat := make([]float64, len(n.strategySum))
	total := 0.0
	for _, w := range n.strategySum {
		total += w
	}
	if total <= 0 {
		v := 1.0 / float64(len(strat))
		for i := range strat {
			strat[i] = v
		}
		return strat
	}
	for i, w := range n.strategySum {
		strat[i] = w / total
	}
	return strat
}

// Weights returns a copy of the raw strategy-sum vector and its total. The
// strategy table merges nodes by these weights before normalizing.
func (n *Node) Weights() ([]float64, float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := append([]float64(nil), n.strategySum...)
	total := 0.0
	for _, w := range out {
		total += w
	}
	return out, total
}

// accumulators returns copies of both accumulator vectors, the base a
// batched update is computed against.
func (n *Node) accumulators() (regrets, strategySums []float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]float64(nil), n.regretSum...), append([]float64(nil), n.strategySum...)
}

// addDeltas folds a batched update's increments into the accumulators.
// Increments rather than absolute values, so repeated keys within one
// batch and updates from parallel tables compose.
func (n *Node) addDeltas(regrets, strategySums []float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.regretSum {
		n.regretSum[i] += regrets[i]
		n.strategySum[i] += strategySums[i]
	}
}

func (n *Node) snapshot() nodeSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return nodeSnapshot{
		Actions:      append([]string(nil), n.Actions...),
		Regrets:      append([]float64(nil), n.regretSum...),
		StrategySums: append([]float64(nil), n.strategySum...),
	}
}

func nodeFromSnapshot(key abstraction.InfoSetKey, snap nodeSnapshot) (*Node, error) {
	node := newNode(key)
	if err := node.checkActions(snap.Actions); err != nil {
		return nil, err
	}
	if len(snap.Regrets) != len(node.Actions) || len(snap.StrategySums) != len(node.Actions) {
		return nil, fmt.Errorf("solver: accumulator lengths %d/%d for %d actions",
			len(snap.Regrets), len(snap.StrategySums), len(node.Actions))
	}
	copy(node.regretSum, snap.Regrets)
	copy(node.strategySum, snap.StrategySums)
	return node, nil
}

const nodeTableShardCount = 64
const nodeTableShardMask = nodeTableShardCount - 1

type nodeShard struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NodeTable holds every information set visited during training, sharded
// so parallel tables rarely contend on one lock.
type NodeTable struct {
	shards [nodeTableShardCount]nodeShard
}

// NewNodeTable returns an empty node table ready for use.
func NewNodeTable() *NodeTable {
	table := &NodeTable{}
	for i := 0; i < nodeTableShardCount; i++ {
		table.shards[i].nodes = make(map[string]*Node)
	}
	return table
}

// Get returns the node for the key, creating it on first sight. A key that
// reappears with a different action set fails with ErrActionSetMismatch.
func (t *NodeTable) Get(key abstraction.InfoSetKey) (*Node, error) {
	k := key.String()
	shard := t.shardFor(k)

	shard.mu.RLock()
	node, ok := shard.nodes[k]
	shard.mu.RUnlock()
	if ok {
		return node, node.checkActions(key.Actions)
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if node, ok = shard.nodes[k]; ok {
		return node, node.checkActions(key.Actions)
	}
	node = newNode(key)
	shard.nodes[k] = node
	return node, nil
}

// insert places a restored node into the table, replacing any existing
// entry for its key.
func (t *NodeTable) insert(node *Node) {
	k := node.Key.String()
	shard := t.shardFor(k)
	shard.mu.Lock()
	shard.nodes[k] = node
	shard.mu.Unlock()
}

// Entries returns a snapshot of the table for serialization and export.
func (t *NodeTable) Entries() map[string]*Node {
	out := make(map[string]*Node)
	for i := 0; i < nodeTableShardCount; i++ {
		shard := &t.shards[i]
		shard.mu.RLock()
		for k, v := range shard.nodes {
			out[k] = v
		}
		shard.mu.RUnlock()
	}
	return out
}

// Size returns the number of information sets tracked.
func (t *NodeTable) Size() int {
	total := 0
	for i := 0; i < nodeTableShardCount; i++ {
		shard := &t.shards[i]
		shard.mu.RLock()
		total += len(shard.nodes)
		shard.mu.RUnlock()
	}
	return total
}

func (t *NodeTable) shardFor(key string) *nodeShard {
	h := hashKey(key)
	return &t.shards[h&nodeTableShardMask]
}

func hashKey(key string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	var hash uint32 = offset32
	for i := 0; i < len(key); i++ {
		hash ^= uint32(key[i])
		hash *= prime32
	}
	return hash
}
