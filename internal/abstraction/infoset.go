package abstraction

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// InfoSetKey addresses one learned node: everything the acting player can
// see at decision time, compressed through the abstraction. Distinct deals
// that share buckets and betting history share a key on purpose.
type InfoSetKey struct {
	Street      int
	HandBucket  int
	BoardBucket int
	History     string   // this street's action tokens, e.g. "xr"
	Actions     []string // legal actions, sorted
}

// NewInfoSetKey builds a key, normalizing the action set ordering
func NewInfoSetKey(street, handBucket, boardBucket int, history string, actions []string) InfoSetKey {
	sorted := make([]string, len(actions))
	copy(sorted, actions)
	sort.Strings(sorted)
	return InfoSetKey{
		Street:      street,
		HandBucket:  handBucket,
		BoardBucket: boardBucket,
		History:     history,
		Actions:     sorted,
	}
}

// String renders the canonical lossless form. Histories use one rune per
// action and action names contain no separators, so the encoding never
// collides.
func (k InfoSetKey) String() string {
	return fmt.Sprintf("%d|%d|%d|%s|%s",
		k.Street, k.HandBucket, k.BoardBucket, k.History, strings.Join(k.Actions, ","))
}

// ParseInfoSetKey parses the canonical String form back into a key.
// Checkpoint restore round-trips node keys through it.
func ParseInfoSetKey(s string) (InfoSetKey, error) {
	parts := strings.SplitN(s, "|", 5)
	if len(parts) != 5 {
		return InfoSetKey{}, fmt.Errorf("abstraction: malformed info set key %q", s)
	}
	street, err := strconv.Atoi(parts[0])
	if err != nil {
		return InfoSetKey{}, fmt.Errorf("abstraction: info set street in %q: %w", s, err)
	}
	handBucket, err := strconv.Atoi(parts[1])
	if err != nil {
		return InfoSetKey{}, fmt.Errorf("abstraction: info set hand bucket in %q: %w", s, err)
	}
	boardBucket, err := strconv.Atoi(parts[2])
	if err != nil {
		return InfoSetKey{}, fmt.Errorf("abstraction: info set board bucket in %q: %w", s, err)
	}
	if parts[4] == "" {
		return InfoSetKey{}, fmt.Errorf("abstraction: info set key %q has no actions", s)
	}
	actions := strings.Split(parts[4], ",")
	if !sort.StringsAreSorted(actions) {
		return InfoSetKey{}, fmt.Errorf("abstraction: info set key %q actions not sorted", s)
	}
	return InfoSetKey{
		Street:      street,
		HandBucket:  handBucket,
		BoardBucket: boardBucket,
		History:     parts[3],
		Actions:     actions,
	}, nil
}

// TableKey is the projected form persisted in the strategy table: the
// betting history is dropped, so nodes that differ only by history map onto
// one table row. Lookups from the decision component carry no history.
func (k InfoSetKey) TableKey() string {
	return TableKey(k.Street, k.HandBucket, k.BoardBucket, k.Actions)
}

// TableKey renders the persisted strategy-table key for a street, buckets,
// and a legal action set. The action set is sorted so lookups hit
// regardless of caller ordering.
func TableKey(street, handBucket, boardBucket int, actions []string) string {
	sorted := make([]string, len(actions))
	copy(sorted, actions)
	sort.Strings(sorted)
	return fmt.Sprintf("%d|%d|%d|%s", street, handBucket, boardBucket, strings.Join(sorted, ","))
}
