// Package game implements the abstracted no-limit hold'em hand the trainer
// traverses: blinds, street rotation, a capped single-size raise model, and
// terminal payoff resolution with side pots. A State is one recursion frame;
// applying an action clones the state, so sibling branches of the betting
// tree never alias.
package game

import (
	"errors"
	"fmt"
	"math"
	rand "math/rand/v2"
	"strings"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
)

// Player is one seat's chip and card state within a single hand.
type Player struct {
	Seat     int
	Chips    int
	Bet      int // committed this street
	TotalBet int // committed this hand
	Folded   bool
	AllIn    bool
	Hole     []deck.Card
}

// State is the complete game state at one decision point. The full board is
// dealt up front and revealed street by street, so every branch of one
// sampled hand sees the same cards.
type State struct {
	rules      Rules
	Players    []Player
	full       []deck.Card // all five community cards, revealed by street
	Street     Street
	Button     int
	Actor      int // seat to act, -1 when none
	History    string
	CurrentBet int // largest committed bet this street
	Raises     int // aggressive actions this street
	lastRaise  int // minimum raise increment
	acted      uint
}

// NewState deals a fresh hand: hole cards for every seat, the full board,
// blinds posted, first player to act selected. The deck is shuffled with the
// caller's RNG so iterations are reproducible from their seeds.
func NewState(rules Rules, button int, rng *rand.Rand) (*State, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	d := deck.NewDeck(rng)
	d.Shuffle()

	players := make([]Player, rules.Players)
	for i := range players {
		hole, err := d.DealN(2)
		if err != nil {
			return nil, err
		}
		players[i] = Player{Seat: i, Chips: rules.StartingStack, Hole: hole}
	}
	board, err := d.DealN(5)
	if err != nil {
		return nil, err
	}

	return newState(rules, players, board, button)
}

// NewStateWithCards builds a hand from explicit hole cards and board,
// validating that no card appears twice. Used to pin deals in tests and for
// replaying recorded situations.
func NewStateWithCards(rules Rules, button int, holes [][]deck.Card, board []deck.Card) (*State, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if len(holes) != rules.Players {
		return nil, fmt.Errorf("game: need %d hole hands, got %d", rules.Players, len(holes))
	}
	if len(board) != 5 {
		return nil, fmt.Errorf("game: need 5 board cards, got %d", len(board))
	}

	all := make([]deck.Card, 0, 2*len(holes)+5)
	players := make([]Player, rules.Players)
	for i, hole := range holes {
		if len(hole) != 2 {
			return nil, fmt.Errorf("game: seat %d needs 2 hole cards, got %d", i, len(hole))
		}
		all = append(all, hole...)
		players[i] = Player{Seat: i, Chips: rules.StartingStack, Hole: hole}
	}
	all = append(all, board...)
	if _, err := deck.NewCardSet(all...); err != nil {
		return nil, fmt.Errorf("game: %w", err)
	}

	return newState(rules, players, board, button)
}

func newState(rules Rules, players []Player, board []deck.Card, button int) (*State, error) {
	if button < 0 || button >= len(players) {
		return nil, fmt.Errorf("game: button seat %d out of range", button)
	}

	s := &State{
		rules:     rules,
		Players:   players,
		full:      board,
		Street:    Preflop,
		Button:    button,
		Actor:     -1,
		lastRaise: rules.BigBlind,
	}

	sb, bb := s.blindSeats()
	s.postBlind(sb, rules.SmallBlind)
	s.postBlind(bb, rules.BigBlind)
	s.CurrentBet = rules.BigBlind

	s.Actor = s.nextActionable(bb + 1)
	if s.Actor == -1 || s.roundComplete() {
		s.advanceStreet()
	}
	return s, nil
}

// blindSeats returns the small and big blind positions. Heads-up the button
// posts the small blind and acts first preflop.
func (s *State) blindSeats() (int, int) {
	n := len(s.Players)
	if n == 2 {
		return s.Button, (s.Button + 1) % n
	}
	return (s.Button + 1) % n, (s.Button + 2) % n
}

func (s *State) postBlind(seat, amount int) {
	p := &s.Players[seat]
	blind := min(amount, p.Chips)
	p.Chips -= blind
	p.Bet = blind
	p.TotalBet = blind
	if p.Chips == 0 {
		p.AllIn = true
	}
}

// Apply plays one action for the acting player and returns the successor
// state. The receiver is never modified; each call produces an independent
// clone so the traversal can explore sibling actions from the same parent.
func (s *State) Apply(action Action) (*State, error) {
	if s.IsTerminal() {
		return nil, errors.New("game: hand is complete")
	}
	legal := false
	for _, a := range s.LegalActions() {
		if a == action {
			legal = true
			break
		}
	}
	if !legal {
		return nil, fmt.Errorf("game: %s is not legal for seat %d", action, s.Actor)
	}

	ns := s.clone()
	p := &ns.Players[ns.Actor]

	switch action {
	case Fold:
		p.Folded = true
		ns.acted |= 1 << uint(ns.Actor)

	case Check:
		ns.acted |= 1 << uint(ns.Actor)

	case Call:
		toCall := min(ns.CurrentBet-p.Bet, p.Chips)
		p.Chips -= toCall
		p.Bet += toCall
		p.TotalBet += toCall
		if p.Chips == 0 {
			p.AllIn = true
		}
		ns.acted |= 1 << uint(ns.Actor)

	case Raise:
		target := ns.raiseTarget()
		add := target - p.Bet
		p.Chips -= add
		p.Bet = target
		p.TotalBet += add
		if p.Chips == 0 {
			p.AllIn = true
		}
		// A short all-in raise does not reset the minimum raise increment.
		if inc := target - ns.CurrentBet; inc >= ns.lastRaise {
			ns.lastRaise = inc
		}
		ns.CurrentBet = target
		ns.Raises++
		// Aggression reopens the round: everyone else must act again.
		ns.acted = 1 << uint(ns.Actor)
	}

	ns.History += action.Token()

	switch {
	case ns.ActiveCount() <= 1:
		ns.Actor = -1
	case ns.roundComplete():
		ns.advanceStreet()
	default:
		ns.Actor = ns.nextActionable(ns.Actor + 1)
	}
	return ns, nil
}

// raiseTarget is the total bet the single abstracted raise moves the street
// to: the call plus a pot fraction, at least a legal minimum raise, clamped
// to the player's stack.
func (s *State) raiseTarget() int {
	p := s.Players[s.Actor]
	toCall := max(s.CurrentBet-p.Bet, 0)
	pot := s.PotTotal() + toCall
	inc := int(math.Round(s.rules.RaiseFraction * float64(pot)))
	inc = max(inc, s.lastRaise)
	target := s.CurrentBet + inc
	return min(target, p.Bet+p.Chips)
}

// advanceStreet folds street bets into the pot and deals the next street.
// Streets where nobody can bet (all remaining players all-in, or a single
// player left against all-ins) run out automatically until showdown.
func (s *State) advanceStreet() {
	for {
		for i := range s.Players {
			s.Players[i].Bet = 0
		}
		if s.Street >= River {
			s.Street = Showdown
			s.Actor = -1
			return
		}
		s.Street++
		s.History = ""
		s.Raises = 0
		s.CurrentBet = 0
		s.lastRaise = s.rules.BigBlind
		s.acted = 0
		s.Actor = s.nextActionable(s.Button + 1)
		if s.Actor != -1 && !s.roundComplete() {
			return
		}
	}
}

func (s *State) nextActionable(from int) int {
	n := len(s.Players)
	for i := 0; i < n; i++ {
		seat := (from + i) % n
		if p := s.Players[seat]; !p.Folded && !p.AllIn {
			return seat
		}
	}
	return -1
}

func (s *State) clone() *State {
	ns := *s
	ns.Players = make([]Player, len(s.Players))
	copy(ns.Players, s.Players)
	return &ns
}

// IsTerminal reports whether the hand has resolved: one player left, or
// river betting closed.
func (s *State) IsTerminal() bool {
	return s.Street == Showdown || s.ActiveCount() <= 1
}

// ActiveCount is the number of players still contesting the pot.
func (s *State) ActiveCount() int {
	n := 0
	for _, p := range s.Players {
		if !p.Folded {
			n++
		}
	}
	return n
}

// Community returns the board cards revealed so far.
func (s *State) Community() []deck.Card {
	return s.full[:s.Street.communityCount()]
}

// PotTotal is every chip committed to the hand so far, current street
// included. It is derived from player contributions so it can never drift
// from them.
func (s *State) PotTotal() int {
	total := 0
	for _, p := range s.Players {
		total += p.TotalBet
	}
	return total
}

// ToCall is the amount the acting player must add to match the current bet.
func (s *State) ToCall() int {
	if s.Actor < 0 {
		return 0
	}
	return max(s.CurrentBet-s.Players[s.Actor].Bet, 0)
}

// Rules returns the static game parameters this hand was dealt under.
func (s *State) Rules() Rules {
	return s.rules
}

// Fingerprint renders a normalized view of the betting situation: street,
// actor, this street's history, and each seat's committed bet as a multiple
// of the smallest live bet (folded seats marked). Two states with the same
// fingerprint are indistinguishable to the betting logic, which is what the
// traversal's cycle guard keys on.
func (s *State) Fingerprint() string {
	minBet := 0
	for _, p := range s.Players {
		if p.Folded {
			continue
		}
		if p.Bet > 0 && (minBet == 0 || p.Bet < minBet) {
			minBet = p.Bet
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d:%s:", s.Street, s.Actor, s.History)
	for i, p := range s.Players {
		if i > 0 {
			b.WriteByte(',')
		}
		switch {
		case p.Folded:
			b.WriteByte('-')
		case minBet == 0:
			b.WriteByte('0')
		default:
			fmt.Fprintf(&b, "%d", p.Bet/minBet)
		}
	}
	return b.String()
}
