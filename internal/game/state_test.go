package game

import (
	"testing"

	"github.com/kevsman/pokerplayer-sub002/internal/deck"
	"github.com/kevsman/pokerplayer-sub002/internal/randutil"
)

func testRules() Rules {
	return Rules{
		Players:       2,
		SmallBlind:    1,
		BigBlind:      2,
		StartingStack: 200,
		RaiseCap:      2,
		RaiseFraction: 1.0,
	}
}

// riggedHand deals a heads-up hand with fixed cards so action traces are
// reproducible. Seat 0 holds the button.
func riggedHand(t *testing.T, rules Rules) *State {
	t.Helper()
	holes := [][]deck.Card{
		deck.MustParseCards("AsAh"),
		deck.MustParseCards("KsKh"),
	}
	board := deck.MustParseCards("2c7d9h3s5c")
	s, err := NewStateWithCards(rules, 0, holes, board)
	if err != nil {
		t.Fatalf("NewStateWithCards: %v", err)
	}
	return s
}

func apply(t *testing.T, s *State, a Action) *State {
	t.Helper()
	next, err := s.Apply(a)
	if err != nil {
		t.Fatalf("Apply(%s) at street %s: %v", a, s.Street, err)
	}
	return next
}

func TestNewStateBlindsAndRotation(t *testing.T) {
	s := riggedHand(t, testRules())

	if s.Street != Preflop {
		t.Fatalf("Street = %s, want preflop", s.Street)
	}
	if got := s.Players[0].Bet; got != 1 {
		t.Errorf("button small blind = %d, want 1", got)
	}
	if got := s.Players[1].Bet; got != 2 {
		t.Errorf("big blind = %d, want 2", got)
	}
	if s.CurrentBet != 2 {
		t.Errorf("CurrentBet = %d, want 2", s.CurrentBet)
	}
	if s.Actor != 0 {
		t.Errorf("Actor = %d, want 0 (button acts first heads-up preflop)", s.Actor)
	}
	if got := s.PotTotal(); got != 3 {
		t.Errorf("PotTotal() = %d, want 3", got)
	}
	if got := len(s.Community()); got != 0 {
		t.Errorf("preflop community has %d cards, want 0", got)
	}
}

func TestThreeHandedRotation(t *testing.T) {
	rules := testRules()
	rules.Players = 3
	holes := [][]deck.Card{
		deck.MustParseCards("AsAh"),
		deck.MustParseCards("KsKh"),
		deck.MustParseCards("QsQh"),
	}
	board := deck.MustParseCards("2c7d9h3s5c")
	s, err := NewStateWithCards(rules, 0, holes, board)
	if err != nil {
		t.Fatalf("NewStateWithCards: %v", err)
	}

	// Button 0: seat 1 small blind, seat 2 big blind, button opens.
	if s.Players[1].Bet != 1 || s.Players[2].Bet != 2 {
		t.Fatalf("blinds = %d/%d, want 1/2", s.Players[1].Bet, s.Players[2].Bet)
	}
	if s.Actor != 0 {
		t.Fatalf("Actor = %d, want 0", s.Actor)
	}

	// Limp around: the big blind still closes the street.
	s = apply(t, s, Call)
	s = apply(t, s, Call)
	if s.Street != Preflop || s.Actor != 2 {
		t.Fatalf("after limps: street %s actor %d, want preflop actor 2 (big blind option)", s.Street, s.Actor)
	}
	s = apply(t, s, Check)
	if s.Street != Flop {
		t.Fatalf("after big blind check: street %s, want flop", s.Street)
	}
	if s.Actor != 1 {
		t.Fatalf("flop opens with actor %d, want 1 (left of button)", s.Actor)
	}
}

func TestBigBlindOptionHeadsUp(t *testing.T) {
	s := riggedHand(t, testRules())

	s = apply(t, s, Call)
	if s.Street != Preflop {
		t.Fatalf("street advanced before big blind acted")
	}
	if s.Actor != 1 {
		t.Fatalf("Actor = %d, want 1", s.Actor)
	}

	s = apply(t, s, Check)
	if s.Street != Flop {
		t.Fatalf("street = %s after option check, want flop", s.Street)
	}
	if s.Actor != 1 {
		t.Fatalf("flop actor = %d, want 1 (big blind first postflop heads-up)", s.Actor)
	}
	if s.History != "" {
		t.Fatalf("history %q not reset at street boundary", s.History)
	}
	if got := len(s.Community()); got != 3 {
		t.Fatalf("flop community has %d cards, want 3", got)
	}
}

func TestCheckCheckEndsStreet(t *testing.T) {
	s := riggedHand(t, testRules())
	s = apply(t, s, Call)
	s = apply(t, s, Check)

	s = apply(t, s, Check)
	if s.Street != Flop {
		t.Fatalf("one check ended the street")
	}
	s = apply(t, s, Check)
	if s.Street != Turn {
		t.Fatalf("check/check left street at %s, want turn", s.Street)
	}
	if got := len(s.Community()); got != 4 {
		t.Fatalf("turn community has %d cards, want 4", got)
	}
}

func TestBetCallEndsStreet(t *testing.T) {
	s := riggedHand(t, testRules())
	s = apply(t, s, Call)
	s = apply(t, s, Check)

	s = apply(t, s, Raise)
	if s.Street != Flop {
		t.Fatalf("street advanced with a bet outstanding")
	}
	if s.History != "r" {
		t.Fatalf("History = %q, want %q", s.History, "r")
	}
	s = apply(t, s, Call)
	if s.Street != Turn {
		t.Fatalf("bet/call left street at %s, want turn", s.Street)
	}
}

func TestBetRaiseCallEndsStreet(t *testing.T) {
	s := riggedHand(t, testRules())
	s = apply(t, s, Call)
	s = apply(t, s, Check)

	s = apply(t, s, Raise)
	s = apply(t, s, Raise)
	if s.Street != Flop {
		t.Fatalf("street advanced with the re-raise unmatched")
	}
	s = apply(t, s, Call)
	if s.Street != Turn {
		t.Fatalf("bet/raise/call left street at %s, want turn", s.Street)
	}
}

func TestFoldEndsHandImmediately(t *testing.T) {
	s := riggedHand(t, testRules())
	s = apply(t, s, Fold)

	if !s.IsTerminal() {
		t.Fatal("fold to one player did not end the hand")
	}
	payoffs, err := s.Payoffs(nil)
	if err != nil {
		t.Fatalf("Payoffs: %v", err)
	}
	// The survivor wins the button's posted small blind.
	if payoffs[0] != -1 || payoffs[1] != 1 {
		t.Fatalf("payoffs = %v, want [-1 1]", payoffs)
	}
}

func TestRaiseCapRemovesRaise(t *testing.T) {
	s := riggedHand(t, testRules())
	s = apply(t, s, Call)
	s = apply(t, s, Check)

	s = apply(t, s, Raise)
	s = apply(t, s, Raise)
	actions := s.LegalActions()
	for _, a := range actions {
		if a == Raise {
			t.Fatalf("raise still legal after cap: %v", actions)
		}
	}
	if len(actions) != 2 || actions[0] != Fold || actions[1] != Call {
		t.Fatalf("actions at cap = %v, want [fold call]", actions)
	}
}

func TestCheckCallMutuallyExclusive(t *testing.T) {
	s := riggedHand(t, testRules())
	s = apply(t, s, Call)
	s = apply(t, s, Check)

	// No outstanding bet: check but no call.
	actions := s.LegalActions()
	if !containsAction(actions, Check) || containsAction(actions, Call) {
		t.Fatalf("no-bet actions = %v, want check without call", actions)
	}

	// Outstanding bet: call but no check.
	s = apply(t, s, Raise)
	actions = s.LegalActions()
	if containsAction(actions, Check) || !containsAction(actions, Call) {
		t.Fatalf("facing-bet actions = %v, want call without check", actions)
	}
}

func TestRaiseSizing(t *testing.T) {
	s := riggedHand(t, testRules())

	// Pot-fraction raise: call 1 makes the pot 4, so the button raises to
	// 2+4=6 total.
	s = apply(t, s, Raise)
	if s.CurrentBet != 6 {
		t.Fatalf("CurrentBet after preflop raise = %d, want 6", s.CurrentBet)
	}
	if got := s.Players[0].TotalBet; got != 6 {
		t.Fatalf("raiser committed %d, want 6", got)
	}
}

func TestRaiseRespectsMinimumIncrement(t *testing.T) {
	rules := testRules()
	rules.RaiseFraction = 0.1 // tiny fraction rounds to zero
	s := riggedHand(t, rules)

	s = apply(t, s, Raise)
	// Minimum increment is the big blind, so the raise lands on 4.
	if s.CurrentBet != 4 {
		t.Fatalf("CurrentBet = %d, want 4 (minimum raise)", s.CurrentBet)
	}
}

func TestAllInShoveRunsOutBoard(t *testing.T) {
	rules := testRules()
	rules.StartingStack = 10
	s := riggedHand(t, rules)

	s = apply(t, s, Raise) // to 6
	s = apply(t, s, Raise) // clamped to the 10-chip stack
	if !s.Players[1].AllIn {
		t.Fatalf("re-raiser not all-in: %+v", s.Players[1])
	}
	s = apply(t, s, Call)

	if s.Street != Showdown {
		t.Fatalf("street = %s after mutual all-in, want showdown", s.Street)
	}
	if !s.IsTerminal() {
		t.Fatal("mutual all-in hand not terminal")
	}
	if got := len(s.Community()); got != 5 {
		t.Fatalf("ran-out board has %d cards, want 5", got)
	}
}

func TestStackEqualToBigBlind(t *testing.T) {
	rules := testRules()
	rules.StartingStack = 2
	s := riggedHand(t, rules)

	// Big blind is already all-in; the button can only call or fold.
	actions := s.LegalActions()
	if len(actions) != 2 || !containsAction(actions, Call) {
		t.Fatalf("actions = %v, want [fold call]", actions)
	}
	s = apply(t, s, Call)
	if s.Street != Showdown {
		t.Fatalf("street = %s, want showdown", s.Street)
	}
}

func TestApplyClonesState(t *testing.T) {
	s := riggedHand(t, testRules())

	called := apply(t, s, Call)
	folded := apply(t, s, Fold)

	// Parent untouched.
	if s.Players[0].Bet != 1 || s.Actor != 0 || s.History != "" {
		t.Fatalf("parent state mutated: %+v", s)
	}
	// Siblings independent.
	if called.Players[0].Folded {
		t.Fatal("fold leaked into the call branch")
	}
	if folded.Players[0].Bet != 1 {
		t.Fatalf("call leaked into the fold branch: bet %d", folded.Players[0].Bet)
	}
}

func TestApplyRejectsIllegalAction(t *testing.T) {
	s := riggedHand(t, testRules())
	if _, err := s.Apply(Check); err == nil {
		t.Fatal("check accepted with a bet outstanding")
	}

	done := apply(t, s, Fold)
	if _, err := done.Apply(Call); err == nil {
		t.Fatal("action accepted on a terminal state")
	}
}

func TestNewStateWithCardsRejectsBadDeals(t *testing.T) {
	rules := testRules()
	board := deck.MustParseCards("2c7d9h3s5c")

	cases := []struct {
		name  string
		holes [][]deck.Card
		board []deck.Card
	}{
		{"duplicate across players", [][]deck.Card{deck.MustParseCards("AsAh"), deck.MustParseCards("AsKh")}, board},
		{"duplicate with board", [][]deck.Card{deck.MustParseCards("2cAh"), deck.MustParseCards("KsKh")}, board},
		{"wrong hole count", [][]deck.Card{deck.MustParseCards("As"), deck.MustParseCards("KsKh")}, board},
		{"wrong player count", [][]deck.Card{deck.MustParseCards("AsAh")}, board},
		{"short board", [][]deck.Card{deck.MustParseCards("AsAh"), deck.MustParseCards("KsKh")}, deck.MustParseCards("2c7d9h")},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStateWithCards(rules, 0, tt.holes, tt.board); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNewStateDeterministicDeal(t *testing.T) {
	rules := testRules()
	a, err := NewState(rules, 0, randutil.New(7))
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	b, err := NewState(rules, 0, randutil.New(7))
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	for seat := range a.Players {
		ah := deck.FormatCards(a.Players[seat].Hole)
		bh := deck.FormatCards(b.Players[seat].Hole)
		if ah != bh {
			t.Fatalf("seat %d holes differ under same seed: %s vs %s", seat, ah, bh)
		}
	}
	if deck.FormatCards(a.full) != deck.FormatCards(b.full) {
		t.Fatalf("boards differ under same seed")
	}
}

func TestFingerprintNormalizesBets(t *testing.T) {
	small := riggedHand(t, testRules())

	bigger := testRules()
	bigger.SmallBlind = 5
	bigger.BigBlind = 10
	big := riggedHand(t, bigger)

	if small.Fingerprint() != big.Fingerprint() {
		t.Fatalf("proportional bet shapes fingerprint differently: %q vs %q",
			small.Fingerprint(), big.Fingerprint())
	}

	folded := apply(t, small, Fold)
	if folded.Fingerprint() == small.Fingerprint() {
		t.Fatal("fold did not change the fingerprint")
	}
}

func containsAction(actions []Action, want Action) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
