package game

// Street is the betting round within a hand. Showdown is the terminal
// pseudo-street reached once river betting closes.
type Street int

const (
	Preflop Street = iota
	Flop
	Turn
	River
	Showdown
)

func (s Street) String() string {
	return [...]string{"preflop", "flop", "turn", "river", "showdown"}[s]
}

// communityCount is how many board cards are revealed on each street.
func (s Street) communityCount() int {
	switch s {
	case Preflop:
		return 0
	case Flop:
		return 3
	case Turn:
		return 4
	default:
		return 5
	}
}

// Action is a player decision. Check and Call are mutually exclusive: Check
// is only legal with no outstanding bet, Call only with one.
type Action int

const (
	Fold Action = iota
	Check
	Call
	Raise
)

func (a Action) String() string {
	return [...]string{"fold", "check", "call", "raise"}[a]
}

// Token is the single-rune encoding appended to a street's betting history.
func (a Action) Token() string {
	return [...]string{"f", "x", "c", "r"}[a]
}

// LegalActions returns the actions open to the acting player, in fixed
// Fold/Check/Call/Raise order. Raising drops out once the per-street raise
// cap is reached or the player cannot put in more than the call.
func (s *State) LegalActions() []Action {
	if s.Actor < 0 {
		return nil
	}
	p := s.Players[s.Actor]
	toCall := s.CurrentBet - p.Bet

	actions := []Action{Fold}
	if toCall <= 0 {
		actions = append(actions, Check)
	} else {
		actions = append(actions, Call)
	}
	if s.Raises < s.rules.RaiseCap && p.Chips > toCall && s.raiseTarget() > s.CurrentBet {
		actions = append(actions, Raise)
	}
	return actions
}

// ActionNames renders the legal action set as strings for info-set keying.
func ActionNames(actions []Action) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.String()
	}
	return names
}

// roundComplete reports whether the current street's betting has closed:
// every player who can still act has matched the largest committed bet and
// has acted since the last aggressive action. Players who are folded or
// all-in have no further say and are skipped. With nobody left to act the
// round is vacuously complete and the remaining streets run out.
func (s *State) roundComplete() bool {
	for i, p := range s.Players {
		if p.Folded || p.AllIn {
			continue
		}
		if p.Bet != s.CurrentBet {
			return false
		}
		if s.acted&(1<<uint(i)) == 0 {
			return false
		}
	}
	return true
}
