package game

import "errors"

// Rules are the static parameters of the abstracted game. They are fixed
// for a whole training run; per-hand state lives in State.
type Rules struct {
	Players       int
	SmallBlind    int
	BigBlind      int
	StartingStack int

	// RaiseCap limits aggressive actions per street. Once reached, raise
	// disappears from the legal action set until the next street.
	RaiseCap int

	// RaiseFraction sizes the single abstracted raise as a fraction of the
	// pot after the raiser's call.
	RaiseFraction float64
}

// DefaultRules returns a small-stakes configuration suitable for training.
func DefaultRules() Rules {
	return Rules{
		Players:       2,
		SmallBlind:    1,
		BigBlind:      2,
		StartingStack: 200,
		RaiseCap:      2,
		RaiseFraction: 1.0,
	}
}

// Validate ensures the rules describe a playable game.
func (r Rules) Validate() error {
	if r.Players < 2 || r.Players > 10 {
		return errors.New("game: players must be between 2 and 10")
	}
	if r.SmallBlind <= 0 {
		return errors.New("game: small blind must be positive")
	}
	if r.BigBlind <= r.SmallBlind {
		return errors.New("game: big blind must exceed small blind")
	}
	if r.StartingStack < r.BigBlind {
		return errors.New("game: starting stack must cover the big blind")
	}
	if r.RaiseCap < 0 {
		return errors.New("game: raise cap cannot be negative")
	}
	if r.RaiseFraction <= 0 {
		return errors.New("game: raise fraction must be positive")
	}
	return nil
}
