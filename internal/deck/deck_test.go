package deck

import (
	"testing"

	"github.com/kevsman/pokerplayer-sub002/internal/randutil"
)

func TestNewDeck(t *testing.T) {
	d := NewDeck(randutil.New(42))

	if d.CardsRemaining() != 52 {
		t.Errorf("Expected 52 cards, got %d", d.CardsRemaining())
	}
	if d.IsEmpty() {
		t.Error("New deck should not be empty")
	}
}

func TestDeckDealAll(t *testing.T) {
	d := NewDeck(randutil.New(42))
	d.Shuffle()

	seen := make(map[Card]bool)
	for i := 0; i < 52; i++ {
		card, ok := d.Deal()
		if !ok {
			t.Fatalf("Deal failed at card %d", i+1)
		}
		if seen[card] {
			t.Fatalf("card %s dealt twice", card)
		}
		seen[card] = true
	}

	if !d.IsEmpty() {
		t.Error("Deck should be empty after dealing all cards")
	}
	if _, ok := d.Deal(); ok {
		t.Error("Deal should fail on empty deck")
	}
}

func TestDealN(t *testing.T) {
	d := NewDeck(randutil.New(7))
	cards, err := d.DealN(5)
	if err != nil {
		t.Fatalf("DealN(5): %v", err)
	}
	if len(cards) != 5 {
		t.Errorf("Expected 5 cards, got %d", len(cards))
	}
	if d.CardsRemaining() != 47 {
		t.Errorf("Expected 47 remaining, got %d", d.CardsRemaining())
	}

	if _, err := d.DealN(48); err == nil {
		t.Error("DealN should fail when more cards are requested than remain")
	}
	if _, err := d.DealN(-1); err == nil {
		t.Error("DealN should fail on a negative count")
	}
}

func TestNewDeckWithout(t *testing.T) {
	excluded := MustParseCards("AsKsQhQd")
	d, err := NewDeckWithout(randutil.New(9), excluded...)
	if err != nil {
		t.Fatalf("NewDeckWithout: %v", err)
	}
	if d.CardsRemaining() != 48 {
		t.Errorf("Expected 48 cards, got %d", d.CardsRemaining())
	}

	set, _ := NewCardSet(excluded...)
	for !d.IsEmpty() {
		card, _ := d.Deal()
		if set.Contains(card) {
			t.Fatalf("excluded card %s dealt", card)
		}
	}

	if _, err := NewDeckWithout(randutil.New(9), MustParseCards("AsAs")...); err == nil {
		t.Error("NewDeckWithout should reject duplicate exclusions")
	}
}

func TestShuffleDeterminism(t *testing.T) {
	a := NewDeck(randutil.New(123))
	b := NewDeck(randutil.New(123))
	a.Shuffle()
	b.Shuffle()

	for i := 0; i < 52; i++ {
		ca, _ := a.Deal()
		cb, _ := b.Deal()
		if ca != cb {
			t.Fatalf("decks diverged at card %d: %s vs %s", i, ca, cb)
		}
	}

	c := NewDeck(randutil.New(124))
	c.Shuffle()
	d := NewDeck(randutil.New(123))
	d.Shuffle()
	diverged := false
	for i := 0; i < 52; i++ {
		cc, _ := c.Deal()
		cd, _ := d.Deal()
		if cc != cd {
			diverged = true
			break
		}
	}
	if !diverged {
		t.Error("different seeds produced identical shuffles")
	}
}
