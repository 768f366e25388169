package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// CardValue is an opaque card token. Numeric cards travel as JSON numbers and
// symbol cards as JSON strings, so peers written against the web client
// decode the same payloads.
type CardValue string

const (
	CardOne        CardValue = "1"
	CardTwo        CardValue = "2"
	CardThree      CardValue = "3"
	CardFive       CardValue = "5"
	CardEight      CardValue = "8"
	CardThirteen   CardValue = "13"
	CardTwentyOne  CardValue = "21"
	CardUnclear    CardValue = "?"
	CardNeedABreak CardValue = "☕"
)

// Deck is the closed set of cards offered to participants, in display order
var Deck = []CardValue{
	CardOne, CardTwo, CardThree, CardFive, CardEight,
	CardThirteen, CardTwentyOne, CardUnclear, CardNeedABreak,
}

// Known reports whether c belongs to the Deck
func (c CardValue) Known() bool {
	for _, d := range Deck {
		if d == c {
			return true
		}
	}
	return false
}

// Numeric returns the integer value of a numeric card
func (c CardValue) Numeric() (int, bool) {
	n, err := strconv.Atoi(string(c))
	if err != nil || strconv.Itoa(n) != string(c) {
		return 0, false
	}
	return n, true
}

// ParseCard maps user input onto a card. Aliases cover the symbol cards that
// are awkward to type; anything else is passed through untouched.
func ParseCard(s string) CardValue {
	switch s {
	case "coffee", "break", "c":
		return CardNeedABreak
	case "unclear", "u":
		return CardUnclear
	}
	return CardValue(s)
}

func (c CardValue) MarshalJSON() ([]byte, error) {
	if _, ok := c.Numeric(); ok {
		return []byte(c), nil
	}
	return json.Marshal(string(c))
}

func (c *CardValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CardValue(s)
		return nil
	}
	// Numbers and anything unexpected keep their literal text.
	*c = CardValue(data)
	return nil
}
