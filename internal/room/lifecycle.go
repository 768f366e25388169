package room

import (
	"github.com/mmuslimabdulj/goat-poker/internal/domain"
)

// VotePhase is where a participant stands in the current round
type VotePhase int

const (
	NotVoted VotePhase = iota
	Voted
	Revealed
)

func (p VotePhase) String() string {
	switch p {
	case Voted:
		return "voted"
	case Revealed:
		return "revealed"
	}
	return "not voted"
}

// PhaseOf derives a participant's phase from its vote and the reveal flag
func PhaseOf(p domain.Participant, state domain.RoomState) VotePhase {
	switch {
	case !p.HasVoted():
		return NotVoted
	case state.IsRevealed:
		return Revealed
	}
	return Voted
}

// Seat is one roster entry prepared for display. Card is only meaningful
// when Revealed is set; before that HasVoted is all that shows.
type Seat struct {
	ID          string
	Name        string
	IsSpectator bool
	IsSelf      bool
	HasVoted    bool
	Revealed    bool
	Card        domain.CardValue
}

// Seats renders the roster of v without leaking unrevealed votes
func Seats(v View) []Seat {
	seats := make([]Seat, 0, len(v.Players))
	for _, p := range v.Players {
		s := Seat{
			ID:          p.ID,
			Name:        p.Name,
			IsSpectator: p.IsSpectator,
			IsSelf:      p.ID == v.MyID,
			HasVoted:    p.HasVoted(),
		}
		if PhaseOf(p, v.GameState) == Revealed {
			s.Revealed = true
			s.Card = *p.Vote
		}
		seats = append(seats, s)
	}
	return seats
}

// Summary tallies the round. Counts and Average stay empty until revealed.
type Summary struct {
	Voters   int // non-spectators
	Voted    int
	Revealed bool

	Counts     map[domain.CardValue]int
	Average    float64
	HasAverage bool
	Consensus  bool // every vote is the same card
}

// Summarize tallies v. Only numeric cards count toward the average.
func Summarize(v View) Summary {
	s := Summary{
		Revealed: v.GameState.IsRevealed,
		Counts:   make(map[domain.CardValue]int),
	}

	sum, numeric := 0, 0
	for _, p := range v.Players {
		if p.IsSpectator {
			continue
		}
		s.Voters++
		if !p.HasVoted() {
			continue
		}
		s.Voted++
		if !s.Revealed {
			continue
		}
		s.Counts[*p.Vote]++
		if n, ok := p.Vote.Numeric(); ok {
			sum += n
			numeric++
		}
	}

	if numeric > 0 {
		s.Average = float64(sum) / float64(numeric)
		s.HasAverage = true
	}
	s.Consensus = s.Revealed && s.Voted > 1 && len(s.Counts) == 1
	return s
}
