package room

import (
	"testing"

	"github.com/mmuslimabdulj/goat-poker/internal/domain"
)

func vote(c domain.CardValue) *domain.CardValue { return &c }

func TestPhaseOf(t *testing.T) {
	tests := []struct {
		name     string
		p        domain.Participant
		revealed bool
		expected VotePhase
	}{
		{"No vote hidden", domain.Participant{}, false, NotVoted},
		{"No vote revealed", domain.Participant{}, true, NotVoted},
		{"Voted hidden", domain.Participant{Vote: vote("5")}, false, Voted},
		{"Voted revealed", domain.Participant{Vote: vote("5")}, true, Revealed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := PhaseOf(tc.p, domain.RoomState{IsRevealed: tc.revealed})
			if got != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func sampleView(revealed bool) View {
	return View{
		MyID:      "a",
		GameState: domain.RoomState{IsRevealed: revealed},
		Players: []domain.Participant{
			{ID: "a", Name: "Ann", Vote: vote("3")},
			{ID: "b", Name: "Ben", Vote: vote("8")},
			{ID: "c", Name: "Cat", Vote: vote("?")},
			{ID: "d", Name: "Dan"},
			{ID: "e", Name: "Eve", Vote: vote("13"), IsSpectator: true},
		},
	}
}

func TestSeats_HiddenBeforeReveal(t *testing.T) {
	seats := Seats(sampleView(false))

	if len(seats) != 5 {
		t.Fatalf("Expected 5 seats, got %d", len(seats))
	}
	if !seats[0].IsSelf || seats[1].IsSelf {
		t.Error("Only the local participant should be marked as self")
	}
	for _, s := range seats {
		if s.Card != "" || s.Revealed {
			t.Errorf("Seat %s leaks card %q before reveal", s.ID, s.Card)
		}
	}
	if !seats[1].HasVoted || seats[3].HasVoted {
		t.Error("HasVoted should follow the vote attribute")
	}
}

func TestSeats_ShownAfterReveal(t *testing.T) {
	seats := Seats(sampleView(true))

	expected := []domain.CardValue{"3", "8", "?", "", "13"}
	for i, s := range seats {
		if s.Card != expected[i] {
			t.Errorf("Seat %s: expected %q, got %q", s.ID, expected[i], s.Card)
		}
		if s.Revealed != s.HasVoted {
			t.Errorf("Seat %s: Revealed should follow HasVoted once revealed", s.ID)
		}
	}
}

func TestSeats_RevealedBlankVote(t *testing.T) {
	v := View{
		GameState: domain.RoomState{IsRevealed: true},
		Players:   []domain.Participant{{ID: "x", Name: "Xan", Vote: vote("")}},
	}
	s := Seats(v)[0]
	if !s.HasVoted || !s.Revealed || s.Card != "" {
		t.Errorf("A blank vote should be revealed as blank, got %+v", s)
	}
}

func TestSummarize_Hidden(t *testing.T) {
	s := Summarize(sampleView(false))

	if s.Voters != 4 || s.Voted != 3 {
		t.Errorf("Expected 3 of 4 voted, got %d of %d", s.Voted, s.Voters)
	}
	if len(s.Counts) != 0 || s.HasAverage {
		t.Error("Counts and average must stay empty before reveal")
	}
}

func TestSummarize_Revealed(t *testing.T) {
	s := Summarize(sampleView(true))

	if s.Counts["3"] != 1 || s.Counts["8"] != 1 || s.Counts["?"] != 1 {
		t.Errorf("Unexpected counts %v", s.Counts)
	}
	if _, ok := s.Counts["13"]; ok {
		t.Error("Spectators must not be counted")
	}
	if !s.HasAverage || s.Average != 5.5 {
		t.Errorf("Expected average 5.5 of numeric cards, got %v", s.Average)
	}
	if s.Consensus {
		t.Error("Mixed votes are not a consensus")
	}
}

func TestSummarize_Consensus(t *testing.T) {
	v := View{
		GameState: domain.RoomState{IsRevealed: true},
		Players: []domain.Participant{
			{ID: "a", Vote: vote("☕")},
			{ID: "b", Vote: vote("☕")},
		},
	}
	s := Summarize(v)
	if !s.Consensus {
		t.Error("Identical votes should be a consensus")
	}
	if s.HasAverage {
		t.Error("No numeric cards means no average")
	}
}
