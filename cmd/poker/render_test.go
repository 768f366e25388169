package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/mmuslimabdulj/goat-poker/internal/room"
)

func card(v string) *domain.CardValue {
	c := domain.CardValue(v)
	return &c
}

func sampleView(revealed bool) room.View {
	return room.View{
		Code:   "AB12",
		Status: room.Joined,
		MyID:   "me",
		Players: []domain.Participant{
			{ID: "me", Name: "Alice", Vote: card("5")},
			{ID: "p2", Name: "Bob", Vote: card("8")},
			{ID: "p3", Name: "Carol"},
			{ID: "p4", Name: "Dave", IsSpectator: true},
		},
		GameState: domain.RoomState{IsRevealed: revealed, Topic: "Checkout flow"},
	}
}

func TestRenderViewHidesCardsUntilRevealed(t *testing.T) {
	var buf bytes.Buffer
	renderView(&buf, sampleView(false))
	out := buf.String()

	for _, want := range []string{"Room AB12 (joined)", "Topic: Checkout flow", "Cards: hidden", "Alice (you)", "Dave [spectator]", "Votes: 2/3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, " 8\n") {
		t.Errorf("unrevealed card leaked:\n%s", out)
	}
	if strings.Count(out, "voted") != 2 {
		t.Errorf("expected two voted markers:\n%s", out)
	}
}

func TestRenderViewShowsSummaryWhenRevealed(t *testing.T) {
	var buf bytes.Buffer
	renderView(&buf, sampleView(true))
	out := buf.String()

	for _, want := range []string{"Cards: revealed", "5×1 8×1", "avg 6.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "consensus") {
		t.Errorf("split vote reported as consensus:\n%s", out)
	}
}

func TestRenderViewRevealedBlankVote(t *testing.T) {
	v := room.View{
		Code:      "AB12",
		Status:    room.Joined,
		Players:   []domain.Participant{{ID: "p9", Name: "Zed", Vote: card("")}},
		GameState: domain.RoomState{IsRevealed: true},
	}
	var buf bytes.Buffer
	renderView(&buf, v)
	out := buf.String()

	if !strings.Contains(out, fmt.Sprintf("%-28s %s", "Zed", `""`)) {
		t.Errorf("blank revealed vote should render as its value:\n%s", out)
	}
	if strings.Contains(out, "voted") {
		t.Errorf("revealed vote rendered as hidden:\n%s", out)
	}
}

func TestFormatCountsDeckOrder(t *testing.T) {
	got := formatCounts(map[domain.CardValue]int{
		domain.CardNeedABreak: 1,
		domain.CardThirteen:   2,
		domain.CardOne:        1,
		"weird":               1,
	})
	want := "1×1 13×2 ☕×1 weird×1"
	if got != want {
		t.Errorf("formatCounts = %q, want %q", got, want)
	}
}
