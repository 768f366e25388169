package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/mmuslimabdulj/goat-poker/internal/room"
)

func renderView(w io.Writer, v room.View) {
	var b strings.Builder

	fmt.Fprintf(&b, "\n== Room %s (%s) ==\n", v.Code, v.Status)
	if v.GameState.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", v.GameState.Topic)
	}
	if v.GameState.IsRevealed {
		b.WriteString("Cards: revealed\n")
	} else {
		b.WriteString("Cards: hidden\n")
	}

	for _, s := range room.Seats(v) {
		name := s.Name
		if s.IsSelf {
			name += " (you)"
		}
		if s.IsSpectator {
			name += " [spectator]"
		}

		mark := "..."
		switch {
		case s.Revealed:
			mark = strconv.Quote(string(s.Card))
			if s.Card.Known() {
				mark = string(s.Card)
			}
		case s.HasVoted:
			mark = "voted"
		}
		fmt.Fprintf(&b, "  %-28s %s\n", name, mark)
	}

	if card, ok := v.MyVote(); ok {
		fmt.Fprintf(&b, "Your card: %s\n", card)
	}

	sum := room.Summarize(v)
	fmt.Fprintf(&b, "Votes: %d/%d", sum.Voted, sum.Voters)
	if sum.Revealed && len(sum.Counts) > 0 {
		b.WriteString("  [")
		b.WriteString(formatCounts(sum.Counts))
		b.WriteString("]")
		if sum.HasAverage {
			fmt.Fprintf(&b, "  avg %.1f", sum.Average)
		}
		if sum.Consensus {
			b.WriteString("  consensus!")
		}
	}
	b.WriteString("\n")

	io.WriteString(w, b.String())
}

// formatCounts lists counts in deck order, unknown cards last
func formatCounts(counts map[domain.CardValue]int) string {
	order := make(map[domain.CardValue]int, len(domain.Deck))
	for i, c := range domain.Deck {
		order[c] = i
	}

	cards := make([]domain.CardValue, 0, len(counts))
	for c := range counts {
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool {
		oi, iKnown := order[cards[i]]
		oj, jKnown := order[cards[j]]
		if iKnown != jKnown {
			return iKnown
		}
		if iKnown {
			return oi < oj
		}
		return cards[i] < cards[j]
	})

	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = fmt.Sprintf("%s×%d", c, counts[c])
	}
	return strings.Join(parts, " ")
}
