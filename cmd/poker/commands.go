package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/mmuslimabdulj/goat-poker/internal/room"
)

const helpText = `commands: vote <card> | reveal | reset | topic <text> | spectate on|off | who | help | quit`

type commandKind int

const (
	cmdNone commandKind = iota
	cmdVote
	cmdReveal
	cmdReset
	cmdTopic
	cmdSpectate
	cmdWho
	cmdHelp
	cmdQuit
)

type command struct {
	kind      commandKind
	card      domain.CardValue
	topic     string
	spectator bool
}

func cardList() string {
	cards := make([]string, len(domain.Deck))
	for i, c := range domain.Deck {
		cards[i] = string(c)
	}
	return strings.Join(cards, " ")
}

// parseCommand reads one line of user input
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdNone}, nil
	}
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "vote", "v":
		if rest == "" {
			return command{}, fmt.Errorf("usage: vote <card> (cards: %s)", cardList())
		}
		card := domain.ParseCard(rest)
		if !card.Known() {
			return command{}, fmt.Errorf("unknown card %q (cards: %s)", rest, cardList())
		}
		return command{kind: cmdVote, card: card}, nil

	case "reveal", "show":
		return command{kind: cmdReveal}, nil

	case "reset", "clear":
		return command{kind: cmdReset}, nil

	case "topic":
		return command{kind: cmdTopic, topic: rest}, nil

	case "spectate":
		switch strings.ToLower(rest) {
		case "on", "yes", "true":
			return command{kind: cmdSpectate, spectator: true}, nil
		case "off", "no", "false":
			return command{kind: cmdSpectate, spectator: false}, nil
		}
		return command{}, errors.New("usage: spectate on|off")

	case "who":
		return command{kind: cmdWho}, nil

	case "help", "?":
		return command{kind: cmdHelp}, nil

	case "quit", "exit", "q":
		return command{kind: cmdQuit}, nil
	}
	return command{}, fmt.Errorf("unknown command %q, %s", verb, helpText)
}

// execute runs cmd against ctrl. Room operations are fire-and-forget; a
// dropped one is only reported, never retried.
func execute(ctx context.Context, ctrl *room.Controller, term *terminal, cmd command) {
	var ack room.Ack
	switch cmd.kind {
	case cmdNone:
		return
	case cmdVote:
		ack = ctrl.Vote(ctx, cmd.card)
	case cmdReveal:
		ack = ctrl.Reveal(ctx)
	case cmdReset:
		ack = ctrl.Reset(ctx)
	case cmdTopic:
		ack = ctrl.SetTopic(ctx, cmd.topic)
	case cmdSpectate:
		ack = ctrl.SetSpectator(ctx, cmd.spectator)
	case cmdWho:
		term.render(ctrl.View())
		return
	case cmdHelp:
		term.printf("%s\n", helpText)
		return
	default:
		return
	}

	if !ack.Sent {
		if ack.Err != nil {
			term.printf("not delivered: %v\n", ack.Err)
		} else {
			term.printf("not connected to the room (%s)\n", ctrl.Status())
		}
	}
}
