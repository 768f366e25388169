package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mmuslimabdulj/goat-poker/internal/config"
	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/mmuslimabdulj/goat-poker/internal/identity"
	"github.com/mmuslimabdulj/goat-poker/internal/realtime"
	"github.com/mmuslimabdulj/goat-poker/internal/realtime/memory"
	"github.com/mmuslimabdulj/goat-poker/internal/realtime/natsrt"
	"github.com/mmuslimabdulj/goat-poker/internal/realtime/wsrelay"
	"github.com/mmuslimabdulj/goat-poker/internal/room"
	"github.com/mmuslimabdulj/goat-poker/internal/usecase"
	"github.com/rs/zerolog/log"
)

// openTransport builds the realtime client for cfg.transport. The returned
// func releases whatever connection backs it.
func openTransport(cfg *Config) (realtime.Client, func(), error) {
	switch cfg.transport {
	case transportMemory:
		return memory.NewBackend().Client(), func() {}, nil

	case transportNATS:
		connCfg := natsrt.DefaultConnectConfig()
		connCfg.URL = cfg.natsURL
		nc, err := natsrt.Connect(connCfg)
		if err != nil {
			return nil, nil, err
		}
		bus := natsrt.NewConnBus(nc)
		natsCfg := natsrt.DefaultConfig()
		natsCfg.Prefix = cfg.natsPrefix
		return natsrt.NewClient(bus, natsCfg), func() { bus.Close() }, nil
	}

	return wsrelay.NewClient(cfg.server), func() {}, nil
}

// identityStore picks the file the participant id lives in. Without a usable
// path the id is ephemeral.
func identityStore(cfg *Config) identity.Store {
	path := cfg.idFile
	if path == "" {
		p, err := identity.DefaultPath()
		if err != nil {
			log.Warn().Err(err).Msg("no config dir, participant id will not persist")
			return nil
		}
		path = p
	}
	return identity.NewFileStore(path)
}

// terminal serializes everything written to the user
type terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func (t *terminal) render(v room.View) {
	t.mu.Lock()
	defer t.mu.Unlock()
	renderView(t.out, v)
}

func run(ctx context.Context, cfg *Config, in io.Reader, out io.Writer) error {
	level := "warn"
	if cfg.verbose {
		level = "debug"
	}
	config.SetupLogging(level, os.Stderr)

	code := domain.NormalizeRoomCode(cfg.room)
	if code == "" {
		generated, err := domain.GenerateRoomCode(domain.DefaultRoomCodeLength)
		if err != nil {
			return err
		}
		code = generated
	}

	names := usecase.NewNameGenerator()
	name := usecase.SanitizeName(cfg.name)
	if name == "" {
		name = names.Generate()
	} else {
		names.Reserve(name)
	}

	rt, closeTransport, err := openTransport(cfg)
	if err != nil {
		return err
	}
	defer closeTransport()

	ctrl := room.NewController(rt, identity.NewProvider(identityStore(cfg)))
	defer ctrl.Leave()

	term := &terminal{out: out}
	term.printf("Joining room %s as %s...\n", code, name)

	joinCtx, cancel := context.WithTimeout(ctx, cfg.joinTimeout)
	err = ctrl.Join(joinCtx, code, name)
	cancel()
	if err != nil {
		return fmt.Errorf("join room %s: %w", code, err)
	}

	if cfg.spectator {
		ctrl.SetSpectator(ctx, true)
	}

	// Re-render on every change; a slow terminal only ever sees the latest view
	changed := make(chan struct{}, 1)
	stopWatch := ctrl.Watch(func(room.View) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer stopWatch()

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-changed:
				term.render(ctrl.View())
			}
		}
	}()

	term.render(ctrl.View())
	term.printf("%s\n", helpText)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, err := parseCommand(line)
			if err != nil {
				term.printf("%v\n", err)
				continue
			}
			if cmd.kind == cmdQuit {
				return nil
			}
			execute(ctx, ctrl, term, cmd)
		}
	}
}
