package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmuslimabdulj/goat-poker/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	transportWS     = "ws"
	transportNATS   = "nats"
	transportMemory = "memory"
)

type Config struct {
	room        string
	name        string
	transport   string
	server      string
	natsURL     string
	natsPrefix  string
	idFile      string
	spectator   bool
	joinTimeout time.Duration
	verbose     bool
}

func (c *Config) validate() error {
	switch c.transport {
	case transportWS, transportNATS, transportMemory:
	default:
		return fmt.Errorf("invalid transport %q (must be one of ws, nats, memory)", c.transport)
	}
	if c.room != "" && !domain.ValidRoomCode(domain.NormalizeRoomCode(c.room)) {
		return fmt.Errorf("invalid room code %q (must be %d-%d letters or digits)",
			c.room, domain.MinRoomCodeLength, domain.MaxRoomCodeLength)
	}
	if c.joinTimeout <= 0 {
		return fmt.Errorf("invalid join timeout: %s", c.joinTimeout)
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("POKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "poker",
		Short:         "Join a planning poker room from the terminal.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.room, "room", "r", "", "room code to join, a new one is generated if empty (env: POKER_ROOM)")
	fs.StringVarP(&cfg.name, "name", "n", "", "display name, a random one is generated if empty (env: POKER_NAME)")
	fs.StringVarP(&cfg.transport, "transport", "t", transportWS, "realtime backend: ws, nats or memory (env: POKER_TRANSPORT)")
	fs.StringVar(&cfg.server, "server", "ws://localhost:8080/ws", "relay websocket endpoint for --transport ws (env: POKER_SERVER)")
	fs.StringVar(&cfg.natsURL, "nats-url", "nats://127.0.0.1:4222", "NATS server for --transport nats (env: POKER_NATS_URL)")
	fs.StringVar(&cfg.natsPrefix, "nats-prefix", "poker", "subject prefix for --transport nats (env: POKER_NATS_PREFIX)")
	fs.StringVar(&cfg.idFile, "id-file", "", "where the participant id is kept, defaults to the user config dir (env: POKER_ID_FILE)")
	fs.BoolVarP(&cfg.spectator, "spectator", "s", false, "join as a spectator (env: POKER_SPECTATOR)")
	fs.DurationVar(&cfg.joinTimeout, "join-timeout", 10*time.Second, "how long to wait for the room subscription (env: POKER_JOIN_TIMEOUT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display debug logs (env: POKER_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("poker v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
