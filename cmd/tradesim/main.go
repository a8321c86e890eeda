package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/atmx/tradegame/internal/config"
	"github.com/atmx/tradegame/internal/session"
)

func main() {
	root := &cobra.Command{
		Use:          "tradesim",
		Short:        "Headless stock-trading game simulator",
		SilenceUsage: true,
	}

	root.AddCommand(newPlayCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type playOptions struct {
	configPath  string
	players     []string
	ai          int
	turns       int
	instruments int
	seed        uint64
	verbose     bool
	quiet       bool
}

func newPlayCmd() *cobra.Command {
	opts := playOptions{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a full game with automated traders and print the scoreboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.turns > 0 {
				cfg.Game.TotalTurns = opts.turns
			}
			if opts.instruments > 0 {
				cfg.Game.InstrumentCount = opts.instruments
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			seats, err := buildSeats(opts.players, opts.ai)
			if err != nil {
				return err
			}
			seed := opts.seed
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}

			var logger *slog.Logger
			if opts.verbose {
				logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			}

			var onTurn func(*session.Session, *session.TurnReport)
			if !opts.quiet {
				onTurn = printTurn
			}

			printHeader(fmt.Sprintf("tradesim: %d players, %d turns, seed %d", len(seats), cfg.Game.TotalTurns, seed))
			res, err := runGame(cfg.Game.Session(), seats, seed, logger, onTurn)
			if err != nil {
				return err
			}
			printStandings(res.Standings)
			printHighScores(res.Session.HighScores)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to TOML config file")
	cmd.Flags().StringSliceVar(&opts.players, "players", []string{"Player 1"}, "human player names")
	cmd.Flags().IntVar(&opts.ai, "ai", 1, "number of AI players")
	cmd.Flags().IntVar(&opts.turns, "turns", 0, "total turns (default from config)")
	cmd.Flags().IntVar(&opts.instruments, "instruments", 0, "instruments to list (default from config)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed (0 picks one from the clock)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log turn lifecycle to stderr")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "only print the final scoreboard")
	return cmd
}

func buildSeats(names []string, ai int) ([]session.Seat, error) {
	if ai < 0 {
		return nil, fmt.Errorf("ai must not be negative, got %d", ai)
	}
	seats := make([]session.Seat, 0, len(names)+ai)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		seats = append(seats, session.Seat{Name: name})
	}
	for i := 1; i <= ai; i++ {
		seats = append(seats, session.Seat{Name: fmt.Sprintf("AI %d", i), IsAI: true})
	}
	if len(seats) == 0 {
		return nil, fmt.Errorf("at least one player is required")
	}
	return seats, nil
}
