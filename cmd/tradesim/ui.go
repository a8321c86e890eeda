package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/atmx/tradegame/internal/model"
	"github.com/atmx/tradegame/internal/pricing"
	"github.com/atmx/tradegame/internal/session"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printHeader(title string) {
	accent.Println(title)
}

func printTurn(sess *session.Session, report *session.TurnReport) {
	regime := success
	if report.Condition == pricing.Bear {
		regime = danger
	}
	fmt.Printf("\nTurn %d/%d ", report.Turn, sess.TotalTurns)
	regime.Printf("[%s]\n", report.Condition)

	for _, ev := range sess.EventsForTurn(report.Turn) {
		impact := success
		if ev.PriceImpact.IsNegative() {
			impact = danger
		}
		impact.Println(formatEvent(sess, ev))
	}
	for _, mv := range report.Moves {
		line := formatMove(sess, mv)
		switch {
		case mv.Current.GreaterThan(mv.Previous):
			success.Println(line)
		case mv.Current.LessThan(mv.Previous):
			danger.Println(line)
		default:
			neutral.Println(line)
		}
	}

	splitIDs := make([]string, 0, len(report.Splits))
	for id := range report.Splits {
		splitIDs = append(splitIDs, id)
	}
	sort.Strings(splitIDs)
	for _, id := range splitIDs {
		warn.Printf("  split: %s %d-for-1\n", symbolOf(sess, id), report.Splits[id])
	}
	for _, id := range report.Bankruptcies {
		danger.Printf("  bankrupt: %s\n", symbolOf(sess, id))
	}
	if len(report.DividendPayers) > 0 {
		accent.Printf("  dividends: %s\n", symbols(sess, report.DividendPayers))
	}
}

// formatEvent renders a news event. Hosts may fill Headline; otherwise the
// affected tickers stand in for it.
func formatEvent(sess *session.Session, ev model.MarketEvent) string {
	sign := ""
	if ev.PriceImpact.IsPositive() {
		sign = "+"
	}
	text := symbols(sess, ev.AffectedInstrumentIDs)
	if ev.Headline != "" {
		text = ev.Headline + " [" + text + "]"
	}
	return fmt.Sprintf("  news: %s %s%s", text, sign, ev.PriceImpact.StringFixed(2))
}

func formatMove(sess *session.Session, mv session.PriceMove) string {
	return fmt.Sprintf("  %-6s %10s -> %10s", symbolOf(sess, mv.InstrumentID), mv.Previous.StringFixed(2), mv.Current.StringFixed(2))
}

// symbolOf maps an instrument id to its ticker, falling back to the id.
func symbolOf(sess *session.Session, id string) string {
	if inst, err := sess.Instrument(id); err == nil {
		return inst.Symbol
	}
	return id
}

func symbols(sess *session.Session, ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = symbolOf(sess, id)
	}
	return strings.Join(out, ", ")
}

func printStandings(standings []session.Standing) {
	accent.Println("\nFinal standings")
	for _, s := range standings {
		kind := "human"
		if s.IsAI {
			kind = "ai"
		}
		line := fmt.Sprintf("  %2d. %-16s %-5s %14s", s.Rank, s.PlayerName, kind, s.Score.StringFixed(2))
		if s.Rank == 1 {
			success.Println(line)
			continue
		}
		neutral.Println(line)
	}
}

func printHighScores(entries []model.ScoreEntry) {
	if len(entries) == 0 {
		return
	}
	accent.Println("\nHigh scores")
	for i, e := range entries {
		neutral.Printf("  %2d. %-16s %14s  %s\n", i+1, e.PlayerName, e.Score.StringFixed(2), e.RecordedAt.Format("2006-01-02"))
	}
}
