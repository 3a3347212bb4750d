package notify

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	colorStarted  = 0x5865F2
	colorFinished = 0x57F287

	shortIDLimit  = 10
	defaultFooter = "lobbysync"
)

func FormatMessage(ev Event) (FormattedMessage, bool) {
	sessionShort := shortID(fallback(ev.SessionID, "unknown"), shortIDLimit)
	base := FormattedMessage{
		Timestamp: eventTimestamp(ev.ServerTS),
		Footer:    defaultFooter,
	}

	switch ev.Type {
	case EventGameStarted:
		base.Title = fmt.Sprintf("Game Started · S:%s", sessionShort)
		base.Content = fmt.Sprintf("%s started with %d players", fallback(ev.GameType, "game"), len(ev.TurnOrder))
		base.Description = base.Content
		base.Color = colorStarted
		base.Fields = []MessageField{
			{Name: "Game", Value: fallback(ev.GameType, "-"), Inline: true},
			{Name: "Turn Order", Value: fallback(strings.Join(ev.TurnOrder, ", "), "-"), Inline: false},
		}
	case EventGameFinished:
		base.Title = fmt.Sprintf("Game Over · S:%s", sessionShort)
		base.Content = fmt.Sprintf("%s won", fallback(ev.Winner, "nobody"))
		base.Description = fmt.Sprintf("%s won %s.", fallback(ev.Winner, "Nobody"), fallback(ev.GameType, "the game"))
		base.Color = colorFinished
		base.Fields = []MessageField{
			{Name: "Game", Value: fallback(ev.GameType, "-"), Inline: true},
			{Name: "Winner", Value: fallback(ev.Winner, "-"), Inline: true},
			{Name: "Standings", Value: standingsText(ev), Inline: false},
		}
	default:
		return FormattedMessage{}, false
	}
	return base, true
}

// standingsText lists rankings when present, else final scores by player id.
func standingsText(ev Event) string {
	if len(ev.Rankings) > 0 {
		lines := make([]string, 0, len(ev.Rankings))
		for _, r := range ev.Rankings {
			lines = append(lines, fmt.Sprintf("%d. %s (%d)", r.Rank, r.PlayerID, r.Score))
		}
		return strings.Join(lines, "\n")
	}
	if len(ev.FinalScores) == 0 {
		return "-"
	}
	ids := make([]string, 0, len(ev.FinalScores))
	for id := range ev.FinalScores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id+" "+strconv.Itoa(ev.FinalScores[id]))
	}
	return strings.Join(parts, ", ")
}

func shortID(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	return v[:max]
}

func eventTimestamp(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func fallback(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
