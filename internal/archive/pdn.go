package archive

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-checkers/internal/checkers"
)

// SquareNumber returns the 1..32 PDN number of a playable square, 0 otherwise.
func SquareNumber(sq checkers.Square) int {
	if !sq.Valid() || (sq.Row+sq.Col)%2 == 0 {
		return 0
	}
	return sq.Row*4 + sq.Col/2 + 1
}

// Outcome decides the result from the final board: a side with no pieces left lost.
func Outcome(b checkers.Board) string {
	white, black := b.Count(checkers.White), b.Count(checkers.Black)
	switch {
	case black == 0 && white > 0:
		return "white"
	case white == 0 && black > 0:
		return "black"
	default:
		return ""
	}
}

func mapResultToPDN(result string) string {
	switch result {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	default:
		return "*"
	}
}

// Turns groups the history into one token per turn: "a-b" for a step,
// "axbxc" for a capture chain. Skips close a chain and add nothing.
func Turns(history []checkers.Record) []string {
	var (
		out  []string
		cur  strings.Builder
		open bool
		who  checkers.Color
	)
	flush := func() {
		if open {
			out = append(out, cur.String())
			cur.Reset()
			open = false
		}
	}
	for _, rec := range history {
		if open && rec.Color != who {
			flush()
		}
		switch rec.Kind {
		case checkers.KindSkip:
			flush()
		case checkers.KindMove:
			flush()
			cur.WriteString(strconv.Itoa(SquareNumber(rec.Command.Move.From)))
			cur.WriteString("-")
			cur.WriteString(strconv.Itoa(SquareNumber(rec.Command.Move.To)))
			out = append(out, cur.String())
			cur.Reset()
		case checkers.KindCapture:
			if !open {
				cur.WriteString(strconv.Itoa(SquareNumber(rec.Command.Move.From)))
				open, who = true, rec.Color
			}
			cur.WriteString("x")
			cur.WriteString(strconv.Itoa(SquareNumber(rec.Command.Move.To)))
		}
	}
	flush()
	return out
}

// BuildPDN renders a finished match as PDN text.
func BuildPDN(id, whiteID, blackID string, date time.Time, history []checkers.Record, result string) string {
	if date.IsZero() {
		date = time.Now()
	}
	pdnResult := mapResultToPDN(result)
	var b strings.Builder
	b.WriteString("[Event \"Checkers\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePDN(id)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePDN(whiteID)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePDN(blackID)))
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pdnResult))

	turns := Turns(history)
	for i := 0; i < len(turns); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, turns[i]))
		if i+1 < len(turns) {
			b.WriteString(" ")
			b.WriteString(turns[i+1])
		}
		b.WriteString(" ")
	}
	b.WriteString(pdnResult)
	return b.String()
}

func sanitizePDN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
