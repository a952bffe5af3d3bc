package checkers

import (
	"strconv"
	"strings"
)

// SkipDirective ends a pending capture chain.
const SkipDirective = "skip"

// Move is a from/to coordinate pair, each coordinate in 0..7.
type Move struct {
	From Square
	To   Square
}

func (m Move) String() string {
	return m.From.String() + "," + m.To.String()
}

// Command is either a skip or a move.
type Command struct {
	Skip bool
	Move Move
}

func (c Command) String() string {
	if c.Skip {
		return SkipDirective
	}
	return c.Move.String()
}

// ParseCommand parses "skip" or "r1,c1,r2,c2". Any deviation yields ErrFormat.
func ParseCommand(raw string) (Command, error) {
	if raw == SkipDirective {
		return Command{Skip: true}, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return Command{}, ErrFormat
	}
	var v [4]int
	for i, p := range parts {
		// one explicit plus sign is accepted, as in "+5,0,4,1"
		p = strings.TrimPrefix(p, "+")
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil || n >= Size {
			return Command{}, ErrFormat
		}
		v[i] = int(n)
	}
	return Command{Move: Move{
		From: Square{Row: v[0], Col: v[1]},
		To:   Square{Row: v[2], Col: v[3]},
	}}, nil
}
