package checkers

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Size is the number of rows and columns on the board.
const Size = 8

// Color identifies a side.
type Color uint8

const (
	White Color = iota
	Black
)

// Other returns the opposing side.
func (c Color) Other() Color {
	switch c {
	case White:
		return Black
	default:
		return White
	}
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	default:
		return "black"
	}
}

// ParseColor accepts "white"/"w" and "black"/"b".
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return White, false
	}
}

// Piece is a man or a king of one color.
type Piece struct {
	Color Color
	King  bool
}

// Glyphs used in the wire board string.
const (
	GlyphEmpty     = "🟦"
	GlyphWhiteMan  = "⚪"
	GlyphWhiteKing = "⬜"
	GlyphBlackMan  = "⚫"
	GlyphBlackKing = "⬛"
)

// Glyph returns the single-cell rendering of p.
func (p Piece) Glyph() string {
	switch {
	case p.Color == White && !p.King:
		return GlyphWhiteMan
	case p.Color == White && p.King:
		return GlyphWhiteKing
	case p.Color == Black && !p.King:
		return GlyphBlackMan
	default:
		return GlyphBlackKing
	}
}

// Square is a (row, col) coordinate, both in 0..7.
type Square struct {
	Row int
	Col int
}

// Valid reports whether s lies on the board.
func (s Square) Valid() bool {
	return s.Row >= 0 && s.Row < Size && s.Col >= 0 && s.Col < Size
}

func (s Square) String() string { return fmt.Sprintf("%d,%d", s.Row, s.Col) }

type cell struct {
	piece Piece
	ok    bool
}

// Board is an 8x8 grid of optional pieces. The zero value is empty.
type Board struct {
	cells [Size][Size]cell
}

// NewBoard returns the initial layout: Black on rows 0-2, White on rows 5-7,
// all on squares where row+col is odd.
func NewBoard() Board {
	var b Board
	for i := 0; i < 4; i++ {
		b.Set(Square{0, i*2 + 1}, Piece{Color: Black})
		b.Set(Square{1, i * 2}, Piece{Color: Black})
		b.Set(Square{2, i*2 + 1}, Piece{Color: Black})
		b.Set(Square{5, i * 2}, Piece{Color: White})
		b.Set(Square{6, i*2 + 1}, Piece{Color: White})
		b.Set(Square{7, i * 2}, Piece{Color: White})
	}
	return b
}

// At returns the piece on sq, if any.
func (b *Board) At(sq Square) (Piece, bool) {
	c := b.cells[sq.Row][sq.Col]
	return c.piece, c.ok
}

// Set places p on sq, replacing whatever was there.
func (b *Board) Set(sq Square, p Piece) {
	b.cells[sq.Row][sq.Col] = cell{piece: p, ok: true}
}

// Clear empties sq.
func (b *Board) Clear(sq Square) {
	b.cells[sq.Row][sq.Col] = cell{}
}

// Count returns the number of pieces of color c.
func (b *Board) Count(c Color) int {
	n := 0
	for r := 0; r < Size; r++ {
		for col := 0; col < Size; col++ {
			if cl := b.cells[r][col]; cl.ok && cl.piece.Color == c {
				n++
			}
		}
	}
	return n
}

// String renders the board as 64 glyphs in row-major order.
func (b *Board) String() string {
	var sb strings.Builder
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if p, ok := b.At(Square{r, c}); ok {
				sb.WriteString(p.Glyph())
			} else {
				sb.WriteString(GlyphEmpty)
			}
		}
	}
	return sb.String()
}

// ParseBoard decodes a 64-glyph board string produced by Board.String.
func ParseBoard(s string) (Board, error) {
	var b Board
	i := 0
	for len(s) > 0 {
		if i >= Size*Size {
			return Board{}, fmt.Errorf("board has more than %d cells", Size*Size)
		}
		r, n := utf8.DecodeRuneInString(s)
		glyph := s[:n]
		sq := Square{Row: i / Size, Col: i % Size}
		switch glyph {
		case GlyphEmpty:
		case GlyphWhiteMan:
			b.Set(sq, Piece{Color: White})
		case GlyphWhiteKing:
			b.Set(sq, Piece{Color: White, King: true})
		case GlyphBlackMan:
			b.Set(sq, Piece{Color: Black})
		case GlyphBlackKing:
			b.Set(sq, Piece{Color: Black, King: true})
		default:
			return Board{}, fmt.Errorf("unknown glyph %q at cell %d", r, i)
		}
		s = s[n:]
		i++
	}
	if i != Size*Size {
		return Board{}, fmt.Errorf("board has %d cells, want %d", i, Size*Size)
	}
	return b, nil
}
