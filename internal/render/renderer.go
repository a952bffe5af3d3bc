// Package render draws checkers snapshots as PNG images.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-checkers/internal/checkers"
)

// Options tweak a single render.
type Options struct {
	// Flip draws the board from Black's side (row 7 at the top).
	Flip bool
	// Highlight marks one square; the pending capture square is used when nil.
	Highlight *checkers.Square
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, snap checkers.Snapshot, opts Options) ([]byte, error)
}

type pngBoardRenderer struct{}

func NewBoardRenderer() BoardRenderer {
	return &pngBoardRenderer{}
}

const (
	squareSize   = 64
	boardSize    = squareSize * checkers.Size
	sideMargin   = 28
	topMargin    = 56
	bottomMargin = 28
	panelHeight  = 28
	panelRadius  = 10
	panelPadding = 16
)

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{120, 86, 62, 255}
	backgroundColor     = color.RGBA{24, 26, 36, 255}
	highlightFill       = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	hudPanelColor       = color.NRGBA{R: 32, G: 35, B: 52, A: 245}
	hudTextColor        = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateTextColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

func (r *pngBoardRenderer) RenderPNG(ctx context.Context, snap checkers.Snapshot, opts Options) ([]byte, error) {
	board, err := checkers.ParseBoard(snap.Board)
	if err != nil {
		return nil, fmt.Errorf("parse board: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	totalWidth := boardSize + sideMargin*2
	totalHeight := boardSize + topMargin + bottomMargin
	origin := image.Point{X: sideMargin, Y: topMargin}
	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	g := geometry{origin: origin, flip: opts.Flip}
	drawSquares(img, g)

	hl := opts.Highlight
	if hl == nil {
		if sq, ok := snap.Pending(); ok {
			hl = &sq
		}
	}
	if hl != nil && hl.Valid() {
		imagedraw.Draw(img, g.rect(*hl), image.NewUniform(highlightFill), image.Point{}, imagedraw.Over)
	}

	if err := drawPieces(img, &board, g); err != nil {
		return nil, err
	}
	drawCoordinates(img, g)
	drawTurnPanel(img, snap, image.Rect(origin.X, origin.Y-panelHeight-14, origin.X+boardSize, origin.Y-14))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// geometry maps board squares to pixel rectangles.
type geometry struct {
	origin image.Point
	flip   bool
}

func (g geometry) cell(sq checkers.Square) (col, row int) {
	if g.flip {
		return checkers.Size - 1 - sq.Col, checkers.Size - 1 - sq.Row
	}
	return sq.Col, sq.Row
}

func (g geometry) rect(sq checkers.Square) image.Rectangle {
	col, row := g.cell(sq)
	x := g.origin.X + col*squareSize
	y := g.origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

// 어두운 칸만 말이 놓이는 칸.
func drawSquares(dst imagedraw.Image, g geometry) {
	for r := 0; r < checkers.Size; r++ {
		for c := 0; c < checkers.Size; c++ {
			clr := lightSquare
			if (r+c)%2 == 1 {
				clr = darkSquare
			}
			imagedraw.Draw(dst, g.rect(checkers.Square{Row: r, Col: c}), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst imagedraw.Image, board *checkers.Board, g geometry) error {
	for r := 0; r < checkers.Size; r++ {
		for c := 0; c < checkers.Size; c++ {
			sq := checkers.Square{Row: r, Col: c}
			piece, ok := board.At(sq)
			if !ok {
				continue
			}
			img, err := renderPieceImage(piece, squareSize)
			if err != nil {
				return err
			}
			imagedraw.Draw(dst, g.rect(sq), img, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

// Labels are the 0-based indices clients send in move commands.
func drawCoordinates(dst imagedraw.Image, g geometry) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	boardEndY := g.origin.Y + boardSize

	for i := 0; i < checkers.Size; i++ {
		rowRect := g.rect(checkers.Square{Row: i, Col: 0})
		drawCenteredText(drawer, strconv.Itoa(i), g.origin.X-sideMargin/2, rowRect.Min.Y+squareSize/2+ascent/2)

		colRect := g.rect(checkers.Square{Row: 0, Col: i})
		drawCenteredText(drawer, strconv.Itoa(i), colRect.Min.X+squareSize/2, boardEndY+ascent+4)
	}
}

func drawTurnPanel(img *image.RGBA, snap checkers.Snapshot, area image.Rectangle) {
	text := turnText(snap)
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	width := drawer.MeasureString(text).Round() + panelPadding*2
	if width > area.Dx() {
		width = area.Dx()
	}
	left := area.Min.X + (area.Dx()-width)/2
	panel := image.Rect(left, area.Min.Y, left+width, area.Max.Y)
	drawRoundedPanel(img, panel, panelRadius, hudPanelColor)
	drawCenteredString(drawer, panel, text, hudTextColor)
}

func turnText(snap checkers.Snapshot) string {
	side, ok := checkers.ParseColor(snap.Turn)
	if !ok {
		return snap.Turn
	}
	if sq, pending := snap.Pending(); pending {
		return fmt.Sprintf("%s to continue from %s", side, sq)
	}
	return fmt.Sprintf("%s to move", side)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	if text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := rect.Min.X + (rect.Dx()-width)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}
