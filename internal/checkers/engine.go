package checkers

// Kind classifies an accepted command.
type Kind string

const (
	KindMove    Kind = "move"
	KindCapture Kind = "capture"
	KindSkip    Kind = "skip"
)

// Record is one accepted command in the match history.
type Record struct {
	Command  Command
	Kind     Kind
	Color    Color
	Promoted bool
}

// Engine holds one match's board, turn and pending capture, and applies
// commands to them. It is not safe for concurrent use.
type Engine struct {
	board   Board
	turn    Color
	pending Square
	hasPend bool
	history []Record
}

// NewEngine returns an engine at the initial position with White to move.
func NewEngine() *Engine {
	return NewEngineFromBoard(NewBoard(), White)
}

// NewEngineFromBoard starts from an arbitrary position.
func NewEngineFromBoard(b Board, turn Color) *Engine {
	return &Engine{board: b, turn: turn}
}

// Turn returns the side to move.
func (e *Engine) Turn() Color { return e.turn }

// Pending returns the square a capture chain must continue from, if any.
func (e *Engine) Pending() (Square, bool) { return e.pending, e.hasPend }

// PieceAt returns the piece on sq, if any.
func (e *Engine) PieceAt(sq Square) (Piece, bool) {
	if !sq.Valid() {
		return Piece{}, false
	}
	return e.board.At(sq)
}

// Board returns a copy of the current board.
func (e *Engine) Board() Board { return e.board }

// History returns a copy of the accepted commands in order.
func (e *Engine) History() []Record {
	return append([]Record(nil), e.history...)
}

// ApplyString parses raw and applies it.
func (e *Engine) ApplyString(raw string) error {
	cmd, err := ParseCommand(raw)
	if err != nil {
		return err
	}
	return e.Apply(cmd)
}

// Apply validates cmd and mutates state only when it is legal.
func (e *Engine) Apply(cmd Command) error {
	if cmd.Skip {
		return e.skip()
	}
	mv := cmd.Move
	if !mv.From.Valid() || !mv.To.Valid() {
		return ErrFormat
	}

	rowDiff := absDiff(mv.From.Row, mv.To.Row)
	colDiff := absDiff(mv.From.Col, mv.To.Col)
	if rowDiff != colDiff {
		return ErrNotDiagonal
	}
	if e.hasPend && (e.pending != mv.From || colDiff != 2) {
		return ErrMustContinue
	}

	piece, ok := e.board.At(mv.From)
	if !ok {
		return ErrEmptySource
	}
	if piece.Color != e.turn {
		return ErrWrongTurn
	}

	var (
		kind Kind
		err  error
	)
	switch step := mv.To.Row - mv.From.Row; {
	case piece.King && colDiff == 1:
		kind, err = KindMove, e.move(mv)
	case piece.King && colDiff == 2:
		kind, err = KindCapture, e.capture(mv, piece.Color)
	case piece.Color == Black && colDiff == 1 && step == 1:
		kind, err = KindMove, e.move(mv)
	case piece.Color == Black && colDiff == 2 && step == 2:
		kind, err = KindCapture, e.capture(mv, Black)
	case piece.Color == White && colDiff == 1 && step == -1:
		kind, err = KindMove, e.move(mv)
	case piece.Color == White && colDiff == 2 && step == -2:
		kind, err = KindCapture, e.capture(mv, White)
	default:
		return ErrIllegalForPiece
	}
	if err != nil {
		return err
	}

	promoted := false
	// Either edge crowns; a man only moves forward, so this is always its far edge.
	if !piece.King && (mv.To.Row == 0 || mv.To.Row == Size-1) {
		e.board.Set(mv.To, Piece{Color: piece.Color, King: true})
		promoted = true
	}
	e.history = append(e.history, Record{Command: cmd, Kind: kind, Color: piece.Color, Promoted: promoted})
	return nil
}

func (e *Engine) skip() error {
	if !e.hasPend {
		return ErrNoPendingCapture
	}
	e.history = append(e.history, Record{Command: Command{Skip: true}, Kind: KindSkip, Color: e.turn})
	e.hasPend = false
	e.turn = e.turn.Other()
	return nil
}

func (e *Engine) move(mv Move) error {
	if _, occupied := e.board.At(mv.To); occupied {
		return ErrDestinationOccupied
	}
	p, _ := e.board.At(mv.From)
	e.board.Set(mv.To, p)
	e.board.Clear(mv.From)
	e.turn = e.turn.Other()
	return nil
}

func (e *Engine) capture(mv Move, mover Color) error {
	mid := Square{Row: (mv.From.Row + mv.To.Row) / 2, Col: (mv.From.Col + mv.To.Col) / 2}
	target, ok := e.board.At(mid)
	if !ok || target.Color == mover {
		return ErrIllegalCapture
	}
	if _, occupied := e.board.At(mv.To); occupied {
		return ErrIllegalCapture
	}
	p, _ := e.board.At(mv.From)
	e.board.Set(mv.To, p)
	e.board.Clear(mv.From)
	e.board.Clear(mid)
	e.pending, e.hasPend = mv.To, true
	return nil
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
