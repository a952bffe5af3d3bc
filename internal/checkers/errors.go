package checkers

// Rule errors. The engine never mutates state when it returns one of these.
var (
	ErrFormat              = errf("malformed command")
	ErrNoPendingCapture    = errf("no pending capture to skip")
	ErrNotDiagonal         = errf("non-diagonal move")
	ErrMustContinue        = errf("must continue capture")
	ErrEmptySource         = errf("empty source")
	ErrWrongTurn           = errf("wrong turn")
	ErrIllegalForPiece     = errf("illegal move for piece")
	ErrDestinationOccupied = errf("destination occupied")
	ErrIllegalCapture      = errf("illegal capture")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
