package game

// Morpion symbols. Empty cells hold Empty.
const (
	Empty   = " "
	SymbolX = "X"
	SymbolO = "O"
)

// winLines are the 8 winning alignments: rows, columns, diagonals.
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Board is a 3x3 Morpion board, positions 0..8 row-major.
type Board struct {
	cells [9]string
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	b := &Board{}
	for i := range b.cells {
		b.cells[i] = Empty
	}
	return b
}

// PlayMove places symbol at position if the position is in range and the
// cell is empty. Returns false without mutating the board otherwise.
func (b *Board) PlayMove(position int, symbol string) bool {
	if position < 0 || position > 8 || b.cells[position] != Empty {
		return false
	}
	b.cells[position] = symbol
	return true
}

// Winner returns "X" or "O" if a line is complete, "draw" if the board is
// full with no winner, or "" while the game continues.
func (b *Board) Winner() string {
	for _, line := range winLines {
		a, m, z := b.cells[line[0]], b.cells[line[1]], b.cells[line[2]]
		if a != Empty && a == m && a == z {
			return a
		}
	}
	for _, c := range b.cells {
		if c == Empty {
			return ""
		}
	}
	return "draw"
}

// Cells returns a copy of the 9 cells.
func (b *Board) Cells() []string {
	out := make([]string, 9)
	copy(out, b.cells[:])
	return out
}
