package engine

// Offsets maps the UTF-16 character indices the engine reports onto byte
// offsets and row/column positions of a Go string.
type Offsets struct {
	text  string
	bytes []int // bytes[i] is the byte offset of UTF-16 unit i
	lines []int // lines[r] is the UTF-16 index where row r starts
}

// NewOffsets indexes text.
func NewOffsets(text string) *Offsets {
	o := &Offsets{
		text:  text,
		bytes: make([]int, 0, len(text)+1),
		lines: []int{0},
	}
	for i, r := range text {
		o.bytes = append(o.bytes, i)
		if r >= 0x10000 {
			o.bytes = append(o.bytes, i)
		}
		if r == '\n' {
			o.lines = append(o.lines, len(o.bytes))
		}
	}
	o.bytes = append(o.bytes, len(text))
	return o
}

// Len returns the length of the text in UTF-16 units.
func (o *Offsets) Len() int { return len(o.bytes) - 1 }

// Byte converts a UTF-16 index to a byte offset, clamping to the text.
func (o *Offsets) Byte(index int) int {
	if index < 0 {
		return 0
	}
	if index >= len(o.bytes) {
		return len(o.text)
	}
	return o.bytes[index]
}

// Position converts a UTF-16 index to a 0-based row and column.
func (o *Offsets) Position(index int) (row, col int) {
	if index < 0 {
		index = 0
	}
	if index > o.Len() {
		index = o.Len()
	}
	lo, hi := 0, len(o.lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if o.lines[mid] <= index {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, index - o.lines[lo]
}
