package immix

import "unsafe"

// BlockMeta is a view over a block's line-mark table. The table lives
// in the last lines of the block itself: one mark byte per usable
// line, then a single block-mark byte. Keeping the marks inside the
// block lets the collector find them from any interior pointer with
// one mask and one add.
type BlockMeta struct {
	lineMarks *[UsableLines]byte
	blockMark *byte
}

// metaFor builds the mark-table view for a block base address.
func metaFor(base uintptr) *BlockMeta {
	return &BlockMeta{
		lineMarks: (*[UsableLines]byte)(unsafe.Pointer(base + BlockCapacity)),
		blockMark: (*byte)(unsafe.Pointer(base + BlockCapacity + UsableLines)),
	}
}

// MarkLine marks a line as containing live data.
func (m *BlockMeta) MarkLine(index int) {
	m.lineMarks[index] = 1
}

// IsLineMarked reports whether a line holds live data.
func (m *BlockMeta) IsLineMarked(index int) bool {
	return m.lineMarks[index] != 0
}

// MarkBlock marks the whole block as containing live data.
func (m *BlockMeta) MarkBlock() {
	*m.blockMark = 1
}

// IsBlockMarked reports whether the block holds any live data.
func (m *BlockMeta) IsBlockMarked() bool {
	return *m.blockMark != 0
}

// Reset clears all line marks and the block mark.
func (m *BlockMeta) Reset() {
	for i := range m.lineMarks {
		m.lineMarks[i] = 0
	}
	*m.blockMark = 0
}

// FindNextAvailableHole scans for a run of unmarked lines big enough
// for neededBytes, working downward from the line below startingOffset.
// It returns the hole as byte offsets (cursor, limit) with cursor >
// limit, or ok=false if no suitable hole exists at or below the
// starting point.
//
// The line directly above a marked line is treated as conservatively
// marked, since an object allocated at the bottom of a hole may
// straddle into the line above its last marked line. A run bounded
// below by a marked line therefore needs strictly more than the needed
// line count, and its usable limit starts one full line above the
// marked line.
func (m *BlockMeta) FindNextAvailableHole(startingOffset, neededBytes uintptr) (cursor, limit uintptr, ok bool) {
	neededLines := int((neededBytes + LineSize - 1) / LineSize)
	startLine := int(startingOffset / LineSize)

	count := 0
	end := 0

	for index := startLine - 1; index >= 0; index-- {
		if !m.IsLineMarked(index) {
			count++
			if count == 1 {
				// upper boundary of this run
				end = index + 1
			}
			if index == 0 && count >= neededLines {
				// the run reaches the block floor: no marked line
				// below it, so no conservative margin to pay
				return uintptr(end) * LineSize, 0, true
			}
			continue
		}

		// hit a marked line: one line of the run is sacrificed to the
		// conservative margin
		if count > neededLines {
			return uintptr(end) * LineSize, uintptr(index+2) * LineSize, true
		}
		count = 0
	}

	return 0, 0, false
}
