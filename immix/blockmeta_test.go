package immix

import "testing"

// metaBlock allocates a block and returns its recycled BumpBlock and
// mark table for direct hole-finder testing.
func metaBlock(t *testing.T) (*BumpBlock, *BlockMeta) {
	t.Helper()
	b, err := NewBumpBlock()
	if err != nil {
		t.Fatal(err)
	}
	return b, b.Meta()
}

func TestFindHoleEntireBlock(t *testing.T) {
	_, meta := metaBlock(t)

	cursor, limit, ok := meta.FindNextAvailableHole(BlockCapacity, LineSize)
	if !ok {
		t.Fatal("expected a hole in an empty block")
	}
	if cursor != BlockCapacity || limit != 0 {
		t.Errorf("hole = (%d, %d), want (%d, 0)", cursor, limit, uintptr(BlockCapacity))
	}
}

func TestFindHoleBelowMarkedLines(t *testing.T) {
	_, meta := metaBlock(t)

	meta.MarkLine(0)
	meta.MarkLine(1)
	meta.MarkLine(2)
	meta.MarkLine(4)
	meta.MarkLine(10)

	// First hole: everything above line 10 plus one conservative line.
	cursor, limit, ok := meta.FindNextAvailableHole(BlockCapacity, 8)
	if !ok {
		t.Fatal("expected first hole")
	}
	if cursor != BlockCapacity || limit != 12*LineSize {
		t.Errorf("first hole = (%d, %d), want (%d, %d)",
			cursor, limit, uintptr(BlockCapacity), uintptr(12*LineSize))
	}

	// Second hole: lines 6-9, line 5 sacrificed to the margin above
	// the mark at line 4.
	cursor, limit, ok = meta.FindNextAvailableHole(limit, 8)
	if !ok {
		t.Fatal("expected second hole")
	}
	if cursor != 10*LineSize || limit != 6*LineSize {
		t.Errorf("second hole = (%d, %d), want (%d, %d)",
			cursor, limit, uintptr(10*LineSize), uintptr(6*LineSize))
	}

	// Below that: single free lines only, all eaten by the margin.
	if _, _, ok = meta.FindNextAvailableHole(limit, 8); ok {
		t.Error("expected no third hole")
	}
}

func TestFindHoleReachesBlockFloor(t *testing.T) {
	_, meta := metaBlock(t)

	// Marks only in the upper half: the hole runs to line zero with no
	// conservative margin.
	for i := UsableLines / 2; i < UsableLines; i++ {
		meta.MarkLine(i)
	}

	cursor, limit, ok := meta.FindNextAvailableHole(uintptr(UsableLines/2)*LineSize, 8)
	if !ok {
		t.Fatal("expected a hole reaching line zero")
	}
	if cursor != uintptr(UsableLines/2)*LineSize || limit != 0 {
		t.Errorf("hole = (%d, %d), want (%d, 0)",
			cursor, limit, uintptr(UsableLines/2)*LineSize)
	}
}

func TestFindHoleAllConservativelyMarked(t *testing.T) {
	_, meta := metaBlock(t)

	// Every other line marked: each single free line is consumed by
	// the conservative margin, so no hole is usable.
	for i := 0; i < UsableLines; i += 2 {
		meta.MarkLine(i)
	}

	if _, _, ok := meta.FindNextAvailableHole(BlockCapacity, 8); ok {
		t.Error("expected no hole in an alternately marked block")
	}
}

func TestFindHoleNeedsMoreThanRun(t *testing.T) {
	_, meta := metaBlock(t)

	// A 4-line gap bounded below by a mark yields 3 usable lines.
	for i := 0; i < UsableLines; i++ {
		if i < 100 || i >= 104 {
			meta.MarkLine(i)
		}
	}

	// 3 lines needed: fits (4-line run, margin eats one).
	cursor, limit, ok := meta.FindNextAvailableHole(uintptr(UsableLines)*LineSize, 3*LineSize)
	if !ok {
		t.Fatal("expected hole for 3-line request")
	}
	if cursor != 104*LineSize || limit != 101*LineSize {
		t.Errorf("hole = (%d, %d), want (%d, %d)",
			cursor, limit, uintptr(104*LineSize), uintptr(101*LineSize))
	}

	// 4 lines needed: the margin makes the run too small.
	if _, _, ok := meta.FindNextAvailableHole(uintptr(UsableLines)*LineSize, 4*LineSize); ok {
		t.Error("expected no hole for 4-line request")
	}
}

func TestMetaReset(t *testing.T) {
	_, meta := metaBlock(t)

	for i := 0; i < UsableLines; i++ {
		meta.MarkLine(i)
	}
	meta.MarkBlock()

	meta.Reset()

	for i := 0; i < UsableLines; i++ {
		if meta.IsLineMarked(i) {
			t.Fatalf("line %d still marked after Reset", i)
		}
	}
	if meta.IsBlockMarked() {
		t.Error("block still marked after Reset")
	}
}
