package blockalloc

import "testing"

func TestBlockAlignment(t *testing.T) {
	sizes := []uintptr{4096, 8192, 16384, 32768, 65536}

	for _, size := range sizes {
		b, err := New(size)
		if err != nil {
			t.Fatalf("New(%d) failed: %v", size, err)
		}
		if b.Base()&(size-1) != 0 {
			t.Errorf("New(%d): base %#x not aligned to size", size, b.Base())
		}
		if b.Size() != size {
			t.Errorf("New(%d): Size() = %d", size, b.Size())
		}
	}
}

func TestBlockBadSize(t *testing.T) {
	bad := []uintptr{0, 3, 1000, 32769, MaxBlockSize * 2}

	for _, size := range bad {
		if _, err := New(size); err != ErrBadRequest {
			t.Errorf("New(%d): err = %v, want ErrBadRequest", size, err)
		}
	}
}

func TestBaseRecovery(t *testing.T) {
	const size = 32768

	b, err := New(size)
	if err != nil {
		t.Fatal(err)
	}

	// Any interior address masks back to the block base.
	for _, offset := range []uintptr{0, 1, 127, 128, size / 2, size - 1} {
		addr := b.Base() + offset
		if got := BaseOf(addr, size); got != b.Base() {
			t.Errorf("BaseOf(base+%d) = %#x, want %#x", offset, got, b.Base())
		}
	}
}

func TestBlockWritable(t *testing.T) {
	b, err := New(4096)
	if err != nil {
		t.Fatal(err)
	}

	bs := b.Bytes()
	if len(bs) != 4096 {
		t.Fatalf("Bytes() length = %d", len(bs))
	}

	for i := range bs {
		bs[i] = byte(i)
	}
	for i := range bs {
		if bs[i] != byte(i) {
			t.Fatalf("byte %d = %d, want %d", i, bs[i], byte(i))
		}
	}
}
