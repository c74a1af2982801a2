package vm

import "testing"

func TestArrayPushPop(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		arr, err := AllocArrayObject[uint32](v)
		if err != nil {
			return err
		}
		a := arr.Get()

		for i := uint32(0); i < 100; i++ {
			if err := a.Push(v, i); err != nil {
				return err
			}
		}
		if a.Length() != 100 {
			t.Fatalf("Length = %d, want 100", a.Length())
		}

		top, err := a.Top(v)
		if err != nil {
			return err
		}
		if top != 99 {
			t.Errorf("Top = %d, want 99", top)
		}

		for i := 99; i >= 0; i-- {
			got, err := a.Pop(v)
			if err != nil {
				return err
			}
			if got != uint32(i) {
				t.Fatalf("Pop = %d, want %d", got, i)
			}
		}

		if _, err := a.Pop(v); !IsKind(err, KindBounds) {
			t.Errorf("pop from empty: err = %v, want bounds error", err)
		}
		return nil
	})
}

func TestArrayGrowthDoubles(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		arr, err := AllocArrayObject[uint8](v)
		if err != nil {
			return err
		}
		a := arr.Get()

		if err := a.Push(v, 1); err != nil {
			return err
		}
		if a.Capacity() != defaultArrayCapacity {
			t.Errorf("initial capacity = %d, want %d", a.Capacity(), defaultArrayCapacity)
		}

		for i := 0; i < 16; i++ {
			if err := a.Push(v, byte(i)); err != nil {
				return err
			}
		}
		if a.Capacity() != 32 {
			t.Errorf("capacity after 17 pushes = %d, want 32", a.Capacity())
		}
		return nil
	})
}

func TestArrayGetSetBounds(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		arr, err := AllocArrayObject[int64](v)
		if err != nil {
			return err
		}
		a := arr.Get()

		for i := int64(0); i < 10; i++ {
			if err := a.Push(v, i*i); err != nil {
				return err
			}
		}

		got, err := a.Get(v, 7)
		if err != nil {
			return err
		}
		if got != 49 {
			t.Errorf("Get(7) = %d, want 49", got)
		}

		if err := a.Set(v, 7, -1); err != nil {
			return err
		}
		got, _ = a.Get(v, 7)
		if got != -1 {
			t.Errorf("Get(7) after Set = %d, want -1", got)
		}

		if _, err := a.Get(v, 10); !IsKind(err, KindBounds) {
			t.Errorf("Get(10): err = %v, want bounds error", err)
		}
		if err := a.Set(v, 10, 0); !IsKind(err, KindBounds) {
			t.Errorf("Set(10): err = %v, want bounds error", err)
		}
		return nil
	})
}

func TestArrayBorrowRules(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		arr, err := AllocArrayObject[uint32](v)
		if err != nil {
			return err
		}
		a := arr.Get()
		for i := uint32(0); i < 4; i++ {
			if err := a.Push(v, i); err != nil {
				return err
			}
		}

		// mutation inside an exclusive borrow fails
		err = a.AccessSlice(v, func(slice []uint32) error {
			if err := a.Push(v, 99); !IsKind(err, KindBorrow) {
				t.Errorf("Push inside AccessSlice: err = %v, want borrow error", err)
			}
			if _, err := a.Get(v, 0); !IsKind(err, KindBorrow) {
				t.Errorf("Get inside AccessSlice: err = %v, want borrow error", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		// reads are fine inside a shared borrow, writes are not
		err = a.ReadSlice(v, func(slice []uint32) error {
			if _, err := a.Get(v, 0); err != nil {
				t.Errorf("Get inside ReadSlice failed: %v", err)
			}
			if err := a.Set(v, 0, 5); !IsKind(err, KindBorrow) {
				t.Errorf("Set inside ReadSlice: err = %v, want borrow error", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		// borrows released: mutation works again
		return a.Push(v, 4)
	})
}

func TestArrayFillTruncate(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		arr, err := AllocArrayObject[uint16](v)
		if err != nil {
			return err
		}
		a := arr.Get()

		if err := a.Fill(v, 50, 7); err != nil {
			return err
		}
		if a.Length() != 50 {
			t.Fatalf("Length after Fill = %d, want 50", a.Length())
		}
		got, _ := a.Get(v, 49)
		if got != 7 {
			t.Errorf("filled slot = %d, want 7", got)
		}

		// shorter fill is a no-op
		if err := a.Fill(v, 10, 9); err != nil {
			return err
		}
		if a.Length() != 50 {
			t.Errorf("Length after short Fill = %d, want 50", a.Length())
		}

		if err := a.Truncate(v, 10); err != nil {
			return err
		}
		if a.Length() != 10 {
			t.Errorf("Length after Truncate = %d, want 10", a.Length())
		}
		return nil
	})
}

func TestListTaggedInterface(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		list, err := AllocList(v)
		if err != nil {
			return err
		}
		l := list.Get()

		num, err := v.Number(42)
		if err != nil {
			return err
		}
		sym := v.LookupSym("x")

		if err := ListPush(v, l, num); err != nil {
			return err
		}
		if err := ListPush(v, l, sym); err != nil {
			return err
		}
		if err := ListPush(v, l, v.Nil()); err != nil {
			return err
		}

		got, err := ListGet(v, l, 0)
		if err != nil {
			return err
		}
		if !got.IsNumber() || got.Number() != 42 {
			t.Error("ListGet(0) lost the number")
		}
		got, _ = ListGet(v, l, 1)
		if got != sym {
			t.Error("ListGet(1) lost symbol identity")
		}
		got, _ = ListGet(v, l, 2)
		if !got.IsNil() {
			t.Error("ListGet(2) is not nil")
		}

		popped, err := ListPop(v, l)
		if err != nil {
			return err
		}
		if !popped.IsNil() {
			t.Error("ListPop is not nil")
		}
		return nil
	})
}

func TestRawArrayResizePreservesContents(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		arr, err := AllocArrayObject[uint64](v)
		if err != nil {
			return err
		}
		a := arr.Get()

		for i := uint64(0); i < 200; i++ {
			if err := a.Push(v, i*3); err != nil {
				return err
			}
		}
		// growth reallocated the backing several times on the way
		for i := uint32(0); i < 200; i++ {
			got, err := a.Get(v, i)
			if err != nil {
				return err
			}
			if got != uint64(i)*3 {
				t.Fatalf("slot %d = %d after growth, want %d", i, got, uint64(i)*3)
			}
		}
		return nil
	})
}
