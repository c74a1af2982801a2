package vm

import (
	"fmt"
	"testing"
)

func TestDictInsertLookup(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		dict, err := AllocDict(v)
		if err != nil {
			return err
		}
		d := dict.Get()

		key := v.LookupSym("answer")
		value, err := v.Number(42)
		if err != nil {
			return err
		}

		if _, ok, err := d.Lookup(v, key); err != nil || ok {
			t.Errorf("lookup in empty dict: ok=%v err=%v", ok, err)
		}

		if err := d.Assoc(v, key, value); err != nil {
			return err
		}
		got, ok, err := d.Lookup(v, key)
		if err != nil || !ok {
			t.Fatalf("lookup after insert: ok=%v err=%v", ok, err)
		}
		if got.Number() != 42 {
			t.Errorf("value = %d, want 42", got.Number())
		}

		// update in place
		newValue, err := v.Number(43)
		if err != nil {
			return err
		}
		if err := d.Assoc(v, key, newValue); err != nil {
			return err
		}
		if d.Length() != 1 {
			t.Errorf("Length after update = %d, want 1", d.Length())
		}
		got, _, _ = d.Lookup(v, key)
		if got.Number() != 43 {
			t.Errorf("value after update = %d, want 43", got.Number())
		}
		return nil
	})
}

func TestDictIntegerKeys(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		dict, err := AllocDict(v)
		if err != nil {
			return err
		}
		d := dict.Get()

		for i := 0; i < 64; i++ {
			key, err := v.Number(i * 1000)
			if err != nil {
				return err
			}
			value, err := v.Number(i)
			if err != nil {
				return err
			}
			if err := d.Assoc(v, key, value); err != nil {
				return err
			}
		}
		for i := 0; i < 64; i++ {
			key, _ := v.Number(i * 1000)
			got, ok, err := d.Lookup(v, key)
			if err != nil || !ok {
				t.Fatalf("lookup %d: ok=%v err=%v", i, ok, err)
			}
			if got.Number() != i {
				t.Errorf("value for key %d = %d, want %d", i*1000, got.Number(), i)
			}
		}
		return nil
	})
}

func TestDictRemoveTombstones(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		dict, err := AllocDict(v)
		if err != nil {
			return err
		}
		d := dict.Get()

		key := v.LookupSym("doomed")
		other := v.LookupSym("kept")
		one, _ := v.Number(1)

		if err := d.Assoc(v, key, one); err != nil {
			return err
		}
		if err := d.Assoc(v, other, one); err != nil {
			return err
		}
		usedBefore := d.Used()

		if err := d.Dissoc(v, key); err != nil {
			return err
		}
		if d.Length() != 1 {
			t.Errorf("Length after remove = %d, want 1", d.Length())
		}
		if d.Used() != usedBefore {
			t.Errorf("Used changed on remove: %d -> %d", usedBefore, d.Used())
		}
		if _, ok, _ := d.Lookup(v, key); ok {
			t.Error("removed key still present")
		}
		if _, ok, _ := d.Lookup(v, other); !ok {
			t.Error("unrelated key lost by remove")
		}

		// removing an absent key is a no-op
		if err := d.Dissoc(v, key); err != nil {
			return err
		}

		// re-insert reuses the tombstone: used does not grow
		if err := d.Assoc(v, key, one); err != nil {
			return err
		}
		if d.Used() != usedBefore {
			t.Errorf("tombstone not reused: used %d -> %d", usedBefore, d.Used())
		}
		return nil
	})
}

func TestDictLoadFactorInvariant(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		dict, err := AllocDict(v)
		if err != nil {
			return err
		}
		d := dict.Get()

		for i := 0; i < 200; i++ {
			key := v.LookupSym(fmt.Sprintf("key-%d", i))
			value, err := v.Number(i)
			if err != nil {
				return err
			}
			if err := d.Assoc(v, key, value); err != nil {
				return err
			}

			if d.Length() > d.Used() {
				t.Fatalf("length %d exceeds used %d", d.Length(), d.Used())
			}
			if uint64(d.Used())*4 > uint64(d.Capacity())*3 {
				t.Fatalf("after insert %d: used %d exceeds 0.75 x capacity %d",
					i, d.Used(), d.Capacity())
			}
		}
		return nil
	})
}

func TestDictUnhashableKey(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		dict, err := AllocDict(v)
		if err != nil {
			return err
		}
		pair, err := AllocPair(v, v.Nil(), v.Nil())
		if err != nil {
			return err
		}
		one, _ := v.Number(1)

		if err := dict.Get().Assoc(v, pair, one); !IsKind(err, KindUnhashable) {
			t.Errorf("pair key: err = %v, want unhashable", err)
		}
		return nil
	})
}

// Sustained churn: 1000 inserts, 500 interleaved deletes, 500 fresh
// inserts.
func TestDictChurnScenario(t *testing.T) {
	testHelper(t, func(v *MutatorView) error {
		dict, err := AllocDict(v)
		if err != nil {
			return err
		}
		d := dict.Get()

		name := func(i int) TaggedScopedPtr {
			return v.LookupSym(fmt.Sprintf("entry-%04d", i))
		}

		for i := 0; i < 1000; i++ {
			value, err := v.Number(i)
			if err != nil {
				return err
			}
			if err := d.Assoc(v, name(i), value); err != nil {
				return err
			}
			// delete every other previously inserted key as we go
			if i%2 == 1 {
				if err := d.Dissoc(v, name(i-1)); err != nil {
					return err
				}
			}
		}
		if d.Length() != 500 {
			t.Fatalf("after churn: length = %d, want 500", d.Length())
		}

		for i := 1000; i < 1500; i++ {
			value, err := v.Number(i)
			if err != nil {
				return err
			}
			if err := d.Assoc(v, name(i), value); err != nil {
				return err
			}
		}

		if d.Length() != 1000 {
			t.Errorf("final length = %d, want 1000", d.Length())
		}
		if uint64(d.Used())*4 > uint64(d.Capacity())*3 {
			t.Errorf("final used %d exceeds 0.75 x capacity %d", d.Used(), d.Capacity())
		}

		// every survivor resolves to its value
		for i := 0; i < 1500; i++ {
			got, ok, err := d.Lookup(v, name(i))
			if err != nil {
				return err
			}
			deleted := i < 1000 && i%2 == 0
			if deleted {
				if ok {
					t.Fatalf("deleted key %d still present", i)
				}
				continue
			}
			if !ok || got.Number() != i {
				t.Fatalf("surviving key %d missing or wrong", i)
			}
		}
		return nil
	})
}
