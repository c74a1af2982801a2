package vm

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/fernlang/fern/immix"
)

// The tombstone hash marks a slot whose entry was removed. Probe
// sequences must continue through tombstones, and inserts may reuse
// them. An empty slot has hash zero and a nil key.
const tombstoneHash uint64 = 1

// Load factor dictLoadNum/dictLoadDenom: used slots (tombstones included) at or above this
// fraction of capacity trigger a rehash into fresh backing storage.
const (
	dictLoadNum     = 3
	dictLoadDenom   = 4
	dictMinCapacity = 8
)

// dictItem is one open-addressing slot. The hash is kept alongside the
// key so probing never dereferences keys.
type dictItem struct {
	hash  uint64
	key   TaggedCellPtr
	value TaggedCellPtr
}

// Dict is an open-addressed hash table from hashable tagged values to
// tagged values. used counts occupied slots including tombstones;
// length counts live entries only.
//
// Caveat, inherited by design: two keys with identical hashes are
// treated as the same key. Symbol keys hash their name bytes and
// integer keys their native bytes, both through FNV-1a, so two keys
// of either kind collide only if FNV-1a collides on those bytes.
type Dict struct {
	length uint32
	used   uint32
	data   RawArray[dictItem]
}

func (Dict) typeID() immix.TypeID { return TypeDict }

// AllocDict places an empty Dict on the heap.
func AllocDict(v *MutatorView) (ScopedPtr[Dict], error) {
	return Alloc(v, Dict{})
}

// hashKey produces the hash for a key. Symbols hash their name bytes,
// inline integers their native bytes; anything else is unhashable.
func hashKey(v *MutatorView, key TaggedScopedPtr) (uint64, error) {
	v.assertActive()
	switch {
	case key.IsSymbol():
		return key.Symbol().hash(), nil
	case key.IsNumber():
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(key.Number()))
		h := fnv.New64a()
		h.Write(buf[:])
		return h.Sum64(), nil
	default:
		return 0, newError(KindUnhashable, "key type cannot be hashed")
	}
}

// findEntry locates the slot for a hash: the matching slot if present,
// otherwise the slot an insert should use (the first tombstone on the
// probe path, or the empty slot that ended it).
func findEntry(data []dictItem, hash uint64) *dictItem {
	index := int(hash % uint64(len(data)))
	var tombstone *dictItem

	for {
		entry := &data[index]

		switch {
		case entry.hash == tombstoneHash && entry.key.IsNil():
			if tombstone == nil {
				tombstone = entry
			}
		case entry.hash == hash:
			return entry
		case entry.key.IsNil():
			if tombstone != nil {
				return tombstone
			}
			return entry
		}

		index++
		if index >= len(data) {
			index = 0
		}
	}
}

// Length returns the number of live entries.
func (d *Dict) Length() uint32 { return d.length }

// Used returns the number of occupied slots, tombstones included.
func (d *Dict) Used() uint32 { return d.used }

// Capacity returns the slot capacity.
func (d *Dict) Capacity() uint32 { return d.data.Capacity() }

// Lookup finds the value for a key. ok is false when the key is
// absent.
func (d *Dict) Lookup(v *MutatorView, key TaggedScopedPtr) (value TaggedScopedPtr, ok bool, err error) {
	v.assertActive()
	if d.data.Capacity() == 0 {
		return TaggedScopedPtr{}, false, nil
	}

	hash, err := hashKey(v, key)
	if err != nil {
		return TaggedScopedPtr{}, false, err
	}

	entry := findEntry(d.data.asSlice(), hash)
	if entry.key.IsNil() {
		return TaggedScopedPtr{}, false, nil
	}
	return entry.value.Get(v), true, nil
}

// Assoc binds key to value, inserting or updating, growing the
// backing storage when the load factor is reached.
func (d *Dict) Assoc(v *MutatorView, key, value TaggedScopedPtr) error {
	v.assertActive()

	capacity := d.data.Capacity()
	if capacity == 0 || (d.used+1)*dictLoadDenom > capacity*dictLoadNum {
		if err := d.grow(v); err != nil {
			return err
		}
	}

	hash, err := hashKey(v, key)
	if err != nil {
		return err
	}

	entry := findEntry(d.data.asSlice(), hash)
	if entry.key.IsNil() {
		// new binding, possibly reusing a tombstone
		if entry.hash != tombstoneHash {
			d.used++
		}
		d.length++
	}
	entry.hash = hash
	entry.key.Set(key)
	entry.value.Set(value)
	return nil
}

// Dissoc removes a key's binding. Removing an absent key is a no-op.
// The slot becomes a tombstone: length drops, used does not.
func (d *Dict) Dissoc(v *MutatorView, key TaggedScopedPtr) error {
	v.assertActive()
	if d.data.Capacity() == 0 {
		return nil
	}

	hash, err := hashKey(v, key)
	if err != nil {
		return err
	}

	entry := findEntry(d.data.asSlice(), hash)
	if entry.key.IsNil() {
		return nil
	}
	entry.hash = tombstoneHash
	entry.key.SetToNil()
	entry.value.SetToNil()
	d.length--
	return nil
}

// grow rehashes every live entry into a backing store of at least
// twice the capacity, dropping accumulated tombstones.
func (d *Dict) grow(v *MutatorView) error {
	newCapacity := max(d.data.Capacity()*2, dictMinCapacity)

	old := d.data
	oldCapacity := old.Capacity()

	fresh, err := newRawArrayWithCapacity[dictItem](v, newCapacity)
	if err != nil {
		return err
	}
	// AllocArray zero-fills, so every fresh slot is already empty
	d.data = fresh
	d.used = d.length

	if oldCapacity == 0 {
		return nil
	}

	newSlice := d.data.asSlice()
	for _, entry := range old.asSlice() {
		if entry.key.IsNil() {
			continue
		}
		slot := findEntry(newSlice, entry.hash)
		*slot = entry
	}
	return nil
}
