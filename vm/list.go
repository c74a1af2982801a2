package vm

// List is an array of tagged values, the universal container of the
// runtime: literals pools, closure environments and the register
// stack are all Lists.
type List = Array[TaggedCellPtr]

// AllocList places an empty List on the heap.
func AllocList(v *MutatorView) (ScopedPtr[List], error) {
	return AllocArrayObject[TaggedCellPtr](v)
}

// AllocListWithCapacity places a pre-sized List on the heap.
func AllocListWithCapacity(v *MutatorView, capacity uint32) (ScopedPtr[List], error) {
	return AllocArrayWithCapacity[TaggedCellPtr](v, capacity)
}

// ListFromSlice builds a heap List from scoped values.
func ListFromSlice(v *MutatorView, items []TaggedScopedPtr) (ScopedPtr[List], error) {
	list, err := AllocListWithCapacity(v, uint32(len(items)))
	if err != nil {
		return ScopedPtr[List]{}, err
	}
	for _, item := range items {
		if err := ListPush(v, list.Get(), item); err != nil {
			return ScopedPtr[List]{}, err
		}
	}
	return list, nil
}

// ListPush appends a tagged value.
func ListPush(v *MutatorView, l *List, item TaggedScopedPtr) error {
	return l.Push(v, TaggedCellFromPtr(item.ptr))
}

// ListPop removes and returns the last tagged value.
func ListPop(v *MutatorView, l *List) (TaggedScopedPtr, error) {
	cell, err := l.Pop(v)
	if err != nil {
		return TaggedScopedPtr{}, err
	}
	return cell.Get(v), nil
}

// ListGet returns the tagged value at index.
func ListGet(v *MutatorView, l *List, index uint32) (TaggedScopedPtr, error) {
	cell, err := l.Get(v, index)
	if err != nil {
		return TaggedScopedPtr{}, err
	}
	return cell.Get(v), nil
}

// ListSet replaces the tagged value at index.
func ListSet(v *MutatorView, l *List, index uint32, item TaggedScopedPtr) error {
	return l.Set(v, index, TaggedCellFromPtr(item.ptr))
}
