package core

// KeyedArray is C2: a trie-indexed key -> dense slot -> value mapping,
// grounded on original_source/src/trie_array.h's trie_array<Tvalue>.
// Slots are assigned in insertion order starting from 0 and are never
// reused or compacted, per spec §4.2. keys mirrors values slot-for-slot so
// that Iterate can walk in insertion order: Trie.Iterate alone would yield
// lexicographic order, which is correct for the trie itself but wrong for
// callers like Registry.AdvertiseAll that must re-advertise providers in
// the order they were registered.
type KeyedArray[V any] struct {
	trie   *Trie
	values []V
	keys   [][]byte
}

// NewKeyedArray returns an empty keyed array.
func NewKeyedArray[V any]() *KeyedArray[V] {
	return &KeyedArray[V]{trie: NewTrie()}
}

// FindKey returns the slot for key, or TrieAbsent if key was never
// inserted.
func (ka *KeyedArray[V]) FindKey(key []byte) int32 {
	return ka.trie.ExactMatch(key)
}

// InsertKV inserts key if absent (assigning the next free slot, in
// insertion order) and stores v at its slot either way, returning the slot.
func (ka *KeyedArray[V]) InsertKV(key []byte, v V) int32 {
	slot, created := ka.trie.Update(key)
	if created {
		*slot = int32(len(ka.values))
		var zero V
		ka.values = append(ka.values, zero)
		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)
		ka.keys = append(ka.keys, keyCopy)
	}
	ka.values[*slot] = v
	return *slot
}

// At returns the value at slot. Panics if slot is out of range, matching
// the original's "array, not a map" unchecked-access contract (§4.2
// documents slots as stable once allocated; callers are expected to only
// use slots obtained from FindKey/InsertKV).
func (ka *KeyedArray[V]) At(slot int32) V {
	return ka.values[slot]
}

// AtKey returns the value for key, or def if key was never inserted.
func (ka *KeyedArray[V]) AtKey(key []byte, def V) V {
	slot := ka.FindKey(key)
	if slot < 0 || int(slot) >= len(ka.values) {
		return def
	}
	return ka.values[slot]
}

// UpdateValue overwrites the value at an already-allocated slot.
func (ka *KeyedArray[V]) UpdateValue(slot int32, v V) {
	ka.values[slot] = v
}

// Len returns the number of allocated slots.
func (ka *KeyedArray[V]) Len() int {
	return len(ka.values)
}

// KeyedArrayEntry is one entry produced by Iterate.
type KeyedArrayEntry[V any] struct {
	Key   []byte
	Slot  int32
	Value V
}

// Iterate walks all (key, slot, value) triples in insertion order (slot
// order), not the trie's lexicographic order.
func (ka *KeyedArray[V]) Iterate(fn func(KeyedArrayEntry[V]) bool) {
	for slot, key := range ka.keys {
		if !fn(KeyedArrayEntry[V]{Key: key, Slot: int32(slot), Value: ka.values[slot]}) {
			return
		}
	}
}

// PrefixKeyedArray is the §4.2 "prefix variant": same slot/value semantics,
// plus PrefixMatch for longest-common-prefix lookups (used by the
// directive router, C4).
type PrefixKeyedArray[V any] struct {
	KeyedArray[V]
}

// NewPrefixKeyedArray returns an empty prefix-matching keyed array.
func NewPrefixKeyedArray[V any]() *PrefixKeyedArray[V] {
	return &PrefixKeyedArray[V]{KeyedArray: KeyedArray[V]{trie: NewTrie()}}
}

// PrefixMatch returns the value for the longest registered key that is a
// prefix of key, or def if none match. Ties are impossible: spec §8
// property 2 holds because keys are unique and CommonPrefixSearch only
// reports a stored key once.
func (pka *PrefixKeyedArray[V]) PrefixMatch(key []byte, def V) V {
	slot, length := pka.trie.LongestPrefixMatch(key)
	if slot < 0 || length == 0 || int(slot) >= len(pka.values) {
		return def
	}
	return pka.values[slot]
}
