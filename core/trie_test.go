package core

import (
	"sort"
	"testing"
)

func TestTrieUpdateExactMatch(t *testing.T) {
	tr := NewTrie()

	v, created := tr.Update([]byte("hello"))
	if !created {
		t.Fatalf("first Update of a key must report created=true")
	}
	if tr.ExactMatch([]byte("hello")) != 0 {
		t.Fatalf("fresh key should default to 0")
	}
	*v = 42
	if got := tr.ExactMatch([]byte("hello")); got != 42 {
		t.Fatalf("ExactMatch = %d, want 42", got)
	}
	if got := tr.ExactMatch([]byte("nope")); got != TrieAbsent {
		t.Fatalf("ExactMatch(missing) = %d, want TrieAbsent", got)
	}
}

func TestTrieUpdateIsIdempotentPointer(t *testing.T) {
	tr := NewTrie()
	v1, created1 := tr.Update([]byte("abc"))
	*v1 = 7
	v2, created2 := tr.Update([]byte("abc"))
	if *v2 != 7 {
		t.Fatalf("second Update should see the same stored value, got %d", *v2)
	}
	if !created1 || created2 {
		t.Fatalf("created flags = (%v, %v), want (true, false)", created1, created2)
	}
	if tr.NumKeys() != 1 {
		t.Fatalf("NumKeys = %d, want 1", tr.NumKeys())
	}
}

func TestTrieCommonPrefixSearch(t *testing.T) {
	tr := NewTrie()
	for i, k := range []string{"C\x1fA\x1e", "A\x1fA", "A\x1fE\x1fINVALID_AUTH_DATA\x1f"} {
		v, _ := tr.Update([]byte(k))
		*v = int32(i)
	}

	out := make([]PrefixMatch, 8)
	n := tr.CommonPrefixSearch([]byte("A\x1fA"), out)
	if n != 1 {
		t.Fatalf("expected 1 match, got %d", n)
	}
	if out[0].Value != 1 || out[0].Len != 3 {
		t.Fatalf("unexpected match %+v", out[0])
	}

	n = tr.CommonPrefixSearch([]byte("A\x1fE\x1fINVALID_AUTH_DATA\x1fextra"), out)
	if n != 1 || out[0].Value != 2 {
		t.Fatalf("expected the longer key to match, got n=%d out=%+v", n, out[:n])
	}
}

func TestTrieLongestPrefixMatchNoTies(t *testing.T) {
	tr := NewTrie()
	keys := []string{"a", "ab", "abc", "abcd"}
	for i, k := range keys {
		p, _ := tr.Update([]byte(k))
		*p = int32(i)
	}
	val, length := tr.LongestPrefixMatch([]byte("abcde"))
	if val != 3 || length != 4 {
		t.Fatalf("LongestPrefixMatch = (%d, %d), want (3, 4)", val, length)
	}
	if val, length := tr.LongestPrefixMatch([]byte("xyz")); val != TrieAbsent || length != 0 {
		t.Fatalf("LongestPrefixMatch(no match) = (%d, %d)", val, length)
	}
}

func TestTrieIterateYieldsAllKeys(t *testing.T) {
	tr := NewTrie()
	keys := []string{"zeta", "alpha", "alp", "be"}
	for i, k := range keys {
		p, _ := tr.Update([]byte(k))
		*p = int32(i)
	}

	var got []string
	tr.Iterate(func(e TrieIterEntry) bool {
		got = append(got, string(e.Key))
		return true
	})
	sort.Strings(got)
	want := append([]string(nil), keys...)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTrieResetClearsKeys(t *testing.T) {
	tr := NewTrie()
	p, _ := tr.Update([]byte("x"))
	*p = 1
	tr.Reset()
	if tr.NumKeys() != 0 {
		t.Fatalf("NumKeys after reset = %d, want 0", tr.NumKeys())
	}
	if tr.ExactMatch([]byte("x")) != TrieAbsent {
		t.Fatalf("key should be gone after reset")
	}
}

// Property: for any non-empty trie and any string S, CommonPrefixSearch
// returns precisely the set of keys that are prefixes of S (spec §8
// property 2).
func TestTrieCommonPrefixSearchProperty(t *testing.T) {
	tr := NewTrie()
	keys := []string{"P", "P\x1fA\x1fS\x1f", "P\x1fREQ\x1f", "P\x1fA"}
	for i, k := range keys {
		p, _ := tr.Update([]byte(k))
		*p = int32(i)
	}

	s := "P\x1fREQ\x1fecho\x1fu1\x1f{}"
	out := make([]PrefixMatch, len(keys))
	n := tr.CommonPrefixSearch([]byte(s), out)

	var want []string
	for _, k := range keys {
		if len(k) <= len(s) && s[:len(k)] == k {
			want = append(want, k)
		}
	}
	if n != len(want) {
		t.Fatalf("got %d matches, want %d (%v)", n, len(want), want)
	}
}
