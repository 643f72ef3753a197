package yakushima

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	c := NewContext(WithEpochMillis(5), WithMaxSessions(32))
	t.Cleanup(c.Close)
	return c
}

func be64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func TestPutGetRoundTrip(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))

	tok, status := c.Enter()
	require.Equal(t, OK, status)
	defer c.Leave(tok)

	require.Equal(t, OK, c.Put(tok, "s", []byte("hello"), []byte("world"), false))
	got, status := c.Get("s", []byte("hello"))
	require.Equal(t, OK, status)
	require.Equal(t, []byte("world"), got)
}

func TestPutTrackedPopulatesNodeVersion(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))

	tok, status := c.Enter()
	require.Equal(t, OK, status)
	defer c.Leave(tok)

	var versions []NodeVersion
	require.Equal(t, OK, c.PutTracked(tok, "s", []byte("hello"), []byte("world"), false, &versions))
	require.Len(t, versions, 1)
}

func TestScanTrackedPopulatesOneNodeVersionPerBorder(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))

	tok, status := c.Enter()
	require.Equal(t, OK, status)
	defer c.Leave(tok)

	for i := uint64(0); i < 200; i++ {
		require.Equal(t, OK, c.Put(tok, "s", be64(i), be64(i), false))
	}

	var versions []NodeVersion
	entries, status := c.ScanTracked("s", Endpoint{Kind: Unbounded}, Endpoint{Kind: Unbounded}, 0, &versions)
	require.Equal(t, OKScanEnd, status)
	require.Len(t, entries, 200)
	require.NotEmpty(t, versions)

	// All keys are 8 bytes, so every border lives in layer 0's leaf list.
	tr, status := c.FindStorage("s")
	require.Equal(t, OK, status)
	borders := 0
	for b := firstBorder(tr.loadRoot()); b != nil; b = b.next.Load() {
		borders++
	}
	require.Len(t, versions, borders)
}

func TestGetMissingKeyReturnsWarnNotExist(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	_, status := c.Get("s", []byte("nope"))
	require.Equal(t, WarnNotExist, status)
}

func TestPutOverwritesByDefault(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	require.Equal(t, OK, c.Put(tok, "s", []byte("k"), []byte("v1"), false))
	require.Equal(t, OK, c.Put(tok, "s", []byte("k"), []byte("v2"), false))
	got, _ := c.Get("s", []byte("k"))
	require.Equal(t, []byte("v2"), got)
}

func TestPutUniqueRestrictionRejectsExisting(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	require.Equal(t, OK, c.Put(tok, "s", []byte("k"), []byte("v1"), true))
	require.Equal(t, WarnUniqueRestriction, c.Put(tok, "s", []byte("k"), []byte("v2"), true))
	got, _ := c.Get("s", []byte("k"))
	require.Equal(t, []byte("v1"), got)
}

func TestPutKeysSharingAnEightByteSliceDescendALayer(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	// Both keys share the same first 8 bytes; the second must create and
	// use a next-layer tree rather than colliding with the first.
	prefix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	k1 := append(append([]byte{}, prefix...), 'a')
	k2 := append(append([]byte{}, prefix...), 'b')

	require.Equal(t, OK, c.Put(tok, "s", k1, []byte("v1"), false))
	require.Equal(t, OK, c.Put(tok, "s", k2, []byte("v2"), false))

	got1, status := c.Get("s", k1)
	require.Equal(t, OK, status)
	require.Equal(t, []byte("v1"), got1)

	got2, status := c.Get("s", k2)
	require.Equal(t, OK, status)
	require.Equal(t, []byte("v2"), got2)
}

func TestRemoveThenGetIsNotExist(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	require.Equal(t, OK, c.Put(tok, "s", []byte("k"), []byte("v"), false))
	require.Equal(t, OK, c.Remove(tok, "s", []byte("k")))
	_, status := c.Get("s", []byte("k"))
	require.Equal(t, WarnNotExist, status)
}

func TestRemoveMissingKeyReturnsWarnNotExist(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	require.Equal(t, WarnNotExist, c.Remove(tok, "s", []byte("nope")))
}

func TestPutManyKeysForcesSplitsAndAllRemainFindable(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	const n = 5000
	for i := uint64(0); i < n; i++ {
		require.Equal(t, OK, c.Put(tok, "s", be64(i), be64(i), false))
	}
	for i := uint64(0); i < n; i++ {
		got, status := c.Get("s", be64(i))
		require.Equal(t, OK, status, "key %d", i)
		require.Equal(t, be64(i), got)
	}
}

func TestDeleteManyKeysAfterSplitsLeavesSurvivorsFindable(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	const n = 3000
	for i := uint64(0); i < n; i++ {
		require.Equal(t, OK, c.Put(tok, "s", be64(i), be64(i), false))
	}
	for i := uint64(0); i < n; i++ {
		if i%2 == 0 {
			require.Equal(t, OK, c.Remove(tok, "s", be64(i)))
		}
	}
	for i := uint64(0); i < n; i++ {
		got, status := c.Get("s", be64(i))
		if i%2 == 0 {
			require.Equal(t, WarnNotExist, status, "key %d", i)
		} else {
			require.Equal(t, OK, status, "key %d", i)
			require.Equal(t, be64(i), got)
		}
	}
}

func TestScanAscendingRangeWithBothEndpointsInclusive(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	const n = 200
	for i := uint64(0); i < n; i++ {
		require.Equal(t, OK, c.Put(tok, "s", be64(i), be64(i), false))
	}

	entries, status := c.Scan("s",
		Endpoint{Kind: Inclusive, Key: be64(50)},
		Endpoint{Kind: Inclusive, Key: be64(60)},
		0)
	require.Equal(t, OKScanEnd, status)
	require.Len(t, entries, 11)
	for i, e := range entries {
		require.Equal(t, be64(uint64(50+i)), e.Key)
	}
}

func TestScanExclusiveEndpointsDropBoundaries(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	for i := uint64(0); i < 10; i++ {
		require.Equal(t, OK, c.Put(tok, "s", be64(i), be64(i), false))
	}

	entries, status := c.Scan("s",
		Endpoint{Kind: Exclusive, Key: be64(2)},
		Endpoint{Kind: Exclusive, Key: be64(6)},
		0)
	require.Equal(t, OKScanEnd, status)
	require.Len(t, entries, 3)
	require.Equal(t, be64(3), entries[0].Key)
	require.Equal(t, be64(5), entries[2].Key)
}

func TestScanUnboundedCoversEverything(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	for i := uint64(0); i < 25; i++ {
		require.Equal(t, OK, c.Put(tok, "s", be64(i), be64(i), false))
	}

	entries, status := c.Scan("s", Endpoint{Kind: Unbounded}, Endpoint{Kind: Unbounded}, 0)
	require.Equal(t, OKScanEnd, status)
	require.Len(t, entries, 25)
}

func TestScanMaxSizeStopsEarlyAndReportsContinue(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	for i := uint64(0); i < 25; i++ {
		require.Equal(t, OK, c.Put(tok, "s", be64(i), be64(i), false))
	}

	entries, status := c.Scan("s", Endpoint{Kind: Unbounded}, Endpoint{Kind: Unbounded}, 5)
	require.Equal(t, OKScanContinue, status)
	require.Len(t, entries, 5)
}

func TestScanRejectsInvertedRange(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))

	_, status := c.Scan("s",
		Endpoint{Kind: Inclusive, Key: be64(10)},
		Endpoint{Kind: Inclusive, Key: be64(1)},
		0)
	require.Equal(t, ErrBadUsage, status)
}

func TestScanRejectsEqualBoundsWithEitherEndpointExclusive(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))

	_, status := c.Scan("s",
		Endpoint{Kind: Exclusive, Key: be64(5)},
		Endpoint{Kind: Inclusive, Key: be64(5)},
		0)
	require.Equal(t, ErrBadUsage, status)

	_, status = c.Scan("s",
		Endpoint{Kind: Inclusive, Key: be64(5)},
		Endpoint{Kind: Exclusive, Key: be64(5)},
		0)
	require.Equal(t, ErrBadUsage, status)

	// Equal keys with both sides INCLUSIVE is a valid single-key scan, not a
	// usage error.
	tok, _ := c.Enter()
	defer c.Leave(tok)
	require.Equal(t, OK, c.Put(tok, "s", be64(5), be64(5), false))
	entries, status := c.Scan("s",
		Endpoint{Kind: Inclusive, Key: be64(5)},
		Endpoint{Kind: Inclusive, Key: be64(5)},
		0)
	require.Equal(t, OKScanEnd, status)
	require.Len(t, entries, 1)
}

func TestScanUnboundedSideAllowsEqualKeyWithExclusive(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	for i := uint64(0); i < 10; i++ {
		require.Equal(t, OK, c.Put(tok, "s", be64(i), be64(i), false))
	}

	// INF on the right side means "all range", per spec §9's open-question
	// note, even though the left endpoint is EXCLUSIVE and the Unbounded
	// right side carries the same key.
	entries, status := c.Scan("s",
		Endpoint{Kind: Exclusive, Key: be64(5)},
		Endpoint{Kind: Unbounded, Key: be64(5)},
		0)
	require.Equal(t, OKScanEnd, status)
	require.Len(t, entries, 4)
	require.Equal(t, be64(6), entries[0].Key)
}

func TestScanAcrossNextLayerKeysStaysOrdered(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	prefix := be64(7)
	suffixes := []byte{'a', 'c', 'b', 'z', 'm'}
	var keys [][]byte
	for _, s := range suffixes {
		k := append(append([]byte{}, prefix...), s)
		keys = append(keys, k)
		require.Equal(t, OK, c.Put(tok, "s", k, []byte{s}, false))
	}
	// Also one plain 8-byte key that sorts before the prefix family.
	require.Equal(t, OK, c.Put(tok, "s", be64(6), []byte("six"), false))

	entries, status := c.Scan("s", Endpoint{Kind: Unbounded}, Endpoint{Kind: Unbounded}, 0)
	require.Equal(t, OKScanEnd, status)
	require.Len(t, entries, len(keys)+1)

	want := append([][]byte{}, keys...)
	sort.Slice(want, func(i, j int) bool { return string(want[i]) < string(want[j]) })
	got := make([][]byte, 0, len(entries)-1)
	for _, e := range entries[1:] { // skip the plain "six" entry at index 0
		got = append(got, e.Key)
	}
	require.Equal(t, want, got)
}

func TestStorageRegistryLifecycle(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("a"))
	require.Equal(t, OK, c.CreateStorage("b"))
	require.Equal(t, WarnUniqueRestriction, c.CreateStorage("a"))

	names := c.ListStorages()
	require.ElementsMatch(t, []string{"a", "b"}, names)

	require.Equal(t, OK, c.DeleteStorage("a"))
	require.Equal(t, WarnStorageNotExist, c.DeleteStorage("a"))
	require.ElementsMatch(t, []string{"b"}, c.ListStorages())
}

func TestMaxSessionsExhausted(t *testing.T) {
	c := NewContext(WithMaxSessions(2))
	defer c.Close()

	tok1, status := c.Enter()
	require.Equal(t, OK, status)
	tok2, status := c.Enter()
	require.Equal(t, OK, status)
	_, status = c.Enter()
	require.Equal(t, WarnMaxSessions, status)

	require.Equal(t, OK, c.Leave(tok1))
	_, status = c.Enter()
	require.Equal(t, OK, status)
	require.Equal(t, OK, c.Leave(tok2))
}

func TestLeaveWithInvalidTokenReportsWarnInvalidToken(t *testing.T) {
	c := newTestContext(t)
	tok, _ := c.Enter()
	require.Equal(t, OK, c.Leave(tok))
	require.Equal(t, WarnInvalidToken, c.Leave(tok))
}

func TestDestroyEmptiesStorageButKeepsRegistration(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	for i := uint64(0); i < 500; i++ {
		require.Equal(t, OK, c.Put(tok, "s", be64(i), be64(i), false))
	}
	require.Equal(t, OK, c.Destroy("s"))

	_, status := c.Get("s", be64(0))
	require.Equal(t, WarnNotExist, status)
	require.Contains(t, c.ListStorages(), "s")
}

func TestDestroyAllRemovesEveryStorage(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("a"))
	require.Equal(t, OK, c.CreateStorage("b"))
	require.Equal(t, OKDestroyAll, c.DestroyAll())
	require.Empty(t, c.ListStorages())
}

func TestConcurrentPutGetDisjointKeys(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))

	const routines = 8
	const perRoutine = 500

	var wg sync.WaitGroup
	wg.Add(routines)
	for r := 0; r < routines; r++ {
		go func(r int) {
			defer wg.Done()
			tok, status := c.Enter()
			require.Equal(t, OK, status)
			defer c.Leave(tok)

			for i := 0; i < perRoutine; i++ {
				k := []byte(fmt.Sprintf("r%d-%d", r, i))
				require.Equal(t, OK, c.Put(tok, "s", k, k, false))
			}
			for i := 0; i < perRoutine; i++ {
				k := []byte(fmt.Sprintf("r%d-%d", r, i))
				got, status := c.Get("s", k)
				require.Equal(t, OK, status)
				require.Equal(t, k, got)
			}
		}(r)
	}
	wg.Wait()
}

func TestTypedPutGetValue(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	type record struct {
		Name string
		Age  int
	}

	r := record{Name: "ada", Age: 36}
	require.Equal(t, OK, PutValue(c, tok, "s", []byte("ada"), r, false))

	got, status := GetValue[record](c, "s", []byte("ada"))
	require.Equal(t, OK, status)
	require.Equal(t, r, got)
}
