package yakushima

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Spec §8 scenario 6: multiple storages must not cross-talk, and deleting
// one must not disturb the other.
func TestMultipleStoragesDoNotCrossTalk(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("st1"))
	require.Equal(t, OK, c.CreateStorage("st2"))

	tok, status := c.Enter()
	require.Equal(t, OK, status)
	defer c.Leave(tok)

	for i := uint64(1); i <= 3; i++ {
		require.Equal(t, OK, c.Put(tok, "st1", be64(i), be64(i), false))
	}
	for i := uint64(4); i <= 6; i++ {
		require.Equal(t, OK, c.Put(tok, "st2", be64(i), be64(i), false))
	}

	e1, status := c.Scan("st1", Endpoint{Kind: Unbounded}, Endpoint{Kind: Unbounded}, 0)
	require.Equal(t, OKScanEnd, status)
	require.Len(t, e1, 3)

	e2, status := c.Scan("st2", Endpoint{Kind: Unbounded}, Endpoint{Kind: Unbounded}, 0)
	require.Equal(t, OKScanEnd, status)
	require.Len(t, e2, 3)

	require.Equal(t, OK, c.DeleteStorage("st1"))
	_, status = c.Scan("st1", Endpoint{Kind: Unbounded}, Endpoint{Kind: Unbounded}, 0)
	require.Equal(t, WarnStorageNotExist, status)

	e2again, status := c.Scan("st2", Endpoint{Kind: Unbounded}, Endpoint{Kind: Unbounded}, 0)
	require.Equal(t, OKScanEnd, status)
	require.Len(t, e2again, 3)
}

// Spec §8 "concurrent correctness": several goroutines (four here) each run
// N put-then-remove cycles on disjoint key sets, then issue one final put per
// key; the resulting state must be exactly the union of final-put keys.
func TestConcurrentPutRemoveCyclesThenFinalPutUnion(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))

	const routines = 4
	const cycles = 50
	const keysPerRoutine = 10

	var wg sync.WaitGroup
	wg.Add(routines)
	for r := 0; r < routines; r++ {
		go func(r int) {
			defer wg.Done()
			tok, status := c.Enter()
			require.Equal(t, OK, status)
			defer c.Leave(tok)

			keys := make([][]byte, keysPerRoutine)
			for i := range keys {
				keys[i] = []byte(fmt.Sprintf("cycle-r%d-k%d", r, i))
			}

			for cyc := 0; cyc < cycles; cyc++ {
				for _, k := range keys {
					require.Equal(t, OK, c.Put(tok, "s", k, k, false))
				}
				for _, k := range keys {
					require.Equal(t, OK, c.Remove(tok, "s", k))
				}
			}
			for _, k := range keys {
				require.Equal(t, OK, c.Put(tok, "s", k, k, false))
			}
		}(r)
	}
	wg.Wait()

	entries, status := c.Scan("s", Endpoint{Kind: Unbounded}, Endpoint{Kind: Unbounded}, 0)
	require.Equal(t, OKScanEnd, status)
	require.Len(t, entries, routines*keysPerRoutine)

	seen := make(map[string]bool)
	for _, e := range entries {
		seen[string(e.Key)] = true
	}
	for r := 0; r < routines; r++ {
		for i := 0; i < keysPerRoutine; i++ {
			require.True(t, seen[fmt.Sprintf("cycle-r%d-k%d", r, i)])
		}
	}
}

// Spec §8 "length-tag boundary": keys of length 0, 1, 7, 8, 9, 16, 17, and a
// multiple of 8 larger than one layer's slice must all round-trip through
// put/get/remove.
func TestLengthTagBoundaryKeysRoundTrip(t *testing.T) {
	c := newTestContext(t)
	require.Equal(t, OK, c.CreateStorage("s"))
	tok, _ := c.Enter()
	defer c.Leave(tok)

	lengths := []int{0, 1, 7, 8, 9, 16, 17, 32}
	keys := make([][]byte, len(lengths))
	for i, n := range lengths {
		k := make([]byte, n)
		for j := range k {
			k[j] = byte('a' + (i+j)%26)
		}
		keys[i] = k
	}

	for i, k := range keys {
		value := []byte(fmt.Sprintf("v%d", i))
		require.Equal(t, OK, c.Put(tok, "s", k, value, false), "length %d", len(k))
	}
	for i, k := range keys {
		want := []byte(fmt.Sprintf("v%d", i))
		got, status := c.Get("s", k)
		require.Equal(t, OK, status, "length %d", len(k))
		require.Equal(t, want, got, "length %d", len(k))
	}
	for _, k := range keys {
		require.Equal(t, OK, c.Remove(tok, "s", k), "length %d", len(k))
		_, status := c.Get("s", k)
		require.Equal(t, WarnNotExist, status, "length %d", len(k))
	}
}

// Spec §8 "memory reclamation": after remove(k) and enough epoch ticks that
// no active session could still observe the retired value, the underlying
// bytes are dropped. reclaim (session.go) is the package's single point of
// "stop reaching this", which is what this test observes directly.
func TestRemovedValueIsReclaimedAfterEpochAdvances(t *testing.T) {
	c := NewContext(WithEpochMillis(5), WithMaxSessions(8))
	defer c.Close()
	require.Equal(t, OK, c.CreateStorage("s"))

	tok, status := c.Enter()
	require.Equal(t, OK, status)

	require.Equal(t, OK, c.Put(tok, "s", []byte("k"), []byte("v"), false))

	tr, status := c.FindStorage("s")
	require.Equal(t, OK, status)
	slice, tag := sliceOf(t, "k")
	border, _, status := findBorder(treeRootSource(tr), slice, tag)
	require.Equal(t, OK, status)
	_, slot, ok := rankScanKey(t, border, "k")
	require.True(t, ok)
	box := border.lov[slot].value
	require.NotNil(t, box)
	require.Equal(t, []byte("v"), box.data)

	require.Equal(t, OK, c.Remove(tok, "s", []byte("k")))
	require.Equal(t, OK, c.Leave(tok))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if box.data == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Nil(t, box.data, "retired value should have been reclaimed once no session could observe it")
}

func sliceOf(t *testing.T, key string) (keySlice, lengthTag) {
	t.Helper()
	slice, tag, rest := sliceKey([]byte(key))
	require.Empty(t, rest)
	return slice, tag
}

func rankScanKey(t *testing.T, b *node, key string) (rank int, slot int, found bool) {
	t.Helper()
	slice, tag, rest := sliceKey([]byte(key))
	require.Empty(t, rest)
	count, order := b.perm.load()
	return rankScan(b, count, order, slice, tag)
}
