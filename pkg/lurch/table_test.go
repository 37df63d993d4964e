package lurch_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/lurch/pkg/lurch"
)

func newTable[V any](t *testing.T, opts lurch.Options[string, V]) *lurch.Table[string, V] {
	t.Helper()

	tbl, err := lurch.New(opts)
	require.NoError(t, err)

	t.Cleanup(func() { _ = tbl.Close() })

	return tbl
}

func orderedKeys[V any](tbl *lurch.Table[string, V]) []string {
	var keys []string
	for k := range tbl.Ordered() {
		keys = append(keys, k)
	}

	return keys
}

func requireConsistent[V any](t *testing.T, tbl *lurch.Table[string, V]) {
	t.Helper()

	require.NoError(t, lurch.CheckInvariantsForTesting(tbl))
}

func Test_Table_Evicts_Oldest_When_Insert_Exceeds_Limit(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Ordering: lurch.Insertion, Limit: 3})

	for i, k := range []string{"A", "B", "C", "D"} {
		require.NoError(t, tbl.Set(k, i))
	}

	assert.Equal(t, 3, tbl.Len())

	ok, err := tbl.Contains("A")
	require.NoError(t, err)
	assert.False(t, ok, "A must have been evicted")

	e, ok, err := tbl.Peek()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, lurch.Entry[string, int]{Key: "B", Value: 1}, e)

	if diff := cmp.Diff([]string{"B", "C", "D"}, orderedKeys(tbl)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	requireConsistent(t, tbl)
}

func Test_Table_Moves_Entry_To_Newest_When_Read_With_Access_Ordering(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Ordering: lurch.Access})

	for i, k := range []string{"A", "B", "C"} {
		require.NoError(t, tbl.Set(k, i))
	}

	v, ok, err := tbl.Get("A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, v)

	if diff := cmp.Diff([]string{"B", "C", "A"}, orderedKeys(tbl)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	requireConsistent(t, tbl)
}

func Test_Table_Keeps_Order_When_Reading_Or_Checking_Without_Access_Ordering(t *testing.T) {
	t.Parallel()

	for _, o := range []lurch.Ordering{lurch.Insertion, lurch.Modified} {
		t.Run(o.String(), func(t *testing.T) {
			t.Parallel()

			tbl := newTable(t, lurch.Options[string, int]{Ordering: o})

			for i, k := range []string{"A", "B", "C"} {
				require.NoError(t, tbl.Set(k, i))
			}

			_, _, err := tbl.Get("A")
			require.NoError(t, err)

			_, err = tbl.Contains("A")
			require.NoError(t, err)

			assert.Equal(t, []string{"A", "B", "C"}, orderedKeys(tbl))
		})
	}
}

func Test_Table_Reorders_On_Update_Only_When_Ordering_Tracks_Modification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		ordering lurch.Ordering
		want     []string
	}{
		{lurch.Insertion, []string{"A", "B", "C"}},
		{lurch.Modified, []string{"B", "C", "A"}},
		{lurch.Access, []string{"B", "C", "A"}},
	}

	for _, tc := range testCases {
		t.Run(tc.ordering.String(), func(t *testing.T) {
			t.Parallel()

			tbl := newTable(t, lurch.Options[string, int]{Ordering: tc.ordering})

			for i, k := range []string{"A", "B", "C"} {
				require.NoError(t, tbl.Set(k, i))
			}

			ok, err := tbl.TryUpdate("A", 10)
			require.NoError(t, err)
			require.True(t, ok)

			assert.Equal(t, tc.want, orderedKeys(tbl))
			requireConsistent(t, tbl)
		})
	}
}

func Test_TryUpdateCompare_Changes_Value_Only_When_Current_Matches_Expected(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, string]{})
	require.NoError(t, tbl.Set("k", "old"))

	ok, err := tbl.TryUpdateCompare("k", "new", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	v, _, err := tbl.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "old", v, "failed compare must not mutate")

	ok, err = tbl.TryUpdateCompare("k", "new", "old")
	require.NoError(t, err)
	assert.True(t, ok)

	v, _, err = tbl.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	ok, err = tbl.TryUpdateCompare("missing", "x", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_TryUpdateCompare_Uses_DeepEqual_When_Value_Type_Not_Comparable(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, []int]{})
	require.NoError(t, tbl.Set("k", []int{1, 2}))

	ok, err := tbl.TryUpdateCompare("k", []int{3}, []int{1, 2})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tbl.TryRemoveValue("k", []int{9})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = tbl.TryRemoveValue("k", []int{3})
	require.NoError(t, err)
	assert.True(t, ok)
}

func Test_Table_Holds_All_Keys_When_Inserting_From_Many_Goroutines(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{})

	const workers, total = 8, 10_000

	var wg sync.WaitGroup

	for w := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := w; i < total; i += workers {
				err := tbl.Add(fmt.Sprintf("key-%05d", i), i)
				if err != nil {
					t.Errorf("Add(%d): %v", i, err)

					return
				}
			}
		}()
	}

	wg.Wait()

	require.Equal(t, total, tbl.Len())

	for i := range total {
		v, err := tbl.Lookup(fmt.Sprintf("key-%05d", i))
		require.NoError(t, err)
		require.Equal(t, i, v)
	}

	requireConsistent(t, tbl)
}

func Test_Add_Returns_ErrKeyExists_When_Key_Present(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{})
	require.NoError(t, tbl.Add("k", 1))

	err := tbl.Add("k", 2)
	require.ErrorIs(t, err, lurch.ErrKeyExists)

	ok, err := tbl.TryAdd("k", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := tbl.Lookup("k")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func Test_Lookup_Returns_ErrNotFound_When_Key_Absent(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{})

	_, err := tbl.Lookup("nope")
	require.ErrorIs(t, err, lurch.ErrNotFound)
}

func Test_GetOrAdd_Returns_Existing_Value_When_Key_Present(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{})

	v, err := tbl.GetOrAdd("k", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = tbl.GetOrAdd("k", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	calls := 0
	v, err = tbl.GetOrAddFunc("k", func(string) int { calls++; return 3 })
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Zero(t, calls, "factory must not run for a present key")
}

func Test_GetOrAddFunc_Runs_Factory_Once_When_Racing_On_Same_Key(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{})

	var calls atomic.Int32

	const workers = 16

	results := make([]int, workers)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)

	for w := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start

			v, err := tbl.GetOrAddFunc("shared", func(string) int {
				return int(calls.Add(1)) * 100
			})
			if err != nil {
				t.Errorf("GetOrAddFunc: %v", err)
			}

			results[w] = v
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	for _, v := range results {
		assert.Equal(t, 100, v)
	}
}

func Test_AddOrUpdate_Adds_Then_Updates_When_Called_Twice(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{})
	inc := func(_ string, cur int) int { return cur + 1 }

	v, err := tbl.AddOrUpdate("n", 1, inc)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = tbl.AddOrUpdate("n", 1, inc)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	v, err = tbl.AddOrUpdateFunc("m", func(k string) int { return len(k) * 7 }, inc)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func Test_TryUpdateFunc_Applies_Function_When_Key_Present(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{})

	ok, err := tbl.TryUpdateFunc("n", func(_ string, cur int) int { return cur * 2 })
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tbl.Set("n", 21))

	ok, err = tbl.TryUpdateFunc("n", func(_ string, cur int) int { return cur * 2 })
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := tbl.Lookup("n")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

type counterVerb struct{ step int }

func (c counterVerb) CreateValue(string) (int, bool) { return c.step, true }

func (c counterVerb) UpdateValue(_ string, cur int) (int, bool) {
	if cur >= 10 {
		return cur, false
	}

	return cur + c.step, true
}

type evenRemover struct{}

func (evenRemover) RemoveValue(_ string, cur int) bool { return cur%2 == 0 }

func Test_Apply_Reports_Result_When_Running_Custom_Verb(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{})

	res, err := tbl.Apply("c", counterVerb{step: 5})
	require.NoError(t, err)
	assert.Equal(t, lurch.Inserted, res)

	res, err = tbl.Apply("c", counterVerb{step: 5})
	require.NoError(t, err)
	assert.Equal(t, lurch.Updated, res)

	res, err = tbl.Apply("c", counterVerb{step: 5})
	require.NoError(t, err)
	assert.Equal(t, lurch.Exists, res)

	res, err = tbl.Apply("d", nil)
	require.ErrorIs(t, err, lurch.ErrInvalidInput)
	assert.Equal(t, lurch.NotFound, res)

	v, ok, err := tbl.ApplyRemove("c", evenRemover{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, v)
}

func Test_Remove_Variants_Report_Whether_Entry_Was_Removed(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Ordering: lurch.Insertion})

	for i, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, tbl.Set(k, i))
	}

	v, ok, err := tbl.TryRemove("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, v)

	_, ok, err = tbl.TryRemove("a")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = tbl.TryRemoveValue("b", 5)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = tbl.TryRemoveFunc("c", func(_ string, cur int) bool { return cur == 2 })
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tbl.Delete("d")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{"b"}, orderedKeys(tbl))
	requireConsistent(t, tbl)
}

func Test_Peek_And_TryDequeue_Return_Nothing_When_Empty(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Ordering: lurch.Insertion})

	_, ok, err := tbl.Peek()
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = tbl.TryDequeue()
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_TryDequeue_Removes_Entries_Oldest_First(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Ordering: lurch.Insertion})

	for i, k := range []string{"x", "y", "z"} {
		require.NoError(t, tbl.Set(k, i))
	}

	var got []string

	for {
		e, ok, err := tbl.TryDequeue()
		require.NoError(t, err)

		if !ok {
			break
		}

		got = append(got, e.Key)
	}

	assert.Equal(t, []string{"x", "y", "z"}, got)
	assert.Zero(t, tbl.Len())
	requireConsistent(t, tbl)
}

func Test_TryDequeueFunc_Keeps_Entry_When_Predicate_Rejects(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Ordering: lurch.Insertion})
	require.NoError(t, tbl.Set("a", 1))
	require.NoError(t, tbl.Set("b", 2))

	e, ok, err := tbl.TryDequeueFunc(func(_ string, v int) bool { return v > 1 })
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "a", e.Key, "rejected entry is still reported")
	assert.Equal(t, 2, tbl.Len())

	e, ok, err = tbl.TryDequeueFunc(func(_ string, v int) bool { return v == 1 })
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", e.Key)
}

func Test_Ordered_Operations_Return_ErrUnordered_When_Ordering_None(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{})

	_, _, err := tbl.Peek()
	require.ErrorIs(t, err, lurch.ErrUnordered)

	_, _, err = tbl.TryDequeue()
	require.ErrorIs(t, err, lurch.ErrUnordered)

	_, err = tbl.Dequeue()
	require.ErrorIs(t, err, lurch.ErrUnordered)

	err = tbl.SetLimit(5)
	require.ErrorIs(t, err, lurch.ErrInvalidLimit)
}

func Test_Dequeue_Waits_Until_Entry_Arrives_When_Empty(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Ordering: lurch.Insertion})

	done := make(chan lurch.Entry[string, int], 1)

	go func() {
		e, err := tbl.Dequeue()
		if err != nil {
			t.Errorf("Dequeue: %v", err)
		}

		done <- e
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, tbl.Set("late", 7))

	select {
	case e := <-done:
		assert.Equal(t, lurch.Entry[string, int]{Key: "late", Value: 7}, e)
	case <-time.After(5 * time.Second):
		t.Fatal("Dequeue did not return")
	}
}

func Test_DequeueContext_Returns_Context_Error_When_Cancelled(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Ordering: lurch.Insertion})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tbl.DequeueContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_Observers_Receive_Events_When_Table_Changes(t *testing.T) {
	t.Parallel()

	var events []string

	obs := lurch.ObserverFuncs[string, int]{
		Added:   func(k string, v int) { events = append(events, fmt.Sprintf("add %s=%d", k, v)) },
		Updated: func(k string, o, n int) { events = append(events, fmt.Sprintf("upd %s=%d->%d", k, o, n)) },
		Removed: func(k string, v int) { events = append(events, fmt.Sprintf("del %s=%d", k, v)) },
	}

	tbl := newTable(t, lurch.Options[string, int]{
		Ordering:  lurch.Insertion,
		Limit:     2,
		Observers: []lurch.Observer[string, int]{obs, lurch.ObserverFuncs[string, int]{}},
	})

	require.NoError(t, tbl.Set("a", 1))
	require.NoError(t, tbl.Set("a", 2))
	require.NoError(t, tbl.Set("b", 3))
	require.NoError(t, tbl.Set("c", 4))
	_, err := tbl.Delete("b")
	require.NoError(t, err)
	require.NoError(t, tbl.Clear())

	want := []string{
		"add a=1",
		"upd a=1->2",
		"add b=3",
		"add c=4",
		"del a=2",
		"del b=3",
		"del c=4",
	}

	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func Test_Clear_Removes_All_Entries(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Ordering: lurch.Modified, Capacity: 2048})

	for i := range 1000 {
		require.NoError(t, tbl.Set(fmt.Sprint(i), i))
	}

	require.NoError(t, tbl.Clear())
	assert.Zero(t, tbl.Len())
	assert.Empty(t, orderedKeys(tbl))
	requireConsistent(t, tbl)

	require.NoError(t, tbl.Set("again", 1))
	assert.Equal(t, []string{"again"}, orderedKeys(tbl))
}

func Test_All_Yields_Every_Entry_When_Iterated(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{})

	want := map[string]int{}
	for i := range 300 {
		k := fmt.Sprintf("k%d", i)
		want[k] = i
		require.NoError(t, tbl.Set(k, i))
	}

	got := map[string]int{}
	for k, v := range tbl.All() {
		got[k] = v
	}

	assert.Equal(t, want, got)

	keys := slices.Collect(tbl.Keys())
	sort.Strings(keys)
	assert.Len(t, keys, 300)

	sum := 0
	for v := range tbl.Values() {
		sum += v
	}

	assert.Equal(t, 299*300/2, sum)

	n := 0
	for range tbl.All() {
		n++
		if n == 10 {
			break
		}
	}

	assert.Equal(t, 10, n)
}

func Test_All_Allows_Mutation_When_Called_From_Loop_Body(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Ordering: lurch.Insertion})

	for i := range 50 {
		require.NoError(t, tbl.Set(fmt.Sprint(i), i))
	}

	for k := range tbl.Keys() {
		_, err := tbl.Delete(k)
		require.NoError(t, err)
	}

	assert.Zero(t, tbl.Len())
	requireConsistent(t, tbl)
}

func Test_SetLimit_Evicts_Oldest_Down_To_Limit_When_Lowered(t *testing.T) {
	t.Parallel()

	var removed []string

	obs := lurch.ObserverFuncs[string, int]{
		Removed: func(k string, _ int) { removed = append(removed, k) },
	}

	tbl := newTable(t, lurch.Options[string, int]{
		Ordering:  lurch.Insertion,
		Observers: []lurch.Observer[string, int]{obs},
	})

	for i := range 5 {
		require.NoError(t, tbl.Set(fmt.Sprint(i), i))
	}

	require.NoError(t, tbl.SetLimit(3))
	assert.Equal(t, 3, tbl.Limit())
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"0", "1"}, removed)
	assert.Equal(t, []string{"2", "3", "4"}, orderedKeys(tbl))

	require.NoError(t, tbl.Set("5", 5))
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"3", "4", "5"}, orderedKeys(tbl))
	requireConsistent(t, tbl)

	require.ErrorIs(t, tbl.SetLimit(-1), lurch.ErrInvalidInput)
	require.NoError(t, tbl.SetLimit(0))
	assert.Equal(t, 3, tbl.Len())
}

func Test_Len_Stays_Within_Limit_When_Inserting_After_Limit_Lowered(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Ordering: lurch.Insertion})

	for i := range 100 {
		require.NoError(t, tbl.Set(fmt.Sprint("a", i), i))
	}

	require.NoError(t, tbl.SetLimit(10))
	assert.LessOrEqual(t, tbl.Len(), 10)

	for i := range 100 {
		require.NoError(t, tbl.Set(fmt.Sprint("b", i), i))
		assert.LessOrEqual(t, tbl.Len(), 10)
	}

	requireConsistent(t, tbl)
}

func Test_New_Returns_Error_When_Options_Invalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		options lurch.Options[string, int]
		want    error
	}{
		{name: "NegativeCapacity", options: lurch.Options[string, int]{Capacity: -1}, want: lurch.ErrInvalidInput},
		{name: "NegativeLimit", options: lurch.Options[string, int]{Ordering: lurch.Access, Limit: -1}, want: lurch.ErrInvalidInput},
		{name: "LimitWithoutOrdering", options: lurch.Options[string, int]{Limit: 10}, want: lurch.ErrInvalidLimit},
		{name: "UnknownOrdering", options: lurch.Options[string, int]{Ordering: 9}, want: lurch.ErrInvalidInput},
		{name: "NegativeHashSize", options: lurch.Options[string, int]{HashSize: -3}, want: lurch.ErrInvalidInput},
		{name: "HugeSlabSize", options: lurch.Options[string, int]{SlabSize: 1 << 30}, want: lurch.ErrInvalidInput},
		{name: "NilObserver", options: lurch.Options[string, int]{Observers: []lurch.Observer[string, int]{nil}}, want: lurch.ErrInvalidInput},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := lurch.New(tc.options)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func Test_Stats_Reflect_Derived_Geometry(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Capacity: 100_000, Ordering: lurch.Access, Limit: 50})

	st, err := tbl.Stats()
	require.NoError(t, err)

	assert.Equal(t, 50_021, st.Buckets, "capacity/2 rounded up to a prime")
	assert.Equal(t, 8192, st.SlabSize, "capacity/16 rounded up to a power of two")
	assert.Equal(t, 397, st.Locks, "capacity/256 rounded up to a prime")
	assert.Equal(t, 50, st.Limit)
	assert.Equal(t, lurch.Access, st.Ordering)
	assert.Equal(t, 1, st.Slabs)
}

func Test_Table_Returns_ErrClosed_When_Used_After_Close(t *testing.T) {
	t.Parallel()

	tbl, err := lurch.New(lurch.Options[string, int]{Ordering: lurch.Insertion})
	require.NoError(t, err)
	require.NoError(t, tbl.Set("a", 1))

	require.NoError(t, tbl.Close())
	require.ErrorIs(t, tbl.Close(), lurch.ErrClosed)

	checks := map[string]error{}
	_, _, checks["Get"] = tbl.Get("a")
	checks["Set"] = tbl.Set("b", 2)
	_, _, checks["TryRemove"] = tbl.TryRemove("a")
	_, _, checks["Peek"] = tbl.Peek()
	_, _, checks["TryDequeue"] = tbl.TryDequeue()
	_, checks["Dequeue"] = tbl.Dequeue()
	checks["Clear"] = tbl.Clear()
	checks["SetLimit"] = tbl.SetLimit(1)
	_, checks["Stats"] = tbl.Stats()
	_, checks["Contains"] = tbl.Contains("a")

	for name, err := range checks {
		assert.ErrorIs(t, err, lurch.ErrClosed, name)
	}

	assert.Zero(t, tbl.Len())

	n := 0
	for range tbl.All() {
		n++
	}

	assert.Zero(t, n)
}

type collidingComparer struct{}

func (collidingComparer) Hash(string) uint64 { return 42 }

func (collidingComparer) Equal(a, b string) bool { return a == b }

func Test_Table_Handles_Long_Chains_When_All_Keys_Collide(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, lurch.Options[string, int]{Ordering: lurch.Insertion, Comparer: collidingComparer{}})

	for i := range 64 {
		require.NoError(t, tbl.Set(fmt.Sprint(i), i))
	}

	for i := 0; i < 64; i += 2 {
		ok, err := tbl.Delete(fmt.Sprint(i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	for i := range 64 {
		_, ok, err := tbl.Get(fmt.Sprint(i))
		require.NoError(t, err)
		assert.Equal(t, i%2 == 1, ok, "key %d", i)
	}

	e, ok, err := tbl.TryDequeue()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", e.Key)

	requireConsistent(t, tbl)
}

func Test_ParseOrdering_Accepts_Names_When_Case_Differs(t *testing.T) {
	t.Parallel()

	for _, o := range []lurch.Ordering{lurch.None, lurch.Insertion, lurch.Modified, lurch.Access} {
		got, err := lurch.ParseOrdering(" " + fmt.Sprintf("%v", o) + " ")
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}

	got, err := lurch.ParseOrdering("LRU")
	require.Error(t, err)
	assert.True(t, errors.Is(err, lurch.ErrInvalidInput))
	assert.Equal(t, lurch.None, got)
}
