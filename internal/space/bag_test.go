package space

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuplespace/internal/tuple"
)

func TestBagDuplicatesAreDistinctInstances(t *testing.T) {
	h := sha256.Sum256([]byte("pw"))
	task := tuple.New(tuple.Atom("search_task"), tuple.Binary(h[:]))

	b := NewBag()
	b.Add(task)
	b.Add(task)
	require.Equal(t, 2, b.Len(), "bag semantics: same tuple twice is size 2")

	got, ok := b.Take(tuple.NewPattern(tuple.LitAtom("search_task"), tuple.Any()))
	require.True(t, ok)
	assert.True(t, got.Equal(task))
	assert.Equal(t, 1, b.Len(), "take removes exactly one instance")
}

func TestBagTakeIsFIFOAmongMatches(t *testing.T) {
	b := NewBag()
	b.Add(tuple.New(tuple.String("first"), tuple.Atom("x")))
	b.Add(tuple.New(tuple.String("second"), tuple.Atom("x")))

	got, ok := b.Take(tuple.NewPattern(tuple.Any(), tuple.LitAtom("x")))
	require.True(t, ok)
	assert.Equal(t, "first", got[0].Str)
}

func TestBagReadDoesNotRemove(t *testing.T) {
	b := NewBag()
	b.Add(tuple.New(tuple.String("7")))

	p := tuple.NewPattern(tuple.LitString("7"))
	for i := 0; i < 3; i++ {
		got, ok := b.Read(p)
		require.True(t, ok, "read %d", i)
		assert.Equal(t, "7", got[0].Str)
	}
	assert.Equal(t, 1, b.Len())
}

func TestBagTakeNoMatch(t *testing.T) {
	b := NewBag()
	b.Add(tuple.New(tuple.String("7")))

	_, ok := b.Take(tuple.NewPattern(tuple.LitString("8")))
	assert.False(t, ok)
	assert.Equal(t, 1, b.Len(), "failed take must not mutate the bag")
}

func TestBagInsertWaveWakesWaiter(t *testing.T) {
	b := NewBag()
	wave := b.InsertWave()

	done := make(chan struct{})
	go func() {
		<-wave
		close(done)
	}()

	b.Add(tuple.New(tuple.String("x")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by insert")
	}
}

func TestBagWaveObtainedBeforeCheckSeesLaterInsert(t *testing.T) {
	b := NewBag()
	p := tuple.NewPattern(tuple.LitString("late"))

	// Simulate the blocking-read discipline: grab wave, miss, wait, retry.
	wave := b.InsertWave()
	_, ok := b.Read(p)
	require.False(t, ok)

	b.Add(tuple.New(tuple.String("late")))

	select {
	case <-wave:
	case <-time.After(2 * time.Second):
		t.Fatal("wave obtained before the check must observe the insert")
	}

	_, ok = b.Read(p)
	assert.True(t, ok)
}
