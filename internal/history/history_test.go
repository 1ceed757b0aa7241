package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Caia-Tech/caia-scribe/pkg/recognition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(text string) recognition.Result {
	return recognition.Result{
		RequestID:  "req-" + text,
		Text:       text,
		Provenance: recognition.ProvenanceCombined,
		Confidence: recognition.PlaceholderConfidence,
	}
}

func TestStorePrependOnly(t *testing.T) {
	store := NewStore()
	assert.Empty(t, store.List())

	var added []Entry
	for i := 0; i < 5; i++ {
		added = append(added, store.Add(result(fmt.Sprintf("text-%d", i)), ""))
	}

	list := store.List()
	require.Len(t, list, 5)
	assert.Equal(t, 5, store.Len())

	// most recent first, earlier entries keep their relative order
	for i, entry := range list {
		assert.Equal(t, added[len(added)-1-i], entry)
	}
	assert.Equal(t, "text-4", list[0].Text)
	assert.Equal(t, "text-0", list[4].Text)
}

func TestStoreAddDoesNotDisturbPreviousSnapshot(t *testing.T) {
	store := NewStore()
	store.Add(result("first"), "a.png")
	before := store.List()

	store.Add(result("second"), "b.png")
	after := store.List()

	require.Len(t, after, 2)
	assert.Equal(t, before[0], after[1])
	assert.Equal(t, "second", after[0].Text)
	assert.Equal(t, "b.png", after[0].Filename)
}

func TestStoreGet(t *testing.T) {
	store := NewStore()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	entry := store.Add(result("hello"), "")
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, fixed, entry.CreatedAt)
	assert.Equal(t, "req-hello", entry.RequestID)
	assert.Equal(t, recognition.ProvenanceCombined, entry.Provenance)

	got, err := store.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	_, err = store.Get("missing")
	assert.Error(t, err)
}

func TestStoreConcurrentAdd(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Add(result(fmt.Sprintf("t%d", i)), "")
		}(i)
	}
	wg.Wait()

	list := store.List()
	assert.Len(t, list, 50)

	seen := make(map[string]bool)
	for _, entry := range list {
		assert.False(t, seen[entry.ID])
		seen[entry.ID] = true
	}
}

func TestEntryPreview(t *testing.T) {
	entry := Entry{Text: "The quick brown fox jumps over the lazy dog"}
	assert.Equal(t, "The quick brown fox jumps over...", entry.Preview(30))
	assert.Equal(t, entry.Text, entry.Preview(100))
	assert.Equal(t, "héllo", Entry{Text: "héllo"}.Preview(5))
}
