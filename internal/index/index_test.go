package index

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/kv"
)

func TestPushPrependsAndBounds(t *testing.T) {
	var list []string
	for i := 0; i < 5; i++ {
		list = Push(list, fmt.Sprintf("k%d", i), 3)
	}
	assert.Equal(t, []string{"k4", "k3", "k2"}, list)
}

func TestPushDoesNotMutateInput(t *testing.T) {
	in := []string{"b", "a"}
	out := Push(in, "c", 2)
	assert.Equal(t, []string{"c", "b"}, out)
	assert.Equal(t, []string{"b", "a"}, in)
}

func TestPushZeroMax(t *testing.T) {
	assert.Empty(t, Push([]string{"a"}, "b", 0))
}

func TestBoundAfterManyInsertions(t *testing.T) {
	const max = 1000
	var list []string
	var inserted []string
	for i := 0; i < max+1; i++ {
		k := fmt.Sprintf("event:%d:x", i)
		inserted = append(inserted, k)
		list = Push(list, k, max)
	}
	require.Len(t, list, max)
	assert.NotContains(t, list, inserted[0])
	for i, k := range list {
		assert.Equal(t, inserted[len(inserted)-1-i], k)
	}
}

func TestHead(t *testing.T) {
	list := []string{"a", "b", "c"}
	assert.Equal(t, []string{"a", "b"}, Head(list, 2))
	assert.Equal(t, list, Head(list, 10))
	assert.Empty(t, Head(list, -1))
}

func TestKeyLayout(t *testing.T) {
	ts := time.UnixMilli(1717000000123)
	assert.Regexp(t, regexp.MustCompile(`^event:1717000000123:[0-9a-f]{8}$`), EventKey(ts))
	assert.NotEqual(t, EventKey(ts), EventKey(ts))
	assert.Equal(t, "index:loc:ACX:L1", LocationIndexKey("ACX", "L1"))
	assert.Equal(t, "loc:ACX:L1", SummaryKey("ACX", "L1"))
	assert.Equal(t, "locations:ACX", LocationsKey("ACX"))
	assert.Equal(t, "index:global", GlobalKey)
}

func TestLoadSavePrepend(t *testing.T) {
	ctx := context.Background()
	st := kv.NewMemory()

	list, err := Load(ctx, st, GlobalKey)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = Prepend(ctx, st, GlobalKey, "e1", 2)
	require.NoError(t, err)
	_, err = Prepend(ctx, st, GlobalKey, "e2", 2)
	require.NoError(t, err)
	list, err = Prepend(ctx, st, GlobalKey, "e3", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"e3", "e2"}, list)

	stored, err := Load(ctx, st, GlobalKey)
	require.NoError(t, err)
	assert.Equal(t, list, stored)
}

func TestLoadCorruptIndexReadsEmpty(t *testing.T) {
	ctx := context.Background()
	st := kv.NewMemory()
	require.NoError(t, st.Set(ctx, GlobalKey, []byte("{not json")))

	list, err := Load(ctx, st, GlobalKey)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// Two writers that read the same prior index both write back; the later write
// wins and the other prepend is lost from the index.
func TestConcurrentPrependLosesOneEntry(t *testing.T) {
	ctx := context.Background()
	st := kv.NewMemory()
	require.NoError(t, Save(ctx, st, GlobalKey, []string{"e0"}))

	priorA, err := Load(ctx, st, GlobalKey)
	require.NoError(t, err)
	priorB, err := Load(ctx, st, GlobalKey)
	require.NoError(t, err)

	require.NoError(t, Save(ctx, st, GlobalKey, Push(priorA, "eA", 10)))
	require.NoError(t, Save(ctx, st, GlobalKey, Push(priorB, "eB", 10)))

	final, err := Load(ctx, st, GlobalKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"eB", "e0"}, final)
	assert.NotContains(t, final, "eA")
}
