package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/market-sdk/internal/testutil"
)

var (
	contractA = common.HexToAddress("0xAAaAAaaaaAAAAAaAAaAAAAaAaaaaaAaaaaaaAaAa")
	contractB = common.HexToAddress("0xBbBBbBbBbBbBbbbBbBbBBbbbBBBbBbbbBBbbbbBB")
	hash1     = common.HexToHash("0x01")
	hash2     = common.HexToHash("0x02")
)

func TestStore_MissThenHit(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SetFilled(contractA, hash1, 2)
	store := New(backend, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := store.GetFilledOrCancelled(ctx, contractA, hash1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Int64())
	assert.Equal(t, 1, backend.Calls("QtyFilledOrCancelled"))

	second, err := store.GetFilledOrCancelled(ctx, contractA, hash1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.Calls("QtyFilledOrCancelled"), "hit must not read the chain")
}

func TestStore_InvalidateRefetches(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SetFilled(contractA, hash1, 2)
	store := New(backend, nil)
	ctx := context.Background()

	_, err := store.GetFilledOrCancelled(ctx, contractA, hash1)
	require.NoError(t, err)

	backend.SetFilled(contractA, hash1, 10)
	store.Invalidate(contractA, hash1)

	got, err := store.GetFilledOrCancelled(ctx, contractA, hash1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Int64())
	assert.Equal(t, 2, backend.Calls("QtyFilledOrCancelled"))
}

func TestStore_InvalidateAbsentIsNoop(t *testing.T) {
	store := New(testutil.NewFakeBackend(), nil)

	assert.NotPanics(t, func() {
		store.Invalidate(contractB, hash2)
	})
	assert.Equal(t, 0, store.Len())
}

func TestStore_InvalidateOnlyTouchesOneKey(t *testing.T) {
	backend := testutil.NewFakeBackend()
	store := New(backend, nil)
	ctx := context.Background()

	_, err := store.GetFilledOrCancelled(ctx, contractA, hash1)
	require.NoError(t, err)
	_, err = store.GetFilledOrCancelled(ctx, contractA, hash2)
	require.NoError(t, err)
	_, err = store.GetFilledOrCancelled(ctx, contractB, hash1)
	require.NoError(t, err)
	require.Equal(t, 3, store.Len())

	store.Invalidate(contractA, hash1)
	assert.Equal(t, 2, store.Len())

	_, err = store.GetFilledOrCancelled(ctx, contractB, hash1)
	require.NoError(t, err)
	assert.Equal(t, 3, backend.Calls("QtyFilledOrCancelled"), "same hash on another contract is a separate key")
}

func TestStore_InvalidateAll(t *testing.T) {
	backend := testutil.NewFakeBackend()
	store := New(backend, nil)
	ctx := context.Background()

	_, _ = store.GetFilledOrCancelled(ctx, contractA, hash1)
	_, _ = store.GetFilledOrCancelled(ctx, contractB, hash2)

	store.InvalidateAll()
	assert.Equal(t, 0, store.Len())

	_, _ = store.GetFilledOrCancelled(ctx, contractA, hash1)
	_, _ = store.GetFilledOrCancelled(ctx, contractB, hash2)
	assert.Equal(t, 4, backend.Calls("QtyFilledOrCancelled"))
}

func TestStore_ErrorNotMemoized(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.FailOn("QtyFilledOrCancelled", errors.New("rpc down"))
	store := New(backend, nil)

	_, err := store.GetFilledOrCancelled(context.Background(), contractA, hash1)
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestStore_ReturnsCopies(t *testing.T) {
	backend := testutil.NewFakeBackend()
	backend.SetFilled(contractA, hash1, 5)
	store := New(backend, nil)
	ctx := context.Background()

	got, err := store.GetFilledOrCancelled(ctx, contractA, hash1)
	require.NoError(t, err)
	got.Add(got, big.NewInt(100))

	again, err := store.GetFilledOrCancelled(ctx, contractA, hash1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), again.Int64())
}

// blockingSource lets a test invalidate while a fetch is in flight.
type blockingSource struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingSource) QtyFilledOrCancelled(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error) {
	close(b.started)
	<-b.release
	return big.NewInt(1), nil
}

func TestStore_InvalidateDuringFetchIsNotUndone(t *testing.T) {
	source := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	store := New(source, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = store.GetFilledOrCancelled(context.Background(), contractA, hash1)
	}()

	<-source.started
	store.Invalidate(contractA, hash1)
	close(source.release)
	wg.Wait()

	assert.Equal(t, 0, store.Len(), "a fetch that raced an invalidation must not be memoized")
}

func TestNewKey_CaseInsensitive(t *testing.T) {
	k1 := NewKey(contractA, hash1)
	k2 := NewKey(common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), hash1)
	assert.Equal(t, k1, k2)
}
