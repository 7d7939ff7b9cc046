package view

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nakamori-labs/foresight/internal/domain"
)

// fakeReader is a scriptable domain.MarketReader for reconciler tests.
type fakeReader struct {
	mu       sync.Mutex
	market   domain.Market
	position domain.UserPosition
	infoErr  error
}

func (f *fakeReader) set(m domain.Market) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.market = m
}

func (f *fakeReader) MarketCount(ctx context.Context) (uint64, error) { return 1, nil }

func (f *fakeReader) MarketInfo(ctx context.Context, id uint64) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.infoErr != nil {
		return domain.Market{}, f.infoErr
	}
	return f.market, nil
}

func (f *fakeReader) SharesBalance(ctx context.Context, id uint64, wallet string) (domain.UserPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position, nil
}

func (f *fakeReader) ProposerOf(ctx context.Context, id uint64) (string, error) { return "", nil }
func (f *fakeReader) CreationStakeAmount(ctx context.Context) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (f *fakeReader) Owner(ctx context.Context) (string, error) { return "", nil }

type fakeMetadata struct {
	md  domain.MarketMetadata
	err error
}

func (f *fakeMetadata) GetByMarketID(ctx context.Context, id uint64) (domain.MarketMetadata, error) {
	if f.err != nil {
		return domain.MarketMetadata{}, f.err
	}
	return f.md, nil
}

func newTestReconciler(reader *fakeReader, meta *fakeMetadata, wallet string) *Reconciler {
	return NewReconciler(ReconcilerConfig{
		MarketID: 1,
		Wallet:   wallet,
		Markets:  reader,
		Metadata: meta,
		Interval: time.Hour, // ticks never fire; tests drive polls directly
		Now:      func() time.Time { return testNow },
	})
}

func TestReconcilerStartsLoading(t *testing.T) {
	r := newTestReconciler(&fakeReader{}, &fakeMetadata{}, "")
	assert.True(t, r.Snapshot().Loading)
}

func TestReconcilerAppliesPoll(t *testing.T) {
	reader := &fakeReader{market: domain.Market{ID: 1, Question: "q", EndTime: testNow.Add(time.Hour)}}
	r := newTestReconciler(reader, &fakeMetadata{md: domain.MarketMetadata{MarketID: 1, Description: "d", ImageURL: "/img.png"}}, "")

	r.fetchMetadataOnce(context.Background())
	r.pollOnce(context.Background())

	snap := r.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, "d", snap.Metadata.Description)
	assert.Equal(t, "/img.png", snap.Metadata.ImageURL)
}

func TestReconcilerStaysLoadingOnReadError(t *testing.T) {
	reader := &fakeReader{infoErr: errors.New("rpc down")}
	r := newTestReconciler(reader, &fakeMetadata{}, "")

	r.pollOnce(context.Background())

	// An upstream read failure is reported as loading, not as an error.
	assert.True(t, r.Snapshot().Loading)
}

func TestReconcilerMetadataMissFallsBackToPlaceholder(t *testing.T) {
	reader := &fakeReader{market: domain.Market{ID: 1, Question: "q", EndTime: testNow.Add(time.Hour)}}
	r := newTestReconciler(reader, &fakeMetadata{err: domain.ErrNotFound}, "")

	r.fetchMetadataOnce(context.Background())
	r.pollOnce(context.Background())

	snap := r.Snapshot()
	assert.Equal(t, domain.DefaultImageURL, snap.Metadata.ImageURL)
	assert.Empty(t, snap.Metadata.Description)
}

func TestReconcilerDiscardsStalePoll(t *testing.T) {
	reader := &fakeReader{}
	r := newTestReconciler(reader, &fakeMetadata{}, "")

	older := r.issueMarketSeq()
	newer := r.issueMarketSeq()

	fresh := domain.Market{ID: 1, Question: "q", EndTime: testNow.Add(time.Hour), TotalOptionAShares: 200}
	stale := domain.Market{ID: 1, Question: "q", EndTime: testNow.Add(time.Hour), TotalOptionAShares: 100}

	// The newer request's response arrives first; the older one must not
	// regress the snapshot when it lands afterwards.
	r.applyMarket(newer, fresh, nil)
	r.applyMarket(older, stale, nil)

	assert.Equal(t, uint64(200), r.Snapshot().Market.TotalOptionAShares)
}

func TestReconcilerPollsPositionForWallet(t *testing.T) {
	reader := &fakeReader{
		market:   domain.Market{ID: 1, Question: "q", EndTime: testNow.Add(-time.Hour), Resolved: true, Outcome: domain.OutcomeOptionA},
		position: domain.UserPosition{MarketID: 1, Wallet: "0xabc", OptionAShares: 5},
	}
	r := newTestReconciler(reader, &fakeMetadata{}, "0xabc")

	r.pollOnce(context.Background())

	snap := r.Snapshot()
	require.NotNil(t, snap.Position)
	assert.Equal(t, StateClaimable, snap.State)
}

func TestReconcilerInertAfterCancel(t *testing.T) {
	reader := &fakeReader{market: domain.Market{ID: 1, Question: "q", EndTime: testNow.Add(time.Hour)}}
	r := newTestReconciler(reader, &fakeMetadata{}, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	<-done

	before := r.Snapshot()

	// A late in-flight response resolving after teardown must be ignored.
	seq := r.issueMarketSeq()
	changed := domain.Market{ID: 1, Question: "changed", EndTime: testNow.Add(time.Hour)}
	reader.set(changed)
	r.applyMarket(seq, changed, nil)

	assert.Equal(t, before, r.Snapshot())
}
