package extraction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-kyc/internal/domain"
	"github.com/ahrav/go-kyc/internal/ports"
)

const ribAnswer = `{"holder_last_name":"Martin","iban":"FR76 3000 6000 0112 3456 7890 189"}`

func TestNewCachingExtractor_PanicsWithNilExtractor(t *testing.T) {
	assert.Panics(t, func() { NewCachingExtractor(nil) })
}

func TestCachingExtractor_Classify(t *testing.T) {
	e, mock := newTestExtractor(t, `{"kind":"rib","confidence":0.95}`)
	cache := NewCachingExtractor(e)

	first, usage, err := cache.Classify(context.Background(), scan("rib.jpg"))
	require.NoError(t, err)
	assert.Equal(t, domain.KindBankAccount, first.Kind)
	assert.Equal(t, 1, usage.Calls, "a miss reports the usage of the call")

	second, usage, err := cache.Classify(context.Background(), scan("copy-of-rib.jpg"))
	require.NoError(t, err)
	assert.Equal(t, first.Kind, second.Kind)
	assert.Zero(t, usage.Calls, "a hit costs nothing")
	assert.Equal(t, 1, mock.GetCallCount(), "identical bytes should be classified once")

	second.Confidence = 0
	third, _, err := cache.Classify(context.Background(), scan("rib.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 0.95, third.Confidence, "callers get their own copy of a classification")
}

func TestCachingExtractor_Extract(t *testing.T) {
	e, mock := newTestExtractor(t, ribAnswer)
	cache := NewCachingExtractor(e)

	doc, usage, err := cache.Extract(context.Background(), domain.KindBankAccount, scan("rib.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "FR7630006000011234567890189", doc.(*domain.BankAccount).IBAN)
	assert.Equal(t, 1, usage.Calls)

	again, usage, err := cache.Extract(context.Background(), domain.KindBankAccount, scan("rib.jpg"))
	require.NoError(t, err)
	assert.Same(t, doc, again)
	assert.Zero(t, usage.Calls)
	assert.Equal(t, 1, mock.GetCallCount())
	assert.Equal(t, 1, cache.Len())

	_, _, err = cache.Extract(context.Background(), domain.KindProofOfAddress, scan("rib.jpg"))
	assert.Error(t, err, "the kind is part of the key")
	assert.Equal(t, 2, mock.GetCallCount())
}

func TestCachingExtractor_DoesNotCacheFailures(t *testing.T) {
	e, mock := newTestExtractor(t, "no json here")
	cache := NewCachingExtractor(e)

	_, _, err := cache.Classify(context.Background(), scan("blurry.jpg"))
	require.ErrorIs(t, err, ports.ErrInvalidResponse)

	mock.Response = `{"kind":"passport","confidence":0.8}`
	classification, _, err := cache.Classify(context.Background(), scan("blurry.jpg"))
	require.NoError(t, err, "a failure should not be remembered")
	assert.Equal(t, domain.KindPassport, classification.Kind)
	assert.Equal(t, 2, mock.GetCallCount())
}

func TestCachingExtractor_ConcurrentCallsShareOneRequest(t *testing.T) {
	e, mock := newTestExtractor(t, ribAnswer)
	mock.ResponseDelay = 50 * time.Millisecond
	cache := NewCachingExtractor(e)

	const callers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		calls int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, usage, err := cache.Extract(context.Background(), domain.KindBankAccount, scan("rib.jpg"))
			assert.NoError(t, err)
			mu.Lock()
			calls += usage.Calls
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, mock.GetCallCount(), "concurrent callers should share one model call")
	assert.Equal(t, 1, calls, "the shared call is charged once")
}

func TestCachingExtractor_Clear(t *testing.T) {
	e, mock := newTestExtractor(t, `{"kind":"passport","confidence":0.9}`)
	cache := NewCachingExtractor(e)

	_, _, err := cache.Classify(context.Background(), scan("p.jpg"))
	require.NoError(t, err)
	cache.Clear()
	assert.Zero(t, cache.Len())

	_, _, err = cache.Classify(context.Background(), scan("p.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 2, mock.GetCallCount())
}
