package bus

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
)

type fakeStreamClient struct {
	mu    sync.Mutex
	acked []string
}

func (f *fakeStreamClient) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStreamClient) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	return nil
}

func (f *fakeStreamClient) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeStreamClient) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.acked))
	copy(out, f.acked)
	return out
}

func newTestConsumer(client streamClient, handler Handler) *Consumer {
	return &Consumer{
		client:       client,
		stream:       RawContentStream,
		group:        ContentGroup,
		consumerName: "test-consumer",
		handler:      handler,
		logger:       slog.Default(),
	}
}

func TestAckAfterHandlerCompletes(t *testing.T) {
	fake := &fakeStreamClient{}
	started := make(chan struct{})
	release := make(chan struct{})

	c := newTestConsumer(fake, func(ctx context.Context, payload []byte) {
		close(started)
		<-release
	})

	c.dispatch(context.Background(), redis.XMessage{
		ID:     "1-0",
		Values: map[string]any{"payload": `{"type":"news"}`},
	})

	<-started
	if ids := fake.ackedIDs(); len(ids) != 0 {
		t.Fatalf("message acked while handler still in flight: %v", ids)
	}

	close(release)
	c.workers.Wait()

	if ids := fake.ackedIDs(); len(ids) != 1 || ids[0] != "1-0" {
		t.Fatalf("got acks %v, want [1-0]", ids)
	}
}

func TestMalformedMessageAckedWithoutDispatch(t *testing.T) {
	fake := &fakeStreamClient{}
	handled := false

	c := newTestConsumer(fake, func(ctx context.Context, payload []byte) {
		handled = true
	})

	c.dispatch(context.Background(), redis.XMessage{
		ID:     "2-0",
		Values: map[string]any{"timestamp": "only"},
	})
	c.workers.Wait()

	if handled {
		t.Error("handler must not run for an envelope without a payload")
	}
	if ids := fake.ackedIDs(); len(ids) != 1 || ids[0] != "2-0" {
		t.Errorf("malformed message should be acked to stop redelivery, got %v", ids)
	}
}

func TestPanickingHandlerStillAcked(t *testing.T) {
	fake := &fakeStreamClient{}

	c := newTestConsumer(fake, func(ctx context.Context, payload []byte) {
		panic("handler failure")
	})

	c.dispatch(context.Background(), redis.XMessage{
		ID:     "3-0",
		Values: map[string]any{"payload": `{}`},
	})
	c.workers.Wait()

	if ids := fake.ackedIDs(); len(ids) != 1 || ids[0] != "3-0" {
		t.Errorf("recovered handler panic should still ack, got %v", ids)
	}
}
