package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/VictorQ-I/SMAF-BACKEND/internal/domain"
)

func TestChannelBusPublishSubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()

	received := make(chan *domain.Message, 1)
	sub, err := b.Subscribe(ctx, domain.TopicTransactionScored, func(ctx context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, domain.TopicTransactionScored, []byte(`{"transactionId":"TXN-1"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Topic != domain.TopicTransactionScored {
			t.Errorf("topic = %q", msg.Topic)
		}
		if string(msg.Payload) != `{"transactionId":"TXN-1"}` {
			t.Errorf("payload = %s", msg.Payload)
		}
		if msg.ID == "" {
			t.Error("message id missing")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestChannelBusTopicIsolation(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()

	var mu sync.Mutex
	var got []string
	sub, err := b.Subscribe(ctx, domain.TopicTransactionRejected, func(ctx context.Context, msg *domain.Message) error {
		mu.Lock()
		got = append(got, msg.Topic)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, domain.TopicTransactionScored, []byte(`{}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := b.Publish(ctx, domain.TopicTransactionRejected, []byte(`{}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != domain.TopicTransactionRejected {
		t.Errorf("received topics = %v, want only the rejected topic", got)
	}
}

func TestChannelBusMultipleSubscribers(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()

	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		_, err := b.Subscribe(ctx, domain.TopicRuleChanged, func(ctx context.Context, msg *domain.Message) error {
			wg.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	}

	if err := b.Publish(ctx, domain.TopicRuleChanged, []byte(`{}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the message")
	}
}

func TestChannelBusClosed(t *testing.T) {
	b := NewChannelBus(10)
	b.Close()

	ctx := context.Background()

	if err := b.Publish(ctx, domain.TopicTransactionScored, []byte(`{}`)); err == nil {
		t.Error("expected error publishing to closed bus")
	}
	if _, err := b.Subscribe(ctx, domain.TopicTransactionScored, nil); err == nil {
		t.Error("expected error subscribing to closed bus")
	}
	if err := b.Ping(ctx); err == nil {
		t.Error("expected ping failure on closed bus")
	}
}

func TestNewFactorySelectsChannelBus(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if _, ok := b.(*ChannelBus); !ok {
		t.Errorf("bus type = %T, want *ChannelBus", b)
	}

	if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
		t.Error("expected error for unsupported bus type")
	}
}
