//go:build integration

package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// Integration tests against a real broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_Connect(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "powerswitch-int-connect"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestIntegration_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "powerswitch-int-sub-track"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := []string{
		client.Topics().EntityEvents("room"),
		client.Topics().EntityEvents("scene"),
		client.Topics().History(),
	}
	handler := func(string, []byte) error { return nil }

	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if client.SubscriptionCount() != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(topics))
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topics[0]) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", topics[0])
	}
}

func TestIntegration_EntityEventRoundtrip(t *testing.T) {
	cfg := testConfig()

	cfg.Broker.ClientID = "powerswitch-int-pub"
	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "powerswitch-int-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	type event struct {
		ID int64 `json:"id"`
	}
	received := make(chan event, 1)
	var once sync.Once

	err = subClient.Subscribe(subClient.Topics().AllEntityEvents(), 1, func(_ string, p []byte) error {
		var e event
		if err := json.Unmarshal(p, &e); err != nil {
			return err
		}
		once.Do(func() { received <- e })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pubClient.PublishJSON(pubClient.Topics().EntityEvent("room", "add"), event{ID: 42}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case e := <-received:
		if e.ID != 42 {
			t.Errorf("received id %d, want 42", e.ID)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}
}
