//go:build integration

package mqtt

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_ConnectAndClose(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "lighthouse-int-connect"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_PowerCommandRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "lighthouse-int-roundtrip"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := client.Topics()
	received := make(chan string, 1)

	err = client.Subscribe(topics.AllPowerCommands(), 1, func(topic string, _ []byte) error {
		addr, _ := topics.ParsePowerCommand(topic)
		received <- addr
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(topics.AllPowerCommands()) {
		t.Error("HasSubscription() = false after Subscribe")
	}

	time.Sleep(100 * time.Millisecond)

	if err := client.Publish(topics.PowerCommand("AA:BB:CC:DD:EE:01"), []byte(`{"state":"sleep"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case addr := <-received:
		if addr != "AA:BB:CC:DD:EE:01" {
			t.Errorf("received address = %q", addr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}

	if err := client.Unsubscribe(topics.AllPowerCommands()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestIntegration_OnConnectCallback(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "lighthouse-int-callback"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var called atomic.Bool
	client.SetOnConnect(func() { called.Store(true) })
	client.handleConnect()

	if !called.Load() {
		t.Error("OnConnect callback not invoked")
	}
}
