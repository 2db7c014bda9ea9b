package mqttbridge

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/mqtt"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type mockMQTT struct {
	mu          sync.Mutex
	published   []published
	handlers    map[string]mqtt.MessageHandler
	unsubscribe []string
	subErr      error
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{topic: topic, payload: payload, retained: retained})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return m.subErr
	}
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribe = append(m.unsubscribe, topic)
	delete(m.handlers, topic)
	return nil
}

func (m *mockMQTT) handler(topic string) mqtt.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[topic]
}

func (m *mockMQTT) find(topic string) (published, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].topic == topic {
			return m.published[i], true
		}
	}
	return published{}, false
}

type mockEngine struct {
	mu       sync.Mutex
	snapshot basestation.Snapshot
	commands []basestation.Command
	reject   bool
}

func (e *mockEngine) Enqueue(cmd basestation.Command) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reject {
		return false
	}
	e.commands = append(e.commands, cmd)
	return true
}

func (e *mockEngine) Snapshot() basestation.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

const testAddr = "AA:BB:CC:DD:EE:01"

func newTestBridge(t *testing.T) (*Bridge, *mockMQTT, *mockEngine) {
	t.Helper()
	client := newMockMQTT()
	engine := &mockEngine{snapshot: basestation.Snapshot{Devices: []basestation.Device{
		{Address: testAddr, Name: "LHB-1", PowerState: power.StateSleep},
	}}}
	b, err := New(Options{Client: client, Engine: engine, Topics: mqtt.NewTopics("lighthouse"), QoS: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return b, client, engine
}

func waitPublished(t *testing.T, client *mockMQTT, topic string) published {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p, ok := client.find(topic); ok {
			return p
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("nothing published on %s", topic)
	return published{}
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Options{Engine: &mockEngine{}}); err == nil {
		t.Error("New() without client: expected error")
	}
	if _, err := New(Options{Client: newMockMQTT()}); err == nil {
		t.Error("New() without engine: expected error")
	}
}

func TestStart_PublishesRetainedState(t *testing.T) {
	_, client, _ := newTestBridge(t)

	p := waitPublished(t, client, "lighthouse/state/"+testAddr)
	if !p.retained {
		t.Error("state publication not retained")
	}

	var msg StateMessage
	if err := json.Unmarshal(p.payload, &msg); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if msg.State != power.StateSleep || msg.Label != "Sleep" || msg.Name != "LHB-1" {
		t.Errorf("state message = %+v", msg)
	}
}

func TestStart_SubscribeError(t *testing.T) {
	client := newMockMQTT()
	client.subErr = mqtt.ErrNotConnected
	b, err := New(Options{Client: client, Engine: &mockEngine{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Start(t.Context()); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}

func TestNotify_PowerStateChanged(t *testing.T) {
	b, client, engine := newTestBridge(t)

	engine.mu.Lock()
	engine.snapshot.Devices[0].PowerState = power.StateOn
	engine.mu.Unlock()

	b.Notify(basestation.Notification{
		Type:     basestation.EventPowerStateChanged,
		Address:  testAddr,
		State:    power.StateOn,
		Previous: power.StateSleep,
	})

	event := waitPublished(t, client, "lighthouse/event/power_state_changed")
	if event.retained {
		t.Error("event publication retained")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p, _ := client.find("lighthouse/state/" + testAddr)
		var msg StateMessage
		if json.Unmarshal(p.payload, &msg) == nil && msg.State == power.StateOn {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("state topic never reflected the new power state")
}

func TestHandlePowerCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    power.Target
		wantID  string
		wantErr error
	}{
		{name: "bare target", payload: "sleep", want: power.TargetSleep},
		{name: "json target", payload: `{"state":"standby","id":"ha-1"}`, want: power.TargetStandby, wantID: "ha-1"},
		{name: "case and whitespace", payload: "  ON \n", want: power.TargetOn},
		{name: "unknown target", payload: "reboot", wantErr: ErrInvalidPayload},
		{name: "bad json", payload: `{"state":`, wantErr: ErrInvalidPayload},
		{name: "empty", payload: "", wantErr: ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client, engine := newTestBridge(t)
			handler := client.handler("lighthouse/command/+/power")
			if handler == nil {
				t.Fatal("power command handler not subscribed")
			}

			err := handler("lighthouse/command/"+testAddr+"/power", []byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("handler error = %v, want %v", err, tt.wantErr)
				}
				if len(engine.commands) != 0 {
					t.Errorf("commands queued = %d, want 0", len(engine.commands))
				}
				return
			}
			if err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if len(engine.commands) != 1 {
				t.Fatalf("commands queued = %d, want 1", len(engine.commands))
			}
			cmd := engine.commands[0]
			if cmd.Kind != basestation.CommandChangePowerState || cmd.Address != testAddr || cmd.Target != tt.want {
				t.Errorf("command = %+v", cmd)
			}
			if cmd.Source != commandSource || cmd.ID != tt.wantID {
				t.Errorf("command source/id = %q/%q", cmd.Source, cmd.ID)
			}
		})
	}
}

func TestHandleScanCommand(t *testing.T) {
	_, client, engine := newTestBridge(t)

	if err := client.handler("lighthouse/command/scan")("lighthouse/command/scan", nil); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if len(engine.commands) != 1 || engine.commands[0].Kind != basestation.CommandRestartScan {
		t.Errorf("commands = %+v, want one restart", engine.commands)
	}

	engine.mu.Lock()
	engine.reject = true
	engine.mu.Unlock()
	if err := client.handler("lighthouse/command/scan")("lighthouse/command/scan", nil); !errors.Is(err, ErrQueueFull) {
		t.Errorf("handler error = %v, want ErrQueueFull", err)
	}
}

func TestStop_Unsubscribes(t *testing.T) {
	b, client, _ := newTestBridge(t)
	b.Stop()
	b.Stop()

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.unsubscribe) != 2 {
		t.Errorf("unsubscribed = %v, want 2 topics", client.unsubscribe)
	}
}
