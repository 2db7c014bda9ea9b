package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/mqtt"
)

// commandSource tags commands issued over MQTT.
const commandSource = "mqtt"

// defaultOutboxSize bounds publications waiting for the broker.
const defaultOutboxSize = 128

// MQTTClient is the subset of the MQTT client the bridge needs.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Engine is the subset of the base station engine the bridge drives.
type Engine interface {
	Enqueue(cmd basestation.Command) bool
	Snapshot() basestation.Snapshot
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds configuration for creating a bridge.
type Options struct {
	// Client is the connected MQTT client.
	Client MQTTClient

	// Engine receives inbound commands and provides device snapshots.
	Engine Engine

	// Topics builds the topic hierarchy. Zero value uses the default prefix.
	Topics mqtt.Topics

	// QoS for publications and subscriptions.
	QoS byte

	// OutboxSize bounds pending publications. Default: 128.
	OutboxSize int

	Logger Logger
}

type outbound struct {
	topic    string
	payload  []byte
	retained bool
}

// Bridge translates between engine notifications and MQTT topics.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	client MQTTClient
	engine Engine
	topics mqtt.Topics
	qos    byte
	logger Logger

	outbox chan outbound

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a bridge. Call Start to subscribe and begin publishing, and
// register the bridge with the engine via AddObserver.
func New(opts Options) (*Bridge, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	size := opts.OutboxSize
	if size <= 0 {
		size = defaultOutboxSize
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}
	topics := opts.Topics
	if topics.Prefix == "" {
		topics = mqtt.NewTopics("")
	}

	return &Bridge{
		client: opts.Client,
		engine: opts.Engine,
		topics: topics,
		qos:    opts.QoS,
		logger: logger,
		outbox: make(chan outbound, size),
	}, nil
}

// Start subscribes to the command topics, publishes the current state of
// every known device and starts the publisher goroutine.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("mqtt bridge already started")
	}

	if err := b.client.Subscribe(b.topics.ScanCommand(), b.qos, b.handleScanCommand); err != nil {
		return fmt.Errorf("subscribe to scan commands: %w", err)
	}
	if err := b.client.Subscribe(b.topics.AllPowerCommands(), b.qos, b.handlePowerCommand); err != nil {
		return fmt.Errorf("subscribe to power commands: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.started = true

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.publishLoop(runCtx)
	}()

	for _, d := range b.engine.Snapshot().Devices {
		b.enqueueState(d)
	}

	b.logger.Info("mqtt bridge started",
		"scan_topic", b.topics.ScanCommand(),
		"power_topic", b.topics.AllPowerCommands())
	return nil
}

// Stop unsubscribes from the command topics and waits for the publisher.
// Pending publications are discarded.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		cancel := b.cancel
		started := b.started
		b.mu.Unlock()
		if !started {
			return
		}

		for _, topic := range []string{b.topics.ScanCommand(), b.topics.AllPowerCommands()} {
			if err := b.client.Unsubscribe(topic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
				b.logger.Warn("mqtt unsubscribe failed", "topic", topic, "error", err)
			}
		}
		cancel()
		b.wg.Wait()
		b.logger.Info("mqtt bridge stopped")
	})
}

// Notify implements basestation.Observer. It never blocks: publications are
// dropped when the outbox is full.
func (b *Bridge) Notify(n basestation.Notification) {
	switch n.Type {
	case basestation.EventDeviceDiscovered, basestation.EventDeviceRenamed, basestation.EventPowerStateChanged:
		if d, ok := b.engine.Snapshot().Device(n.Address); ok {
			b.enqueueState(d)
		}
	}

	payload, err := json.Marshal(n)
	if err != nil {
		b.logger.Error("failed to encode notification", "type", n.Type, "error", err)
		return
	}
	b.enqueue(outbound{topic: b.topics.Event(string(n.Type)), payload: payload})
}

func (b *Bridge) enqueueState(d basestation.Device) {
	payload, err := json.Marshal(NewStateMessage(d))
	if err != nil {
		b.logger.Error("failed to encode device state", "address", d.Address, "error", err)
		return
	}
	b.enqueue(outbound{topic: b.topics.DeviceState(d.Address), payload: payload, retained: true})
}

func (b *Bridge) enqueue(msg outbound) {
	select {
	case b.outbox <- msg:
	default:
		b.logger.Warn("mqtt outbox full, dropping publication", "topic", msg.topic)
	}
}

func (b *Bridge) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.outbox:
			if err := b.client.Publish(msg.topic, msg.payload, b.qos, msg.retained); err != nil {
				b.logger.Debug("mqtt publish failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

// handleScanCommand queues a discovery restart. The payload is ignored.
func (b *Bridge) handleScanCommand(_ string, _ []byte) error {
	if !b.engine.Enqueue(basestation.RestartScan().WithSource(commandSource)) {
		return ErrQueueFull
	}
	b.logger.Info("scan restart requested", "source", commandSource)
	return nil
}

// handlePowerCommand queues a power state change for the address in topic.
func (b *Bridge) handlePowerCommand(topic string, payload []byte) error {
	address, ok := b.topics.ParsePowerCommand(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	target, id, err := parsePowerCommand(payload)
	if err != nil {
		return err
	}

	cmd := basestation.ChangePowerState(address, target).WithSource(commandSource)
	cmd.ID = id
	if !b.engine.Enqueue(cmd) {
		return ErrQueueFull
	}
	b.logger.Info("power change requested", "address", address, "target", target, "source", commandSource)
	return nil
}
