package relay

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/stimulus/internal/infrastructure/mqtt"
	"github.com/nerrad567/stimulus/internal/router"
)

const testFilter = "dev/pcu/uuid/+/in/sw/+"

// mockMQTTClient implements MQTTClient for testing.
type mockMQTTClient struct {
	mu             sync.Mutex
	published      []mockPublish
	subscriptions  []mockSubscription
	unsubscribed   []string
	handlers       map[string]mqtt.MessageHandler
	connected      bool
	subscribeErr   error
	publishErr     error
	deliveryErr    error
	unsubscribeErr error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func newMockMQTTClient() *mockMQTTClient {
	return &mockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *mockMQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubscribeErr != nil {
		return m.unsubscribeErr
	}
	m.unsubscribed = append(m.unsubscribed, topic)
	delete(m.handlers, topic)
	return nil
}

// Publish reports deliveryErr through done before returning, standing in
// for the broker's acknowledgement.
func (m *mockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool, done mqtt.PublishDone) error {
	m.mu.Lock()
	if m.publishErr != nil {
		m.mu.Unlock()
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	deliveryErr := m.deliveryErr
	m.mu.Unlock()

	if done != nil {
		done(deliveryErr)
	}
	return nil
}

func (m *mockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// deliver simulates the broker delivering msg to the handler for filter.
func (m *mockMQTTClient) deliver(t *testing.T, filter string, msg mqtt.Message) {
	t.Helper()
	m.mu.Lock()
	handler, ok := m.handlers[filter]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no handler subscribed for %s", filter)
	}
	if err := handler(msg); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
}

func (m *mockMQTTClient) getPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

// mockRecorder implements Recorder for testing.
type mockRecorder struct {
	mu      sync.Mutex
	records []mockRecord
}

type mockRecord struct {
	Outcome      string
	Device       string
	Peripheral   string
	PayloadBytes int
}

func (r *mockRecorder) WriteRouteOutcome(outcome, device, peripheral string, payloadBytes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, mockRecord{
		Outcome:      outcome,
		Device:       device,
		Peripheral:   peripheral,
		PayloadBytes: payloadBytes,
	})
}

func (r *mockRecorder) get() []mockRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mockRecord(nil), r.records...)
}

// mockLogger records log calls by level.
type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	Level string
	Msg   string
	Args  []any
}

func (l *mockLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{Level: level, Msg: msg, Args: args})
}

func (l *mockLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *mockLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *mockLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *mockLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Level == level && e.Msg == msg {
			n++
		}
	}
	return n
}

func newTestRelay(t *testing.T, client *mockMQTTClient, logger *mockLogger, recorder Recorder) *Relay {
	t.Helper()
	opts := Options{
		Client:   client,
		Router:   router.New(router.DefaultRule),
		Filter:   testFilter,
		QoS:      1,
		Recorder: recorder,
	}
	if logger != nil {
		opts.Router = router.New(router.DefaultRule, router.WithLogger(logger))
		opts.Logger = logger
	}
	r, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return r
}

func TestNew_Validation(t *testing.T) {
	client := newMockMQTTClient()
	rt := router.New(router.DefaultRule)

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{name: "missing client", opts: Options{Router: rt, Filter: testFilter}, want: ErrClientRequired},
		{name: "missing router", opts: Options{Client: client, Filter: testFilter}, want: ErrRouterRequired},
		{name: "missing filter", opts: Options{Client: client, Router: rt}, want: ErrFilterRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStart_Subscribes(t *testing.T) {
	client := newMockMQTTClient()
	logger := &mockLogger{}
	r := newTestRelay(t, client, logger, nil)

	if len(client.subscriptions) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(client.subscriptions))
	}
	if client.subscriptions[0] != (mockSubscription{Topic: testFilter, QoS: 1}) {
		t.Errorf("subscription = %+v", client.subscriptions[0])
	}
	if r.Filter() != testFilter {
		t.Errorf("Filter() = %q, want %q", r.Filter(), testFilter)
	}
	if logger.count("info", "relay started") != 1 {
		t.Error("expected one 'relay started' log")
	}
}

func TestStart_SubscribeError(t *testing.T) {
	client := newMockMQTTClient()
	client.subscribeErr = mqtt.ErrNotConnected

	r, err := New(Options{Client: client, Router: router.New(router.DefaultRule), Filter: testFilter})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = r.Start(context.Background())
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}

	r.Stop()
	if len(client.unsubscribed) != 0 {
		t.Error("Stop() after failed Start should not unsubscribe")
	}
}

func TestHandleMessage_Relays(t *testing.T) {
	client := newMockMQTTClient()
	logger := &mockLogger{}
	r := newTestRelay(t, client, logger, nil)

	client.deliver(t, testFilter, mqtt.Message{
		Topic:   "dev/pcu/uuid/1234-5678/in/sw/3",
		Payload: []byte("1"),
		QoS:     1,
	})

	pubs := client.getPublished()
	if len(pubs) != 1 {
		t.Fatalf("published = %d, want 1", len(pubs))
	}
	want := mockPublish{Topic: "dev/pcu/uuid/1234-5678/out/led/3", Payload: []byte("1"), QoS: 1, Retained: false}
	if pubs[0].Topic != want.Topic || !bytes.Equal(pubs[0].Payload, want.Payload) || pubs[0].QoS != want.QoS || pubs[0].Retained {
		t.Errorf("published = %+v, want %+v", pubs[0], want)
	}

	m := r.GetMetrics()
	if m.Received != 1 || m.Relayed != 1 || m.Ignored != 0 || m.Malformed != 0 {
		t.Errorf("metrics = %+v", m)
	}
	if logger.count("info", "message received") != 1 {
		t.Error("expected one 'message received' log")
	}
}

func TestHandleMessage_PassesInboundQoS(t *testing.T) {
	for _, qos := range []byte{0, 1, 2} {
		client := newMockMQTTClient()
		newTestRelay(t, client, nil, nil)

		client.deliver(t, testFilter, mqtt.Message{
			Topic:   "dev/pcu/uuid/ab/in/sw/0",
			Payload: []byte("0"),
			QoS:     qos,
		})

		pubs := client.getPublished()
		if len(pubs) != 1 || pubs[0].QoS != qos {
			t.Errorf("inbound qos %d: published = %+v", qos, pubs)
		}
	}
}

func TestHandleMessage_BinaryPayload(t *testing.T) {
	client := newMockMQTTClient()
	newTestRelay(t, client, nil, nil)

	payload := []byte{0x00, 0xff, 0x7f, 0x80}
	client.deliver(t, testFilter, mqtt.Message{Topic: "dev/pcu/uuid/ab/in/sw/1", Payload: payload})

	pubs := client.getPublished()
	if len(pubs) != 1 || !bytes.Equal(pubs[0].Payload, payload) {
		t.Errorf("published = %+v, want payload %v", pubs, payload)
	}
}

func TestHandleMessage_Ignored(t *testing.T) {
	client := newMockMQTTClient()
	logger := &mockLogger{}
	r := newTestRelay(t, client, logger, nil)

	client.deliver(t, testFilter, mqtt.Message{Topic: "dev/pcu/uuid/ab/in/temp/1", Payload: []byte("21.5")})

	if len(client.getPublished()) != 0 {
		t.Error("ignored message should not be published")
	}
	m := r.GetMetrics()
	if m.Received != 1 || m.Ignored != 1 || m.Relayed != 0 {
		t.Errorf("metrics = %+v", m)
	}
	if logger.count("info", "message received") != 1 {
		t.Error("valid topic should still be logged as received")
	}
	if logger.count("warn", "invalid topic format") != 0 {
		t.Error("ignored message should not log a warning")
	}
}

func TestHandleMessage_Malformed(t *testing.T) {
	client := newMockMQTTClient()
	logger := &mockLogger{}
	r := newTestRelay(t, client, logger, nil)

	client.deliver(t, testFilter, mqtt.Message{Topic: "dev/pcu/uuid/XYZ/in/sw/1", Payload: []byte("1")})

	if len(client.getPublished()) != 0 {
		t.Error("malformed message should not be published")
	}
	m := r.GetMetrics()
	if m.Received != 1 || m.Malformed != 1 {
		t.Errorf("metrics = %+v", m)
	}
	if logger.count("warn", "invalid topic format") != 1 {
		t.Error("expected one 'invalid topic format' warning")
	}
	if logger.count("info", "message received") != 0 {
		t.Error("malformed message should only log the warning")
	}
}

func TestHandleMessage_PublishError(t *testing.T) {
	client := newMockMQTTClient()
	client.publishErr = mqtt.ErrNotConnected
	logger := &mockLogger{}
	r := newTestRelay(t, client, logger, nil)

	client.deliver(t, testFilter, mqtt.Message{Topic: "dev/pcu/uuid/ab/in/sw/1", Payload: []byte("1")})
	client.deliver(t, testFilter, mqtt.Message{Topic: "dev/pcu/uuid/ab/in/sw/2", Payload: []byte("1")})

	m := r.GetMetrics()
	if m.PublishErrors != 2 {
		t.Errorf("PublishErrors = %d, want 2", m.PublishErrors)
	}
	if logger.count("error", "failed to publish relayed message") != 2 {
		t.Error("expected two publish error logs")
	}
}

func TestHandleMessage_DeliveryError(t *testing.T) {
	client := newMockMQTTClient()
	client.deliveryErr = mqtt.ErrPublishFailed
	logger := &mockLogger{}
	r := newTestRelay(t, client, logger, nil)

	client.deliver(t, testFilter, mqtt.Message{Topic: "dev/pcu/uuid/ab/in/sw/1", Payload: []byte("1"), QoS: 1})

	m := r.GetMetrics()
	if m.Relayed != 1 || m.PublishErrors != 1 {
		t.Errorf("Relayed = %d, PublishErrors = %d, want 1 and 1", m.Relayed, m.PublishErrors)
	}
	if logger.count("error", "failed to publish relayed message") != 1 {
		t.Error("expected one publish error log")
	}
	if logger.count("debug", "message relayed") != 0 {
		t.Error("failed delivery should not log message relayed")
	}
}

func TestHandleMessage_Recorder(t *testing.T) {
	client := newMockMQTTClient()
	recorder := &mockRecorder{}
	newTestRelay(t, client, nil, recorder)

	client.deliver(t, testFilter, mqtt.Message{Topic: "dev/pcu/uuid/ab/in/sw/1", Payload: []byte("1")})
	client.deliver(t, testFilter, mqtt.Message{Topic: "dev/pcu/uuid/ab/in/temp/1", Payload: []byte("21.5")})
	client.deliver(t, testFilter, mqtt.Message{Topic: "garbage", Payload: nil})

	got := recorder.get()
	want := []mockRecord{
		{Outcome: "relayed", Device: "pcu", Peripheral: "sw", PayloadBytes: 1},
		{Outcome: "ignored", Device: "pcu", Peripheral: "temp", PayloadBytes: 4},
		{Outcome: "malformed", Device: "", Peripheral: "", PayloadBytes: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("records = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestStop_Unsubscribes(t *testing.T) {
	client := newMockMQTTClient()
	logger := &mockLogger{}
	r := newTestRelay(t, client, logger, nil)

	r.Stop()
	r.Stop()

	if len(client.unsubscribed) != 1 || client.unsubscribed[0] != testFilter {
		t.Errorf("unsubscribed = %v, want [%s]", client.unsubscribed, testFilter)
	}
	if logger.count("info", "relay stopped") != 1 {
		t.Error("expected one 'relay stopped' log")
	}
}

func TestStop_Disconnected(t *testing.T) {
	client := newMockMQTTClient()
	r := newTestRelay(t, client, nil, nil)
	client.connected = false

	r.Stop()

	if len(client.unsubscribed) != 0 {
		t.Error("Stop() should not unsubscribe when disconnected")
	}
}

func TestStop_UnsubscribeError(t *testing.T) {
	client := newMockMQTTClient()
	client.unsubscribeErr = mqtt.ErrNotConnected
	logger := &mockLogger{}
	r := newTestRelay(t, client, logger, nil)

	r.Stop()

	if logger.count("error", "failed to unsubscribe") != 1 {
		t.Error("expected unsubscribe failure to be logged")
	}
}

func TestGetMetrics_Filter(t *testing.T) {
	r, err := New(Options{Client: newMockMQTTClient(), Router: router.New(router.DefaultRule), Filter: testFilter})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	m := r.GetMetrics()
	if m.Filter != testFilter || m.Received != 0 {
		t.Errorf("GetMetrics() = %+v", m)
	}
}

func TestHandleMessage_Concurrent(t *testing.T) {
	client := newMockMQTTClient()
	r := newTestRelay(t, client, &mockLogger{}, &mockRecorder{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = r.handleMessage(mqtt.Message{Topic: "dev/pcu/uuid/ab/in/sw/1", Payload: []byte("1")})
			}
		}()
	}
	wg.Wait()

	m := r.GetMetrics()
	if m.Received != 500 || m.Relayed != 500 {
		t.Errorf("metrics = %+v, want 500 received and relayed", m)
	}
	if len(client.getPublished()) != 500 {
		t.Errorf("published = %d, want 500", len(client.getPublished()))
	}
}
