// Package mqtttest runs an in-process MQTT broker for tests.
//
// The broker accepts any client on a loopback TCP port and is closed
// automatically when the test ends:
//
//	b := mqtttest.NewBroker(t)
//	cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port = b.Host(), b.Port()
package mqtttest

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// Broker is an embedded mochi-mqtt server listening on 127.0.0.1.
type Broker struct {
	server    *mochi.Server
	host      string
	port      int
	closeOnce sync.Once
}

// NewBroker starts a broker on a free loopback port.
func NewBroker(t testing.TB) *Broker {
	t.Helper()

	port, err := freePort()
	if err != nil {
		t.Fatalf("mqtttest: finding free port: %v", err)
	}

	server := mochi.New(&mochi.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("mqtttest: adding auth hook: %v", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "mqtttest",
		Address: fmt.Sprintf("127.0.0.1:%d", port),
	})
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("mqtttest: adding listener: %v", err)
	}
	if err := server.Serve(); err != nil {
		t.Fatalf("mqtttest: serving: %v", err)
	}

	b := &Broker{server: server, host: "127.0.0.1", port: port}
	t.Cleanup(b.Close)
	return b
}

// Host returns the broker host.
func (b *Broker) Host() string { return b.host }

// Port returns the broker TCP port.
func (b *Broker) Port() int { return b.port }

// URL returns the broker address as an mqtt:// URL.
func (b *Broker) URL() string {
	return fmt.Sprintf("mqtt://%s:%d", b.host, b.port)
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	return b.server.Clients.Len()
}

// WaitForClients blocks until at least n clients are connected or the
// timeout passes, and reports whether they arrived.
func (b *Broker) WaitForClients(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.ClientCount() >= n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// Close stops the broker and drops every client connection. Safe to call
// more than once.
func (b *Broker) Close() {
	b.closeOnce.Do(func() {
		_ = b.server.Close()
	})
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
