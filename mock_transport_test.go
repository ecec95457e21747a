package flowercare

import (
	"context"
	"fmt"
	"testing"
)

// charWrite is one recorded characteristic write.
type charWrite struct {
	uuid string
	data []byte
}

// mockConn scripts characteristic reads and records writes, keyed by UUID.
type mockConn struct {
	reads       map[string][][]byte // successive read payloads per UUID
	readErr     map[string]error
	writeErr    map[string]error
	writes      []charWrite
	disconnects int
}

func newMockConn() *mockConn {
	return &mockConn{
		reads:    make(map[string][][]byte),
		readErr:  make(map[string]error),
		writeErr: make(map[string]error),
	}
}

// queueRead appends a payload returned by the next read of uuid.
func (c *mockConn) queueRead(uuid string, data []byte) {
	c.reads[uuid] = append(c.reads[uuid], data)
}

func (c *mockConn) ReadCharacteristic(uuid string) ([]byte, error) {
	if err := c.readErr[uuid]; err != nil {
		return nil, err
	}
	queue := c.reads[uuid]
	if len(queue) == 0 {
		return nil, fmt.Errorf("mock: no queued read for %s", uuid)
	}
	data := queue[0]
	c.reads[uuid] = queue[1:]
	return data, nil
}

func (c *mockConn) WriteCharacteristic(uuid string, data []byte) error {
	if err := c.writeErr[uuid]; err != nil {
		return err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, charWrite{uuid: uuid, data: cp})
	return nil
}

func (c *mockConn) Disconnect() error {
	c.disconnects++
	return nil
}

// writesTo returns the payloads written to one characteristic, in order.
func (c *mockConn) writesTo(uuid string) [][]byte {
	var out [][]byte
	for _, w := range c.writes {
		if w.uuid == uuid {
			out = append(out, w.data)
		}
	}
	return out
}

// mockTransport replays scripted advertisements and hands out one
// scripted connection.
type mockTransport struct {
	advs       []Advertisement
	scanErr    error
	conn       *mockConn
	connectErr error
}

func newMockTransport() *mockTransport {
	return &mockTransport{conn: newMockConn()}
}

func (t *mockTransport) Enable() error { return nil }

func (t *mockTransport) Scan(ctx context.Context, onAdv func(Advertisement)) error {
	if t.scanErr != nil {
		return t.scanErr
	}
	for _, adv := range t.advs {
		if ctx.Err() != nil {
			return nil
		}
		onAdv(adv)
	}
	<-ctx.Done()
	return nil
}

func (t *mockTransport) Connect(ctx context.Context, address string) (Conn, error) {
	if t.connectErr != nil {
		return nil, t.connectErr
	}
	return t.conn, nil
}

func TestMockTransportImplementsInterface(t *testing.T) {
	var _ Transport = (*mockTransport)(nil)
}

func TestMockConnImplementsInterface(t *testing.T) {
	var _ Conn = (*mockConn)(nil)
}
