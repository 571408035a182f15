package serialmux

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// SimulatedPort is a SerialPorter whose input is produced by a generator,
// used to run the instrument without hardware.
type SimulatedPort struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	cancel context.CancelFunc

	mu      sync.Mutex
	written bytes.Buffer
}

// LineGenerator returns the lines a device would emit at t.
type LineGenerator func(t time.Time) []string

// NewSimulatedSerialMux returns a mux fed by gen every interval until Close.
func NewSimulatedSerialMux(name string, interval time.Duration, gen LineGenerator) *SerialMux[*SimulatedPort] {
	ctx, cancel := context.WithCancel(context.Background())
	r, w := io.Pipe()
	port := &SimulatedPort{r: r, w: w, cancel: cancel}

	go func() {
		defer w.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				for _, line := range gen(now) {
					if _, err := io.WriteString(w, line+"\n"); err != nil {
						return
					}
				}
			}
		}
	}()
	return NewSerialMux(name, port)
}

func (p *SimulatedPort) Read(b []byte) (int, error) { return p.r.Read(b) }

// Write records commands sent to the simulated device.
func (p *SimulatedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

// Written returns everything written to the port.
func (p *SimulatedPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func (p *SimulatedPort) Close() error {
	p.cancel()
	return p.r.Close()
}

// TestableSerialPort implements SerialPorter with scripted reads and
// captured writes.
type TestableSerialPort struct {
	mu sync.Mutex

	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer

	// WriteError is returned by the next Write call if set.
	WriteError error
	// CloseError is returned by Close if set.
	CloseError error
	Closed     bool

	// BlockReads makes Read wait for data or Close instead of returning EOF.
	BlockReads bool

	readCond *sync.Cond
}

// NewTestableSerialPort returns a port with empty buffers.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for t.BlockReads && !t.Closed && t.ReadBuffer.Len() == 0 {
		t.readCond.Wait()
	}
	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	return t.ReadBuffer.Read(p)
}

func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	return t.WriteBuffer.Write(p)
}

func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// AddReadData queues data for subsequent reads.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal()
}

// GetWrittenData returns everything written to the port.
func (t *TestableSerialPort) GetWrittenData() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.WriteBuffer.String()
}
