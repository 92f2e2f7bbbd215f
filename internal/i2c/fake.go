package i2c

import (
	"sync"
	"time"
)

// Transaction is one recorded bus write.
type Transaction struct {
	Addr uint16
	Data []byte
	At   time.Time
}

// FakeBus is a test double that records every transaction.
// Safe for concurrent use.
type FakeBus struct {
	mu sync.Mutex

	txs []Transaction

	// WriteError, if set, is returned by every write.
	WriteError error

	// FailAt, if > 0, makes the FailAt-th write (1-based) return FailError.
	FailAt    int
	FailError error

	// ReadData is copied into read buffers.
	ReadData []byte

	// Closed tracks if Close was called.
	Closed bool

	writes int
}

// NewFakeBus creates an empty FakeBus.
func NewFakeBus() *FakeBus {
	return &FakeBus{}
}

// Tx records the write part and serves reads from ReadData.
// Failed writes are recorded too: the bus saw the attempt.
func (f *FakeBus) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Closed {
		return ErrClosed
	}

	if len(w) > 0 {
		f.writes++
		data := make([]byte, len(w))
		copy(data, w)
		f.txs = append(f.txs, Transaction{Addr: addr, Data: data, At: time.Now()})

		if f.WriteError != nil {
			return f.WriteError
		}
		if f.FailAt > 0 && f.writes == f.FailAt {
			return f.FailError
		}
	}

	if len(r) > 0 {
		copy(r, f.ReadData)
	}
	return nil
}

// Transactions returns a copy of the recorded writes.
func (f *FakeBus) Transactions() []Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Transaction, len(f.txs))
	copy(out, f.txs)
	return out
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset clears recorded transactions and injected failures.
func (f *FakeBus) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.txs = nil
	f.writes = 0
	f.WriteError = nil
	f.FailAt = 0
	f.FailError = nil
	f.Closed = false
}
