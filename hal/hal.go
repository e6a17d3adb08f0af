// Package hal declares the hardware adaptation layer that the shtp and sh2
// packages consume. Concrete byte-level link implementations (reset line,
// transmit, interrupt-driven receive) are external collaborators; this
// package only fixes the contract between them and the protocol core,
// mirroring sh2_hal.h's sh2_hal_reset/tx/rx/block/unblock quintet.
package hal

// RxCallback is invoked by an Interface implementation once per received
// transfer, with the 32-bit host timestamp (microseconds) captured at the
// moment the interrupt/assertion that produced the data was observed.
type RxCallback func(data []byte, hostTimestampUS uint32)

// Interface is the byte-level link to the hub. Exactly one goroutine drives
// Tx/Block (the API-calling context) and exactly one drives the RxCallback
// (the interrupt/receive context).
type Interface interface {
	// Reset the hub, into DFU mode if dfuMode is set, and register onRx for
	// subsequent received transfers. Must be called once before Tx or Rx.
	Reset(dfuMode bool, onRx RxCallback) error

	// Tx sends a single already-framed transfer. May return before the
	// transfer physically completes.
	Tx(data []byte) error

	// Rx blocks until len(buf) bytes have been read into buf. Only used by
	// the DFU transport, where the hub's ACK byte isn't delivered via onRx.
	Rx(buf []byte) error

	// Block suspends the calling goroutine until Unblock is called. Must not
	// lose a signal delivered before Block is entered (e.g. a buffered
	// channel of capacity 1, or a semaphore).
	Block() error

	// Unblock releases a goroutine parked in Block.
	Unblock() error

	// MaxTransfer is the largest transfer this link can carry in one Tx/Rx,
	// including the 4-byte SHTP header. The hub may advertise a smaller
	// value, which callers must honor instead.
	MaxTransfer() int
}
