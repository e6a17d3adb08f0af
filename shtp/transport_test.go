package shtp

import (
	"testing"

	"github.com/sh2labs/sh2drv/hal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeLink is a minimal in-memory hal.Interface: Tx appends to sent;
// Rx/Block/Unblock are never called by shtp itself.
type fakeLink struct {
	maxTransfer int
	sent        [][]byte
	onRx        hal.RxCallback
}

func (f *fakeLink) Reset(dfuMode bool, onRx hal.RxCallback) error {
	f.onRx = onRx
	return nil
}
func (f *fakeLink) Tx(data []byte) error {
	cp := append([]byte(nil), data...)
	f.sent = append(f.sent, cp)
	return nil
}
func (f *fakeLink) Rx(buf []byte) error  { return nil }
func (f *fakeLink) Block() error         { return nil }
func (f *fakeLink) Unblock() error       { return nil }
func (f *fakeLink) MaxTransfer() int     { return f.maxTransfer }

func newTestTransport(t *testing.T, maxTransfer int) (*Transport, *fakeLink) {
	t.Helper()
	link := &fakeLink{maxTransfer: maxTransfer}
	tr, err := New(link, logrus.New())
	require.NoError(t, err)
	return tr, link
}

// Scenario A-style: a payload that fits in one transfer is sent as a single
// non-continuation frame with the channel's current sequence number, which
// then advances by one.
func TestSendSingleFrame(t *testing.T) {
	tr, link := newTestTransport(t, 64)
	tr.reg.addApp(42, "acme")
	tr.reg.addChannel(2, 42, "data", false)

	require.NoError(t, tr.Send(2, []byte{0xAA, 0xBB}))
	require.Len(t, link.sent, 1)

	frame := link.sent[0]
	require.Equal(t, []byte{0x06, 0x00, 0x02, 0x00, 0xAA, 0xBB}, frame)
	require.EqualValues(t, 1, tr.reg.channels[2].nextOutSeq)
}

// Scenario B-style: a payload exceeding outMaxTransfer is split across
// multiple frames, each declaring its own real size, with continuation set
// on every frame after the first and sequence numbers incrementing.
func TestSendFragmentation(t *testing.T) {
	tr, link := newTestTransport(t, 8)
	tr.reg.addApp(7, "acme")
	tr.reg.addChannel(1, 7, "data", false)

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	require.NoError(t, tr.Send(1, payload))

	require.Len(t, link.sent, 3)

	h0 := decodeHeader(link.sent[0])
	require.False(t, h0.continuation)
	require.EqualValues(t, 0, h0.seq)
	require.Equal(t, []byte{1, 2, 3, 4}, link.sent[0][HdrLen:])

	h1 := decodeHeader(link.sent[1])
	require.True(t, h1.continuation)
	require.EqualValues(t, 1, h1.seq)
	require.Equal(t, []byte{5, 6, 7, 8}, link.sent[1][HdrLen:])

	h2 := decodeHeader(link.sent[2])
	require.True(t, h2.continuation)
	require.EqualValues(t, 2, h2.seq)
	require.Equal(t, []byte{9, 10}, link.sent[2][HdrLen:])
}

// Scenario C-style: reassembly across two fragments delivers one cargo
// equal to the concatenation of the fragments' payload bytes.
func TestReassembly(t *testing.T) {
	tr, _ := newTestTransport(t, 64)
	tr.reg.addApp(3, "acme")
	tr.reg.addChannel(3, 3, "data", false)

	var got []byte
	var gotTS uint32
	tr.reg.addChanListener("acme", "data", func(cookie any, payload []byte, ts uint32) {
		got = payload
		gotTS = ts
	}, nil)

	frag1 := []byte{0x0A, 0x00, 0x03, 0x00, 0xA0, 0xB0, 0xC0, 0xD0, 0xE0, 0xF0}
	frag2 := []byte{0x08, 0x80, 0x03, 0x01, 0x11, 0x22, 0x33, 0x44}

	tr.handleRx(frag1, 1000)
	require.Nil(t, got, "cargo must not deliver before the continuation fragment arrives")

	tr.handleRx(frag2, 2000)
	require.Equal(t, []byte{0xA0, 0xB0, 0xC0, 0xD0, 0xE0, 0xF0, 0x11, 0x22, 0x33, 0x44}, got)
	require.EqualValues(t, 2000, gotTS)
}

func TestReassemblyMismatchedSeqDropsAndRestarts(t *testing.T) {
	tr, _ := newTestTransport(t, 64)
	tr.reg.addApp(3, "acme")
	tr.reg.addChannel(3, 3, "data", false)

	var got []byte
	tr.reg.addChanListener("acme", "data", func(cookie any, payload []byte, ts uint32) {
		got = payload
	}, nil)

	frag1 := []byte{0x0A, 0x00, 0x03, 0x00, 0xA0, 0xB0, 0xC0, 0xD0, 0xE0, 0xF0}
	tr.handleRx(frag1, 0)

	// Seq doesn't match (5 instead of 1): discard in-progress assembly and
	// treat this as a fresh, complete single-fragment cargo.
	fresh := []byte{0x06, 0x00, 0x03, 0x05, 0x99, 0x98}
	tr.handleRx(fresh, 0)

	require.Equal(t, []byte{0x99, 0x98}, got)
}

// A continuation fragment with no assembly in progress (spec.md §4.1 step 6
// "if continuation, drop silently") must not seed a bogus new assembly from
// its own bytes.
func TestStrayContinuationDropped(t *testing.T) {
	tr, _ := newTestTransport(t, 64)
	tr.reg.addApp(3, "acme")
	tr.reg.addChannel(3, 3, "data", false)

	var got []byte
	tr.reg.addChanListener("acme", "data", func(cookie any, payload []byte, ts uint32) {
		got = payload
	}, nil)

	stray := []byte{0x08, 0x80, 0x03, 0x05, 0x11, 0x22, 0x33, 0x44}
	tr.handleRx(stray, 0)
	require.Nil(t, got, "a stray continuation must not start a new assembly")

	fresh := []byte{0x06, 0x00, 0x03, 0x05, 0x99, 0x98}
	tr.handleRx(fresh, 0)
	require.Equal(t, []byte{0x99, 0x98}, got, "a later non-continuation fragment must still parse correctly")
}

// MAX_TRANSFER_WRITE (and the other advertised 2-byte caps) are little-endian
// on the wire, matching the GUID tag and original_source/sh2_util.c's readu16.
func TestAdvertMaxTransferWriteIsLittleEndian(t *testing.T) {
	tr, _ := newTestTransport(t, 300)
	defaultOut := tr.outMaxTransfer

	// tag=4 (MAX_TRANSFER_WRITE), len=2, value=0x0100 little-endian -> 256.
	advert := []byte{respAdvertise, tagMaxTransferWrite, 2, 0x00, 0x01}
	tr.processAdvertisement(advert)

	require.EqualValues(t, 256-HdrLen, tr.outMaxTransfer)
	require.NotEqual(t, defaultOut, tr.outMaxTransfer)
}

func TestBadRxChanCounted(t *testing.T) {
	tr, _ := newTestTransport(t, 64)
	tr.handleRx([]byte{0x05, 0x00, 0xFF, 0x00, 0x01}, 0)
	require.EqualValues(t, 1, tr.Counters.BadRxChan)
}

func TestShortFragmentCounted(t *testing.T) {
	tr, _ := newTestTransport(t, 64)
	tr.handleRx([]byte{0x01, 0x00, 0x00}, 0)
	require.EqualValues(t, 1, tr.Counters.ShortFragments)
}

// A channel's callback is re-derived whenever the app, channel, or listener
// tables change, regardless of the order those three registrations happen in.
func TestChannelCallbackRebindsOnLateListener(t *testing.T) {
	tr, _ := newTestTransport(t, 64)
	tr.reg.addApp(9, "acme")
	tr.reg.addChannel(4, 9, "telemetry", false)

	require.Nil(t, tr.reg.channels[4].callback)

	var called bool
	tr.reg.addChanListener("acme", "telemetry", func(cookie any, payload []byte, ts uint32) {
		called = true
	}, nil)

	require.NotNil(t, tr.reg.channels[4].callback)
	tr.reg.channels[4].callback(tr.reg.channels[4].cookie, []byte{1}, 0)
	require.True(t, called)
}

func TestBadTxChanRejected(t *testing.T) {
	tr, _ := newTestTransport(t, 64)
	err := tr.Send(5, []byte{1})
	require.Error(t, err)
	require.EqualValues(t, 1, tr.Counters.BadTxChan)
}
