// Package shtp implements the Sensor Hub Transport Protocol: a fragmenting,
// multiplexing link layer over a single byte-oriented HAL connection to a
// sensor-hub coprocessor. Callers bind named (app, channel) pairs to
// callbacks; shtp handles reassembly, sequencing, and the advertisement
// handshake that resolves those names to on-wire channel numbers.
package shtp

import (
	"sync"

	"github.com/sh2labs/sh2drv/hal"
	"github.com/sh2labs/sh2drv/sh2err"
	"github.com/sirupsen/logrus"
)

// Counters tracks the diagnostic totals described for SHTP: malformed or
// oversized traffic that was dropped rather than delivered.
type Counters struct {
	TooLargePayloads uint32
	TxDiscards       uint32
	ShortFragments   uint32
	BadRxChan        uint32
	BadTxChan        uint32
}

// Transport is one SHTP link bound to a single hal.Interface.
type Transport struct {
	hal hal.Interface
	log *logrus.Entry

	mu  sync.Mutex // serializes Send against itself; Rx runs on its own goroutine
	reg *registry

	outMaxPayload  int // largest cargo Send will accept
	outMaxTransfer int
	inMaxTransfer  int
	version        string
	advertPhase    advertPhase

	// in-progress receive reassembly; touched only from the HAL's rx callback.
	inChan    uint8
	inSeq     uint8
	inPayload []byte
	inActive  bool

	Counters Counters
}

// New builds a Transport over link and performs the HAL reset. It does not
// solicit an advertisement; Service does that.
func New(link hal.Interface, log *logrus.Logger) (*Transport, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	t := &Transport{
		hal:            link,
		log:            log.WithField("pkg", "shtp"),
		reg:            newRegistry(),
		outMaxPayload:  MaxPayloadIn,
		outMaxTransfer: link.MaxTransfer() - HdrLen,
		inMaxTransfer:  link.MaxTransfer() - HdrLen,
		advertPhase:    advertNeeded,
		inPayload:      make([]byte, 0, MaxPayloadIn),
	}

	t.reg.addApp(guidSHTP, appNameSHTP)
	t.reg.addChannel(chanCommand, guidSHTP, chanNameCmd, false)
	t.reg.addChanListener(appNameSHTP, chanNameCmd, t.onCommandChannel, nil)
	t.reg.addAppListener(appNameSHTP, t.onSHTPAdvert, nil)

	if err := link.Reset(false, t.handleRx); err != nil {
		return nil, sh2err.Wrap(sh2err.IO, err)
	}

	return t, nil
}

// ListenAdvert registers cb to receive every TLV tag advertised by appName,
// including a synthetic (tag 0, nil) call marking the end of that app's
// portion of each advertisement round.
func (t *Transport) ListenAdvert(appName string, cb AdvertCallback, cookie any) {
	t.reg.addAppListener(appName, cb, cookie)
}

// ListenChan binds cb to deliveries on (appName, chanName), once that
// channel has been resolved by an advertisement round.
func (t *Transport) ListenChan(appName, chanName string, cb Callback, cookie any) {
	t.reg.addChanListener(appName, chanName, cb, cookie)
}

// ChanNo resolves (appName, chanName) to its on-wire channel number.
func (t *Transport) ChanNo(appName, chanName string) (uint8, bool) {
	return t.reg.chanNo(appName, chanName)
}

// Service solicits a fresh advertisement round if one hasn't been requested
// yet. Callers should invoke it once after New; once a round has been
// requested, later calls return nil without sending anything.
func (t *Transport) Service() error {
	if t.advertPhase != advertNeeded {
		return nil
	}
	t.advertPhase = advertRequested
	return t.Send(chanCommand, []byte{cmdAdvertiseAll, 0})
}

// Send fragments payload and transmits it on chanNo. Payload must not exceed
// outMaxPayload, the limit last negotiated via advertisement.
func (t *Transport) Send(chanNo uint8, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(chanNo) >= MaxChans || !t.reg.channels[chanNo].live() && chanNo != chanCommand {
		t.Counters.BadTxChan++
		return sh2err.New(sh2err.BadParam)
	}
	if len(payload) > t.outMaxPayload {
		return sh2err.New(sh2err.BadParam)
	}

	c := &t.reg.channels[chanNo]
	buf := make([]byte, HdrLen+t.outMaxTransfer)

	cursor := 0
	remaining := len(payload)
	for {
		n := minInt(remaining, t.outMaxTransfer)
		more := n < remaining

		encodeHeader(buf, header{
			length:       uint16(n + HdrLen),
			continuation: more,
			channel:      chanNo,
			seq:          c.nextOutSeq,
		})
		copy(buf[HdrLen:], payload[cursor:cursor+n])
		c.nextOutSeq++

		if err := t.hal.Tx(buf[:HdrLen+n]); err != nil {
			t.Counters.TxDiscards++
			return sh2err.Wrap(sh2err.IO, err)
		}

		cursor += n
		remaining -= n
		if !more {
			return nil
		}
	}
}

// handleRx is the hal.RxCallback registered with the link. Exactly one
// goroutine is expected to call it (spec's single-rx-context discipline);
// it reassembles fragmented cargos and dispatches completed ones to the
// owning channel's callback.
func (t *Transport) handleRx(data []byte, timestampUS uint32) {
	if len(data) < HdrLen {
		t.Counters.ShortFragments++
		return
	}
	h := decodeHeader(data)
	if int(h.length) < HdrLen {
		t.Counters.ShortFragments++
		return
	}
	if int(h.channel) >= MaxChans {
		// Channels beyond the highest live listener index fall through to the
		// nil-callback drop below instead of being counted here; only the
		// out-of-table case is a hard reject.
		t.Counters.BadRxChan++
		return
	}

	if t.inActive && (h.channel != t.inChan || h.seq != t.inSeq) {
		// Doesn't match what we were assembling; discard it. A non-continuation
		// fragment below still gets to start fresh; a continuation is dropped,
		// since it can't belong to an assembly we no longer have.
		t.inActive = false
		t.inPayload = t.inPayload[:0]
	}

	fragPayload := data[HdrLen:minInt(len(data), int(h.length))]

	if !t.inActive {
		if h.continuation {
			// Continuation of an assembly we don't have (or just discarded
			// for a seq/channel mismatch); drop it silently.
			return
		}
		if len(fragPayload)+HdrLen > MaxPayloadIn+HdrLen {
			t.Counters.TooLargePayloads++
			return
		}
		t.inChan = h.channel
		t.inPayload = append(t.inPayload[:0], fragPayload...)
	} else {
		if len(t.inPayload)+len(fragPayload) > MaxPayloadIn {
			t.Counters.TooLargePayloads++
			t.inActive = false
			t.inPayload = t.inPayload[:0]
			return
		}
		t.inPayload = append(t.inPayload, fragPayload...)
	}
	t.inSeq = h.seq + 1

	if h.continuation {
		t.inActive = true
		return
	}
	t.inActive = false

	c := &t.reg.channels[h.channel]
	c.nextInSeq = t.inSeq
	payload := append([]byte(nil), t.inPayload...)
	t.inPayload = t.inPayload[:0]

	if c.callback != nil {
		c.callback(c.cookie, payload, timestampUS)
	} else {
		t.log.WithField("chan", h.channel).Debug("dropping cargo, no channel listener bound yet")
	}
}

// onCommandChannel is the SHTP app's own command-channel listener; it
// recognizes RESP_ADVERTISE and routes it to processAdvertisement.
func (t *Transport) onCommandChannel(cookie any, payload []byte, timestampUS uint32) {
	if len(payload) == 0 {
		return
	}
	switch payload[0] {
	case respAdvertise:
		t.processAdvertisement(payload)
	default:
		t.log.WithField("resp", payload[0]).Debug("unrecognized command-channel response")
	}
}

// onSHTPAdvert handles advertisement TLV tags belonging to the SHTP app
// itself (MAX_CARGO/MAX_TRANSFER/VERSION), rather than a particular
// application channel.
func (t *Transport) onSHTPAdvert(cookie any, tag uint8, val []byte) {
	// Tag-specific handling already happens inline in processAdvertisement
	// since it needs direct access to Transport fields; this listener exists
	// so the SHTP app is represented uniformly in the appListener table.
}
