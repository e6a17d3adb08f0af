package shtp

import "encoding/binary"

// tlv is one decoded advertisement entry.
type tlv struct {
	tag uint8
	val []byte
}

// parseTLVs walks a TLV-encoded advertisement cargo, calling fn for every
// entry. The advertisement's own leading response-code byte is not part of
// this stream; callers pass payload[1:].
func parseTLVs(payload []byte, fn func(tlv)) {
	cursor := 0
	for cursor+2 <= len(payload) {
		tag := payload[cursor]
		length := int(payload[cursor+1])
		cursor += 2
		if cursor+length > len(payload) {
			return
		}
		fn(tlv{tag: tag, val: payload[cursor : cursor+length]})
		cursor += length
	}
}

// processAdvertisement updates the app/channel registry from a RESP_ADVERTISE
// cargo and fans each entry out to the owning app's AdvertCallback.
func (t *Transport) processAdvertisement(payload []byte) {
	t.advertPhase = advertIdle

	var guid uint32
	var appName, chanName string
	var chanNo uint8
	var wake bool
	haveGUID := false

	deliver := func(tag uint8, val []byte) {
		if !haveGUID {
			return
		}
		name, ok := t.reg.appNameForGUID(guid)
		if !ok {
			return
		}
		for i := 0; i < t.reg.nextAppListener; i++ {
			l := &t.reg.appListeners[i]
			if l.appName == name && l.callback != nil {
				l.callback(l.cookie, tag, val)
				return
			}
		}
	}

	parseTLVs(payload[1:], func(e tlv) {
		switch e.tag {
		case tagNull:
			// reserved

		case tagGUID:
			deliver(tagNull, nil) // terminate previous app's stream
			guid = binary.LittleEndian.Uint32(e.val)
			haveGUID = true
			appName, chanName = "", ""

		case tagNormalChannel:
			chanNo = e.val[0]
			wake = false

		case tagWakeChannel:
			chanNo = e.val[0]
			wake = true

		case tagAppName:
			appName = string(e.val)
			t.reg.addApp(guid, appName)
			// App now has a name; let its listener see the GUID that was
			// pending since before addApp made the association possible.
			var guidBuf [4]byte
			binary.LittleEndian.PutUint32(guidBuf[:], guid)
			deliver(tagGUID, guidBuf[:])

		case tagChannelName:
			chanName = string(e.val)
			t.reg.addChannel(chanNo, guid, chanName, wake)

		case tagMaxCargoWrite:
			x := int(binary.LittleEndian.Uint16(e.val)) - HdrLen
			if x < MaxPayloadIn {
				t.outMaxPayload = x
			}

		case tagMaxCargoRead:
			// informational only, nothing to store

		case tagMaxTransferWrite:
			x := int(binary.LittleEndian.Uint16(e.val)) - HdrLen
			if x > 0 && x < t.hal.MaxTransfer()-HdrLen {
				t.outMaxTransfer = x
			}

		case tagMaxTransferRead:
			x := int(binary.LittleEndian.Uint16(e.val)) - HdrLen
			if x < t.hal.MaxTransfer()-HdrLen {
				t.inMaxTransfer = x
			}

		case tagSHTPVersion:
			t.version = string(e.val)
		}

		deliver(e.tag, e.val)
	})

	deliver(tagNull, nil)
}
