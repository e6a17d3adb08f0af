package shtp

// AdvertCallback receives one TLV entry (tag, value) per call during
// advertisement processing for the app it was registered against, followed
// by a synthetic (tag=0, len=0) terminator call when that app's portion of
// the stream ends.
type AdvertCallback func(cookie any, tag uint8, val []byte)

// Callback delivers one fully reassembled cargo on a bound channel.
type Callback func(cookie any, payload []byte, timestampUS uint32)

type app struct {
	guid uint32
	name string
}

type appListener struct {
	appName  string
	callback AdvertCallback
	cookie   any
}

type channel struct {
	guid       uint32
	name       string
	wake       bool
	nextOutSeq uint8
	nextInSeq  uint8
	callback   Callback
	cookie     any
}

func (c *channel) live() bool { return c.guid != guidUnused }

type chanListener struct {
	appName  string
	chanName string
	callback Callback
	cookie   any
}

// registry holds the apps/channels/listener tables. All mutation happens
// on the receive context (advertisement processing) or during Init; Send
// only reads it.
type registry struct {
	apps     [MaxApps]app
	nextApp  int
	channels [MaxChans]channel

	appListeners     [MaxApps]appListener
	nextAppListener  int
	chanListeners    [MaxChans]chanListener
	nextChanListener int
}

func newRegistry() *registry {
	r := &registry{}
	for i := range r.apps {
		r.apps[i].guid = guidUnused
	}
	for i := range r.channels {
		r.channels[i].guid = guidUnused
	}
	return r
}

// addApp registers guid/name once, idempotently, and re-derives channel
// callbacks. Silently drops the app if the table is full, matching the C
// "bail out if no space" behavior.
func (r *registry) addApp(guid uint32, name string) {
	for i := 0; i < r.nextApp; i++ {
		if r.apps[i].guid == guid {
			return
		}
	}
	if r.nextApp >= MaxApps {
		return
	}
	r.apps[r.nextApp] = app{guid: guid, name: name}
	r.nextApp++
	r.updateCallbacks()
}

func (r *registry) addChannel(chanNo uint8, guid uint32, name string, wake bool) {
	if int(chanNo) >= MaxChans {
		return
	}
	c := &r.channels[chanNo]
	c.guid = guid
	c.name = name
	c.wake = wake
	c.nextOutSeq = 0
	c.nextInSeq = 0
	c.callback = nil
	c.cookie = nil
	r.updateCallbacks()
}

func (r *registry) addAppListener(appName string, cb AdvertCallback, cookie any) {
	if r.nextAppListener >= MaxApps {
		return
	}
	r.appListeners[r.nextAppListener] = appListener{appName: appName, callback: cb, cookie: cookie}
	r.nextAppListener++
}

func (r *registry) addChanListener(appName, chanName string, cb Callback, cookie any) {
	if r.nextChanListener >= MaxChans {
		return
	}
	r.chanListeners[r.nextChanListener] = chanListener{appName: appName, chanName: chanName, callback: cb, cookie: cookie}
	r.nextChanListener++
	r.updateCallbacks()
}

func (r *registry) appNameForGUID(guid uint32) (string, bool) {
	for i := 0; i < r.nextApp; i++ {
		if r.apps[i].guid == guid {
			return r.apps[i].name, true
		}
	}
	return "", false
}

// updateCallbacks re-derives chan[*].callback/cookie as the join of
// channels -> apps -> chanListeners. It must run after every table
// mutation: a channel's callback pointer is derived state, never primary.
func (r *registry) updateCallbacks() {
	for i := range r.channels {
		c := &r.channels[i]
		c.callback = nil
		c.cookie = nil
		if !c.live() {
			continue
		}
		appName, ok := r.appNameForGUID(c.guid)
		if !ok {
			continue
		}
		for j := 0; j < r.nextChanListener; j++ {
			l := &r.chanListeners[j]
			if l.callback != nil && l.appName == appName && l.chanName == c.name {
				c.callback = l.callback
				c.cookie = l.cookie
				break
			}
		}
	}
}

// chanNo resolves (appName, chanName) to a channel number, or false if no
// live channel matches.
func (r *registry) chanNo(appName, chanName string) (uint8, bool) {
	var guid uint32 = guidUnused
	for i := 0; i < r.nextApp; i++ {
		if r.apps[i].name == appName {
			guid = r.apps[i].guid
			break
		}
	}
	if guid == guidUnused {
		return 0, false
	}
	for i := range r.channels {
		if r.channels[i].live() && r.channels[i].guid == guid && r.channels[i].name == chanName {
			return uint8(i), true
		}
	}
	return 0, false
}
