package mqtt

import "log"

// pending is a serialized message waiting for the broker.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox keeps the most recent messages published while offline.
// Callers synchronize.
type outbox struct {
	slots   []pending
	first   int // index of the oldest message
	n       int
	dropped int // messages overwritten since the last flush
}

func newOutbox(size int) *outbox {
	return &outbox{slots: make([]pending, size)}
}

// add appends msg, overwriting the oldest message when full.
func (o *outbox) add(msg pending) {
	size := len(o.slots)
	if o.n < size {
		o.slots[(o.first+o.n)%size] = msg
		o.n++
		return
	}
	if o.dropped == 0 {
		log.Printf("mqtt: outbox full (%d messages), dropping oldest", size)
	}
	o.dropped++
	o.slots[o.first] = msg
	o.first = (o.first + 1) % size
}

// flush returns queued messages oldest first and empties the outbox.
func (o *outbox) flush() []pending {
	if o.n == 0 {
		return nil
	}
	out := make([]pending, 0, o.n)
	for i := 0; i < o.n; i++ {
		out = append(out, o.slots[(o.first+i)%len(o.slots)])
	}
	if o.dropped > 0 {
		log.Printf("mqtt: %d queued messages were lost while offline", o.dropped)
	}
	o.first, o.n, o.dropped = 0, 0, 0
	return out
}

func (o *outbox) len() int { return o.n }
