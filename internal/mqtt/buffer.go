package mqtt

import (
	"log"
	"sync"
)

// pendingMsg is a serialized publish held until the broker is reachable.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO of pending publishes. When full, the oldest
// message is overwritten. Not safe for concurrent use; caller must synchronize.
type outbox struct {
	msgs    []pendingMsg
	next    int // next write position
	count   int
	dropped int // messages overwritten since the last drain
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{msgs: make([]pendingMsg, capacity)}
}

func (o *outbox) push(m pendingMsg) {
	size := len(o.msgs)
	if o.count == size {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", size)
		}
		o.dropped++
	} else {
		o.count++
	}
	o.msgs[o.next] = m
	o.next = (o.next + 1) % size
}

// drain returns pending messages oldest first and empties the outbox.
func (o *outbox) drain() []pendingMsg {
	if o.count == 0 {
		return nil
	}
	size := len(o.msgs)
	out := make([]pendingMsg, 0, o.count)
	for i := o.next - o.count; i < o.next; i++ {
		out = append(out, o.msgs[(i+size)%size])
	}
	if o.dropped > 0 {
		log.Printf("mqtt: %d messages were dropped while disconnected", o.dropped)
	}
	o.next, o.count, o.dropped = 0, 0, 0
	return out
}

func (o *outbox) len() int {
	return o.count
}

// dispatcher hands publishes to a background sender so callers on the engine
// goroutine never wait on the broker. Messages queue in an outbox until ready
// reports true and are sent oldest first.
type dispatcher struct {
	ready func() bool
	send  func(pendingMsg) error

	mu  sync.Mutex
	box *outbox

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newDispatcher(capacity int, ready func() bool, send func(pendingMsg) error) *dispatcher {
	d := &dispatcher{
		ready: ready,
		send:  send,
		box:   newOutbox(capacity),
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// enqueue queues m and wakes the sender. It never blocks on the broker.
func (d *dispatcher) enqueue(m pendingMsg) {
	d.mu.Lock()
	d.box.push(m)
	d.mu.Unlock()
	d.notify()
}

// notify wakes the sender, e.g. after a reconnect.
func (d *dispatcher) notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			return
		case <-d.wake:
			d.flush()
		}
	}
}

// flush sends everything queued. On a failed send the failed message and
// the rest go back to the outbox for the next wake.
func (d *dispatcher) flush() {
	if !d.ready() {
		return
	}
	d.mu.Lock()
	msgs := d.box.drain()
	d.mu.Unlock()

	for i, m := range msgs {
		if err := d.send(m); err != nil {
			log.Printf("mqtt: %v", err)
			d.mu.Lock()
			for _, rest := range msgs[i:] {
				d.box.push(rest)
			}
			d.mu.Unlock()
			return
		}
	}
}

// pending reports how many messages are queued.
func (d *dispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.box.len()
}

// close stops the sender and makes one last synchronous flush, so a final
// SHUTDOWN queued just before close still goes out.
func (d *dispatcher) close() {
	d.once.Do(func() {
		close(d.stop)
		<-d.done
		d.flush()
	})
}
