package mqtt

import (
	"bytes"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/cometload/pkg/loader"
)

// Side selects which end of the link a Port is.
type Side int

const (
	// Host is the loader end, it publishes down and subscribes up.
	Host Side = iota
	// Target is the bridge end attached to the board.
	Target
)

// Topics under the queue prefix.
const (
	TopicDown = "down"
	TopicUp   = "up"
)

// String implements fmt.Stringer.
func (s Side) String() string {
	if s == Target {
		return "target"
	}
	return "host"
}

// Topics returns the subscribe and publish topics of the side.
func (s Side) Topics() (sub, pub string) {
	if s == Target {
		return TopicDown, TopicUp
	}
	return TopicUp, TopicDown
}

// Port implements loader.Port on top of a pair of MQTT topics.
type Port struct {
	// Publish sends a payload to a topic.
	Publish func(topic string, payload []byte) error

	subTopic string
	pubTopic string
	closer   io.Closer

	txSeq   uint32
	txBuf   bytes.Buffer
	rxSeq   uint32
	rxBuf   []byte
	chunkCh chan []byte

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewPort creates a Port for the side. Payloads received on the subscribe
// topic must be passed to HandleMessage.
func NewPort(side Side, publish func(string, []byte) error) *Port {
	p := &Port{
		Publish: publish,
		chunkCh: make(chan []byte, 64),
		closeCh: make(chan struct{}),
	}
	p.subTopic, p.pubTopic = side.Topics()
	return p
}

// Dial connects to the broker and returns a Port for the side. Without an
// explicit client-id both sides get distinct machine derived ids.
func Dial(brokerURL string, side Side) (*Port, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if u, perr := url.Parse(brokerURL); perr == nil && u.Query().Get("client-id") == "" {
		opts.SetClientID(DefaultClientID() + "-" + side.String())
	}
	q := NewQueue(opts, topicPrefix)
	if err = q.Connect(); err != nil {
		return nil, err
	}
	p := NewPort(side, q.Pub)
	p.closer = q
	if err = q.Sub(p.subTopic, p.HandleMessage); err != nil {
		q.Close()
		return nil, err
	}
	return p, nil
}

// HandleMessage accepts a chunk payload from the subscribe topic.
func (p *Port) HandleMessage(_ string, payload []byte) {
	select {
	case p.chunkCh <- payload:
	case <-p.closeCh:
	}
}

// Write implements io.Writer. Data is sent on Flush.
func (p *Port) Write(b []byte) (int, error) {
	select {
	case <-p.closeCh:
		return 0, io.ErrClosedPipe
	default:
	}
	return p.txBuf.Write(b)
}

// Flush publishes buffered data as one chunk.
func (p *Port) Flush() error {
	if p.txBuf.Len() == 0 {
		return nil
	}
	p.txSeq++
	payload, err := EncodeChunk(p.txSeq, p.txBuf.Bytes())
	if err != nil {
		return err
	}
	p.txBuf.Reset()
	return p.Publish(p.pubTopic, payload)
}

// RecvByte implements loader.Port.
func (p *Port) RecvByte(timeout time.Duration) (byte, error) {
	var expire <-chan time.Time
	if len(p.rxBuf) == 0 && timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}
	for len(p.rxBuf) == 0 {
		select {
		case payload := <-p.chunkCh:
			p.accept(payload)
		case <-expire:
			return 0, loader.ErrTimeout
		case <-p.closeCh:
			return 0, io.ErrClosedPipe
		}
	}
	b := p.rxBuf[0]
	p.rxBuf = p.rxBuf[1:]
	return b, nil
}

func (p *Port) accept(payload []byte) {
	chunk, err := DecodeChunk(payload)
	if err != nil {
		glog.Warningf("drop malformed chunk on %q: %v", p.subTopic, err)
		return
	}
	if p.rxSeq != 0 && chunk.Seq != p.rxSeq+1 {
		glog.Warningf("chunk seq %d after %d on %q, link bytes lost", chunk.Seq, p.rxSeq, p.subTopic)
	}
	p.rxSeq = chunk.Seq
	p.rxBuf = append(p.rxBuf, chunk.Data...)
}

// Close implements io.Closer.
func (p *Port) Close() (err error) {
	p.closeOnce.Do(func() {
		close(p.closeCh)
		if p.closer != nil {
			err = p.closer.Close()
		}
	})
	return
}
