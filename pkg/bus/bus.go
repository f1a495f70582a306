package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
)

const (
	// DefaultStream captures every omniversal.* subject.
	DefaultStream = "OMNIVERSAL"
	subjectPrefix   = "omniversal."
	contentType     = "Content-Type"
	jsonContentType = "application/json"
)

var (
	ErrNilBus     = errors.New("nil bus")
	ErrNilHandler = errors.New("nil handler")
	ErrBadSubject = errors.New("subject must be under " + subjectPrefix)
)

// Bus publishes kernel events to NATS JetStream and consumes them.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New connects to url and opens a JetStream context.
func New(url string, opts ...nats.Option) (*Bus, error) {
	opts = append([]nats.Option{nats.Name("omniversal")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	return &Bus{conn: nc, js: js}, nil
}

// EnsureStream creates the named stream over subjects when it does not exist.
func (b *Bus) EnsureStream(name string, subjects ...string) error {
	if b == nil {
		return ErrNilBus
	}
	if len(subjects) == 0 {
		subjects = []string{subjectPrefix + ">"}
	}
	_, err := b.js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", name, err)
	}
	if _, err := b.js.AddStream(&nats.StreamConfig{Name: name, Subjects: subjects}); err != nil {
		return fmt.Errorf("add stream %s: %w", name, err)
	}
	return nil
}

// Close drains the connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish encodes v as JSON and publishes it to subj.
func (b *Bus) Publish(ctx context.Context, subj string, v any) error {
	if b == nil {
		return ErrNilBus
	}
	msg, err := newMessage(subj, v)
	if err != nil {
		return err
	}
	if _, err := b.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	return nil
}

func checkSubject(subj string) error {
	if !strings.HasPrefix(subj, subjectPrefix) || len(subj) == len(subjectPrefix) {
		return fmt.Errorf("%w: %q", ErrBadSubject, subj)
	}
	return nil
}

func newMessage(subj string, v any) (*nats.Msg, error) {
	if err := checkSubject(subj); err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", subj, err)
	}
	msg := nats.NewMsg(subj)
	msg.Data = data
	msg.Header.Set(contentType, jsonContentType)
	return msg, nil
}

type subscription struct {
	sub    *nats.Subscription
	mu     sync.Mutex
	closed bool
}

func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sub.Drain()
}

// Handler consumes the JSON body of one kernel event.
type Handler func(ctx context.Context, data []byte) error

type ackAction int

const (
	ackMsg ackAction = iota
	nakMsg
	termMsg
)

// dispatch hands an event to fn and decides how to acknowledge it. Anything
// not produced by Publish (missing JSON content type or a body that is not
// JSON) is terminated, since redelivery could never succeed.
func dispatch(ctx context.Context, msg *nats.Msg, fn Handler) ackAction {
	if msg.Header.Get(contentType) != jsonContentType || !json.Valid(msg.Data) {
		return termMsg
	}
	if err := fn(ctx, msg.Data); err != nil {
		return nakMsg
	}
	return ackMsg
}

// Subscribe attaches a durable consumer to subj, which must be under
// omniversal.* (wildcards allowed). Consumers start at new messages only:
// the kernel events announce current state, so replaying a stream backlog
// would only re-render stale files. Handler errors nak the event for
// redelivery and foreign payloads are terminated. The subscription is
// drained when ctx ends.
func (b *Bus) Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, data []byte) error) (io.Closer, error) {
	if b == nil {
		return nil, ErrNilBus
	}
	if fn == nil {
		return nil, ErrNilHandler
	}
	if err := checkSubject(subj); err != nil {
		return nil, err
	}

	handler := func(msg *nats.Msg) {
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		switch dispatch(handlerCtx, msg, fn) {
		case termMsg:
			_ = msg.Term()
		case nakMsg:
			_ = msg.Nak()
		default:
			_ = msg.Ack()
		}
	}

	sub, err := b.js.Subscribe(subj, handler, nats.Durable(durable), nats.ManualAck(), nats.AckExplicit(), nats.DeliverNew())
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subj, err)
	}

	s := &subscription{sub: sub}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s, nil
}
