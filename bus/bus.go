// bus.go
package bus

import (
	"context"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Wildcards accepted in subscription topics.
const (
	SingleLevel = "+" // exactly one token
	MultiLevel  = "#" // zero or more trailing tokens
)

// Topic is a sequence of comparable tokens (strings and ints in practice).
type Topic []any

// T builds a Topic. It panics on a non-comparable token, since the token
// is used as a map key in the trie.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		if tok == nil || !reflect.TypeOf(tok).Comparable() {
			panic("bus: topic token is not comparable")
		}
	}
	return Topic(tokens)
}

func (t Topic) Len() int     { return len(t) }
func (t Topic) At(i int) any { return t[i] }

// String renders a topic as slash separated tokens, for logs.
func (t Topic) String() string {
	var buf []byte
	for i, tok := range t {
		if i > 0 {
			buf = append(buf, '/')
		}
		switch v := tok.(type) {
		case string:
			buf = append(buf, v...)
		case int:
			buf = strconv.AppendInt(buf, int64(v), 10)
		default:
			buf = append(buf, '?')
		}
	}
	return string(buf)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok any, create bool) *node {
	if c, ok := n.children[tok]; ok || !create {
		return c
	}
	if n.children == nil {
		n.children = make(map[any]*node)
	}
	c := &node{}
	n.children[tok] = c
	return c
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu     sync.RWMutex
	root   *node
	qLen   int
	nextID atomic.Uint64
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Bus{
		root: &node{},
		qLen: queueLen,
	}
}

// NewMessage is a convenience constructor.
func (b *Bus) NewMessage(t Topic, payload any, retained bool) *Message {
	return &Message{Topic: t, Payload: payload, Retained: retained}
}

// addSubscription inserts a subscription into the trie and replays any
// retained messages matching its (possibly wildcarded) topic.
func (b *Bus) addSubscription(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	var retained []*Message
	collectRetained(b.root, topic, 0, &retained)
	for _, m := range retained {
		deliver(sub, m)
	}
}

// Publish delivers a message to all subscribers whose topic matches.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		n := b.root
		for _, tok := range msg.Topic {
			n = n.child(tok, true)
		}
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}

	var subs []*Subscription
	collectSubs(b.root, msg.Topic, 0, &subs)
	for _, sub := range subs {
		deliver(sub, msg)
	}
}

// deliver never blocks; when the queue is full the oldest message is dropped.
func deliver(sub *Subscription, msg *Message) {
	select {
	case sub.ch <- msg:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- msg:
	default:
	}
}

func collectSubs(n *node, t Topic, i int, out *[]*Subscription) {
	if h := n.children[MultiLevel]; h != nil {
		*out = append(*out, h.subs...)
	}
	if i == len(t) {
		*out = append(*out, n.subs...)
		return
	}
	if c := n.children[t[i]]; c != nil {
		collectSubs(c, t, i+1, out)
	}
	if t[i] != SingleLevel {
		if c := n.children[SingleLevel]; c != nil {
			collectSubs(c, t, i+1, out)
		}
	}
}

func collectRetained(n *node, pattern Topic, i int, out *[]*Message) {
	if i == len(pattern) {
		if n.retained != nil {
			*out = append(*out, n.retained)
		}
		return
	}
	switch pattern[i] {
	case MultiLevel:
		collectSubtree(n, out)
	case SingleLevel:
		for _, c := range n.children {
			collectRetained(c, pattern, i+1, out)
		}
	default:
		if c := n.children[pattern[i]]; c != nil {
			collectRetained(c, pattern, i+1, out)
		}
	}
}

func collectSubtree(n *node, out *[]*Message) {
	if n.retained != nil {
		*out = append(*out, n.retained)
	}
	for _, c := range n.children {
		collectSubtree(c, out)
	}
}

// unsubscribe removes a subscription from the trie.
func (b *Bus) unsubscribe(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	stack := make([]*node, 0, len(topic))
	for _, t := range topic {
		child := n.child(t, false)
		if child == nil {
			return
		}
		stack = append(stack, n)
		n = child
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	// Prune empty nodes.
	for i := len(topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := topic[i]
		child := parent.children[key]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{
		bus: b,
		id:  id,
	}
}

func (c *Connection) ID() string { return c.id }

// NewMessage is a convenience constructor.
func (c *Connection) NewMessage(t Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(t, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.bus.addSubscription(topic, sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.unsubscribe(sub.topic, sub)
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub.topic, sub)
		close(sub.ch)
	}
}

// -----------------------------------------------------------------------------
// Request–Reply
// -----------------------------------------------------------------------------

const replyPrefix = "_reply"

// Request assigns a private ReplyTo topic, subscribes to it, then publishes
// msg. The caller owns the returned subscription.
func (c *Connection) Request(msg *Message) *Subscription {
	id := c.bus.nextID.Add(1)
	msg.ReplyTo = T(replyPrefix, c.id, int(id))
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait publishes msg and blocks for the first reply or ctx expiry.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply := <-sub.Channel():
		return reply, nil
	}
}

// Reply publishes payload on req.ReplyTo. Requests without ReplyTo are ignored.
func (c *Connection) Reply(req *Message, payload any, retained bool) {
	if len(req.ReplyTo) == 0 {
		return
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
}
