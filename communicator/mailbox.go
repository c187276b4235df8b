// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package communicator

import (
	"context"
	"sync"

	"google.golang.org/protobuf/proto"
)

// mailboxSize is the number of delivered but not yet received messages each
// (source, tag) pair may hold before Send blocks.
const mailboxSize = 4

// Request represents a posted non-blocking receive.
type Request struct {
	done chan struct{}
	msg  proto.Message
	err  error
}

func newRequest() *Request {
	return &Request{done: make(chan struct{})}
}

// failedRequest returns a request that has already completed with err.
func failedRequest(err error) *Request {
	r := newRequest()
	r.complete(nil, err)
	return r
}

// complete must be called exactly once.
func (r *Request) complete(msg proto.Message, err error) {
	r.msg, r.err = msg, err
	close(r.done)
}

// Test reports whether the request has completed without blocking.
func (r *Request) Test() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed when the request completes.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Result returns the received message.  It must only be called after the
// request has completed.
func (r *Request) Result() (proto.Message, error) {
	return r.msg, r.err
}

// Wait blocks until the request completes or the context is done.  A request
// whose Wait is abandoned stays posted until the communicator is closed.
func (r *Request) Wait(ctx context.Context) (proto.Message, error) {
	select {
	case <-r.done:
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// key identifies a logical channel from a single source.
type key struct {
	src int
	tag Tag
}

// mailboxes holds the delivered messages of a single process.
type mailboxes struct {
	mu     sync.Mutex
	boxes  map[key]chan proto.Message
	closed chan struct{}
	once   sync.Once
}

func newMailboxes() *mailboxes {
	return &mailboxes{
		boxes:  make(map[key]chan proto.Message),
		closed: make(chan struct{}),
	}
}

// box returns the mailbox for the given source and tag, creating it if needed.
func (m *mailboxes) box(src int, tag Tag) chan proto.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{src: src, tag: tag}
	ch, ok := m.boxes[k]
	if !ok {
		ch = make(chan proto.Message, mailboxSize)
		m.boxes[k] = ch
	}
	return ch
}

// deliver deposits the message; it returns once the message is accepted.
func (m *mailboxes) deliver(ctx context.Context, src int, tag Tag, msg proto.Message) error {
	select {
	case <-m.closed:
		return ErrClosed
	default:
	}

	select {
	case m.box(src, tag) <- msg:
		return nil
	case <-m.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// irecv posts a receive on the mailbox for the given source and tag.
// Receives posted on the same mailbox are not ordered among each other.
func (m *mailboxes) irecv(src int, tag Tag) *Request {
	r := newRequest()
	ch := m.box(src, tag)

	go func() {
		select {
		case msg := <-ch:
			r.complete(msg, nil)
		case <-m.closed:
			r.complete(nil, ErrClosed)
		}
	}()

	return r
}

func (m *mailboxes) close() {
	m.once.Do(func() {
		close(m.closed)
	})
}
