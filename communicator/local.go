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

	"google.golang.org/protobuf/proto"
)

// local is a communicator between goroutines of a single process.  Every
// message is cloned on send, so the sender and the receiver never share it.
type local struct {
	rank  int
	boxes []*mailboxes
}

// NewLocal creates a group of in-process communicators with the given size.
// The communicator at index i has rank i.
func NewLocal(size int) []Comm {
	boxes := make([]*mailboxes, 0, size)
	for len(boxes) < cap(boxes) {
		boxes = append(boxes, newMailboxes())
	}

	comms := make([]Comm, 0, size)
	for rank := range boxes {
		comms = append(comms, &local{rank: rank, boxes: boxes})
	}
	return comms
}

func (c *local) Rank() int {
	return c.rank
}

func (c *local) Size() int {
	return len(c.boxes)
}

func (c *local) Send(ctx context.Context, dst int, tag Tag, msg proto.Message) error {
	if err := check(len(c.boxes), dst, tag, msg); err != nil {
		return err
	}
	return c.boxes[dst].deliver(ctx, c.rank, tag, proto.Clone(msg))
}

func (c *local) Irecv(src int, tag Tag) *Request {
	if err := checkRank(len(c.boxes), src); err != nil {
		return failedRequest(err)
	}
	return c.boxes[c.rank].irecv(src, tag)
}

func (c *local) Close() error {
	c.boxes[c.rank].close()
	return nil
}
