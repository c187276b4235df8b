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

//go:generate protoc --proto_path=../proto/ --go-grpc_out=. --go-grpc_opt=paths=source_relative communicator.proto

// The communicator package implements the message passing layer between the
// aggregator and the workers.  The primitives are based on the syntax of the
// Message Passing Interface (MPI); Send is a synchronous handshake that returns
// once the message has been delivered to the mailbox of the receiver, and Irecv
// posts a non-blocking receive whose completion is observed with Test or Done.
// Messages are multiplexed by tag on a single logical channel per process pair.
package communicator

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Tag identifies the kind of message on a channel.
type Tag int32

const (
	// TagTask carries a single component index.
	TagTask Tag = iota
	// TagModel carries a single serialized component model.
	TagModel
	// TagResult carries a flat vector of scores.
	TagResult
)

func (t Tag) String() string {
	switch t {
	case TagTask:
		return "task"
	case TagModel:
		return "model"
	case TagResult:
		return "result"
	default:
		return fmt.Sprintf("tag(%d)", int32(t))
	}
}

var (
	// ErrClosed is returned by operations on a closed communicator.
	ErrClosed = errors.New("communicator closed")

	// ErrUnexpectedMessage is returned when the payload does not match its tag.
	ErrUnexpectedMessage = errors.New("unexpected message")
)

// Comm represents a communicator bound to a single process in the group.
type Comm interface {
	// Rank returns the rank of the calling process.
	Rank() int

	// Size returns the total number of processes in the group.
	Size() int

	// Send delivers the message to the process with the given rank.  It blocks
	// until the receiver has accepted the message or the context is done.
	Send(ctx context.Context, dst int, tag Tag, msg proto.Message) error

	// Irecv posts a non-blocking receive for the next message with the given
	// tag from the process with the given rank.  A rank outside the group
	// yields a request that has already failed.
	Irecv(src int, tag Tag) *Request

	// Close releases the resources of the communicator.  Pending receives
	// complete with ErrClosed.
	Close() error
}

// Recv blocks until a message with the given tag arrives from src.
func Recv(ctx context.Context, c Comm, src int, tag Tag) (proto.Message, error) {
	return c.Irecv(src, tag).Wait(ctx)
}

// SendTask sends a component index to dst.
func SendTask(ctx context.Context, c Comm, dst, task int) error {
	return c.Send(ctx, dst, TagTask, wrapperspb.Int64(int64(task)))
}

// RecvTask receives a component index from src.
func RecvTask(ctx context.Context, c Comm, src int) (int, error) {
	msg, err := Recv(ctx, c, src, TagTask)
	if err != nil {
		return 0, err
	}
	return TaskOf(msg)
}

// SendModel sends a serialized component model to dst.
func SendModel(ctx context.Context, c Comm, dst int, model []byte) error {
	return c.Send(ctx, dst, TagModel, wrapperspb.Bytes(model))
}

// RecvModel receives a serialized component model from src.
func RecvModel(ctx context.Context, c Comm, src int) ([]byte, error) {
	msg, err := Recv(ctx, c, src, TagModel)
	if err != nil {
		return nil, err
	}
	return ModelOf(msg)
}

// SendResult sends a flat score vector to dst.
func SendResult(ctx context.Context, c Comm, dst int, scores []float64) error {
	values := make([]*structpb.Value, 0, len(scores))
	for _, score := range scores {
		values = append(values, structpb.NewNumberValue(score))
	}
	return c.Send(ctx, dst, TagResult, &structpb.ListValue{Values: values})
}

// TaskOf extracts the component index from a task message.
func TaskOf(msg proto.Message) (int, error) {
	in, ok := msg.(*wrapperspb.Int64Value)
	if !ok {
		return 0, fmt.Errorf("%w: %T on %s", ErrUnexpectedMessage, msg, TagTask)
	}
	return int(in.GetValue()), nil
}

// ModelOf extracts the serialized component model from a model message.
func ModelOf(msg proto.Message) ([]byte, error) {
	in, ok := msg.(*wrapperspb.BytesValue)
	if !ok {
		return nil, fmt.Errorf("%w: %T on %s", ErrUnexpectedMessage, msg, TagModel)
	}
	return in.GetValue(), nil
}

// ResultOf extracts the score vector from a result message.
func ResultOf(msg proto.Message) ([]float64, error) {
	in, ok := msg.(*structpb.ListValue)
	if !ok {
		return nil, fmt.Errorf("%w: %T on %s", ErrUnexpectedMessage, msg, TagResult)
	}
	scores := make([]float64, 0, len(in.GetValues()))
	for index, value := range in.GetValues() {
		number, ok := value.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: non-numeric score at %d", ErrUnexpectedMessage, index)
		}
		scores = append(scores, number.NumberValue)
	}
	return scores, nil
}

// checkRank validates a peer rank against the group size.
func checkRank(size, rank int) error {
	if rank < 0 || size <= rank {
		return fmt.Errorf("rank %d out of range [0, %d)", rank, size)
	}
	return nil
}

// check validates the destination rank and the payload type of a message.
func check(size, rank int, tag Tag, msg proto.Message) error {
	if err := checkRank(size, rank); err != nil {
		return err
	}
	var ok bool
	switch tag {
	case TagTask:
		_, ok = msg.(*wrapperspb.Int64Value)
	case TagModel:
		_, ok = msg.(*wrapperspb.BytesValue)
	case TagResult:
		_, ok = msg.(*structpb.ListValue)
	}
	if !ok {
		return fmt.Errorf("%w: %T on %s", ErrUnexpectedMessage, msg, tag)
	}
	return nil
}
