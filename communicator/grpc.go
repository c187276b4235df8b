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
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/golang/glog"
	"github.com/golang/protobuf/ptypes/empty"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// rankKey is the metadata entry carrying the rank of the sender.
	rankKey = "rank"

	// maxMessageSize bounds a single model or result payload.
	maxMessageSize = 1 << 30
)

// communicatorServer implements the server API for Communicator service.
type communicatorServer struct {
	UnimplementedCommunicatorServer
	boxes *mailboxes
	size  int
}

func (s *communicatorServer) Task(ctx context.Context, in *wrapperspb.Int64Value) (*empty.Empty, error) {
	return s.deliver(ctx, TagTask, in)
}

func (s *communicatorServer) Model(ctx context.Context, in *wrapperspb.BytesValue) (*empty.Empty, error) {
	return s.deliver(ctx, TagModel, in)
}

func (s *communicatorServer) Result(ctx context.Context, in *structpb.ListValue) (*empty.Empty, error) {
	return s.deliver(ctx, TagResult, in)
}

// deliver deposits the message into the mailbox of its sender and replies
// only once the message has been accepted.
func (s *communicatorServer) deliver(ctx context.Context, tag Tag, msg proto.Message) (*empty.Empty, error) {
	src, err := source(ctx, s.size)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.boxes.deliver(ctx, src, tag, msg); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return nil, status.FromContextError(err).Err()
	}
	return new(empty.Empty), nil
}

// source extracts the rank of the sender from the incoming metadata.
func source(ctx context.Context, size int) (int, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0, errors.New("missing metadata")
	}
	values := md.Get(rankKey)
	if len(values) != 1 {
		return 0, fmt.Errorf("expected a single %q entry, got %d", rankKey, len(values))
	}
	rank, err := strconv.Atoi(values[0])
	if err != nil {
		return 0, fmt.Errorf("invalid rank %q: %w", values[0], err)
	}
	if rank < 0 || size <= rank {
		return 0, fmt.Errorf("rank %d out of range [0, %d)", rank, size)
	}
	return rank, nil
}

// GRPC is a communicator whose processes exchange messages over gRPC.  Each
// process serves the Communicator service at its own address and dials its
// peers lazily.
type GRPC struct {
	rank   int
	peers  []string
	boxes  *mailboxes
	server *grpc.Server

	mu      sync.Mutex
	conns   map[int]*grpc.ClientConn
	clients map[int]CommunicatorClient
}

// Listen creates a gRPC communicator for the process with the given rank,
// listening at peers[rank].
func Listen(rank int, peers []string) (*GRPC, error) {
	if rank < 0 || len(peers) <= rank {
		return nil, fmt.Errorf("rank %d out of range [0, %d)", rank, len(peers))
	}
	lis, err := net.Listen("tcp", peers[rank])
	if err != nil {
		return nil, err
	}
	return Serve(rank, peers, lis), nil
}

// Serve creates a gRPC communicator serving on the given listener.
func Serve(rank int, peers []string, lis net.Listener) *GRPC {
	boxes := newMailboxes()
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_recovery.UnaryServerInterceptor(),
		),
		grpc.MaxRecvMsgSize(maxMessageSize),
	)
	RegisterCommunicatorServer(server, &communicatorServer{boxes: boxes, size: len(peers)})

	go func() {
		glog.Infof("rank %d listening at %v", rank, lis.Addr())
		if err := server.Serve(lis); err != nil {
			glog.Errorf("rank %d failed to serve: %v", rank, err)
		}
	}()

	return &GRPC{
		rank:    rank,
		peers:   peers,
		boxes:   boxes,
		server:  server,
		conns:   make(map[int]*grpc.ClientConn),
		clients: make(map[int]CommunicatorClient),
	}
}

func (g *GRPC) Rank() int {
	return g.rank
}

func (g *GRPC) Size() int {
	return len(g.peers)
}

// client returns the client for the given rank, dialing it if needed.
func (g *GRPC) client(rank int) (CommunicatorClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.clients == nil {
		return nil, ErrClosed
	}
	if c, ok := g.clients[rank]; ok {
		return c, nil
	}
	conn, err := grpc.NewClient(g.peers[rank],
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMessageSize),
			grpc.MaxCallSendMsgSize(maxMessageSize),
		),
	)
	if err != nil {
		return nil, err
	}
	g.conns[rank] = conn
	g.clients[rank] = NewCommunicatorClient(conn)
	return g.clients[rank], nil
}

// Send waits for the peer to become reachable, bounded by the context.
func (g *GRPC) Send(ctx context.Context, dst int, tag Tag, msg proto.Message) error {
	if err := check(len(g.peers), dst, tag, msg); err != nil {
		return err
	}
	c, err := g.client(dst)
	if err != nil {
		return fmt.Errorf("dial rank %d: %w", dst, err)
	}

	ctx = metadata.AppendToOutgoingContext(ctx, rankKey, strconv.Itoa(g.rank))
	opts := []grpc.CallOption{grpc.WaitForReady(true)}

	switch tag {
	case TagTask:
		_, err = c.Task(ctx, msg.(*wrapperspb.Int64Value), opts...)
	case TagModel:
		_, err = c.Model(ctx, msg.(*wrapperspb.BytesValue), append(opts, grpc.UseCompressor(zstdName))...)
	case TagResult:
		_, err = c.Result(ctx, msg.(*structpb.ListValue), opts...)
	}
	if err != nil {
		return fmt.Errorf("send %s to rank %d: %w", tag, dst, err)
	}
	return nil
}

func (g *GRPC) Irecv(src int, tag Tag) *Request {
	if err := checkRank(len(g.peers), src); err != nil {
		return failedRequest(err)
	}
	return g.boxes.irecv(src, tag)
}

// Close stops serving and closes every connection to the peers.
func (g *GRPC) Close() error {
	g.boxes.close()
	g.server.GracefulStop()

	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	for rank, conn := range g.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rank %d: %w", rank, err))
		}
	}
	g.conns, g.clients = nil, nil
	return errors.Join(errs...)
}
