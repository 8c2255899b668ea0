package realtime

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"chess-mint-rewards/models"
	"chess-mint-rewards/observability"
)

// ConnKind separates connections that can sign mints from notify-only streams.
type ConnKind string

const (
	KindExecutor ConnKind = "executor"
	KindNotify   ConnKind = "notify"
)

// Conn is a live client connection on this instance.
type Conn interface {
	ID() string
	Kind() ConnKind
	Send(msg ServerMessage) error
}

// Registry maps player addresses to the connections joined to that room.
// It is instance-local; nothing here is shared across servers.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]Conn),
		logger: logger,
	}
}

// Join adds conn to the address room. Joining twice is a no-op and returns false.
func (r *Registry) Join(address string, conn Conn) bool {
	address = models.NormalizeAddress(address)

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[address]
	if !ok {
		room = make(map[string]Conn)
		r.rooms[address] = room
	}
	if _, exists := room[conn.ID()]; exists {
		return false
	}
	room[conn.ID()] = conn
	observability.LiveConnections.WithLabelValues(string(conn.Kind())).Inc()
	return true
}

// Leave removes one connection from one room. Leaving a room not joined is a no-op.
func (r *Registry) Leave(address, connID string) bool {
	address = models.NormalizeAddress(address)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(address, connID)
}

// Drop removes the connection from every room and returns the addresses it was in.
func (r *Registry) Drop(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for address := range r.rooms {
		if r.removeLocked(address, connID) {
			left = append(left, address)
		}
	}
	return left
}

func (r *Registry) removeLocked(address, connID string) bool {
	room, ok := r.rooms[address]
	if !ok {
		return false
	}
	conn, ok := room[connID]
	if !ok {
		return false
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, address)
	}
	observability.LiveConnections.WithLabelValues(string(conn.Kind())).Dec()
	return true
}

// LiveExecutors counts executor-capable connections in the address room.
func (r *Registry) LiveExecutors(address string) int {
	return len(r.snapshot(models.NormalizeAddress(address), KindExecutor))
}

// ExecutorAddresses lists rooms that currently hold at least one executor, sorted.
func (r *Registry) ExecutorAddresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for address, room := range r.rooms {
		for _, conn := range room {
			if conn.Kind() == KindExecutor {
				out = append(out, address)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// PushMintNow sends the instruction to every executor in the room and returns
// how many accepted it.
func (r *Registry) PushMintNow(address string, msg MintNow) int {
	return r.send(r.snapshot(models.NormalizeAddress(address), KindExecutor), msg)
}

// Deliver sends msg to every connection in the room regardless of kind.
func (r *Registry) Deliver(address string, msg ServerMessage) int {
	return r.send(r.snapshot(models.NormalizeAddress(address), ""), msg)
}

// NotifyMintCompleted delivers the notice to local connections only.
func (r *Registry) NotifyMintCompleted(_ context.Context, address string, notice MintCompletedNotice) error {
	r.Deliver(address, notice)
	return nil
}

func (r *Registry) snapshot(address string, kind ConnKind) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[address]
	out := make([]Conn, 0, len(room))
	for _, conn := range room {
		if kind == "" || conn.Kind() == kind {
			out = append(out, conn)
		}
	}
	return out
}

func (r *Registry) send(conns []Conn, msg ServerMessage) int {
	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(msg); err != nil {
			r.logger.Warn("send to connection failed",
				zap.String("conn_id", conn.ID()),
				zap.String("type", msg.ServerType()),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}
