package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/partydeck/logger"
	"github.com/wfunc/partydeck/room"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// DirectoryService exposes room directory queries over net/rpc for
// operational tooling.
type DirectoryService struct {
	rooms *room.Manager
}

func NewDirectoryService(rooms *room.Manager) *DirectoryService {
	return &DirectoryService{rooms: rooms}
}

type RoomInfo struct {
	ID          int
	State       string
	ActiveUsers int
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []RoomInfo
}

// ListRooms returns id, round state and occupancy for every live room.
func (ds *DirectoryService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, r := range ds.rooms.Rooms() {
		reply.Rooms = append(reply.Rooms, RoomInfo{
			ID:          r.ID,
			State:       r.State().String(),
			ActiveUsers: r.ActiveUsers(),
		})
	}
	return nil
}

type StatsArgs struct{}

type StatsReply struct {
	RoomCount int
}

func (ds *DirectoryService) Stats(args *StatsArgs, reply *StatsReply) error {
	reply.RoomCount = ds.rooms.Count()
	return nil
}
