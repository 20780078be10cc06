// server/server.go
package server

import (
	"net/http"
	"net/rpc"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/partydeck/broadcast"
	"github.com/wfunc/partydeck/cards"
	"github.com/wfunc/partydeck/logger"
	"github.com/wfunc/partydeck/models"
	"github.com/wfunc/partydeck/monitor"
	"github.com/wfunc/partydeck/network"
	"github.com/wfunc/partydeck/room"
	partydeck_rpc "github.com/wfunc/partydeck/rpc"
	"github.com/wfunc/partydeck/session"
)

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	broadcaster    room.Broadcaster
	monitor        *monitor.Monitor
	rpcServer      *partydeck_rpc.Server
	shutdownChan   chan struct{}
}

func NewGameServer(addr, rpcAddr string, catalog *cards.Catalog, opts room.Options, grace time.Duration, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		addr:           addr,
		roomManager:    room.NewManager(catalog, opts, grace),
		sessionManager: session.NewManager(),
		monitor:        mon,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.sessionManager)

	// 空房间超时回收发生在定时器里,不经过请求处理,需要回调刷新指标
	s.roomManager.OnCountChange = func(live int) {
		mon.SetActiveRooms(live)
	}

	// 初始化RPC服务器
	rpcServer, err := partydeck_rpc.NewServer(rpcAddr)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	// 注册RPC服务
	rpc.Register(partydeck_rpc.NewDirectoryService(s.roomManager))

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.roomManager.Shutdown()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn, r)
}

func (s *GameServer) handleConnection(conn *websocket.Conn, r *http.Request) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.monitor.DecOnlinePlayers()
		s.sessionManager.Remove(sess.GetID())
		if sess.UserID != 0 && sess.RoomID != 0 {
			// 标记离线并在房间清空后启动拆除计时,重连会撤销
			s.roomManager.HandleDisconnect(sess.RoomID, sess.UserID)
			s.monitor.SetActiveRooms(s.roomManager.Count())
		}
		wsConn.Close()
	}()

	if !s.handshake(sess, r) {
		return
	}

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			start := time.Now()
			s.handlePacket(sess, packet)
			s.monitor.IncActions()
			s.monitor.ObserveActionLatency(time.Since(start))
		}
	}
}

// handshake binds the connection to a user identity. A client presenting a
// valid userId/userToken pair is rebound to its prior identity and, if it
// still occupies a room, rejoined there; anything else gets a fresh
// identity. Either way the client receives an Init message first.
func (s *GameServer) handshake(sess *session.Session, r *http.Request) bool {
	q := r.URL.Query()
	token := q.Get("userToken")
	userID, _ := strconv.ParseInt(q.Get("userId"), 10, 64)

	var roomID int
	if userID != 0 && token != "" {
		prior, err := s.sessionManager.RebindUser(sess, userID, token)
		if err != nil {
			logger.Log.Warnf("rebind rejected for user %d: %v", userID, err)
			userID = 0
		} else {
			roomID = prior
		}
	}
	if userID == 0 {
		userID, token = s.sessionManager.AllocateUser(sess)
	}

	if err := network.SendJSON(sess.Conn, network.MsgTypeInit, models.InitEvent{UserID: userID, UserToken: token}); err != nil {
		return false
	}

	if roomID != 0 {
		rm, err := s.roomManager.RejoinRoom(roomID, userID)
		if err != nil {
			s.sessionManager.SetRoom(userID, 0)
			return true
		}
		snap, err := rm.Rejoin(userID)
		if err != nil {
			s.sessionManager.SetRoom(userID, 0)
			return true
		}
		sess.RoomID = roomID
		network.SendJSON(sess.Conn, network.MsgTypeJoinRoom, snap)
	}
	return true
}
