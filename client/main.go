package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeCreateRoom   = 101
	MsgTypeJoinOpenRoom = 103
	MsgTypeEnterRoom    = 104
	MsgTypeGetIcons     = 107
	MsgTypeSetIcon      = 108
	MsgTypeRoomSettings = 106
	MsgTypeSubmitCards  = 201
	MsgTypeStartReading = 202
	MsgTypeRevealCard   = 204
	MsgTypeSelectGroup  = 205
	MsgTypeSelectWinner = 206
	MsgTypeNextRound    = 207
	MsgTypeChatMessage  = 251
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func sendJSON(c *websocket.Conn, msgID uint16, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return send(c, msgID, data)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
		}
	}()

	log.Println("Commands: create | open | icon <name> | icons | enter <name> | start <edition> | chat <text> | submit <id,id> | read | reveal <g> <n> | pick <g> | winner <g> | next")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(strings.TrimSpace(text))
			if len(fields) == 0 {
				continue
			}

			var err error
			switch fields[0] {
			case "create":
				err = send(c, MsgTypeCreateRoom, []byte{})
			case "open":
				err = send(c, MsgTypeJoinOpenRoom, []byte{})
			case "icons":
				err = send(c, MsgTypeGetIcons, []byte{})
			case "icon":
				if len(fields) > 1 {
					err = sendJSON(c, MsgTypeSetIcon, map[string]string{"icon": fields[1]})
				}
			case "enter":
				if len(fields) > 1 {
					err = sendJSON(c, MsgTypeEnterRoom, map[string]string{"name": strings.Join(fields[1:], " ")})
				}
			case "start":
				if len(fields) > 1 {
					err = sendJSON(c, MsgTypeRoomSettings, map[string]interface{}{
						"edition":    fields[1],
						"rotateCzar": true,
						"open":       true,
					})
				}
			case "chat":
				err = sendJSON(c, MsgTypeChatMessage, map[string]string{"content": strings.Join(fields[1:], " ")})
			case "submit":
				if len(fields) > 1 {
					var ids []int
					for _, part := range strings.Split(fields[1], ",") {
						id, perr := strconv.Atoi(part)
						if perr != nil {
							continue
						}
						ids = append(ids, id)
					}
					err = sendJSON(c, MsgTypeSubmitCards, map[string][]int{"cards": ids})
				}
			case "read":
				err = send(c, MsgTypeStartReading, []byte{})
			case "reveal":
				if len(fields) > 2 {
					g, _ := strconv.Atoi(fields[1])
					n, _ := strconv.Atoi(fields[2])
					err = sendJSON(c, MsgTypeRevealCard, map[string]int{"group": g, "num": n})
				}
			case "pick":
				if len(fields) > 1 {
					g, _ := strconv.Atoi(fields[1])
					err = sendJSON(c, MsgTypeSelectGroup, map[string]int{"group": g})
				}
			case "winner":
				if len(fields) > 1 {
					g, _ := strconv.Atoi(fields[1])
					err = sendJSON(c, MsgTypeSelectWinner, map[string]int{"group": g})
				}
			case "next":
				err = send(c, MsgTypeNextRound, []byte{})
			default:
				log.Printf("Unknown command: %s", fields[0])
				continue
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", fields[0])
		}
	}
}
