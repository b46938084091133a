package crdt

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nosdesk/collab-core/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

// ServeCollab upgrades the request to a WebSocket and relays the Yjs sync
// protocol between the client and the target's live doc until the
// connection drops. One connection is exactly one (user, target) pair.
func ServeCollab(w http.ResponseWriter, r *http.Request, store *Store, id uuid.UUID, kind models.DocTargetKind, userID uuid.UUID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.WithContext(r.Context()).Errorf("crdt: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	target, client, err := store.Join(ctx, id, kind, userID)
	if err != nil {
		logx.WithContext(ctx).Errorf("crdt: join target %s failed: %v", id, err)
		return
	}
	defer store.Leave(context.Background(), target, client)

	done := make(chan struct{})
	go writePump(conn, client, done)
	readPump(ctx, conn, store, target, client)
	close(done)
}

func writePump(conn *websocket.Conn, client *Client, done <-chan struct{}) {
	for {
		select {
		case frame, ok := <-client.Send():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func readPump(ctx context.Context, conn *websocket.Conn, store *Store, target *Target, client *Client) {
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		frame, err := DecodeFrame(raw)
		if err != nil {
			sendError(client, "malformed_frame", err.Error())
			continue
		}

		switch frame.Type {
		case SyncStep1:
			diff, err := store.HandleSyncStep1(target, frame.Payload)
			if err != nil {
				sendError(client, "malformed_state_vector", err.Error())
				continue
			}
			reply := EncodeFrame(Frame{Type: SyncStep2, Payload: diff})
			select {
			case client.send <- reply:
			default:
			}

		case Update:
			if err := store.HandleUpdate(ctx, target, client, frame.Payload, client.UserID); err != nil {
				sendError(client, "update_rejected", err.Error())
				continue
			}

		case Awareness:
			store.HandleAwareness(target, client, frame.Payload)

		default:
			sendError(client, "unsupported_frame", "server does not accept this frame type from a client")
		}
	}
}

func sendError(client *Client, code, message string) {
	frame := EncodeFrame(Frame{Type: ErrorFrame, Payload: errorPayload(code, message)})
	select {
	case client.send <- frame:
	default:
	}
}
