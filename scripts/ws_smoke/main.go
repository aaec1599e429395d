package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/relaychat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

type outboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// run connects two users, sends one message and acknowledges it.
func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	sender := flag.String("sender", "smoke-sender", "sending user id")
	target := flag.String("target", "smoke-target", "receiving user id")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	from, err := connect(ctx, *addr, *sender)
	if err != nil {
		return err
	}
	defer from.Close(websocket.StatusNormalClosure, "bye")

	to, err := connect(ctx, *addr, *target)
	if err != nil {
		return err
	}
	defer to.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, from, proto.InboundTypeMessage, proto.MessageData{TargetID: *target, Message: *text}); err != nil {
		return err
	}

	frame, err := await(ctx, to, proto.EventMessage)
	if err != nil {
		return err
	}
	var msg proto.EventMessageData
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	fmt.Printf("message: room=%s from=%s text=%q unread_rooms=%d new_room=%t\n",
		msg.Chat.RoomID, msg.Chat.SenderID, msg.Chat.Msg, len(msg.UnreadSnapshot), msg.RoomID != "")

	if err := send(ctx, to, proto.InboundTypeMessageRead, proto.MessageReadData{
		MessageIDs: []string{msg.Chat.ID},
		RoomID:     msg.Chat.RoomID,
		UserID:     *target,
	}); err != nil {
		return err
	}

	frame, err = await(ctx, from, proto.EventMessageRead)
	if err != nil {
		return err
	}
	var receipt proto.EventMessageReadData
	if err := json.Unmarshal(frame.Data, &receipt); err != nil {
		return fmt.Errorf("unmarshal receipt: %w", err)
	}
	fmt.Printf("messageRead: target=%s ids=%v\n", receipt.TargetID, receipt.MessageIDs)
	return nil
}

func connect(ctx context.Context, addr, userID string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if err := send(ctx, conn, proto.InboundTypeRegister, proto.RegisterData{UserID: userID}); err != nil {
		conn.Close(websocket.StatusNormalClosure, "bye")
		return nil, err
	}
	if _, err := await(ctx, conn, proto.EventRegistered); err != nil {
		conn.Close(websocket.StatusNormalClosure, "bye")
		return nil, err
	}
	return conn, nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

// await reads frames until one with the given event arrives.
func await(ctx context.Context, conn *websocket.Conn, event string) (outboundFrame, error) {
	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return frame, fmt.Errorf("read: %w", err)
		}
		if frame.Type == proto.OutboundTypeError && frame.Error != nil {
			return frame, fmt.Errorf("server error %s: %s", frame.Error.Code, frame.Error.Msg)
		}
		if frame.Event == event {
			return frame, nil
		}
		fmt.Printf("skipping event=%s\n", frame.Event)
	}
}
