package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/relaychat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

type outboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "own user id")
	peer := flag.String("peer", "", "user id to chat with")
	flag.Parse()

	if *peer == "" {
		return errors.New("-peer is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeRegister, proto.RegisterData{UserID: *user}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s, chatting with %s\n", *addr, *user, *peer)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn, *user)
	}()

	writeLoop(ctx, conn, *peer)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	return wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload})
}

// readLoop prints incoming events and acknowledges messages from the peer as read.
func readLoop(ctx context.Context, conn *websocket.Conn, self string) {
	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if frame.Type == proto.OutboundTypeError && frame.Error != nil {
			fmt.Printf("error %s: %s\n", frame.Error.Code, frame.Error.Msg)
			continue
		}

		switch frame.Event {
		case proto.EventRegistered:
			fmt.Println("registered")
		case proto.EventMessage:
			var evt proto.EventMessageData
			if err := json.Unmarshal(frame.Data, &evt); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			fmt.Printf("%s: %s\n", evt.Chat.Sender, evt.Chat.Msg)
			if evt.Chat.SenderID != self {
				ack := proto.MessageReadData{MessageIDs: []string{evt.Chat.ID}, RoomID: evt.Chat.RoomID, UserID: self}
				if err := send(ctx, conn, proto.InboundTypeMessageRead, ack); err != nil {
					log.Printf("send read receipt: %v", err)
				}
			}
		case proto.EventMessageRead:
			var evt proto.EventMessageReadData
			if err := json.Unmarshal(frame.Data, &evt); err != nil {
				log.Printf("unmarshal messageRead: %v", err)
				continue
			}
			fmt.Printf("(read %d message(s))\n", len(evt.MessageIDs))
		default:
			fmt.Printf("event=%s data=%s\n", frame.Event, frame.Data)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, peer string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			if err := send(ctx, conn, proto.InboundTypeMessage, proto.MessageData{TargetID: peer, Message: text}); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
