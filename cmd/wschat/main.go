package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/alexismendozaa/chat/internal/proto"
)

// frame mirrors proto.Outbound with the payload left undecoded.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *proto.Error    `json:"error,omitempty"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("wschat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:3000/ws", "WebSocket address")
	token := flag.String("token", os.Getenv("CHAT_TOKEN"), "bearer token (see `chatd token`)")
	room := flag.String("room", "general", "room to join")
	peer := flag.String("dm", "", "open a direct room with this subject id instead of --room")
	text := flag.String("text", "", "send one message, wait for its broadcast and exit")
	timeout := flag.Duration("timeout", 5*time.Second, "deadline for --text mode")
	flag.Parse()

	if *token == "" {
		return errors.New("a token is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + *token}},
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if *text != "" {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, *timeout)
		defer cancelTimeout()
	}

	joined := make(chan string, 1)
	echoed := make(chan proto.EventMessage, 1)
	if *peer != "" {
		if err := sendInbound(ctx, conn, proto.InboundTypeOpenDirect, proto.OpenDirectData{Peer: *peer}); err != nil {
			return err
		}
	} else {
		if err := sendInbound(ctx, conn, proto.InboundTypeJoin, proto.JoinData{RoomID: *room}); err != nil {
			return err
		}
	}

	go func() {
		defer cancel()
		readLoop(ctx, conn, joined, echoed)
	}()

	var current string
	select {
	case current = <-joined:
	case <-ctx.Done():
		return ctx.Err()
	}

	if *text != "" {
		return smoke(ctx, conn, current, *text, echoed)
	}

	fmt.Printf("Connected to %s in room %s\n", *addr, current)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	writeLoop(ctx, conn, current)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func sendInbound(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

// smoke sends a single message and waits until the server broadcasts it back.
func smoke(ctx context.Context, conn *websocket.Conn, room, text string, echoed <-chan proto.EventMessage) error {
	if err := sendInbound(ctx, conn, proto.InboundTypeMsg, proto.MsgData{RoomID: room, Text: text}); err != nil {
		return err
	}
	for {
		select {
		case msg := <-echoed:
			if msg.RoomID == room && msg.Text == text {
				fmt.Printf("ok: message %s stored at %s\n", msg.ID, msg.CreatedAt)
				return conn.Close(websocket.StatusNormalClosure, "done")
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for broadcast: %w", ctx.Err())
		}
	}
}

func printMessage(msg proto.EventMessage) {
	line := msg.Text
	if msg.ImageURL != "" {
		line = strings.TrimSpace(line + " " + msg.ImageURL)
	}
	fmt.Printf("[%s] %s: %s\n", msg.RoomID, msg.User, line)
}

func readLoop(ctx context.Context, conn *websocket.Conn, joined chan<- string, echoed chan<- proto.EventMessage) {
	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
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

		if out.Type == proto.OutboundTypeError && out.Error != nil {
			fmt.Printf("error %s: %s\n", out.Error.Code, out.Error.Msg)
			continue
		}

		switch out.Event {
		case proto.EventNameJoined:
			var evt proto.EventJoinedData
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				log.Printf("unmarshal joined: %v", err)
				continue
			}
			select {
			case joined <- evt.RoomID:
			default:
			}
		case proto.EventNameHistory:
			var evt proto.EventHistoryData
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				log.Printf("unmarshal history: %v", err)
				continue
			}
			for _, msg := range evt.Messages {
				printMessage(msg)
			}
		case proto.EventNameMessage:
			var evt proto.EventMessage
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			printMessage(evt)
			select {
			case echoed <- evt:
			default:
			}
		default:
			fmt.Printf("event=%s data=%s\n", out.Event, out.Data)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, room string) {
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
			if err := sendInbound(ctx, conn, proto.InboundTypeMsg, proto.MsgData{RoomID: room, Text: text}); err != nil {
				log.Printf("%v", err)
				return
			}
		}
	}
}
