package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-dm/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run connects two users, sends one message and waits for the receiver to get it.
func run() error {
	addr := flag.String("addr", "ws://localhost:8000/ws", "WebSocket base address")
	from := flag.Int64("from", 1, "sender user id")
	to := flag.Int64("to", 2, "receiver user id")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	dial := func(id int64) (*websocket.Conn, error) {
		url := strings.TrimRight(*addr, "/") + "/" + strconv.FormatInt(id, 10)
		conn, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("dial user %d: %w", id, err)
		}
		return conn, nil
	}

	receiver, err := dial(*to)
	if err != nil {
		return err
	}
	defer receiver.Close(websocket.StatusNormalClosure, "bye")

	sender, err := dial(*from)
	if err != nil {
		return err
	}
	defer sender.Close(websocket.StatusNormalClosure, "bye")

	// Give the server a moment to register the receiver.
	time.Sleep(100 * time.Millisecond)

	if err := wsjson.Write(ctx, sender, proto.Inbound{ReceiverID: *to, Content: *text}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	var out proto.Outbound
	if err := wsjson.Read(ctx, receiver, &out); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	fmt.Printf("Received: sender=%d content=%q ts=%s\n", out.SenderID, out.Content, out.Timestamp)

	if out.SenderID != *from || out.Content != *text {
		return fmt.Errorf("unexpected message: %+v", out)
	}
	return nil
}
