package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-dm/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8000/ws", "WebSocket base address")
	user := flag.Int64("user", 1, "your user id")
	to := flag.Int64("to", 2, "initial recipient user id")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	url := strings.TrimRight(*addr, "/") + "/" + strconv.FormatInt(*user, 10)
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("Connected to %s as user %d, sending to %d\n", url, *user, *to)
	fmt.Println("Type messages and press Enter to send. /to N switches recipient. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, *to)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame struct {
			proto.Outbound
			Error *proto.Error `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			case 4000:
				fmt.Println("connection replaced by a newer login")
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if frame.Error != nil {
			fmt.Printf("! %s: %s\n", frame.Error.Code, frame.Error.Msg)
			continue
		}
		fmt.Printf("[%s] user %d: %s\n", frame.Timestamp, frame.SenderID, frame.Content)
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, to int64) {
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

			if rest, found := strings.CutPrefix(text, "/to "); found {
				id, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
				if err != nil || id <= 0 {
					fmt.Println("usage: /to <user id>")
					continue
				}
				to = id
				fmt.Printf("now sending to %d\n", to)
				continue
			}

			if err := wsjson.Write(ctx, conn, proto.Inbound{ReceiverID: to, Content: text}); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
