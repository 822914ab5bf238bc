// Package main is a minimal CLI client for the pychat relay. It connects,
// optionally sends one frame, and prints every frame it receives.
//
// Usage:
//
//	client -url ws://localhost:8765/ws -sender cli -send "hello"
//	client -url ws://localhost:8765/ws
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/gorilla/websocket"

	"github.com/chaos-ds/pychat/internal/store"
)

func main() {
	url := flag.String("url", "ws://localhost:8765/ws", "relay WebSocket URL")
	sender := flag.String("sender", "cli", "sender display name")
	send := flag.String("send", "", "message text to send after connecting")
	attachment := flag.String("attachment", "", "attachment path or URL to include")
	flag.Parse()

	if err := run(*url, *sender, *send, *attachment); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(url, sender, send, attachment string) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()

	fmt.Println("Connected to", url)

	if send != "" || attachment != "" {
		msg := store.Message{Sender: sender, Text: send}
		if attachment != "" {
			msg.Attachment = &attachment
		}
		if err := conn.WriteJSON(&msg); err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}

		var msg store.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			fmt.Printf("RECV> %s\n", raw)
			continue
		}
		if msg.Attachment != nil {
			fmt.Printf("RECV> [%d] %s: %s (attachment: %s)\n", msg.ID, msg.Sender, msg.Text, *msg.Attachment)
		} else {
			fmt.Printf("RECV> [%d] %s: %s\n", msg.ID, msg.Sender, msg.Text)
		}
	}
}
