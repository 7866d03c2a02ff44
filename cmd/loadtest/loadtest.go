//nolint:all
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Opens N websocket connections against a running server and pushes a
// burst of chat traffic through each.
func main() {
	addr := flag.String("addr", "ws://localhost:5000/ws", "websocket endpoint")
	conns := flag.Int("conns", 10, "concurrent connections")
	msgs := flag.Int("msgs", 20, "messages per connection")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < *conns; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			conn, _, err := websocket.Dial(ctx, *addr, nil)
			if err != nil {
				log.Printf("conn %d: dial failed: %v", n, err)
				return
			}
			defer conn.CloseNow()

			sender := fmt.Sprintf("loadtest-%d", n)
			send(ctx, conn, "userConnected", sender)

			for m := 0; m < *msgs; m++ {
				send(ctx, conn, "typing", sender)
				send(ctx, conn, "sendMessage", map[string]any{
					"text":   fmt.Sprintf("message %d from %s", m, sender),
					"sender": sender,
					"image":  nil,
				})
				send(ctx, conn, "stopTyping", sender)
			}

			conn.Close(websocket.StatusNormalClosure, "done")
		}(i)
	}

	wg.Wait()
}

func send(ctx context.Context, conn *websocket.Conn, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("marshal %s: %v", event, err)
		return
	}

	p, err := json.Marshal(map[string]any{"event": event, "data": json.RawMessage(raw)})
	if err != nil {
		log.Printf("marshal envelope: %v", err)
		return
	}

	if err := conn.Write(ctx, websocket.MessageText, p); err != nil {
		log.Printf("write %s: %v", event, err)
	}
}
