// Command lob-client is an interactive dissemination client: it subscribes
// to symbols and prints every frame the server pushes.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/luxfi/log"
)

func main() {
	var (
		wsURL  = flag.String("url", "ws://localhost:8080/ws", "dissemination WebSocket URL")
		symbol = flag.String("symbol", "", "symbol to subscribe on connect")
	)
	flag.Parse()

	level, _ := log.ToLevel("info")
	logger := log.NewTestLogger(level)

	conn, _, err := websocket.DefaultDialer.Dial(*wsURL, nil)
	if err != nil {
		logger.Error("dial failed", "url", *wsURL, "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("connected", "url", *wsURL)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Error("read failed", "error", err)
				}
				return
			}
			fmt.Println(string(frame))
		}
	}()

	if *symbol != "" {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("subscribe:"+*symbol)); err != nil {
			logger.Error("subscribe failed", "error", err)
			os.Exit(1)
		}
	}

	// Forward stdin lines as raw requests: subscribe:<symbol>,
	// unsubscribe:<symbol>.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	for {
		select {
		case <-done:
			return
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if line == "" {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				logger.Error("write failed", "error", err)
				return
			}
		case <-interrupt:
			logger.Info("closing")
			err := conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
