package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/dama-table/pkg/tabledto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func main() {
	wsURL := strings.TrimSpace(os.Getenv("TABLE_WS_URL"))
	tableID := strings.TrimSpace(os.Getenv("TABLE_ID"))
	token := strings.TrimSpace(os.Getenv("TABLE_TOKEN"))
	initFile := strings.TrimSpace(os.Getenv("TABLE_INIT_FILE"))

	if wsURL == "" {
		log.Fatal("TABLE_WS_URL is required")
	}
	if tableID == "" {
		log.Fatal("TABLE_ID is required")
	}

	observe := 10 * time.Second
	if v := strings.TrimSpace(os.Getenv("TABLE_OBSERVE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			observe = time.Duration(n) * time.Second
		}
	}

	u, err := url.Parse(wsURL)
	if err != nil {
		log.Fatalf("bad TABLE_WS_URL: %v", err)
	}
	q := u.Query()
	q.Set("table", tableID)
	u.RawQuery = q.Encode()

	hdr := http.Header{}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
	}

	dctx, dcancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, _, err := websocket.Dial(dctx, u.String(), &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      hdr,
	})
	dcancel()
	if err != nil {
		log.Fatalf("WS connect error: %v", err)
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithTimeout(context.Background(), observe)
	defer cancel()

	if initFile != "" {
		if err := sendInitBoard(ctx, conn, initFile); err != nil {
			log.Printf("initBoard not sent: %v", err)
		}
	}

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				log.Printf("observe window over")
			case websocket.CloseStatus(err) != -1:
				log.Printf("closed by server: %d %s", websocket.CloseStatus(err), err)
			default:
				log.Printf("read error: %v", err)
			}
			break
		}
		typ, _ := tabledto.PeekType(raw)
		fmt.Printf("%s %s\n", typ, raw)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "tablecheck done")
}

// sendInitBoard forwards a JSON file as an initBoard frame; the file may omit "type".
func sendInitBoard(ctx context.Context, conn *websocket.Conn, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var req tabledto.InitBoardRequest
	if err := json.Unmarshal(b, &req); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	frame := struct {
		Type string `json:"type"`
		tabledto.InitBoardRequest
	}{Type: tabledto.TypeInitBoard, InitBoardRequest: req}
	return wsjson.Write(ctx, conn, frame)
}
