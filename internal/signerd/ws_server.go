package signerd

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"gitee.com/czyczk/claimlink/internal/signerapi"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const wsWriteTimeout = 10 * time.Second

// NewWSHandler upgrades the connection and answers every request message with a response envelope carrying the same request ID. Requests on one connection are handled concurrently.
func NewWSHandler(signer *Signer) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("WebSocket 升级失败: %v", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup
		var writeLock sync.Mutex
		defer func() {
			cancel()
			wg.Wait()
		}()

		writeResponse := func(resp *signerapi.Response) {
			writeLock.Lock()
			defer writeLock.Unlock()

			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(resp); err != nil {
				log.Warnf("Cannot write signer answer for request %v: %v", resp.RequestID, err)
			}
		}

		log.Debugf("Signer WebSocket session opened by %v", r.RemoteAddr)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warnf("Signer WebSocket session from %v ended: %v", r.RemoteAddr, err)
				}
				return
			}

			var req signerapi.Request
			if err := json.Unmarshal(message, &req); err != nil {
				writeResponse(signerapi.NewErrorResponse("", "请求不合法："+err.Error()))
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				writeResponse(signer.Handle(ctx, &req))
			}()
		}
	}
}
