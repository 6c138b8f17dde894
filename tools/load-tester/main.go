package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type ack struct {
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	targetURL := flag.String("url", "ws://localhost:3000/ws", "Gateway websocket URL")
	className := flag.String("class", "load-test", "Class name to write into")
	concurrency := flag.Int("c", 10, "Number of concurrent sessions")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 200, "Requests per second limit across all sessions")
	flag.Parse()

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 50)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, *targetURL, nil)
			if err != nil {
				log.Printf("worker %d: dial failed: %v", workerID, err)
				errorCount.Add(1)
				return
			}
			defer conn.Close()

			// Discard the unsolicited app-version push.
			var versionPush ack
			if err := conn.ReadJSON(&versionPush); err != nil {
				log.Printf("worker %d: version push read failed: %v", workerID, err)
				return
			}

			sheet := fmt.Sprintf("load-sheet-%d", workerID)
			for seq := 0; ; seq++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				reqID := uuid.NewString()
				var req map[string]any
				if seq%5 == 4 {
					req = map[string]any{
						"id":    reqID,
						"event": "load-latest-copy",
						"data":  map[string]any{"className": *className},
					}
				} else {
					req = map[string]any{
						"id":    reqID,
						"event": "save-table",
						"data": map[string]any{
							"className": *className,
							"sheetName": sheet,
							"data":      map[string]any{"seq": seq, "worker": workerID},
						},
					}
				}

				if err := conn.WriteJSON(req); err != nil {
					errorCount.Add(1)
					return
				}

				_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
				var resp ack
				if err := conn.ReadJSON(&resp); err != nil {
					errorCount.Add(1)
					return
				}
				if resp.ID != reqID {
					// Acks are per-request; a mismatch means the harness
					// itself is confused, count it as an error.
					errorCount.Add(1)
					continue
				}

				var body map[string]any
				_ = json.Unmarshal(resp.Data, &body)
				if _, isErr := body["error"]; isErr || body["success"] == false {
					errorCount.Add(1)
				} else {
					successCount.Add(1)
				}
			}
		}(i)
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful acks: %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
}
