// Command stress_test fires concurrent purchase intents at a running engine
// and checks that the ledger admitted exactly the advertised stock.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type purchaseRequest struct {
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`
	ItemID    string `json:"item_id"`
	UserID    string `json:"user_id"`
	Quantity  int    `json:"quantity"`
}

type purchaseResponse struct {
	Success       bool   `json:"success"`
	ReservationID string `json:"reservation_id"`
	Code          string `json:"code"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "engine base URL")
	sessionID := flag.String("session", "", "flash sale session id")
	itemID := flag.String("item", "", "flash sale item id")
	totalRequests := flag.Int("requests", 50, "number of concurrent purchase attempts")
	expectedStock := flag.Int("stock", 20, "remaining stock before the run")
	flag.Parse()

	if *sessionID == "" || *itemID == "" {
		log.Fatal("both -session and -item are required")
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			body, _ := json.Marshal(purchaseRequest{
				RequestID: fmt.Sprintf("stress-%d-%d", start.UnixNano(), userID),
				SessionID: *sessionID,
				ItemID:    *itemID,
				UserID:    fmt.Sprintf("user-%d", userID),
				Quantity:  1,
			})

			resp, err := client.Post(*baseURL+"/api/purchase", "application/json", bytes.NewReader(body))
			if err != nil {
				otherCount.Add(1)
				return
			}
			defer resp.Body.Close()

			var parsed purchaseResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				otherCount.Add(1)
				return
			}

			switch {
			case parsed.Success:
				successCount.Add(1)
			case parsed.Code == "OUT_OF_STOCK":
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	soldOut := soldOutCount.Load()
	other := otherCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Expected Stock:   %d\n", *expectedStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Other Failures:   %d\n", other)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if int(success) == *expectedStock && int(soldOut) == *totalRequests-*expectedStock {
		fmt.Printf("PASS: Exactly %d reservations succeeded, %d rejected\n", success, soldOut)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d sold out, got %d/%d (other: %d)\n",
			*expectedStock, *totalRequests-*expectedStock, success, soldOut, other)
	}
}
