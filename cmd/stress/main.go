// stress fires concurrent purchase requests at a running gateway and checks
// the oversell invariant: successes never exceed the starting stock.
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

func main() {
	gatewayURL := flag.String("gateway", "http://localhost:7000", "gateway base URL")
	itemID := flag.Int("item", 1, "item to purchase")
	requests := flag.Int("requests", 50, "number of concurrent purchase requests")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	initialStock, err := fetchStock(client, *gatewayURL, *itemID)
	if err != nil {
		log.Fatalf("failed to read initial stock: %v", err)
	}

	var (
		success    atomic.Int32
		outOfStock atomic.Int32
		failed     atomic.Int32
		wg         sync.WaitGroup
	)

	start := time.Now()
	for i := 0; i < *requests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			body, _ := json.Marshal(map[string]string{
				"idempotency_key": fmt.Sprintf("stress-%d-%d", start.UnixNano(), n),
			})
			resp, err := client.Post(
				fmt.Sprintf("%s/purchase/%d", *gatewayURL, *itemID),
				"application/json", bytes.NewReader(body))
			if err != nil {
				failed.Add(1)
				return
			}
			resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
				success.Add(1)
			case http.StatusConflict:
				outOfStock.Add(1)
			default:
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	finalStock, err := fetchStock(client, *gatewayURL, *itemID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}

	expected := min(initialStock, *requests)

	fmt.Println("========== STRESS RESULTS ==========")
	fmt.Printf("Initial Stock:  %d\n", initialStock)
	fmt.Printf("Requests:       %d\n", *requests)
	fmt.Printf("Successful:     %d\n", success.Load())
	fmt.Printf("Out of Stock:   %d\n", outOfStock.Load())
	fmt.Printf("Errors:         %d\n", failed.Load())
	fmt.Printf("Final Stock:    %d\n", finalStock)
	fmt.Printf("Duration:       %v\n", elapsed)
	fmt.Println("====================================")

	if int(success.Load()) == expected && finalStock == initialStock-expected {
		fmt.Printf("PASS: %d purchases succeeded, stock %d -> %d\n", expected, initialStock, finalStock)
	} else {
		fmt.Printf("FAIL: expected %d successes and final stock %d, got %d and %d\n",
			expected, initialStock-expected, success.Load(), finalStock)
	}
}

func fetchStock(client *http.Client, gatewayURL string, itemID int) (int, error) {
	resp, err := client.Get(fmt.Sprintf("%s/items/%d", gatewayURL, itemID))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var item struct {
		Stock int `json:"stock"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return 0, err
	}
	return item.Stock, nil
}
