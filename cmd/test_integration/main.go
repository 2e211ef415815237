package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const baseURL = "http://localhost:8080"

// Smoke test against a running server: health, quality report, and the
// pending-work sweep. Run it after docker compose up.
func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Smoke Test...")

	fmt.Println("1. Health check...")
	if !sendRequest("GET", "/health", nil) {
		fmt.Println("FAILED: Health check")
		os.Exit(1)
	}
	fmt.Println("PASSED: Health check")

	fmt.Println("2. Connection quality report...")
	if !sendRequest("GET", "/admin/connection-quality", nil) {
		fmt.Println("FAILED: Connection quality report")
		os.Exit(1)
	}
	fmt.Println("PASSED: Connection quality report")

	fmt.Println("3. Pending-work sweep...")
	if !sendRequest("POST", "/admin/process-pending", map[string]interface{}{}) {
		fmt.Println("FAILED: Pending-work sweep")
		os.Exit(1)
	}
	fmt.Println("PASSED: Pending-work sweep")
}

func sendRequest(method, endpoint string, payload interface{}) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Response: %s\n", string(respBody))

	return true
}
