package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/repogate/repogate/provision"
	"github.com/repogate/repogate/provision/signature"
)

/* send-test-event - Standalone CLI tool to POST a signed payment webhook
 * delivery to a running instance, for smoke-testing a deployment.
 * Usage: go run cmd/send-test-event/main.go -secret whsec_... -username octocat
 * Exit codes: 0 = delivery accepted, 1 = error
 */

func main() {
	var (
		endpoint  = flag.String("url", "http://localhost:8080/api/webhooks/dodo", "webhook endpoint URL")
		secretStr = flag.String("secret", "", "signing secret (empty sends an unsigned delivery)")
		eventType = flag.String("type", provision.EventPaymentSucceeded, "event type to send")
		email     = flag.String("email", "buyer@example.com", "customer email")
		username  = flag.String("username", "", "checkout metadata github username")
	)
	flag.Parse()

	event := provision.Event{
		Type: *eventType,
		Data: provision.EventData{
			Customer: &provision.Customer{Email: *email},
		},
	}
	if *username != "" {
		event.Data.Metadata = &provision.Metadata{GithubUsername: *username}
	}

	body, err := json.Marshal(event)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshaling event: %v\n", err)
		os.Exit(1)
	}

	deliveryID := "msg_" + uuid.New().String()
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	req, err := http.NewRequest(http.MethodPost, *endpoint, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("webhook-id", deliveryID)
	req.Header.Set("webhook-timestamp", timestamp)

	if *secretStr != "" {
		secret, err := signature.ParseSecret(*secretStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parsing secret: %v\n", err)
			os.Exit(1)
		}
		sig := signature.Sign(secret, deliveryID, timestamp, body)
		req.Header.Set("webhook-signature", signature.BuildSignatureHeader([]signature.Signature{sig}))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sending delivery: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Delivery %s -> %s\n", deliveryID, resp.Status)
	fmt.Println(string(respBody))

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
