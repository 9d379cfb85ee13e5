// delivery-sender posts a signed test delivery to a triggerd webhook
// endpoint. It computes the HMAC signature, freshness timestamp, and
// a random delivery ID the way a real sender would, so the full
// verification pipeline can be exercised from the command line.
package main

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	url := flag.String("url", "", "delivery URL, e.g. http://localhost:8080/v1/webhooks/wh_1a2b3c")
	secret := flag.String("secret", "", "webhook secret (empty sends an unsigned delivery)")
	body := flag.String("body", `{"test":true}`, "JSON payload to deliver")
	deliveryID := flag.String("delivery-id", "", "delivery ID header (random when empty; repeat one to test replay rejection)")
	skew := flag.Duration("skew", 0, "offset applied to the timestamp header, e.g. -10m to test staleness")
	flag.Parse()

	if *url == "" {
		flag.Usage()
		os.Exit(2)
	}

	req, err := http.NewRequest(http.MethodPost, *url, strings.NewReader(*body))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if *secret != "" {
		mac := hmac.New(sha256.New, []byte(*secret))
		mac.Write([]byte(*body))
		req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
		req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().Add(*skew).Unix(), 10))
	}

	id := *deliveryID
	if id == "" {
		id = randomID()
	}
	req.Header.Set("X-Delivery-ID", id)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("send: %v", err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	fmt.Printf("delivery %s -> %s\n%s", id, resp.Status, out)
}

func randomID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		log.Fatalf("random id: %v", err)
	}
	return "dlv_" + hex.EncodeToString(b[:])
}
