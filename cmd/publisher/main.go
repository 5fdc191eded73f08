package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	stan "github.com/nats-io/stan.go"
)

// Publishes a full state snapshot read from stdin to the cart or currency
// broadcast subject. Every running service instance adopts the snapshot
// wholesale (last writer wins).
func main() {
	target := flag.String("target", "cart", "snapshot subject to publish to: cart or currency")
	flag.Parse()

	clusterID := getenv("STAN_CLUSTER_ID", "commerce-cluster")
	clientID := getenv("STAN_PUB_ID", "commerce-publisher")
	natsURL := getenv("NATS_URL", "nats://localhost:4223")

	subject := getenv("CART_SUBJECT", "commerce.cart.updated")
	if *target == "currency" {
		subject = getenv("CURRENCY_SUBJECT", "commerce.currency.changed")
	}

	sc, err := stan.Connect(clusterID, clientID, stan.NatsURL(natsURL))
	if err != nil {
		log.Fatalf("stan connect: %v", err)
	}
	defer sc.Close()

	var payload map[string]any
	dec := json.NewDecoder(os.Stdin)
	if err := dec.Decode(&payload); err != nil {
		log.Fatalf("read json from stdin: %v", err)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	if err := sc.Publish(subject, b); err != nil {
		log.Fatalf("publish: %v", err)
	}
	log.Printf("published %d bytes to %s", len(b), subject)
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
