package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/example/ec-order-service/internal/domain/order"
	"github.com/example/ec-order-service/internal/infrastructure/kafka"
)

// The reconciler tails the event topic and surfaces stock integrity
// failures as loud operator alerts. It never auto-resolves anything: a
// partial commit or partial restoration stays an operator decision.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brokersStr := getEnv("KAFKA_BROKERS", "localhost:9092")
	brokers := strings.Split(brokersStr, ",")
	topic := getEnv("KAFKA_TOPIC", "order-events")
	groupID := getEnv("KAFKA_GROUP_ID", "stock-reconciler")

	log.Println("[Reconciler] ========================================")
	log.Println("[Reconciler] Stock Reconciliation Monitor")
	log.Println("[Reconciler] ========================================")
	log.Printf("[Reconciler] Kafka: %v topic=%s group=%s", brokers, topic, groupID)

	consumer := kafka.NewConsumer(brokers, topic, groupID)
	defer consumer.Close()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("[Reconciler] Shutting down...")
		cancel()
	}()

	if err := consumer.Consume(ctx, handleEvent); err != nil && ctx.Err() == nil {
		log.Fatalf("[Reconciler] Consumer error: %v", err)
	}
}

func handleEvent(ctx context.Context, key, value []byte) error {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(value, &envelope); err != nil {
		log.Printf("[Reconciler] Skipping unparseable event: %v", err)
		return nil
	}

	switch envelope.Type {
	case order.EventStockCommitFailed:
		var ev order.StockCommitFailed
		if err := json.Unmarshal(value, &ev); err != nil {
			return err
		}
		log.Printf("[Reconciler] ALERT: order %s persisted with only %d item(s) decremented; decrement failed on product %s: %s",
			ev.OrderID, ev.Decremented, ev.FailedProductID, ev.Reason)
		log.Printf("[Reconciler] ACTION REQUIRED: reconcile stock for order %s before refund or retry", ev.OrderID)
	case order.EventStockRestorationFailed:
		var ev order.StockRestorationIncomplete
		if err := json.Unmarshal(value, &ev); err != nil {
			return err
		}
		log.Printf("[Reconciler] ALERT: cancellation of order %s restored %v but not %v (failed on %s): %s",
			ev.OrderID, ev.Restored, ev.Unrestored, ev.FailedProductID, ev.Reason)
		log.Printf("[Reconciler] ACTION REQUIRED: restore remaining items for order %s manually, then retry the cancel", ev.OrderID)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
