package main

// Consume batch-complete notifications and forward them to a webhook:
//   BATCH_QUEUE_URL=... BATCH_WEBHOOK_URL=... go run ./cmd/batch-listener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"vendorquery-backend/internal/queue"
	"vendorquery-backend/internal/shared/config"
	"vendorquery-backend/internal/shared/telemetry"
)

const (
	defaultVisibilitySeconds  = 120
	defaultListenerWorkers    = 4
	defaultShutdownTimeoutSec = 30
	webhookTimeout            = 10 * time.Second
)

func main() {
	cfg := config.Load()

	queueURL := strings.TrimSpace(cfg.BatchQueueURL)
	if queueURL == "" {
		log.Fatal("BATCH_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("BATCH_LISTENER_VISIBILITY_SECONDS", defaultVisibilitySeconds)
	workers := envInt("BATCH_LISTENER_WORKERS", defaultListenerWorkers)
	shutdownTimeout := time.Duration(envInt("BATCH_LISTENER_SHUTDOWN_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.AWSRegion != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	var n notifier = logNotifier{}
	if cfg.BatchWebhookURL != "" {
		n = &webhookNotifier{URL: cfg.BatchWebhookURL, HTTP: &http.Client{Timeout: webhookTimeout}}
	}

	sem := make(chan struct{}, max(1, workers))
	var wg sync.WaitGroup

	log.Printf("batch listener started queue=%s workers=%d visibility=%ds", queueURL, workers, visibilitySeconds)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(context.WithoutCancel(ctx), sqsClient, queueURL, n, m)
			}(msg)
		}
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight notifications", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight notifications")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type notifier interface {
	Notify(ctx context.Context, msg queue.BatchCompleted) error
}

type logNotifier struct{}

func (logNotifier) Notify(_ context.Context, msg queue.BatchCompleted) error {
	telemetry.Info("batch.notification", map[string]any{
		"batch_id":     msg.BatchID,
		"total":        msg.Total,
		"complete":     msg.Complete,
		"error":        msg.Error,
		"completed_at": msg.CompletedAt,
	})
	return nil
}

// webhookNotifier POSTs the message body unchanged.
type webhookNotifier struct {
	URL  string
	HTTP *http.Client
}

func (w *webhookNotifier) Notify(ctx context.Context, msg queue.BatchCompleted) error {
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

// handleMessage deletes the message once it is delivered or found undecodable. Delivery
// failures leave it on the queue for redelivery after the visibility timeout.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, n notifier, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	if strings.TrimSpace(body) == "" {
		telemetry.Error("listener.empty_body", baseFields(msg, ""))
		deleteMessage(ctx, client, queueURL, msg, "")
		return
	}

	decoded, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		fields := baseFields(msg, "")
		fields["body_len"] = len(body)
		fields["error"] = err.Error()
		telemetry.Error("listener.decode_failed", fields)
		deleteMessage(ctx, client, queueURL, msg, "")
		return
	}
	if decoded.BatchID == "" {
		telemetry.Error("listener.missing_batch_id", baseFields(msg, ""))
		deleteMessage(ctx, client, queueURL, msg, "")
		return
	}

	notifyCtx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()
	if err := n.Notify(notifyCtx, decoded); err != nil {
		fields := baseFields(msg, decoded.BatchID)
		fields["error"] = err.Error()
		telemetry.Error("listener.notify_failed", fields)
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.BatchID) {
		telemetry.Info("listener.delivered", baseFields(msg, decoded.BatchID))
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, batchID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, batchID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("listener.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, batchID)
		fields["error"] = err.Error()
		telemetry.Error("listener.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, batchID string) map[string]any {
	return map[string]any{
		"batch_id":       batchID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}
