package ingestion

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"bitbucket.org/mmdatafocus/contacts_backend/config"
	"bitbucket.org/mmdatafocus/contacts_backend/models"
	"bitbucket.org/mmdatafocus/contacts_backend/utils"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ingestHandlerName = "ingest-job"

// StartIngestWorker consumes ingest messages until ctx is cancelled.
// Delivery is at least once; ProcessIngestJob and the idempotency record
// make redelivery safe.
func StartIngestWorker(ctx context.Context) error {
	logger := config.GetLogger()

	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}

	topic, err := config.CreateTopicIfNotExists(client, config.IngestTopicName())
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, config.IngestSubscriptionName(), topic)
	if err != nil {
		return err
	}

	maxOutstanding := 4
	if v, err := strconv.Atoi(os.Getenv("INGEST_MAX_OUTSTANDING")); err == nil && v > 0 {
		maxOutstanding = v
	}
	sub.ReceiveSettings.MaxOutstandingMessages = maxOutstanding

	logger.WithField("subscription", config.IngestSubscriptionName()).Info("ingest worker listening")
	return sub.Receive(ctx, handleIngestMessage)
}

func handleIngestMessage(ctx context.Context, msg *pubsub.Message) {
	logger := config.GetLogger()

	var payload config.IngestJobMessage
	if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.JobId == 0 {
		logger.WithField("message_id", msg.ID).Warn("dropping malformed ingest message")
		msg.Ack()
		return
	}

	correlationId := payload.CorrelationId
	if correlationId == "" {
		correlationId = uuid.NewString()
	}
	ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
	log := logger.WithField("job_id", payload.JobId).WithField("correlation_id", correlationId)

	db := config.GetDB()
	record, first, err := models.BeginIdempotent(db, ingestHandlerName, msg.ID, payload.JobId)
	if err != nil {
		log.WithError(err).Error("idempotency check failed")
		msg.Nack()
		return
	}
	if !first && record.Status == models.IdempotencyStatusSucceeded {
		log.Info("duplicate delivery of processed message, acking")
		msg.Ack()
		return
	}

	if err := ProcessIngestJob(ctx, payload.JobId); err != nil {
		log.WithError(err).Warn("transient ingest failure, nacking for redelivery")
		_ = record.MarkFailed(db, err)
		msg.Nack()
		return
	}

	if err := record.MarkSucceeded(db); err != nil {
		log.WithError(err).Error("failed to mark idempotency record")
	}
	msg.Ack()
}

type pushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageId string `json:"messageId"`
	} `json:"message"`
}

// PubSubPushHandler accepts push-style delivery for deployments without
// a standing worker. Always answers 204 on malformed input so the push
// subscription does not retry garbage forever.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope pushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload config.IngestJobMessage
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil || payload.JobId == 0 {
			c.Status(204)
			return
		}

		ctx := c.Request.Context()
		if payload.CorrelationId != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, payload.CorrelationId)
		}
		if err := ProcessIngestJob(ctx, payload.JobId); err != nil {
			// non-2xx makes the push subscription redeliver
			c.Status(500)
			return
		}
		c.Status(204)
	}
}
