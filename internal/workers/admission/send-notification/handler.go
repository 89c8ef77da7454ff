// internal/workers/admission/send-notification/handler.go
package sendnotification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/notify"
	"admissions-workers/internal/store"
)

const (
	TaskType = "send-notification"
)

type Handler struct {
	config       *Config
	store        store.Store
	notifier     notify.Notifier
	logger       logger.Logger
	errorHandler *commonerrors.ErrorHandler
}

func NewHandler(config *Config, st store.Store, notifier notify.Notifier, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        st,
		notifier:     notifier,
		logger:       scoped,
		errorHandler: commonerrors.NewErrorHandler(scoped),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.logger.Warn("ignoring unparsable input, using configured batch size", map[string]interface{}{
			"error": err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

// execute drains pending notifications. A single delivery failure is
// counted and skipped; the event stays pending and is retried on the
// next run. Only a successful send flips the sent flag, so a crash
// can at worst duplicate a notification, never lose one.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	batchSize := input.BatchSize
	if batchSize <= 0 {
		batchSize = h.config.BatchSize
	}

	events, err := h.store.PendingNotifications(ctx, batchSize)
	if err != nil {
		return nil, &commonerrors.StandardError{
			Code:      commonerrors.ErrCodeNotificationSendFailed,
			Message:   "failed to load pending notifications",
			Details:   err.Error(),
			Retryable: true,
			Timestamp: time.Now().UTC(),
		}
	}

	output := &Output{Pending: len(events)}
	for _, event := range events {
		if err := h.notifier.Send(ctx, event); err != nil {
			output.Failed++
			h.logger.Error("notification delivery failed", map[string]interface{}{
				"email": event.Email,
				"kind":  string(event.Kind),
				"error": err.Error(),
			})
			continue
		}
		if err := h.store.MarkNotified(ctx, event.Email, event.Kind); err != nil {
			output.Failed++
			h.logger.Error("failed to mark notification sent", map[string]interface{}{
				"email": event.Email,
				"kind":  string(event.Kind),
				"error": err.Error(),
			})
			continue
		}
		output.Sent++
	}

	output.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	return output, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
