// internal/workers/admission/shortlist-applicants/handler.go
package shortlistapplicants

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	commonerrors "admissions-workers/internal/common/errors"
	"admissions-workers/internal/common/logger"
	"admissions-workers/internal/engine/allocation"
)

const (
	TaskType = "shortlist-applicants"
)

type Handler struct {
	config       *Config
	engine       *allocation.Engine
	logger       logger.Logger
	errorHandler *commonerrors.ErrorHandler
}

func NewHandler(config *Config, engine *allocation.Engine, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		engine:       engine,
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
		h.logger.Warn("ignoring unparsable input, running full batch", map[string]interface{}{
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	report, err := h.engine.AllocateBatch(ctx)
	if err != nil {
		return nil, err
	}

	batchID := input.BatchID
	if batchID == "" {
		batchID = uuid.New().String()
	}

	streams := make([]StreamOutcome, len(report.Streams))
	for i, sr := range report.Streams {
		streams[i] = StreamOutcome{
			Stream:         string(sr.Stream),
			Considered:     sr.Considered,
			Accepted:       sr.Accepted,
			Rejected:       sr.Rejected,
			SeatsAvailable: sr.SeatsAvailable,
			Skipped:        sr.Skipped,
			Error:          sr.Error,
		}
	}

	return &Output{
		BatchID:     batchID,
		Streams:     streams,
		HasFailures: report.Failed(),
		DurationMs:  report.DurationMs,
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
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
