package worker

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/jobmodel"
	"github.com/nkapre/docqa/internal/metrics"
)

func executeJob(currentJob jobmodel.Job) {
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, currentJob.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, 10*time.Minute)
	defer cancel()
	logger.Debug("Processing job:", "job Id:", currentJob.Id, "type", currentJob.JobType)

	saveJobState(ctx, currentJob, jobmodel.JobStatusRunning)

	switch currentJob.JobType {
	case jobmodel.JobTypeIngest:
		currentJob = _ragService.AddDocument(ctx, currentJob)
		cleanupSourceFile(currentJob)
	case jobmodel.JobTypeRemove:
		currentJob = _ragService.RemoveDocument(ctx, currentJob)
	default:
		logger.Error("Unknown job type", "type", currentJob.JobType)
		currentJob.Status = jobmodel.JobStatusError
	}

	currentJob.EndTime = time.Now()
	saveJobState(ctx, currentJob, currentJob.Status)
}

// cleanupSourceFile deletes the uploaded temp file once the job is done
// with it, success or not.
func cleanupSourceFile(currentJob jobmodel.Job) {
	if currentJob.JobPayload.SourcePath == "" {
		return
	}
	if err := os.Remove(currentJob.JobPayload.SourcePath); err != nil && !os.IsNotExist(err) {
		logger.Error("Failed to remove temp upload", "path", currentJob.JobPayload.SourcePath, "err", err)
	}
}

func removeWorker(reason string) {

	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker ", "reason", reason, "workerCount", currentWorkerCount)
	metrics.DecrementActiveWorkerCount()

}

func saveJobState(ctx context.Context, currentJob jobmodel.Job, jobStatus jobmodel.JobStatus) {
	currentJob.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, currentJob); err != nil {
		logger.Error("Failed to update job status", "err", err)
	}
}
