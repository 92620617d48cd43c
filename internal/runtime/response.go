package runtime

import (
	"github.com/codex-k8s/tool-batch-server/internal/batch"
	"github.com/codex-k8s/tool-batch-server/internal/protocol"
)

func buildResponse(name, correlationID string, exec *batch.Executor, completed map[string]*batch.Record) protocol.BatchResponse {
	records := exec.Records()
	resp := protocol.BatchResponse{
		Batch:         name,
		CorrelationID: correlationID,
		Status:        protocol.BatchComplete,
		Records:       make([]protocol.ExecutionRecord, 0, len(records)),
		Stats:         toStats(exec.Stats()),
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, toRecord(rec))
		if _, done := completed[rec.ToolID]; !done {
			resp.Missing = append(resp.Missing, rec.ToolID)
		}
	}
	if len(resp.Missing) > 0 {
		resp.Status = protocol.BatchPartial
	}
	return resp
}

func toRecord(rec *batch.Record) protocol.ExecutionRecord {
	out := protocol.ExecutionRecord{
		ToolID:       rec.ToolID,
		ToolName:     rec.ToolName,
		ExecutionID:  rec.ExecutionID,
		Status:       string(rec.Status()),
		Duration:     rec.Duration().Seconds(),
		Dependencies: append([]string{}, rec.Dependencies...),
	}
	if result, ok := rec.Result(); ok {
		out.Result = result
	}
	if msg, ok := rec.Failure(); ok {
		out.Error = msg
	}
	return out
}

func toStats(stats batch.Stats) protocol.BatchStats {
	return protocol.BatchStats{
		TotalTools:      stats.TotalTools,
		Completed:       stats.Completed,
		Failed:          stats.Failed,
		TotalDuration:   stats.TotalDuration.Seconds(),
		AverageDuration: stats.AverageDuration.Seconds(),
		SuccessRate:     stats.SuccessRate,
	}
}
