package adapter

import (
	"fmt"
	"time"

	"github.com/nkapre/docqa/internal/api"
	"github.com/nkapre/docqa/internal/domain/jobmodel"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
)

func ToInitJobResponse(id string, documentId string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:         id,
		DocumentId: documentId,
		StatusURL:  fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(currentJob jobmodel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if currentJob.Error.Message != "" || currentJob.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    currentJob.Error.Code,
			Message: currentJob.Error.Message,
			Retry:   currentJob.Error.Retry,
		}
	}

	result := api.Result{
		Status:       string(currentJob.Status),
		DocumentName: currentJob.JobPayload.DocumentName,
		DocumentId:   currentJob.JobPayload.DocumentId,
		ChunkCount:   currentJob.JobPayload.ChunkCount,
	}

	return api.JobResponse{
		Id:        currentJob.Id,
		StartTime: currentJob.CreatedTime,
		EndTime:   currentJob.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToAnswerResponse(question string, answer ragmodel.AnswerResult) api.AnswerResponse {
	citations := answer.Citations
	if citations == nil {
		citations = []string{}
	}
	return api.AnswerResponse{
		Question:   question,
		Answer:     answer.Text,
		Citations:  citations,
		Confidence: answer.Confidence,
		Status:     string(answer.Status),
		Refused:    answer.Refused,
	}
}

func ToDocumentResponse(doc ragmodel.Document) api.DocumentResponse {
	return api.DocumentResponse{
		Id:          doc.Id,
		Name:        doc.Name,
		Status:      string(doc.Status),
		ContentType: string(doc.ContentType),
		ChunkCount:  doc.ChunkCount,
		ByteSize:    doc.ByteSize,
		IngestedAt:  doc.IngestedAt,
		FailReason:  doc.FailReason,
	}
}

func ToDocumentListResponse(docs []ragmodel.Document) []api.DocumentResponse {
	out := make([]api.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, ToDocumentResponse(d))
	}
	return out
}

func ToAuditListResponse(records []ragmodel.AuditRecord) []api.AuditEntryResponse {
	out := make([]api.AuditEntryResponse, 0, len(records))
	for _, r := range records {
		cited := r.CitedDocs
		if cited == nil {
			cited = []string{}
		}
		out = append(out, api.AuditEntryResponse{
			Id:         r.Id,
			Query:      r.Query,
			Timestamp:  r.Timestamp,
			Outcome:    string(r.Outcome),
			Confidence: r.Confidence,
			CitedDocs:  cited,
		})
	}
	return out
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
