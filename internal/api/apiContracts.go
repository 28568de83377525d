package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type Result struct {
	Status       string `json:"status"`
	DocumentName string `json:"document_name,omitempty"`
	DocumentId   string `json:"document_id,omitempty"`
	ChunkCount   int    `json:"chunk_count,omitempty"`
}

type InitJobResponse struct {
	Id         string `json:"id"`
	DocumentId string `json:"document_id,omitempty"`
	StatusURL  string `json:"status_url"`
}

type AnswerResponse struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Citations  []string `json:"citations"`
	Confidence float64  `json:"confidence" example:"0.87"`
	Status     string   `json:"status" example:"GROUNDED"`
	Refused    bool     `json:"refused"`
}

type DocumentResponse struct {
	Id          string    `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status" example:"INDEXED"`
	ContentType string    `json:"content_type" example:"PDF"`
	ChunkCount  int       `json:"chunk_count"`
	ByteSize    int64     `json:"byte_size"`
	IngestedAt  time.Time `json:"ingested_at"`
	FailReason  string    `json:"fail_reason,omitempty"`
}

type AuditEntryResponse struct {
	Id         string    `json:"id"`
	Query      string    `json:"query"`
	Timestamp  time.Time `json:"timestamp"`
	Outcome    string    `json:"outcome" example:"answered"`
	Confidence float64   `json:"confidence"`
	CitedDocs  []string  `json:"cited_docs"`
}

// requests---------------------

type AskRequest struct {
	Question string `json:"question" validate:"required"`
}

type JobStatusRequest struct {
	JobId string `json:"job_id" validate:"required"`
}
