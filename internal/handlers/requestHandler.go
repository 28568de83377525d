package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nkapre/docqa/internal/adapter"
	"github.com/nkapre/docqa/internal/adapter/utils"
	"github.com/nkapre/docqa/internal/api"
	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/jobmodel"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/internal/rag/ingest"
	"github.com/nkapre/docqa/pkg/logger_i"
)

var logRH *logger_i.Logger

type newJobData struct {
	id             string
	traceId        string
	jobType        jobmodel.JobType
	documentId     string
	documentName   string
	documentSource string
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	return
}

// AskHandler godoc
// @Summary      Ask a question about the uploaded documents
// @Description  Answers synchronously. The answer is either grounded in the indexed documents with citations, or an explicit refusal when the documents do not cover the question.
// @Tags         Questions
// @Accept       json
// @Produce      json
// @Param        request  body      api.AskRequest      true  "The question to answer"
// @Success      200      {object}  api.AnswerResponse  "The answer, refusals included"
// @Failure      400      {object}  api.JobResponse     "Invalid request body"
// @Router       /ask [post]
func AskHandler(w http.ResponseWriter, request *http.Request) {

	if validateContext(request.Context()) {

		var requestData api.AskRequest
		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				logRH.Error("Couldn't close the Ask handler reader :", err)
			}
		}(request.Body)
		if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil {
			logRH.Warn("Bad Ask Request: ", "error:", err)
			WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
			return
		}

		answer := handlerInstance.ragService.AskQuestion(request.Context(), requestData.Question)
		writeJsonResponse(w, http.StatusOK, adapter.ToAnswerResponse(requestData.Question, answer))
		return
	}
	logRH.Warn("Invalid Context by request ", request.RemoteAddr)
}

// PostDocumentHandler handles the uploading of PDF, DOCX or TXT documents for ingestion.
// @Summary      Upload a document for ingestion
// @Description  Receives a file via multipart/form-data, saves it to a temporary directory, registers the document as PENDING and queues an ingestion job.
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        document_name  formData  string  true  "The display name of the document"
// @Param        document       formData  file    true  "The PDF, DOCX or TXT file to upload"
// @Success      202  {object}  api.InitJobResponse  "Accepted - returns job and document ids"
// @Failure      400  {object}  api.JobResponse "Bad Request - Missing fields, unsupported type or file too large"
// @Failure      500  {object}  api.JobResponse "Internal Server Error - Storage or Write Error"
// @Router       /documents [post]
func PostDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {

		targetDir, errString := getTargetDirectory()

		if errString != "" {
			logRH.Error("Couldn't get target directory :", "err", errString)
			WriteErrorResponse(w, http.StatusInternalServerError, "", errString)
			return
		}

		err := r.ParseMultipartForm(config.MaxDocumentBytes)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
			return
		}

		docName := r.FormValue("document_name")

		fileReader, fileMetadata, err := r.FormFile("document")
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not retrieve file")
			return
		}
		defer fileReader.Close()

		if docName == "" {
			docName = fileMetadata.Filename
		}
		//the display name carries the extension that decides the parser
		if !strings.Contains(docName, ".") {
			docName += filepath.Ext(fileMetadata.Filename)
		}
		if ingest.DocTypeOf(docName) == ragmodel.ERR {
			WriteErrorResponse(w, http.StatusBadRequest, docName, "Unsupported document type")
			return
		}

		filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), fileMetadata.Filename)
		tempFilePath := filepath.Join(targetDir, filename)
		destinationFileWriter, err := os.Create(tempFilePath)
		if err != nil {
			WriteErrorResponse(w, http.StatusInternalServerError, docName, "Storage error")
			return
		}
		defer destinationFileWriter.Close()

		written, err := io.Copy(destinationFileWriter, fileReader)
		if err != nil {
			WriteErrorResponse(w, http.StatusInternalServerError, docName, "Write error")
			return
		}

		docId := utils.GetNewUUID()
		traceId, _ := r.Context().Value(config.TRACE_ID_KEY).(string)

		if err := handlerInstance.ragService.RegisterDocument(r.Context(), ragmodel.Document{
			Id:          docId,
			Name:        docName,
			ByteSize:    written,
			ContentType: ingest.DocTypeOf(docName),
			Status:      ragmodel.DocStatusPending,
		}); err != nil {
			logRH.Error("Couldn't register document", "err", err)
			WriteErrorResponse(w, http.StatusInternalServerError, docName, "Storage error")
			return
		}

		newJob := newJobData{
			id:             utils.GetNewUUID(),
			traceId:        traceId,
			jobType:        jobmodel.JobTypeIngest,
			documentId:     docId,
			documentName:   docName,
			documentSource: tempFilePath,
		}
		CreateNewJob(newJob)
		writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id, docId))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// DeleteDocumentHandler godoc
// @Summary      Remove a document
// @Description  Queues a removal job. Once it completes, no chunk of the document can appear in any answer.
// @Tags         Documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      202  {object}  api.InitJobResponse  "Accepted - returns job id"
// @Failure      404  {object}  api.JobResponse      "Document not found"
// @Router       /documents/{id} [delete]
func DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		docId := utils.GetChiURLParam(r, "id")
		traceId, _ := r.Context().Value(config.TRACE_ID_KEY).(string)

		_, found, err := handlerInstance.ragService.GetDocument(r.Context(), docId)
		if err != nil {
			WriteErrorResponse(w, http.StatusInternalServerError, docId, "Storage error")
			return
		}
		if !found {
			WriteErrorResponse(w, http.StatusNotFound, docId, "Document not found")
			return
		}

		newJob := newJobData{
			id:         utils.GetNewUUID(),
			traceId:    traceId,
			jobType:    jobmodel.JobTypeRemove,
			documentId: docId,
		}
		CreateNewJob(newJob)
		writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id, docId))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// GetDocumentsHandler godoc
// @Summary      List documents
// @Description  Lists every registered document with its status and chunk count.
// @Tags         Documents
// @Produce      json
// @Success      200  {array}   api.DocumentResponse
// @Failure      500  {object}  api.JobResponse  "Storage error"
// @Router       /documents [get]
func GetDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		docs, err := handlerInstance.ragService.ListDocuments(r.Context())
		if err != nil {
			logRH.Error("Couldn't list documents", "err", err)
			WriteErrorResponse(w, http.StatusInternalServerError, "", "Storage error")
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToDocumentListResponse(docs))
	}
}

// GetAuditHandler godoc
// @Summary      List audit records
// @Description  Returns the most recent query audit records, newest first.
// @Tags         Audit
// @Produce      json
// @Param        limit  query     int  false  "Maximum number of records"
// @Success      200  {array}   api.AuditEntryResponse
// @Failure      500  {object}  api.JobResponse  "Storage error"
// @Router       /audit [get]
func GetAuditHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		records, err := handlerInstance.ragService.ListAuditLog(r.Context(), limit)
		if err != nil {
			logRH.Error("Couldn't list audit log", "err", err)
			WriteErrorResponse(w, http.StatusInternalServerError, "", "Storage error")
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToAuditListResponse(records))
	}
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a specific job using its ID.
// @Tags         Job Status
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Job ID "
// @Success      200  {object}  api.JobResponse   "Successful retrieval of job status"
// @Failure      404  {object}  api.JobResponse   "Job not found (returns Error object within JobResponse)"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		idString := utils.GetChiURLParam(r, "id")
		traceId, _ := r.Context().Value(config.TRACE_ID_KEY).(string)
		result, isFound := validateId(idString, traceId)

		logRH.Debug("Get Status Request:", "URL path", r.URL.Path)
		if !isFound {
			WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
			return
		}

		writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
	}
}
