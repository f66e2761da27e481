package nats

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/ports"
)

const (
	headerContentType = "Content-Type"
	headerProjectID   = "Raggae-Project-Id"
	headerDocumentID  = "Raggae-Document-Id"
)

var errIncompleteJob = errors.New("project_id and document_id are required")

func validateJob(op string, job ports.DocumentJob) error {
	if job.ProjectID == "" || job.DocumentID == "" {
		return domain.WrapError(domain.ErrInvalidInput, op, errIncompleteJob)
	}
	return nil
}

// encodeJob serializes job as JSON, stamping the enqueue time when unset.
func encodeJob(job ports.DocumentJob) ([]byte, error) {
	if err := validateJob("encode document job", job); err != nil {
		return nil, err
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return json.Marshal(job)
}

func decodeJob(data []byte) (ports.DocumentJob, error) {
	const op = "decode document job"
	var job ports.DocumentJob
	if err := json.Unmarshal(data, &job); err != nil {
		return ports.DocumentJob{}, domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	if err := validateJob(op, job); err != nil {
		return ports.DocumentJob{}, err
	}
	return job, nil
}

// newJobMsg builds the outgoing message. The id headers let operators trace
// a job with `nats sub` without decoding the body.
func newJobMsg(subject string, job ports.DocumentJob) (*nats.Msg, error) {
	payload, err := encodeJob(job)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(headerContentType, "application/json")
	msg.Header.Set(headerProjectID, job.ProjectID)
	msg.Header.Set(headerDocumentID, job.DocumentID)
	return msg, nil
}
