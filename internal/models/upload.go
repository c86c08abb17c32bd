package models

import "time"

// UploadedFile references an uploaded document in storage
type UploadedFile struct {
	FileName     string    `json:"filename"`
	OriginalName string    `json:"originalname"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimetype"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// ExtractionResult is the raw text of one document
type ExtractionResult struct {
	FileName string `json:"filename"`
	Text     string `json:"text"`
}

// Outcome of one file in a pipeline run
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// FileResult is the pipeline outcome for one file
type FileResult struct {
	FileName     string                 `json:"filename"`
	OriginalName string                 `json:"originalFilename"`
	Status       string                 `json:"status"`
	InvoiceID    string                 `json:"invoiceId,omitempty"`
	Text         string                 `json:"text,omitempty"`
	Data         *StructuredInvoiceData `json:"data,omitempty"`
	Attempts     int                    `json:"attempts"`
	Error        string                 `json:"error,omitempty"`
	Err          error                  `json:"-"`
}

// Succeeded reports whether the file produced structured data
func (r FileResult) Succeeded() bool {
	return r.Status == OutcomeCompleted
}
