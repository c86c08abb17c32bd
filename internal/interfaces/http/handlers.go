package http

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/garyjia/invoice-ai/internal/apperror"
	"github.com/garyjia/invoice-ai/internal/auth"
	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/garyjia/invoice-ai/internal/pipeline"
	"github.com/garyjia/invoice-ai/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadField is the multipart field carrying invoice files
const UploadField = "invoices"

// AuthService registers and signs in users
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
}

// InvoiceService persists and reads invoices
type InvoiceService interface {
	SaveInvoice(ctx context.Context, userID string, in *models.InvoiceInput) (*models.Invoice, error)
	SaveMultipleInvoices(ctx context.Context, userID string, inputs []*models.InvoiceInput) ([]*models.Invoice, error)
	UpdateInvoice(ctx context.Context, id string, in *models.InvoiceInput) (*models.Invoice, error)
	GetStatus(ctx context.Context, id string) (*models.Invoice, error)
	ListInvoices(ctx context.Context, userID string, limit, offset int) ([]*models.Invoice, int, error)
	ListSuppliers(ctx context.Context) ([]*models.Supplier, error)
	Recorder(userID string) pipeline.Recorder
}

// UploadService stores and resolves uploaded files
type UploadService interface {
	Store(ctx context.Context, files []*multipart.FileHeader) ([]models.UploadedFile, error)
	Resolve(ctx context.Context, names []string) ([]models.UploadedFile, error)
	Discard(ctx context.Context, files []models.UploadedFile)
	MaxFiles() int
}

// Pipeline runs uploaded files through extraction
type Pipeline interface {
	BatchSize() int
	ProcessBatches(ctx context.Context, files []models.UploadedFile, batchSize int) []models.FileResult
	ProcessAndRecord(ctx context.Context, files []models.UploadedFile, batchSize int, rec pipeline.Recorder) []models.FileResult
}

// Exporter renders a user's invoices as a workbook
type Exporter interface {
	ExportUser(ctx context.Context, userID string, w io.Writer) error
}

// Pinger reports database reachability
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Dependencies are the services the handlers call into
type Dependencies struct {
	Auth     AuthService
	Invoices InvoiceService
	Uploads  UploadService
	Pipeline Pipeline
	Exporter Exporter
	Tokens   *auth.TokenIssuer
	DB       Pinger
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger *zap.Logger) *Handlers {
	return &Handlers{deps: deps, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type processRequest struct {
	Files []string `json:"files" validate:"required,min=1,dive,required"`
}

type saveMultipleRequest struct {
	Invoices []*models.InvoiceInput `json:"invoices" validate:"required,min=1"`
}

type listRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// resultSummary counts outcomes of a pipeline run
type resultSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

func summarize(results []models.FileResult) resultSummary {
	s := resultSummary{Total: len(results)}
	for _, r := range results {
		if r.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, database, code := "healthy", "up", http.StatusOK
	if h.deps.DB != nil {
		if err := h.deps.DB.PingContext(ctx); err != nil {
			h.logger.Error("Health check failed", zap.Error(err))
			status, database, code = "unhealthy", "down", http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"database":  database,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Register handles POST /api/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	res, err := h.deps.Auth.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, gin.H{"token": res.Token, "user": res.User})
}

// Login handles POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	res, err := h.deps.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"token": res.Token, "user": res.User})
}

// Upload handles POST /api/invoices/upload
func (h *Handlers) Upload(c *gin.Context) {
	files, ok := h.storeUploads(c)
	if !ok {
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"message": "Files uploaded successfully",
		"files":   files,
	})
}

// Process handles POST /api/invoices/process.
// Accepts either a multipart upload or {"files": [...]} naming earlier uploads.
func (h *Handlers) Process(c *gin.Context) {
	var files []models.UploadedFile
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		stored, ok := h.storeUploads(c)
		if !ok {
			return
		}
		files = stored
	} else {
		var req processRequest
		if !h.bindAndValidate(c, &req) {
			return
		}
		if len(req.Files) > h.deps.Uploads.MaxFiles() {
			h.respondError(c, apperror.Validation("Too many files"))
			return
		}
		resolved, err := h.deps.Uploads.Resolve(c.Request.Context(), req.Files)
		if err != nil {
			h.respondError(c, err)
			return
		}
		files = resolved
	}

	// a started run always finishes, even if the client goes away
	ctx := context.WithoutCancel(c.Request.Context())
	results := h.deps.Pipeline.ProcessBatches(ctx, files, h.deps.Pipeline.BatchSize())

	respondSuccess(c, http.StatusOK, gin.H{
		"results": results,
		"summary": summarize(results),
	})
}

// Ingest handles POST /api/invoices/ingest: upload, extract and persist for the caller
func (h *Handlers) Ingest(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	files, ok := h.storeUploads(c)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	results := h.deps.Pipeline.ProcessAndRecord(ctx, files, h.deps.Pipeline.BatchSize(), h.deps.Invoices.Recorder(identity.UserID))
	h.deps.Uploads.Discard(ctx, files)

	respondSuccess(c, http.StatusOK, gin.H{
		"results": results,
		"summary": summarize(results),
	})
}

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	var req listRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.respondError(c, apperror.Validation("Invalid query parameters"))
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	invoices, total, err := h.deps.Invoices.ListInvoices(c.Request.Context(), identity.UserID, req.Limit, req.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"invoices": invoices,
		"total":    total,
		"limit":    req.Limit,
		"offset":   req.Offset,
	})
}

// ExportInvoices handles GET /api/invoices/export
func (h *Handlers) ExportInvoices(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.deps.Exporter.ExportUser(c.Request.Context(), identity.UserID, &buf); err != nil {
		h.respondError(c, err)
		return
	}

	filename := "invoices-" + time.Now().UTC().Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// GetStatus handles GET /api/invoices/status/:id
func (h *Handlers) GetStatus(c *gin.Context) {
	invoice, err := h.deps.Invoices.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"invoice": invoice})
}

// SaveInvoice handles POST /api/invoices/save
func (h *Handlers) SaveInvoice(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	var in models.InvoiceInput
	if !h.bindAndValidate(c, &in) {
		return
	}

	invoice, err := h.deps.Invoices.SaveInvoice(c.Request.Context(), identity.UserID, &in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"invoice": invoice})
}

// SaveMultipleInvoices handles POST /api/invoices/save-multiple
func (h *Handlers) SaveMultipleInvoices(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	var req saveMultipleRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	invoices, err := h.deps.Invoices.SaveMultipleInvoices(c.Request.Context(), identity.UserID, req.Invoices)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"invoices": invoices, "count": len(invoices)})
}

// UpdateInvoice handles PUT /api/invoices/:id
func (h *Handlers) UpdateInvoice(c *gin.Context) {
	var in models.InvoiceInput
	if !h.bindAndValidate(c, &in) {
		return
	}

	invoice, err := h.deps.Invoices.UpdateInvoice(c.Request.Context(), c.Param("id"), &in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"invoice": invoice})
}

// ListSuppliers handles GET /api/suppliers
func (h *Handlers) ListSuppliers(c *gin.Context) {
	suppliers, err := h.deps.Invoices.ListSuppliers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"suppliers": suppliers})
}

// storeUploads reads the multipart field and stores its files
func (h *Handlers) storeUploads(c *gin.Context) ([]models.UploadedFile, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		h.respondError(c, apperror.Validation("Expected multipart form with field \""+UploadField+"\""))
		return nil, false
	}

	files, err := h.deps.Uploads.Store(c.Request.Context(), form.File[UploadField])
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return files, true
}

func (h *Handlers) identity(c *gin.Context) (auth.Identity, bool) {
	identity, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		h.respondError(c, apperror.Auth("Access token required"))
		return auth.Identity{}, false
	}
	return identity, true
}
