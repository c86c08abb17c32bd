package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/garyjia/invoice-ai/internal/apperror"
	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Extraction request variants
const (
	ModeJSONObject = "json_object"
	ModeFunction   = "function"
)

// maxPromptChars bounds the document text sent to the model
const maxPromptChars = 24000

// ChatCompleter is the part of the OpenAI client the extractor uses
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ExtractorConfig holds model parameters for extraction requests
type ExtractorConfig struct {
	Model       string
	Mode        string
	Temperature float32
	MaxTokens   int
	Prompts     *PromptConfig
}

// Extractor turns invoice text into structured invoice data using a language model.
// It makes exactly one API call per Extract; retrying is up to the caller.
type Extractor struct {
	client  ChatCompleter
	cfg     ExtractorConfig
	schema  map[string]any
	checker *jsonschema.Schema
	logger  *zap.Logger
}

// NewOpenAIClient creates an OpenAI client with an optional base URL override
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return openai.NewClientWithConfig(cfg)
}

// NewExtractor creates an extractor; Prompts defaults to the built-in prompts
func NewExtractor(client ChatCompleter, cfg ExtractorConfig, logger *zap.Logger) (*Extractor, error) {
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeJSONObject
	case ModeJSONObject, ModeFunction:
	default:
		return nil, fmt.Errorf("unknown extraction mode %q", cfg.Mode)
	}

	if cfg.Prompts == nil {
		prompts, err := LoadPrompts("")
		if err != nil {
			return nil, err
		}
		cfg.Prompts = prompts
	}

	schema := InvoiceSchema()
	checker, err := compileSchema(schema)
	if err != nil {
		return nil, err
	}

	return &Extractor{
		client:  client,
		cfg:     cfg,
		schema:  schema,
		checker: checker,
		logger:  logger,
	}, nil
}

// Extract sends text to the model and returns validated, normalized invoice data
func (e *Extractor) Extract(ctx context.Context, text string) (*models.StructuredInvoiceData, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.Unprocessable("No text found in document", nil)
	}
	if len(text) > maxPromptChars {
		text = strings.ToValidUTF8(text[:maxPromptChars], "")
	}

	userPrompt, err := e.cfg.Prompts.RenderUser(text)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: e.cfg.Prompts.InvoiceExtraction.System},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if e.cfg.Mode == ModeFunction {
		req.Tools = []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ExtractionFunctionName,
				Description: e.cfg.Prompts.InvoiceExtraction.FunctionDescription,
				Parameters:  e.schema,
			},
		}}
		req.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: ExtractionFunctionName},
		}
	} else {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		e.logger.Error("Failed to call OpenAI API", zap.String("mode", e.cfg.Mode), zap.Error(err))
		return nil, apperror.Upstream("Failed to process invoice with OpenAI", err)
	}

	payload, err := e.payload(resp)
	if err != nil {
		return nil, err
	}

	data, err := e.decode(payload)
	if err != nil {
		e.logger.Warn("Rejected extraction result", zap.Error(err))
		return nil, err
	}

	e.logger.Info("Invoice data extracted",
		zap.String("invoice_number", data.InvoiceNumber),
		zap.String("total_amount", data.TotalAmount.String()),
		zap.Int("items", len(data.Items)))

	return data, nil
}

// payload pulls the JSON document out of the response for the configured mode
func (e *Extractor) payload(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", apperror.Upstream("No response from OpenAI", nil)
	}
	msg := resp.Choices[0].Message

	if e.cfg.Mode == ModeFunction {
		for _, call := range msg.ToolCalls {
			if call.Function.Name == ExtractionFunctionName {
				return call.Function.Arguments, nil
			}
		}
		if msg.FunctionCall != nil && msg.FunctionCall.Name == ExtractionFunctionName {
			return msg.FunctionCall.Arguments, nil
		}
		return "", apperror.Upstream("OpenAI did not call "+ExtractionFunctionName, nil)
	}

	if strings.TrimSpace(msg.Content) == "" {
		return "", apperror.Upstream("Empty response from OpenAI", nil)
	}
	return msg.Content, nil
}

// decode parses, schema-checks and normalizes a model payload
func (e *Extractor) decode(payload string) (*models.StructuredInvoiceData, error) {
	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, apperror.Upstream("OpenAI returned malformed JSON", err)
	}
	if err := e.checker.Validate(doc); err != nil {
		return nil, apperror.Unprocessable("Extracted data failed validation", err)
	}

	var input models.InvoiceInput
	if err := json.Unmarshal([]byte(payload), &input); err != nil {
		return nil, apperror.Unprocessable("Extracted data failed validation", err)
	}
	return input.Normalize()
}
