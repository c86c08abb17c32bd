package invoice

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/garyjia/invoice-ai/internal/apperror"
	"github.com/shopspring/decimal"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockChatCompleter mocks the OpenAI chat API
type MockChatCompleter struct {
	mock.Mock
}

func (m *MockChatCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func contentResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
	}}}
}

func toolResponse(name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:       "call_1",
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: name, Arguments: args},
			}},
		},
	}}}
}

func newTestExtractor(t *testing.T, client ChatCompleter, mode string) *Extractor {
	t.Helper()
	e, err := NewExtractor(client, ExtractorConfig{Model: "gpt-test", Mode: mode, MaxTokens: 500}, zap.NewNop())
	require.NoError(t, err)
	return e
}

const validPayload = `{
	"invoiceNumber": "INV-2024-001",
	"date": "2024-02-29",
	"totalAmount": "1150.00",
	"vatAmount": 150,
	"supplier": {"name": "Acme Ltd", "email": "billing@acme.test", "taxId": "TRN-42"},
	"customer": {"name": "Globex"},
	"items": [{"itemName": "Consulting", "quantity": 10, "unitPrice": 100, "totalPrice": 1000}]
}`

func TestExtractor_JSONMode(t *testing.T) {
	client := new(MockChatCompleter)
	client.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == "gpt-test" &&
			req.ResponseFormat != nil &&
			req.ResponseFormat.Type == openai.ChatCompletionResponseFormatTypeJSONObject &&
			len(req.Tools) == 0 &&
			len(req.Messages) == 2 &&
			req.Messages[0].Role == openai.ChatMessageRoleSystem
	})).Return(contentResponse(validPayload), nil).Once()

	data, err := newTestExtractor(t, client, ModeJSONObject).Extract(context.Background(), "INVOICE INV-2024-001 ...")
	require.NoError(t, err)

	assert.Equal(t, "INV-2024-001", data.InvoiceNumber)
	assert.Equal(t, "2024-02-29", data.Date.String())
	assert.True(t, decimal.RequireFromString("1150").Equal(data.TotalAmount))
	assert.True(t, decimal.NewFromInt(150).Equal(data.VATAmount))
	assert.Equal(t, "Acme Ltd", data.Supplier.Name)
	assert.Equal(t, "TRN-42", data.Supplier.TaxID)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "Consulting", data.Items[0].ItemName)
	client.AssertExpectations(t)
}

func TestExtractor_FunctionMode(t *testing.T) {
	client := new(MockChatCompleter)
	client.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		if len(req.Tools) != 1 || req.ResponseFormat != nil {
			return false
		}
		choice, ok := req.ToolChoice.(openai.ToolChoice)
		return ok && choice.Function.Name == ExtractionFunctionName &&
			req.Tools[0].Function.Name == ExtractionFunctionName
	})).Return(toolResponse(ExtractionFunctionName, `{"invoiceNumber":"7","date":"2024-01-10","totalAmount":12.5}`), nil).Once()

	data, err := newTestExtractor(t, client, ModeFunction).Extract(context.Background(), "some invoice text")
	require.NoError(t, err)

	assert.Equal(t, "7", data.InvoiceNumber)
	assert.True(t, data.VATAmount.IsZero())
	assert.NotNil(t, data.Items)
	assert.True(t, data.Supplier.Empty())
	client.AssertExpectations(t)
}

func TestExtractor_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		resp   openai.ChatCompletionResponse
		err    error
		kind   apperror.Kind
		status int
	}{
		{
			name:   "api error",
			mode:   ModeJSONObject,
			resp:   openai.ChatCompletionResponse{},
			err:    &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "rate limited"},
			kind:   apperror.KindUpstream,
			status: http.StatusInternalServerError,
		},
		{
			name:   "no choices",
			mode:   ModeJSONObject,
			resp:   openai.ChatCompletionResponse{},
			kind:   apperror.KindUpstream,
			status: http.StatusInternalServerError,
		},
		{
			name:   "malformed json",
			mode:   ModeJSONObject,
			resp:   contentResponse(`{"invoiceNumber": `),
			kind:   apperror.KindUpstream,
			status: http.StatusInternalServerError,
		},
		{
			name:   "missing total amount",
			mode:   ModeJSONObject,
			resp:   contentResponse(`{"invoiceNumber":"1","date":"2024-01-01","supplier":{"name":"Acme"},"items":[]}`),
			kind:   apperror.KindValidation,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "missing invoice number",
			mode:   ModeFunction,
			resp:   toolResponse(ExtractionFunctionName, `{"date":"2024-01-01","totalAmount":3}`),
			kind:   apperror.KindValidation,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "unparseable date",
			mode:   ModeJSONObject,
			resp:   contentResponse(`{"invoiceNumber":"1","date":"someday","totalAmount":3}`),
			kind:   apperror.KindValidation,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "function not called",
			mode:   ModeFunction,
			resp:   contentResponse(`{"invoiceNumber":"1"}`),
			kind:   apperror.KindUpstream,
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockChatCompleter)
			client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(tt.resp, tt.err).Once()

			data, err := newTestExtractor(t, client, tt.mode).Extract(context.Background(), "text")

			require.Error(t, err)
			assert.Nil(t, data)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
			assert.Equal(t, tt.status, apperror.StatusOf(err))
			client.AssertNumberOfCalls(t, "CreateChatCompletion", 1)
		})
	}
}

func TestExtractor_BlankOptionalFields(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		payload string
	}{
		{
			name:    "blank vat amount",
			mode:    ModeJSONObject,
			payload: `{"invoiceNumber":"INV-9","date":"2024-04-01","totalAmount":"99.90","vatAmount":""}`,
		},
		{
			name: "blank item quantity",
			mode: ModeJSONObject,
			payload: `{"invoiceNumber":"INV-9","date":"2024-04-01","totalAmount":99.9,
				"items":[{"itemName":"Paper","quantity":"","unitPrice":"","totalPrice":null}]}`,
		},
		{
			name:    "null supplier name",
			mode:    ModeFunction,
			payload: `{"invoiceNumber":"INV-9","date":"2024-04-01","totalAmount":99.9,"supplier":{"name":null,"email":null}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := contentResponse(tt.payload)
			if tt.mode == ModeFunction {
				resp = toolResponse(ExtractionFunctionName, tt.payload)
			}
			client := new(MockChatCompleter)
			client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(resp, nil).Once()

			data, err := newTestExtractor(t, client, tt.mode).Extract(context.Background(), "text")
			require.NoError(t, err)

			assert.Equal(t, "INV-9", data.InvoiceNumber)
			assert.True(t, decimal.RequireFromString("99.9").Equal(data.TotalAmount))
			assert.True(t, data.VATAmount.IsZero())
			assert.True(t, data.Supplier.Empty())
			for _, item := range data.Items {
				assert.True(t, item.Quantity.IsZero())
				assert.True(t, item.TotalPrice.IsZero())
			}
			client.AssertExpectations(t)
		})
	}
}

func TestExtractor_UpstreamErrorKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	client := new(MockChatCompleter)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{}, cause)

	_, err := newTestExtractor(t, client, ModeJSONObject).Extract(context.Background(), "text")
	assert.ErrorIs(t, err, cause)
}

func TestExtractor_EmptyTextSkipsAPI(t *testing.T) {
	client := new(MockChatCompleter)

	_, err := newTestExtractor(t, client, ModeJSONObject).Extract(context.Background(), "   \n ")

	assert.Equal(t, http.StatusUnprocessableEntity, apperror.StatusOf(err))
	client.AssertNotCalled(t, "CreateChatCompletion", mock.Anything, mock.Anything)
}

func TestNewExtractor_RejectsUnknownMode(t *testing.T) {
	_, err := NewExtractor(new(MockChatCompleter), ExtractorConfig{Mode: "xml"}, zap.NewNop())
	assert.Error(t, err)
}

func TestInvoiceSchemaCompiles(t *testing.T) {
	_, err := compileSchema(InvoiceSchema())
	require.NoError(t, err)
}
