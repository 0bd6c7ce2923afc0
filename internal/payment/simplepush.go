package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/safisha/laundry-api/internal/config"
	"github.com/shopspring/decimal"
)

// SimplePushProvider speaks the plain push API: a form-encoded request and a
// flat JSON callback that echoes the account reference.
type SimplePushProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSimplePushProvider(cfg config.ProviderConfig) *SimplePushProvider {
	return &SimplePushProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(cfg.Timeout),
	}
}

func (p *SimplePushProvider) Name() string { return "push" }

type simplePushResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}

func (p *SimplePushProvider) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	form := url.Values{}
	form.Set("amount", req.Amount.StringFixed(0))
	form.Set("msisdn", req.MSISDN)
	form.Set("account_reference", req.AccountReference)

	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		httpReq, err := http.NewRequest(http.MethodPost, p.baseURL+"/v1/push", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
		return httpReq, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read push response: %w", err)
	}

	var parsed simplePushResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := ""
		if json.Unmarshal(respBody, &parsed) == nil {
			message = parsed.Message
		}
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}

	return &PushResponse{RequestID: parsed.RequestID, Message: parsed.Message}, nil
}

type simpleCallbackEnvelope struct {
	RequestID        string `json:"request_id"`
	AccountReference string `json:"account_reference"`
	ResultCode       int    `json:"result_code"`
	ResultDesc       string `json:"result_desc"`
	TransactionID    string `json:"transaction_id"`
	ReceiptNumber    string `json:"receipt_number"`
	Amount           string `json:"amount"`
	MSISDN           string `json:"msisdn"`
}

func (p *SimplePushProvider) ParseCallback(body []byte) (*CallbackResult, error) {
	var envelope simpleCallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode push callback: %w", err)
	}

	if envelope.RequestID == "" && envelope.AccountReference == "" {
		return nil, fmt.Errorf("push callback carries no correlation key")
	}

	result := &CallbackResult{
		ProviderRef:      envelope.RequestID,
		AccountReference: envelope.AccountReference,
		ResultCode:       envelope.ResultCode,
		ResultDesc:       envelope.ResultDesc,
		TransactionID:    envelope.TransactionID,
		ReceiptNumber:    envelope.ReceiptNumber,
		PayerPhone:       envelope.MSISDN,
	}

	if envelope.Amount != "" {
		amount, err := decimal.NewFromString(envelope.Amount)
		if err != nil {
			return nil, fmt.Errorf("parse callback amount %q: %w", envelope.Amount, err)
		}
		result.Amount = amount
		result.HasAmount = true
	}

	return result, nil
}
