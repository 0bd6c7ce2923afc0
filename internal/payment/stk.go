package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/safisha/laundry-api/internal/config"
	"github.com/shopspring/decimal"
)

// STKProvider speaks the STK-push integration: JSON push requests and a
// nested callback envelope whose metadata arrives as name/value items.
type STKProvider struct {
	baseURL     string
	apiKey      string
	shortCode   string
	callbackURL string
	client      *http.Client
}

func NewSTKProvider(cfg config.ProviderConfig) *STKProvider {
	return &STKProvider{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		shortCode:   cfg.ShortCode,
		callbackURL: cfg.CallbackURL,
		client:      newHTTPClient(cfg.Timeout),
	}
}

func (p *STKProvider) Name() string { return "stk" }

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Amount            string `json:"Amount"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorMessage        string `json:"errorMessage"`
}

func (p *STKProvider) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	payload := stkPushPayload{
		BusinessShortCode: p.shortCode,
		Amount:            req.Amount.StringFixed(0),
		PhoneNumber:       req.MSISDN,
		CallBackURL:       p.callbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.Description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode push payload: %w", err)
	}

	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		httpReq, err := http.NewRequest(http.MethodPost, p.baseURL+"/stkpush/v1/processrequest", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
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

	var parsed stkPushResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := ""
		if json.Unmarshal(respBody, &parsed) == nil {
			message = parsed.ErrorMessage
			if message == "" {
				message = parsed.ResponseDescription
			}
		}
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}

	return &PushResponse{
		RequestID: parsed.CheckoutRequestID,
		Message:   parsed.CustomerMessage,
	}, nil
}

// stkCallbackEnvelope mirrors the provider's nested result document.
type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			AccountReference  string `json:"AccountReference"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []stkMetadataItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type stkMetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

func (p *STKProvider) ParseCallback(body []byte) (*CallbackResult, error) {
	var envelope stkCallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode stk callback: %w", err)
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("stk callback missing CheckoutRequestID")
	}

	// AccountReference is the order number echoed from the push request. It
	// is the only correlation key left when the push response never arrived
	// and the payment row holds no request id.
	result := &CallbackResult{
		ProviderRef:      cb.CheckoutRequestID,
		AccountReference: cb.AccountReference,
		ResultCode:       cb.ResultCode,
		ResultDesc:       cb.ResultDesc,
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			var amount float64
			if err := json.Unmarshal(item.Value, &amount); err == nil {
				result.Amount = decimal.NewFromFloat(amount)
				result.HasAmount = true
			}
		case "MpesaReceiptNumber":
			var receipt string
			if err := json.Unmarshal(item.Value, &receipt); err == nil {
				result.ReceiptNumber = receipt
				result.TransactionID = receipt
			}
		case "PhoneNumber":
			// Arrives as a bare number in the envelope.
			var phone json.Number
			if err := json.Unmarshal(item.Value, &phone); err == nil {
				result.PayerPhone = phone.String()
			} else {
				var s string
				if json.Unmarshal(item.Value, &s) == nil {
					result.PayerPhone = s
				}
			}
		}
	}

	return result, nil
}
