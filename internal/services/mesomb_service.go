package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"

	"github.com/nkolo-transit/booking-backend/internal/config"
	"github.com/nkolo-transit/booking-backend/internal/models"
	"github.com/nkolo-transit/booking-backend/pkg/validator"
)

// SupportedServices lists the mobile money networks MeSomb can collect from
var SupportedServices = []string{"MTN", "ORANGE", "AIRTEL"}

var (
	// ErrAmountTooSmall indicates the amount is below the gateway minimum
	ErrAmountTooSmall = errors.New("amount cannot be less than 100 XAF")

	// ErrInvalidService indicates an unsupported mobile money network
	ErrInvalidService = errors.New("service must be MTN, ORANGE, or AIRTEL")

	// ErrInvalidPhone indicates the payer number is not a valid Cameroonian mobile number
	ErrInvalidPhone = errors.New("invalid phone number format, expected 6XXXXXXXX for Cameroon")
)

// MesombService handles payment collection through the MeSomb gateway
type MesombService struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
	phones *validator.PhoneValidator
}

// NewMesombService creates a new MeSomb payment service
func NewMesombService(cfg *config.PaymentConfig, logger *logrus.Logger) *MesombService {
	return &MesombService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		phones: validator.NewPhoneValidator(),
	}
}

// CollectParams contains everything needed to initiate a collection
type CollectParams struct {
	Amount           float64
	PayerPhone       string
	Service          string
	TrxID            string
	BookingReference string
	CustomerName     string
	CustomerPhone    string
}

// mesombCollectRequest is the body sent to the collect endpoint
type mesombCollectRequest struct {
	Amount   float64                  `json:"amount"`
	Service  string                   `json:"service"`
	Payer    string                   `json:"payer"`
	Country  string                   `json:"country"`
	Currency string                   `json:"currency"`
	Fees     bool                     `json:"fees"`
	Mode     string                   `json:"mode"`
	TrxID    string                   `json:"trxID"`
	Customer map[string]interface{}   `json:"customer,omitempty"`
	Products []map[string]interface{} `json:"products,omitempty"`
}

// mesombTransaction mirrors the transaction object in MeSomb responses
type mesombTransaction struct {
	PK      string  `json:"pk"`
	Status  string  `json:"status"`
	Amount  float64 `json:"amount"`
	Fees    float64 `json:"fees"`
	Service string  `json:"service"`
	TrxID   string  `json:"trxID"`
	Message string  `json:"message"`
}

// mesombCollectResponse is the body returned by the collect endpoint
type mesombCollectResponse struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	Transaction mesombTransaction `json:"transaction"`
}

// ValidateCollect checks amount, service and payer phone before anything is
// persisted. Returns the normalized payer number on success.
func (s *MesombService) ValidateCollect(amount float64, service, payerPhone string) (string, error) {
	if amount < s.config.MinAmount {
		return "", ErrAmountTooSmall
	}

	if !s.IsSupportedService(service) {
		return "", ErrInvalidService
	}

	normalized, err := s.phones.Validate(payerPhone)
	if err != nil {
		return "", ErrInvalidPhone
	}

	return normalized, nil
}

// IsSupportedService reports whether the network is one MeSomb collects from
func (s *MesombService) IsSupportedService(service string) bool {
	upper := strings.ToUpper(service)
	for _, known := range SupportedServices {
		if upper == known {
			return true
		}
	}
	return false
}

// Collect initiates a synchronous collection and returns the normalized
// outcome. Transport and decoding failures are reported as an ERRORED
// result, not an error, so the caller treats them like any other
// non-success signal.
func (s *MesombService) Collect(params *CollectParams) *models.GatewayResult {
	payer, err := s.ValidateCollect(params.Amount, params.Service, params.PayerPhone)
	if err != nil {
		return &models.GatewayResult{
			Status:  models.GatewayErrored,
			TrxID:   params.TrxID,
			Message: err.Error(),
		}
	}

	firstName, lastName := splitName(params.CustomerName)
	request := &mesombCollectRequest{
		Amount:   params.Amount,
		Service:  strings.ToUpper(params.Service),
		Payer:    payer,
		Country:  "CM",
		Currency: "XAF",
		Fees:     true,
		Mode:     "synchronous",
		TrxID:    params.TrxID,
		Customer: map[string]interface{}{
			"phone":      params.CustomerPhone,
			"first_name": firstName,
			"last_name":  lastName,
		},
		Products: []map[string]interface{}{{
			"id":       "TRIP-" + params.BookingReference,
			"name":     "Bus Ticket - " + params.BookingReference,
			"category": "Transportation",
			"quantity": 1,
			"amount":   params.Amount,
		}},
	}

	s.logger.WithFields(logrus.Fields{
		"trx_id":  params.TrxID,
		"amount":  params.Amount,
		"service": request.Service,
	}).Info("Initiating MeSomb collection")

	body, status, err := s.post("/payment/collect/", request)
	if err != nil {
		s.logger.WithError(err).WithField("trx_id", params.TrxID).Error("MeSomb collect call failed")
		return &models.GatewayResult{
			Status:  models.GatewayErrored,
			TrxID:   params.TrxID,
			Message: err.Error(),
		}
	}

	var resp mesombCollectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		s.logger.WithFields(logrus.Fields{
			"trx_id":      params.TrxID,
			"status_code": status,
			"body":        string(body),
		}).Error("Failed to parse MeSomb response")
		return &models.GatewayResult{
			Status:  models.GatewayErrored,
			TrxID:   params.TrxID,
			Message: "unreadable gateway response",
		}
	}

	result := s.toResult(&resp.Transaction, params.TrxID)
	if result.Message == "" {
		result.Message = resp.Message
	}

	s.logger.WithFields(logrus.Fields{
		"trx_id":         params.TrxID,
		"transaction_id": result.TransactionID,
		"gateway_status": result.Status,
	}).Info("MeSomb collection result")

	return result
}

// CheckStatus looks up a transaction by our outbound reference. Like
// Collect it never returns an error: transport and decode failures come
// back as an ERRORED result so the caller sees one closed vocabulary.
func (s *MesombService) CheckStatus(trxID string) *models.GatewayResult {
	path := "/payment/transactions/?" + url.Values{
		"ids":    {trxID},
		"source": {"EXTERNAL"},
	}.Encode()

	body, _, err := s.get(path)
	if err != nil {
		s.logger.WithError(err).WithField("trx_id", trxID).Error("MeSomb status call failed")
		return &models.GatewayResult{
			Status:  models.GatewayErrored,
			TrxID:   trxID,
			Message: err.Error(),
		}
	}

	var transactions []mesombTransaction
	if err := json.Unmarshal(body, &transactions); err != nil {
		s.logger.WithError(err).WithField("trx_id", trxID).Error("Failed to parse MeSomb status response")
		return &models.GatewayResult{
			Status:  models.GatewayErrored,
			TrxID:   trxID,
			Message: "unreadable gateway response",
		}
	}

	if len(transactions) == 0 {
		return &models.GatewayResult{Status: models.GatewayUnknown, TrxID: trxID}
	}

	return s.toResult(&transactions[0], trxID)
}

// VerifyWebhook checks the HMAC-SHA256 signature over the raw body against
// the X-Mesomb-Signature header. The comparison is constant time.
func (s *MesombService) VerifyWebhook(rawBody []byte, signatureHeader string) bool {
	provided := strings.TrimPrefix(signatureHeader, "sha256=")
	if provided == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(provided))
}

// ParseWebhook decodes a verified webhook body
func (s *MesombService) ParseWebhook(rawBody []byte) (*models.WebhookPayload, error) {
	var payload models.WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if payload.Transaction.TrxID == "" {
		return nil, fmt.Errorf("webhook missing transaction reference")
	}
	return &payload, nil
}

// IsConfigured returns true if the gateway credentials are present
func (s *MesombService) IsConfigured() bool {
	return s.config.ApplicationKey != "" && s.config.AccessKey != "" && s.config.SecretKey != ""
}

func (s *MesombService) toResult(tx *mesombTransaction, trxID string) *models.GatewayResult {
	if tx.TrxID != "" {
		trxID = tx.TrxID
	}
	return &models.GatewayResult{
		Status:        models.MapGatewayStatus(strings.ToUpper(tx.Status)),
		TransactionID: tx.PK,
		TrxID:         trxID,
		Service:       tx.Service,
		Amount:        tx.Amount,
		Fees:          tx.Fees,
		Message:       tx.Message,
	}
}

// ============================================================================
// SIGNED HTTP TRANSPORT
// ============================================================================

func (s *MesombService) post(path string, payload interface{}) ([]byte, int, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.config.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.sign(req, jsonBody)

	return s.do(req)
}

func (s *MesombService) get(path string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, s.config.BaseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	s.sign(req, nil)

	return s.do(req)
}

func (s *MesombService) do(req *http.Request) ([]byte, int, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read gateway response: %w", err)
	}

	return body, resp.StatusCode, nil
}

// sign adds the MeSomb authentication headers. The scheme follows the AWS
// v4 shape with SHA-1 digests: a canonical request is hashed into a string
// to sign, then HMAC'd with the secret key.
func (s *MesombService) sign(req *http.Request, body []byte) {
	now := time.Now().UTC()
	timestamp := fmt.Sprintf("%d", now.Unix())
	nonce := shortuuid.New()

	req.Header.Set("X-MeSomb-Application", s.config.ApplicationKey)
	req.Header.Set("X-MeSomb-Date", timestamp)
	req.Header.Set("X-MeSomb-Nonce", nonce)

	bodyHash := sha1.Sum(body)
	canonical := strings.Join([]string{
		req.Method,
		req.URL.Path,
		req.URL.RawQuery,
		hex.EncodeToString(bodyHash[:]),
	}, "\n")
	canonicalHash := sha1.Sum([]byte(canonical))

	scope := fmt.Sprintf("%s/payment/mesomb_request", now.Format("20060102"))
	stringToSign := strings.Join([]string{
		"HMAC-SHA1",
		timestamp,
		scope,
		hex.EncodeToString(canonicalHash[:]),
	}, "\n")

	mac := hmac.New(sha1.New, []byte(s.config.SecretKey))
	mac.Write([]byte(stringToSign))
	signature := hex.EncodeToString(mac.Sum(nil))

	req.Header.Set("Authorization", fmt.Sprintf(
		"HMAC-SHA1 Credential=%s/%s, Signature=%s",
		s.config.AccessKey, scope, signature,
	))
}

// splitName splits a full name into first and last name
func splitName(fullName string) (firstName, lastName string) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "Customer", "User"
	}
	if len(parts) == 1 {
		return parts[0], "User"
	}
	return parts[0], strings.Join(parts[1:], " ")
}
