// Package payment confirms card payments with a Stripe-compatible processor.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/config"
)

// StatusSucceeded is the only intent status that lets an order through.
const StatusSucceeded = "succeeded"

type Card struct {
	Number   string `json:"number" validate:"required,credit_card"`
	ExpMonth int    `json:"expMonth" validate:"required,min=1,max=12"`
	ExpYear  int    `json:"expYear" validate:"required,min=2000"`
	CVC      string `json:"cvc" validate:"required,numeric,min=3,max=4"`
}

type Address struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	Country    string `json:"country" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
}

type BillingDetails struct {
	Name    string  `json:"name" validate:"required"`
	Email   string  `json:"email" validate:"required,email"`
	Address Address `json:"address" validate:"required"`
}

// Confirmation is the processor's verdict on an intent.
type Confirmation struct {
	IntentID string `json:"id"`
	Status   string `json:"status"`
}

func (c Confirmation) Succeeded() bool {
	return c.Status == StatusSucceeded
}

type processorError struct {
	Error *struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

type Processor struct {
	http   *http.Client
	cfg    config.PaymentConfig
	logger *slog.Logger
}

func NewProcessor(httpClient *http.Client, cfg config.PaymentConfig, logger *slog.Logger) *Processor {
	return &Processor{
		http:   httpClient,
		cfg:    cfg,
		logger: logger.With("component", "payment"),
	}
}

// ConfirmCardPayment confirms the intent identified by clientSecret with the card.
// A processor refusal is ErrPaymentDeclined; the caller still has to check
// Succeeded on a nil error, since intents may need further action.
func (p *Processor) ConfirmCardPayment(ctx context.Context, clientSecret string, card Card, billing BillingDetails) (*Confirmation, error) {
	intentID, err := intentIDFromSecret(clientSecret)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"client_secret":                                              {clientSecret},
		"payment_method_data[type]":                                  {"card"},
		"payment_method_data[card][number]":                          {card.Number},
		"payment_method_data[card][exp_month]":                       {strconv.Itoa(card.ExpMonth)},
		"payment_method_data[card][exp_year]":                        {strconv.Itoa(card.ExpYear)},
		"payment_method_data[card][cvc]":                             {card.CVC},
		"payment_method_data[billing_details][name]":                 {billing.Name},
		"payment_method_data[billing_details][email]":                {billing.Email},
		"payment_method_data[billing_details][address][line1]":       {billing.Address.Street},
		"payment_method_data[billing_details][address][city]":        {billing.Address.City},
		"payment_method_data[billing_details][address][state]":       {billing.Address.State},
		"payment_method_data[billing_details][address][country]":     {billing.Address.Country},
		"payment_method_data[billing_details][address][postal_code]": {billing.Address.PostalCode},
	}
	target := strings.TrimRight(p.cfg.ProcessorURL, "/") + "/v1/payment_intents/" + url.PathEscape(intentID) + "/confirm"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+p.cfg.PublishableKey)

	resp, err := p.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to reach payment processor: %w: %w", sferrors.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read processor answer: %w: %w", sferrors.ErrNetwork, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var pe processorError
		_ = json.Unmarshal(body, &pe)
		if pe.Error != nil {
			p.logger.WarnContext(ctx, "card payment declined", "intent_id", intentID, "code", pe.Error.Code, "decline_code", pe.Error.DeclineCode)
			return nil, fmt.Errorf("%s: %w", pe.Error.Message, sferrors.ErrPaymentDeclined)
		}
		return nil, fmt.Errorf("processor answered %d: %w", resp.StatusCode, sferrors.ErrPaymentDeclined)
	}

	var confirmation Confirmation
	if err := json.Unmarshal(body, &confirmation); err != nil {
		return nil, fmt.Errorf("failed to decode processor answer: %w", err)
	}
	p.logger.InfoContext(ctx, "card payment confirmed", "intent_id", confirmation.IntentID, "status", confirmation.Status)
	return &confirmation, nil
}

// intentIDFromSecret extracts "pi_123" from "pi_123_secret_456".
func intentIDFromSecret(secret string) (string, error) {
	id, _, ok := strings.Cut(secret, "_secret_")
	if !ok || id == "" {
		return "", sferrors.Validation("malformed payment client secret")
	}
	return id, nil
}
