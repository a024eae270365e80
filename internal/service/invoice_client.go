package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"projectflow/pkg/circuitbreaker"
)

// InvoiceClient calls the external invoicing service when a milestone is
// approved. A circuit breaker keeps a dead invoicing service from backing
// up the worker queue.
type InvoiceClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

func NewInvoiceClient(baseURL string) *InvoiceClient {
	return &InvoiceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
	}
}

type InvoiceRequest struct {
	MilestoneID int     `json:"milestone_id"`
	ProjectID   int     `json:"project_id"`
	Amount      float64 `json:"amount"`
	ApprovedBy  int     `json:"approved_by"`
}

type Invoice struct {
	InvoiceID string `json:"invoice_id"`
	Status    string `json:"status"`
}

// CreateInvoice asks the invoicing service to issue an invoice for an
// approved milestone.
func (c *InvoiceClient) CreateInvoice(ctx context.Context, in InvoiceRequest) (*Invoice, error) {
	var invoice *Invoice
	err := c.breaker.Execute(func() error {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoices", bytes.NewReader(b))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call invoicing service: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			// 可重试错误
			return fmt.Errorf("invoicing service 5xx: %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("invoicing service error: %d", resp.StatusCode)
		}

		var out Invoice
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return err
		}
		invoice = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}
