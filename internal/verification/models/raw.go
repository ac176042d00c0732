package models

import (
	"github.com/shopspring/decimal"
)

// Raw is a source payload awaiting normalisation. The set of implementations
// is closed: upstream JSON bodies and the typed local receipt shapes.
type Raw interface {
	// Map renders the payload in its audit form.
	Map() map[string]any
	raw()
}

// UpstreamRaw wraps an arbitrary JSON body from the upstream API.
type UpstreamRaw struct {
	Body map[string]any
}

func (r UpstreamRaw) Map() map[string]any {
	if r.Body == nil {
		return map[string]any{}
	}
	return r.Body
}

func (UpstreamRaw) raw() {}

// CBEReceipt is the data parsed from a CBE receipt PDF.
type CBEReceipt struct {
	Reference         string
	TransactionID     string
	PayerName         string
	CreditedPartyName string
	PaymentDate       string
	Amount            *decimal.Decimal
	ReceiptURL        string
	RawText           string
}

func (r CBEReceipt) Map() map[string]any {
	return map[string]any{
		"success": true,
		"data": compact(map[string]any{
			"provider":          string(ProviderCBE),
			"reference":         r.Reference,
			"transactionId":     r.TransactionID,
			"payerName":         r.PayerName,
			"creditedPartyName": r.CreditedPartyName,
			"paymentDate":       r.PaymentDate,
			"amount":            amountValue(r.Amount),
			"receiptUrl":        r.ReceiptURL,
		}),
		"rawText": r.RawText,
	}
}

func (CBEReceipt) raw() {}

// TelebirrJSONReceipt is the data read from the Telebirr receipt JSON payload.
type TelebirrJSONReceipt struct {
	Success                bool
	Reference              string
	TransactionID          string
	ReceiptNo              string
	PayerName              string
	PayerTelebirrNo        string
	CreditedPartyName      string
	CreditedPartyAccountNo string
	TransactionStatus      string
	PaymentDate            string
	SettledAmount          string
	ServiceFee             string
	ServiceFeeVAT          string
	TotalPaidAmount        string
	BankName               string
	Amount                 *decimal.Decimal
	ReceiptURL             string
}

func (r TelebirrJSONReceipt) Map() map[string]any {
	return map[string]any{
		"success": r.Success,
		"data": compact(map[string]any{
			"provider":               string(ProviderTelebirr),
			"reference":              r.Reference,
			"transactionId":          r.TransactionID,
			"receiptNo":              r.ReceiptNo,
			"payerName":              r.PayerName,
			"payerTelebirrNo":        r.PayerTelebirrNo,
			"creditedPartyName":      r.CreditedPartyName,
			"creditedPartyAccountNo": r.CreditedPartyAccountNo,
			"transactionStatus":      r.TransactionStatus,
			"paymentDate":            r.PaymentDate,
			"settledAmount":          r.SettledAmount,
			"serviceFee":             r.ServiceFee,
			"serviceFeeVAT":          r.ServiceFeeVAT,
			"totalPaidAmount":        r.TotalPaidAmount,
			"bankName":               r.BankName,
			"amount":                 amountValue(r.Amount),
			"receiptUrl":             r.ReceiptURL,
		}),
	}
}

func (TelebirrJSONReceipt) raw() {}

// TelebirrHTMLReceipt is the data scraped from the Telebirr receipt page text.
type TelebirrHTMLReceipt struct {
	Success                bool
	Reference              string
	TransactionID          string
	InvoiceNo              string
	TransactionStatus      string
	PayerName              string
	PayerTelebirrNo        string
	CreditedPartyName      string
	CreditedPartyAccountNo string
	PaymentDate            string
	Amount                 *decimal.Decimal
	ReceiptURL             string
	RawText                string
}

func (r TelebirrHTMLReceipt) Map() map[string]any {
	return map[string]any{
		"success": r.Success,
		"data": compact(map[string]any{
			"provider":               string(ProviderTelebirr),
			"reference":              r.Reference,
			"transactionId":          r.TransactionID,
			"invoiceNo":              r.InvoiceNo,
			"transactionStatus":      r.TransactionStatus,
			"payerName":              r.PayerName,
			"payerTelebirrNo":        r.PayerTelebirrNo,
			"creditedPartyName":      r.CreditedPartyName,
			"creditedPartyAccountNo": r.CreditedPartyAccountNo,
			"paymentDate":            r.PaymentDate,
			"amount":                 amountValue(r.Amount),
			"receiptUrl":             r.ReceiptURL,
		}),
		"rawText": r.RawText,
	}
}

func (TelebirrHTMLReceipt) raw() {}

// LocalNotFound is the defined result of a local extractor finding no receipt.
type LocalNotFound struct {
	Provider  Provider
	Reference string
}

func (r LocalNotFound) Map() map[string]any {
	return map[string]any{
		"success": false,
		"message": "Receipt not found",
		"data":    map[string]any{"reference": r.Reference},
	}
}

func (LocalNotFound) raw() {}

func amountValue(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return f
}

// compact drops empty strings and nil values so the audit map stays sparse.
func compact(m map[string]any) map[string]any {
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			delete(m, k)
		case string:
			if val == "" {
				delete(m, k)
			}
		}
	}
	return m
}
