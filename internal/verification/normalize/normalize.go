package normalize

import (
	"github.com/tise-genene/verifyreceipt/internal/verification/models"
)

// Normalize adapts one raw variant into the canonical record. The caller's
// reference is used whenever the source carried no identifier of its own.
func Normalize(raw models.Raw, provider models.Provider, reference string) models.Verification {
	var (
		status models.Status
		fields Fields
		source = models.SourceLocal
	)

	switch r := raw.(type) {
	case models.UpstreamRaw:
		status = Status(r.Map())
		fields = ExtractFields(r.Map())
		source = models.SourceUpstream
	case models.CBEReceipt:
		status = models.StatusSuccess
		fields = Fields{
			Amount:    r.Amount,
			Payer:     r.PayerName,
			Date:      r.PaymentDate,
			Reference: firstNonEmpty(r.Reference, r.TransactionID),
		}
	case models.TelebirrJSONReceipt:
		status = successStatus(r.Success)
		fields = Fields{
			Amount:    r.Amount,
			Payer:     r.PayerName,
			Date:      r.PaymentDate,
			Reference: firstNonEmpty(r.Reference, r.TransactionID),
		}
	case models.TelebirrHTMLReceipt:
		status = successStatus(r.Success)
		fields = Fields{
			Amount:    r.Amount,
			Payer:     r.PayerName,
			Date:      r.PaymentDate,
			Reference: firstNonEmpty(r.Reference, r.TransactionID),
		}
	case models.LocalNotFound:
		status = models.StatusFailed
		fields = Fields{Reference: r.Reference}
	default:
		status = models.StatusPending
	}

	return models.Verification{
		Status:     status,
		Provider:   provider,
		Reference:  firstNonEmpty(fields.Reference, reference),
		Amount:     fields.Amount,
		Payer:      fields.Payer,
		Date:       fields.Date,
		Source:     source,
		Confidence: Confidence(status, fields),
		Raw:        rawMap(raw),
	}
}

func successStatus(ok bool) models.Status {
	if ok {
		return models.StatusSuccess
	}
	return models.StatusFailed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func rawMap(raw models.Raw) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	return raw.Map()
}
