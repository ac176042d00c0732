package cbe

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tise-genene/verifyreceipt/internal/verification/extractors"
	"github.com/tise-genene/verifyreceipt/internal/verification/models"
)

const amountPattern = `([0-9][0-9,]*(?:\.[0-9]{1,2})?)\s*ETB\b`

var (
	// Labelled amounts on the VAT invoice layout, tried before any bare "<n> ETB".
	labelledAmounts = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Transferred\s+Amount\s+` + amountPattern),
		regexp.MustCompile(`(?i)Total\s+amount\s+debited\s+from\s+customers\s+account\s+` + amountPattern),
	}
	bareAmount = regexp.MustCompile(`(?i)` + amountPattern)

	referenceNo    = regexp.MustCompile(`(?i)Reference\s*No\.?\s*(?:\([^)]*\))?\s*([A-Z0-9]{6,})\b`)
	transactionIDs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\btransaction\s*id\s*[:#]?\s*([A-Z0-9]{8,})\b`),
		regexp.MustCompile(`(?i)\btransaction\s*no\s*[:#]?\s*([A-Z0-9]{8,})\b`),
		regexp.MustCompile(`(?i)\b(FT[0-9A-Z]{6,})\b`),
	}

	payerPattern    = regexp.MustCompile(`(?i)\bPayer\s+(.+?)\s+Account\b`)
	receiverPattern = regexp.MustCompile(`(?i)\bReceiver\s+(.+?)\s+Account\b`)
	datePattern     = regexp.MustCompile(`(?i)Payment\s+Date\s*&\s*Time\s+(\d{1,2}/\d{1,2}/\d{4},\s*\d{1,2}:\d{2}:\d{2}\s*(?:AM|PM))`)

	// Alternative layout: "debited from <payer> for <payee> on 15-Jan-2026"
	debitedLayout = regexp.MustCompile(`(?i)debited\s+from\s+(?P<payer>.+?)\s+for\s+(?P<payee>.+?)\s+on\s+(?P<date>\d{1,2}-[A-Za-z]{3}-\d{4})`)
)

// ParseReceipt extracts receipt fields from cleaned PDF text. reference is the
// caller's input and is kept as-is; the printed identifier goes to TransactionID.
func ParseReceipt(text, reference, receiptURL string) models.CBEReceipt {
	payer, payee, date := parseParties(text)
	return models.CBEReceipt{
		Reference:         reference,
		TransactionID:     transactionID(text, reference),
		PayerName:         payer,
		CreditedPartyName: payee,
		PaymentDate:       date,
		Amount:            parseAmount(text),
		ReceiptURL:        receiptURL,
		RawText:           text,
	}
}

func parseAmount(text string) *decimal.Decimal {
	for _, re := range labelledAmounts {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			if d := extractors.ParseDecimal(m[1]); d != nil {
				return d
			}
		}
	}

	matches := bareAmount.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	return extractors.ParseDecimal(matches[len(matches)-1][1])
}

func transactionID(text, fallback string) string {
	if id := extractors.FirstMatch(text, referenceNo); id != "" {
		return strings.ToUpper(id)
	}
	if id := extractors.FirstMatch(text, transactionIDs...); id != "" {
		return strings.ToUpper(id)
	}
	return fallback
}

func parseParties(text string) (payer, payee, date string) {
	payer = extractors.CleanText(extractors.FirstMatch(text, payerPattern))
	payee = extractors.CleanText(extractors.FirstMatch(text, receiverPattern))
	date = extractors.CleanText(extractors.FirstMatch(text, datePattern))

	if payer != "" && payee != "" && date != "" {
		return payer, payee, date
	}
	if m := debitedLayout.FindStringSubmatch(text); m != nil {
		if payer == "" {
			payer = extractors.CleanText(m[debitedLayout.SubexpIndex("payer")])
		}
		if payee == "" {
			payee = extractors.CleanText(m[debitedLayout.SubexpIndex("payee")])
		}
		if date == "" {
			date = extractors.CleanText(m[debitedLayout.SubexpIndex("date")])
		}
	}
	return payer, payee, date
}
