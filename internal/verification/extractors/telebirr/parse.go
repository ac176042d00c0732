package telebirr

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"github.com/tise-genene/verifyreceipt/internal/verification/extractors"
	"github.com/tise-genene/verifyreceipt/internal/verification/models"
)

var (
	statusPattern  = regexp.MustCompile(`(?i)transaction\s+status\s+([A-Za-z]+)`)
	invoicePattern = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Invoice\s*No\.?\s*([A-Z0-9]{6,})\b`),
		regexp.MustCompile(`(?i)Invoice\s*No\s*[:#]?\s*([A-Z0-9]{6,})\b`),
	}
	datePattern = regexp.MustCompile(`\b(\d{2}-\d{2}-\d{4}\s+\d{2}:\d{2}:\d{2})\b`)
	numericRun  = regexp.MustCompile(`([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

	totalPaidAmount = birrAmount("Total Paid Amount")
	settledAmount   = birrAmount("Settled Amount")

	payerName          = between("Payer Name", "Payer telebirr no.")
	payerTelebirrNo    = between("Payer telebirr no.", "Payer account type")
	creditedPartyName  = between("Credited Party name", "Credited telebirr account no")
	creditedPartyAccNo = between("Credited telebirr account no", "transaction status")
)

// between matches the text between two fixed labels.
func between(start, end string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(start) + `\s+(.+?)\s+` + regexp.QuoteMeta(end))
}

// birrAmount matches "<label> 1,234.56 Birr".
func birrAmount(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) + `\s+([0-9][0-9,]*(?:\.[0-9]{1,2})?)\s*Birr\b`)
}

var completedStatuses = map[string]bool{
	"completed":  true,
	"success":    true,
	"successful": true,
}

// VisibleText returns the whitespace-collapsed text of an HTML document,
// skipping script and style contents.
func VisibleText(doc []byte) string {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return ""
	}
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return extractors.CleanText(strings.Join(parts, " "))
}

// ExtractJSONPayload finds the first object starting with a "success" key in
// text and decodes it by brace matching. Single-quoted payloads are retried
// with double quotes. Returns nil when nothing decodes.
func ExtractJSONPayload(text string) map[string]any {
	idx := strings.Index(text, `{"success"`)
	if idx == -1 {
		idx = strings.Index(text, `{'success'`)
	}
	if idx == -1 {
		return nil
	}

	depth := 0
	for i := idx; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				snippet := text[idx : i+1]
				if obj := decodeObject(snippet); obj != nil {
					return obj
				}
				return decodeObject(strings.ReplaceAll(snippet, "'", `"`))
			}
		}
	}
	return nil
}

func decodeObject(s string) map[string]any {
	var obj map[string]any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil
	}
	return obj
}

// ParseJSONPayload maps a receipt payload whose "data" is an object.
// ok is false when payload has no such object.
func ParseJSONPayload(payload map[string]any, reference, receiptURL string) (models.TelebirrJSONReceipt, bool) {
	data, ok := payload["data"].(map[string]any)
	if !ok {
		return models.TelebirrJSONReceipt{}, false
	}

	status := str(data["transactionStatus"])
	receiptNo := str(data["receiptNo"])

	amount := parseBirrValue(data["totalPaidAmount"])
	if amount == nil {
		amount = parseBirrValue(data["settledAmount"])
	}

	success := true
	if v, isBool := payload["success"].(bool); isBool {
		success = v
	}
	if status != "" && !completedStatuses[strings.ToLower(status)] {
		success = false
	}

	transactionID := receiptNo
	if transactionID == "" {
		transactionID = reference
	}

	return models.TelebirrJSONReceipt{
		Success:                success,
		Reference:              reference,
		TransactionID:          transactionID,
		ReceiptNo:              receiptNo,
		PayerName:              str(data["payerName"]),
		PayerTelebirrNo:        str(data["payerTelebirrNo"]),
		CreditedPartyName:      str(data["creditedPartyName"]),
		CreditedPartyAccountNo: str(data["creditedPartyAccountNo"]),
		TransactionStatus:      status,
		PaymentDate:            str(data["paymentDate"]),
		SettledAmount:          str(data["settledAmount"]),
		ServiceFee:             str(data["serviceFee"]),
		ServiceFeeVAT:          str(data["serviceFeeVAT"]),
		TotalPaidAmount:        str(data["totalPaidAmount"]),
		BankName:               str(data["bankName"]),
		Amount:                 amount,
		ReceiptURL:             receiptURL,
	}, true
}

// ParseHTMLText scrapes the receipt page's visible English labels.
func ParseHTMLText(text, reference, receiptURL string) models.TelebirrHTMLReceipt {
	status := parseStatus(text)

	invoice := strings.ToUpper(extractors.FirstMatch(text, invoicePattern...))
	if invoice == "" {
		invoice = reference
	}

	amount := parseAmountBirr(text, totalPaidAmount)
	if amount == nil {
		amount = parseAmountBirr(text, settledAmount)
	}

	return models.TelebirrHTMLReceipt{
		Success:                status == "" || completedStatuses[strings.ToLower(status)],
		Reference:              reference,
		TransactionID:          invoice,
		InvoiceNo:              invoice,
		TransactionStatus:      status,
		PayerName:              captureBetween(text, payerName),
		PayerTelebirrNo:        captureBetween(text, payerTelebirrNo),
		CreditedPartyName:      captureBetween(text, creditedPartyName),
		CreditedPartyAccountNo: captureBetween(text, creditedPartyAccNo),
		PaymentDate:            extractors.FirstMatch(text, datePattern),
		Amount:                 amount,
		ReceiptURL:             receiptURL,
		RawText:                text,
	}
}

func captureBetween(text string, re *regexp.Regexp) string {
	return extractors.CleanText(extractors.FirstMatch(text, re))
}

func parseAmountBirr(text string, re *regexp.Regexp) *decimal.Decimal {
	m := extractors.FirstMatch(text, re)
	if m == "" {
		return nil
	}
	return extractors.ParseDecimal(m)
}

func parseStatus(text string) string {
	s := extractors.FirstMatch(text, statusPattern)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// parseBirrValue accepts a number or the first numeric run of a string such as "2.00 Birr".
func parseBirrValue(v any) *decimal.Decimal {
	switch val := v.(type) {
	case json.Number:
		return extractors.ParseDecimal(val.String())
	case float64:
		d := decimal.NewFromFloat(val)
		return &d
	case string:
		if m := numericRun.FindString(val); m != "" {
			return extractors.ParseDecimal(m)
		}
	}
	return nil
}

func str(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	}
	return ""
}
