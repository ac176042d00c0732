package telebirr

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const receiptPage = `<!DOCTYPE html>
<html><head><title>telebirr receipt</title>
<style>.label { color: red }</style>
<script>var tracking = "Payer Name DECOY";</script>
</head><body>
<table>
<tr><td>Payer Name</td><td>Abebe Kebede</td></tr>
<tr><td>Payer telebirr no.</td><td>2519****1234</td></tr>
<tr><td>Payer account type</td><td>Individual</td></tr>
<tr><td>Credited Party name</td><td>Sara Tesfaye</td></tr>
<tr><td>Credited telebirr account no</td><td>2519****5678</td></tr>
<tr><td>transaction status</td><td>Completed</td></tr>
<tr><td>Invoice No.</td><td>CE12ABC34D</td><td>15-01-2026 16:24:00</td></tr>
<tr><td>Settled Amount</td><td>2.00 Birr</td></tr>
<tr><td>Service fee</td><td>0.00 Birr</td></tr>
<tr><td>Total Paid Amount</td><td>2.00 Birr</td></tr>
</table>
</body></html>`

func requireAmount(t *testing.T, want string, got *decimal.Decimal) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, decimal.RequireFromString(want).Equal(*got), "got %s want %s", got, want)
}

func TestVisibleText_SkipsScriptAndStyle(t *testing.T) {
	text := VisibleText([]byte(receiptPage))
	assert.Contains(t, text, "Payer Name Abebe Kebede Payer telebirr no.")
	assert.NotContains(t, text, "DECOY")
	assert.NotContains(t, text, "color")
}

func TestParseHTMLText(t *testing.T) {
	text := VisibleText([]byte(receiptPage))
	r := ParseHTMLText(text, "CE12ABC34D", "https://receipt.example/CE12ABC34D")

	assert.True(t, r.Success)
	assert.Equal(t, "CE12ABC34D", r.Reference)
	assert.Equal(t, "CE12ABC34D", r.InvoiceNo)
	assert.Equal(t, "CE12ABC34D", r.TransactionID)
	assert.Equal(t, "Completed", r.TransactionStatus)
	assert.Equal(t, "Abebe Kebede", r.PayerName)
	assert.Equal(t, "2519****1234", r.PayerTelebirrNo)
	assert.Equal(t, "Sara Tesfaye", r.CreditedPartyName)
	assert.Equal(t, "2519****5678", r.CreditedPartyAccountNo)
	assert.Equal(t, "15-01-2026 16:24:00", r.PaymentDate)
	requireAmount(t, "2.00", r.Amount)
}

func TestParseHTMLText_FailedStatus(t *testing.T) {
	r := ParseHTMLText("transaction status FAILED Settled Amount 10.50 Birr", "CE1", "")
	assert.False(t, r.Success)
	assert.Equal(t, "Failed", r.TransactionStatus)
	assert.Equal(t, "CE1", r.InvoiceNo, "invoice falls back to reference")
	requireAmount(t, "10.50", r.Amount)
}

func TestExtractJSONPayload(t *testing.T) {
	t.Run("embedded double-quoted", func(t *testing.T) {
		obj := ExtractJSONPayload(`<script>window.__DATA__ = {"success":true,"data":{"payerName":"A {x}"}};</script>`)
		require.NotNil(t, obj)
		assert.Equal(t, true, obj["success"])
	})

	t.Run("single-quoted retried with double quotes", func(t *testing.T) {
		obj := ExtractJSONPayload(`var d = {'success': false, 'data': {'receiptNo': 'CE1'}}`)
		require.NotNil(t, obj)
		assert.Equal(t, false, obj["success"])
	})

	t.Run("absent", func(t *testing.T) {
		assert.Nil(t, ExtractJSONPayload("<html>nothing</html>"))
	})

	t.Run("unbalanced", func(t *testing.T) {
		assert.Nil(t, ExtractJSONPayload(`{"success": true, "data": {`))
	})
}

func TestParseJSONPayload(t *testing.T) {
	payload := map[string]any{
		"success": true,
		"data": map[string]any{
			"payerName":         "Abebe Kebede",
			"creditedPartyName": "Sara Tesfaye",
			"transactionStatus": "Completed",
			"receiptNo":         "CE12ABC34D",
			"paymentDate":       "15-01-2026 16:24:00",
			"settledAmount":     "2.00 Birr",
			"serviceFee":        "0.00 Birr",
			"totalPaidAmount":   "2.00 Birr",
		},
	}

	r, ok := ParseJSONPayload(payload, "CE12ABC34D", "u")
	require.True(t, ok)
	assert.True(t, r.Success)
	assert.Equal(t, "CE12ABC34D", r.TransactionID)
	assert.Equal(t, "Abebe Kebede", r.PayerName)
	assert.Equal(t, "2.00 Birr", r.TotalPaidAmount)
	requireAmount(t, "2.00", r.Amount)
}

func TestParseJSONPayload_StatusAndFallbacks(t *testing.T) {
	t.Run("non-completed status forces failure", func(t *testing.T) {
		r, ok := ParseJSONPayload(map[string]any{
			"success": true,
			"data":    map[string]any{"transactionStatus": "Pending"},
		}, "CE1", "")
		require.True(t, ok)
		assert.False(t, r.Success)
		assert.Equal(t, "CE1", r.TransactionID, "transaction id falls back to reference")
	})

	t.Run("success defaults to true", func(t *testing.T) {
		r, ok := ParseJSONPayload(map[string]any{"data": map[string]any{}}, "CE1", "")
		require.True(t, ok)
		assert.True(t, r.Success)
		assert.Nil(t, r.Amount)
	})

	t.Run("settled amount when total missing", func(t *testing.T) {
		r, _ := ParseJSONPayload(map[string]any{"data": map[string]any{"settledAmount": json.Number("7.5")}}, "CE1", "")
		requireAmount(t, "7.5", r.Amount)
	})

	t.Run("no data object", func(t *testing.T) {
		_, ok := ParseJSONPayload(map[string]any{"success": true}, "CE1", "")
		assert.False(t, ok)
		_, ok = ParseJSONPayload(nil, "CE1", "")
		assert.False(t, ok)
	})
}

func TestLabelPatterns(t *testing.T) {
	text := "PAYER NAME Abebe  Kebede PAYER TELEBIRR NO. 2519****1234 payer account type Individual " +
		"total paid amount 1,002.00 birr"

	assert.Equal(t, "Abebe Kebede", captureBetween(text, payerName))
	assert.Equal(t, "2519****1234", captureBetween(text, payerTelebirrNo))
	assert.Empty(t, captureBetween(text, creditedPartyName))
	requireAmount(t, "1002", parseAmountBirr(text, totalPaidAmount))
	assert.Nil(t, parseAmountBirr(text, settledAmount))
}
