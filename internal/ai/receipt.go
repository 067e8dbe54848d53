package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"time"

	"google.golang.org/genai"

	"fintrack/internal/core"
)

// Receipts above this size are not sent to the model.
const maxReceiptBytes = 5 << 20

// ReceiptData is the structured result of a receipt scan. Amount is zero
// when extraction failed and the user must enter it manually.
type ReceiptData struct {
	Amount       core.Money
	Date         time.Time
	Description  string
	MerchantName string
	Category     string
}

type receiptResponse struct {
	Amount       float64 `json:"amount"`
	Date         string  `json:"date"`
	Description  string  `json:"description"`
	MerchantName string  `json:"merchantName"`
	Category     string  `json:"category"`
}

const receiptPrompt = `Analyze this receipt image and extract:
- Total amount (number)
- Date (ISO format)
- Brief description of purchase
- Merchant/store name
- Category (one of: housing,transportation,groceries,utilities,entertainment,food,shopping,healthcare,education,personal,travel,insurance,gifts,bills,other-expense)

Return ONLY valid JSON in this format:
{"amount": number, "date": "YYYY-MM-DD", "description": "string", "merchantName": "string", "category": "string"}

If you can't identify the receipt clearly, return: {"amount": 0, "date": "", "description": "Unknown receipt", "merchantName": "Unknown", "category": "other-expense"}`

// ScanReceipt extracts transaction fields from a receipt image. It never
// returns an error: any failure yields the fallback payload so the caller
// can pre-fill a manual entry form.
func (c *Client) ScanReceipt(ctx context.Context, image []byte, mimeType string) ReceiptData {
	now := time.Now()

	if len(image) == 0 || len(image) > maxReceiptBytes {
		slog.WarnContext(ctx, "Receipt image rejected before scan",
			"size_bytes", len(image))
		return fallbackReceipt(now, "Receipt scan (manual entry required)")
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: receiptPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     image,
					},
				},
			},
		},
	}

	text, err := c.generate(ctx, contents)
	if err != nil {
		slog.ErrorContext(ctx, "Receipt scan model call failed", "error", err)
		return fallbackReceipt(now, "Receipt scan failed")
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		slog.ErrorContext(ctx, "Receipt scan returned no JSON object",
			"response_prefix", prefix(text, 100))
		return fallbackReceipt(now, "Receipt scan failed (parsing error)")
	}

	var parsed receiptResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.ErrorContext(ctx, "Receipt scan JSON did not parse", "error", err)
		return fallbackReceipt(now, "Receipt scan failed (parsing error)")
	}

	data := ReceiptData{
		Amount:       core.Money{Cents: int64(math.Round(parsed.Amount * 100))},
		Date:         parseReceiptDate(parsed.Date, now),
		Description:  parsed.Description,
		MerchantName: parsed.MerchantName,
		Category:     parsed.Category,
	}
	if data.Amount.Cents < 0 {
		data.Amount.Cents = 0
	}
	if data.Description == "" {
		data.Description = "Unknown purchase"
	}
	if data.MerchantName == "" {
		data.MerchantName = "Unknown"
	}
	if data.Category == "" {
		data.Category = "other-expense"
	}

	slog.InfoContext(ctx, "Receipt scanned",
		"amount_cents", data.Amount.Cents,
		"merchant", data.MerchantName,
		"category", data.Category)
	return data
}

func fallbackReceipt(now time.Time, description string) ReceiptData {
	return ReceiptData{
		Amount:       core.Money{Cents: 0},
		Date:         now,
		Description:  description,
		MerchantName: "Unknown",
		Category:     "other-expense",
	}
}

func parseReceiptDate(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
