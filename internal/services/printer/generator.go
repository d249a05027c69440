package printer

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

// InvoiceDocument holds everything the PDF renderer needs. Line items carry
// description, quantity, unitPrice and amount keys.
type InvoiceDocument struct {
	Number      string                   `json:"number"`
	IssuedAt    time.Time                `json:"issuedAt"`
	DueAt       time.Time                `json:"dueAt"`
	CompanyName string                   `json:"companyName"`
	ClientName  string                   `json:"clientName"`
	ClientEmail string                   `json:"clientEmail"`
	LineItems   []map[string]interface{} `json:"lineItems"`
	Subtotal    float64                  `json:"subtotal"`
	TaxRate     float64                  `json:"taxRate"`
	TaxAmount   float64                  `json:"taxAmount"`
	Total       float64                  `json:"total"`
	PaymentLink string                   `json:"paymentLink"`
	Notes       string                   `json:"notes"`
}

// GenerateInvoicePDF renders an invoice as an A4 PDF with a scannable
// payment QR code in the footer.
func GenerateInvoicePDF(doc InvoiceDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Invoice #%s", doc.Number), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Issued: %s", doc.IssuedAt.Format("2006-01-02")), "", 1, "L", false, 0, "")
	if !doc.DueAt.IsZero() {
		pdf.CellFormat(0, 5, fmt.Sprintf("Due: %s", doc.DueAt.Format("2006-01-02")), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// Parties
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(90, 6, "From", "", 0, "L", false, 0, "")
	pdf.CellFormat(90, 6, "Bill To", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(90, 5, doc.CompanyName, "", 0, "L", false, 0, "")
	pdf.CellFormat(90, 5, doc.ClientName, "", 1, "L", false, 0, "")
	if doc.ClientEmail != "" {
		pdf.CellFormat(90, 5, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(90, 5, doc.ClientEmail, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	// Line item table header
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(95, 7, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 7, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 7, "Unit Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 7, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, item := range doc.LineItems {
		desc := fmt.Sprintf("%v", item["description"])
		qty := toFloat(item["quantity"])
		unit := toFloat(item["unitPrice"])
		amount := toFloat(item["amount"])
		if amount == 0 {
			amount = qty * unit
		}

		pdf.CellFormat(95, 7, desc, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%.2f", qty), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", unit), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", amount), "1", 1, "R", false, 0, "")
	}

	// Totals block
	pdf.Ln(2)
	pdf.CellFormat(145, 6, "Subtotal", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", doc.Subtotal), "", 1, "R", false, 0, "")
	if doc.TaxRate > 0 {
		pdf.CellFormat(145, 6, fmt.Sprintf("Tax (%.1f%%)", doc.TaxRate), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", doc.TaxAmount), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(145, 7, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, fmt.Sprintf("%.2f", doc.Total), "", 1, "R", false, 0, "")

	if doc.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, doc.Notes, "", "L", false)
	}

	// Payment QR in the footer
	link := doc.PaymentLink
	if link == "" {
		base := os.Getenv("PAYMENT_LINK_BASE")
		if base == "" {
			base = "https://pay.fieldfolio.app"
		}
		link = fmt.Sprintf("%s/invoice/%s", base, doc.Number)
	}

	qrPng, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode payment QR: %w", err)
	}

	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	_ = pdf.RegisterImageOptionsReader("payment_qr", imgOptions, bytes.NewReader(qrPng))

	pdf.Ln(8)
	qrY := pdf.GetY()
	pdf.ImageOptions("payment_qr", 15, qrY, 28, 28, false, imgOptions, 0, "")
	pdf.SetXY(48, qrY+10)
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, "Scan to pay online", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
