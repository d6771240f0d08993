package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt holds the fields printed on a payment receipt.
type Receipt struct {
	PaymentID     string
	StudentName   string
	WorkshopName  string
	Amount        float64
	PeriodMonth   time.Month
	PeriodYear    int
	ConfirmedAt   time.Time
	InvoiceNumber string
	CAE           string
	CAEDueDate    *time.Time
}

// ReceiptRenderer produces PDF receipts for confirmed payments.
type ReceiptRenderer struct {
	studioName string
}

// NewReceiptRenderer builds a renderer branded with the studio name.
func NewReceiptRenderer(studioName string) *ReceiptRenderer {
	if studioName == "" {
		studioName = "Atelier"
	}
	return &ReceiptRenderer{studioName: studioName}
}

// Render creates a single-page PDF receipt.
func (r *ReceiptRenderer) Render(receipt Receipt) ([]byte, error) {
	if receipt.PaymentID == "" {
		return nil, fmt.Errorf("receipt requires a payment id")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, r.studioName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, "Payment receipt", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	writeRow := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(55, 8, label, "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 8, value, "1", 1, "", false, 0, "")
	}

	writeRow("Receipt", receipt.PaymentID)
	writeRow("Student", receipt.StudentName)
	if receipt.WorkshopName != "" {
		writeRow("Workshop", receipt.WorkshopName)
	}
	writeRow("Period", fmt.Sprintf("%s %d", receipt.PeriodMonth, receipt.PeriodYear))
	writeRow("Amount", fmt.Sprintf("$ %.2f", receipt.Amount))
	writeRow("Confirmed", receipt.ConfirmedAt.Format("2006-01-02 15:04"))

	if receipt.InvoiceNumber != "" {
		pdf.Ln(4)
		writeRow("Invoice", receipt.InvoiceNumber)
		writeRow("CAE", receipt.CAE)
		if receipt.CAEDueDate != nil {
			writeRow("CAE due", receipt.CAEDueDate.Format("2006-01-02"))
		}
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "This receipt certifies the confirmed payment recorded above.", "", 1, "", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
