package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
)

const (
	invoicesSheet = "Invoices"
	itemsSheet    = "Items"
	dateLayout    = "2006-01-02"
)

var (
	invoiceHeader = []string{"Invoice ID", "Document ID", "Invoice Number", "Invoice Date", "Vendor", "Vendor Tax ID", "Total Amount", "Currency", "Payment Status", "Extraction Status", "Audit Status"}
	itemHeader    = []string{"Invoice ID", "Invoice Number", "Description", "Quantity", "Unit Price", "Total Price", "Category"}
)

// Exporter writes invoices as a two-sheet workbook: headers and line items.
type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Export(w io.Writer, invoices []domain.Invoice) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", invoicesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return fmt.Errorf("create items sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := writeRow(f, invoicesSheet, 1, toRow(invoiceHeader), headerStyle); err != nil {
		return err
	}
	if err := writeRow(f, itemsSheet, 1, toRow(itemHeader), headerStyle); err != nil {
		return err
	}

	itemRow := 2
	for i, inv := range invoices {
		if err := writeRow(f, invoicesSheet, i+2, invoiceRow(inv), 0); err != nil {
			return err
		}
		for _, item := range inv.Items {
			row := []any{inv.ID, inv.InvoiceNumber, item.Description, item.Quantity, item.UnitPrice, item.TotalPrice, item.Category}
			if err := writeRow(f, itemsSheet, itemRow, row, 0); err != nil {
				return err
			}
			itemRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func invoiceRow(inv domain.Invoice) []any {
	date := ""
	if inv.InvoiceDate != nil {
		date = inv.InvoiceDate.Format(dateLayout)
	}
	vendorName, vendorTaxID := "", ""
	if inv.Vendor != nil {
		vendorName, vendorTaxID = inv.Vendor.Name, inv.Vendor.TaxID
	}
	return []any{
		inv.ID, inv.DocumentID, inv.InvoiceNumber, date, vendorName, vendorTaxID,
		inv.TotalAmount, inv.Currency, inv.PaymentStatus, inv.ExtractionStatus, inv.AuditStatus,
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any, style int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, start, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	if style == 0 {
		return nil
	}
	end, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellStyle(sheet, start, end, style); err != nil {
		return fmt.Errorf("style %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toRow(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
