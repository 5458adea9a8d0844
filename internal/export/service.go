package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/medorders/internal/async"
	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
)

// OrderLister is satisfied by *orders.Service.
type OrderLister interface {
	ListSince(ctx context.Context, since time.Time) ([]*entity.Order, error)
}

// Service produces XLSX bytes for order and batch reports.
type Service struct {
	orders OrderLister
	logger *slog.Logger
}

func NewService(orders OrderLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orders: orders, logger: logger}
}

// OrdersXLSX returns a workbook of every order created at or after since.
// A zero since exports the full history.
func (s *Service) OrdersXLSX(ctx context.Context, since time.Time) ([]byte, error) {
	start := time.Now()

	orders, err := s.orders.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	headers := []string{
		"Order ID",
		"Created At",
		"Patient MRN",
		"Patient Name",
		"Prescriber NPI",
		"Prescriber Name",
		"Item",
		"Quantity",
		"Reason Prescribed",
		"Devices",
	}
	rows := make([][]any, 0, len(orders))
	for _, o := range orders {
		var mrn, patientName, npi, prescriberName string
		if o.Patient != nil {
			mrn = o.Patient.MedicalRecordNumber
			patientName = strings.TrimSpace(o.Patient.FirstName + " " + o.Patient.LastName)
		}
		if o.Prescriber != nil {
			npi = deref(o.Prescriber.NPI)
			prescriberName = strings.TrimSpace(o.Prescriber.FirstName + " " + o.Prescriber.LastName)
		}
		var qty any = ""
		if o.ItemQuantity != nil {
			qty = *o.ItemQuantity
		}
		rows = append(rows, []any{
			o.ID,
			o.CreatedAt.UTC().Format(time.RFC3339),
			mrn,
			patientName,
			npi,
			prescriberName,
			deref(o.ItemName),
			qty,
			common.Truncate(deref(o.ReasonPrescribed), 140),
			deviceSummary(o.Devices),
		})
	}

	buf, err := s.workbook("Orders", headers, rows, map[string]float64{
		"A": 10, "B": 22, "C": 16, "D": 24, "E": 14, "F": 24, "G": 28, "H": 10, "I": 40, "J": 48,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("export.orders.ok",
		"since", since.UTC().Format(time.RFC3339),
		"rows", len(orders),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}

// BatchRow is one line of a batch report.
type BatchRow struct {
	Filename   string
	Status     string
	OrderID    int
	PatientMRN string
	Item       string
	Duplicates int
	ErrorKind  string
	Error      string
}

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// RowFromOutcome flattens a queue outcome into a report row.
func RowFromOutcome(o async.Outcome) BatchRow {
	row := BatchRow{Filename: o.Job.Path, Status: StatusOK}
	if o.Err != nil {
		row.Status = StatusFailed
		row.ErrorKind = common.Kind(o.Err)
		row.Error = common.Truncate(o.Err.Error(), 300)
		return row
	}
	if o.Processed == nil || o.Processed.Result == nil || o.Processed.Result.Order == nil {
		return row
	}
	res := o.Processed.Result
	row.OrderID = res.Order.ID
	row.Item = deref(res.Order.ItemName)
	row.Duplicates = len(res.DuplicateWarnings)
	if res.Order.Patient != nil {
		row.PatientMRN = res.Order.Patient.MedicalRecordNumber
	}
	return row
}

// BatchReportXLSX returns a workbook with one row per processed document.
func (s *Service) BatchReportXLSX(rows []BatchRow) ([]byte, error) {
	headers := []string{"Document", "Status", "Order ID", "Patient MRN", "Item", "Duplicates", "Error Kind", "Error"}
	cells := make([][]any, 0, len(rows))
	failed := 0
	for _, r := range rows {
		var orderID any = ""
		if r.OrderID > 0 {
			orderID = r.OrderID
		}
		if r.Status == StatusFailed {
			failed++
		}
		cells = append(cells, []any{r.Filename, r.Status, orderID, r.PatientMRN, r.Item, r.Duplicates, r.ErrorKind, r.Error})
	}

	buf, err := s.workbook("Batch", headers, cells, map[string]float64{
		"A": 60, "B": 10, "C": 10, "D": 16, "E": 28, "F": 12, "G": 28, "H": 60,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.batch.ok", "rows", len(rows), "failed", failed)
	return buf, nil
}

func (s *Service) workbook(sheet string, headers []string, rows [][]any, widths map[string]float64) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("xlsx close failed", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}

	for r, values := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", r+2, err)
		}
	}
	for col, w := range widths {
		_ = f.SetColWidth(sheet, col, col, w)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func deviceSummary(lines []entity.OrderDevice) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		label := l.Name
		if sku := deref(l.SKU); sku != "" {
			label += " (" + sku + ")"
		}
		parts = append(parts, fmt.Sprintf("%s x%d", label, l.Quantity))
	}
	return strings.Join(parts, "; ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
