// Package export writes simulation history as a spreadsheet.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/credit-simulator/internal/storage"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the history.
const SheetName = "Simulações"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{"Data", "Usuário", "Empresa", "Tipo", "Crédito", "Entrada", "Parcelas", "Código"}

// WriteXLSX writes records to w, one row each, with dates shown in loc.
func WriteXLSX(w io.Writer, records []storage.Record, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return fmt.Errorf("write header %s: %w", header, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("create currency style: %w", err)
	}

	for i, record := range records {
		row := i + 2
		values := []any{
			record.CreatedAt.In(loc).Format("02/01/2006 15:04"),
			record.UserDisplayName,
			record.Company,
			record.Type,
			record.CreditValue,
			record.DownPayment,
			installmentSummary(record.Installments),
			record.FeeCode,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, start, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		if err := f.SetCellStyle(SheetName, fmt.Sprintf("E%d", row), fmt.Sprintf("F%d", row), money); err != nil {
			return fmt.Errorf("style row %d: %w", row, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "H", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func installmentSummary(installments []storage.Installment) string {
	parts := make([]string, len(installments))
	for i, installment := range installments {
		parts[i] = strconv.Itoa(installment.Count) + "x"
	}
	return strings.Join(parts, " ")
}
