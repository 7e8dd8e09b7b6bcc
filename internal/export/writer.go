// Package export renders claimed proxy lists for download.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/proxydesk/proxydesk/internal/quota"
)

const sheetName = "Proxies"

// TXT renders one proxy url per line.
func TXT(urls []string) []byte {
	var buf bytes.Buffer
	for _, url := range urls {
		buf.WriteString(url)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// XLSX renders deliveries as a single-sheet workbook with a header row. The
// url column is sized to the longest value so nothing is cut off on open.
func XLSX(deliveries []quota.Delivery) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	headers := []string{"Proxy", "Used At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	widest := len(headers[0])
	for i, e := range deliveries {
		urlCell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetCellValue(sheetName, urlCell, e.ProxyURL); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
		atCell, _ := excelize.CoordinatesToCellName(2, i+2)
		if err := f.SetCellValue(sheetName, atCell, e.UsedAt.Format(time.RFC3339)); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
		if len(e.ProxyURL) > widest {
			widest = len(e.ProxyURL)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", float64(widest+2)); err != nil {
		return nil, fmt.Errorf("failed to size column: %w", err)
	}
	if err := f.SetColWidth(sheetName, "B", "B", float64(len(time.RFC3339)+2)); err != nil {
		return nil, fmt.Errorf("failed to size column: %w", err)
	}

	return f.WriteToBuffer()
}

// Filename builds the download name for an export.
func Filename(ext string, at time.Time) string {
	return fmt.Sprintf("proxies_%s.%s", at.Format("2006-01-02"), ext)
}
