package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ruslano69/eavsql/pkg/core/value"
	"github.com/ruslano69/eavsql/pkg/store"
)

// maxSheetName - ограничение Excel на длину имени листа
const maxSheetName = 31

// WriteXLSX пишет коллекцию на один лист: колонка _oid и по колонке на атрибут
// Байтовые значения пишутся в base64, Null - пустой ячейкой
func (e *Exporter) WriteXLSX(ctx context.Context, w io.Writer) (int, error) {
	keys, err := e.store.KeyNames(ctx, 0)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := e.store.Collection()
	if len(sheet) > maxSheetName {
		sheet = sheet[:maxSheetName]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	header := append([]string{store.OIDField}, keys...)
	for col, name := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, name)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	row := 1
	err = e.Walk(ctx, func(id string, obj store.Object) error {
		row++
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(sheet, cell, id); err != nil {
			return err
		}
		for col, key := range keys {
			v, ok := obj[key]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+2, row)
			if err := f.SetCellValue(sheet, cell, cellValue(v)); err != nil {
				return fmt.Errorf("failed to write %s.%s: %w", id, key, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to export %s: %w", e.store.Collection(), err)
	}

	last, _ := excelize.ColumnNumberToName(len(header))
	f.SetColWidth(sheet, "A", last, 15)
	f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return row - 1, nil
}

func cellValue(v value.Value) any {
	if raw, ok := v.Raw(); ok {
		return base64.StdEncoding.EncodeToString(raw)
	}
	return v.Interface()
}
