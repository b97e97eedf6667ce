package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"slabwise/server/internal/models"
)

const sheetName = "Decision Queue"

var headers = []string{
	"Title", "Issue", "Year", "Grade", "Class", "Action", "Channel",
	"Market", "Quick Sale", "Premium", "Target", "Floor", "Anchor",
	"Confidence", "Basis", "Trend", "Trend %", "Slab Lift $", "Slab Lift %",
	"Notes",
}

// WriteDecisionQueue renders the decision queue as an XLSX workbook.
func WriteDecisionQueue(w io.Writer, entries []models.QueueEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetName)

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "A", "A", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "T", "T", 40); err != nil {
		return err
	}

	for rowIdx, e := range entries {
		values := rowValues(e)
		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if v == nil {
				continue
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}

	_, err = f.WriteTo(w)
	return err
}

func rowValues(e models.QueueEntry) []interface{} {
	item := e.Item
	s := e.Suggestion
	d := e.Decision

	var market, quick, premium *float64
	var confidence *string
	basis := 0
	if s != nil {
		market = s.MarketPrice
		quick = s.QuickSale
		premium = s.PremiumPrice
		confidence = s.Confidence
		basis = s.BasisCount
	}

	return []interface{}{
		item.Title,
		deref(item.Issue),
		derefInt(item.Year),
		deref(item.GradeRaw),
		string(item.Class()),
		d.Action,
		d.ChannelHint,
		derefFloat(market),
		derefFloat(quick),
		derefFloat(premium),
		derefFloat(d.TargetPrice),
		derefFloat(d.FloorPrice),
		derefFloat(d.AnchorPrice),
		deref(confidence),
		basis,
		e.TrendLabel,
		derefFloat(e.TrendPct),
		derefFloat(d.SlabLift),
		pctString(d.SlabLiftPct),
		deref(item.Notes),
	}
}

func deref(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func derefFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func derefInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func pctString(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return fmt.Sprintf("%.1f%%", *f)
}
