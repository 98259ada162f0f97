package export

import (
	"io"

	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/justsurfingit/job-application-tracker/internal/services"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

var headers = map[string]string{
	"company_name":   "Company",
	"job_title":      "Job Title",
	"date_applied":   "Date Applied",
	"date_rejected":  "Date Rejected",
	"interview_date": "Interview Date",
	"offer_date":     "Offer Date",
}

// WriteWorkbook writes one sheet per status, in display order, with the
// columns of that status's projection.
func WriteWorkbook(w io.Writer, grouped map[models.ApplicationStatus][]services.StatusRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, status := range models.AllStatuses {
		sheet := string(status)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return eris.Wrap(err, "rename first sheet")
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return eris.Wrapf(err, "create sheet %s", sheet)
		}

		cols := services.ProjectionColumns(status)
		for c, key := range cols {
			cell, _ := excelize.CoordinatesToCellName(c+1, 1)
			if err := f.SetCellValue(sheet, cell, headers[key]); err != nil {
				return eris.Wrap(err, "write header")
			}
		}
		for r, rec := range grouped[status] {
			for c, key := range cols {
				v := rec[key]
				if v == nil {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return eris.Wrap(err, "write cell")
				}
			}
		}
		_ = f.SetColWidth(sheet, "A", "B", 28)
		_ = f.SetColWidth(sheet, "C", "E", 16)
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return eris.Wrap(err, "xlsx write")
	}
	return nil
}
