package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/punchamoorthee/visaops/internal/logging"
)

const exportSheet = "Visas"

var exportHeaders = []string{
	"Code", "Type", "Distributor", "Account Types", "Amount", "Objective",
	"Parent", "Status", "Approved", "Last Response", "Responder", "Created By", "Created At",
}

// ExportVisasHandler writes every visa matching the list filters as xlsx.
// Paging parameters are ignored.
func (h *Handler) ExportVisasHandler(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.Page, f.Limit = 1, 0
	page, err := h.visas.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}

	x := excelize.NewFile()
	defer x.Close()
	index, err := x.NewSheet(exportSheet)
	if err != nil {
		fail(w, r, err)
		return
	}
	x.SetActiveSheet(index)
	x.DeleteSheet("Sheet1")

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		x.SetCellValue(exportSheet, cell, header)
	}
	for i, v := range page.Data {
		row := i + 2
		x.SetCellValue(exportSheet, fmt.Sprintf("A%d", row), v.Code)
		x.SetCellValue(exportSheet, fmt.Sprintf("B%d", row), string(v.Type))
		x.SetCellValue(exportSheet, fmt.Sprintf("C%d", row), v.DistributorID)
		x.SetCellValue(exportSheet, fmt.Sprintf("D%d", row), strings.Join(v.AccountTypes, ", "))
		x.SetCellValue(exportSheet, fmt.Sprintf("E%d", row), v.Amount.InexactFloat64())
		x.SetCellValue(exportSheet, fmt.Sprintf("F%d", row), v.Objective)
		x.SetCellValue(exportSheet, fmt.Sprintf("G%d", row), v.ParentCode)
		x.SetCellValue(exportSheet, fmt.Sprintf("H%d", row), string(v.Status))
		x.SetCellValue(exportSheet, fmt.Sprintf("I%d", row), v.Approved)
		x.SetCellValue(exportSheet, fmt.Sprintf("J%d", row), v.LastResponse)
		x.SetCellValue(exportSheet, fmt.Sprintf("K%d", row), v.LastResponder)
		x.SetCellValue(exportSheet, fmt.Sprintf("L%d", row), v.CreatedBy)
		x.SetCellValue(exportSheet, fmt.Sprintf("M%d", row), v.CreatedAt.Format("2006-01-02 15:04"))
	}

	fileName := fmt.Sprintf("visas_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
	if err := x.Write(w); err != nil {
		logging.Error(moduleName, "ExportVisasHandler", "write xlsx", nil, err)
	}
}
