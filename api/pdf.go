package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"

	"github.com/warp/compday/dayoff"
)

// DayOffForm renders the printable approval form of a request.
func (h *Handler) DayOffForm(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	req, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	body, err := renderDayOffForm(req, h.nameLookup(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"dayoff-%s.pdf\"", req.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// nameLookup resolves user ids to display names, falling back to the id.
func (h *Handler) nameLookup(ctx context.Context) func(id string) string {
	return func(id string) string {
		if id == "" {
			return "-"
		}
		u, err := h.Backend.GetUser(ctx, id)
		if err != nil {
			return id
		}
		if u.EmployeeNo != "" {
			return fmt.Sprintf("%s (%s)", u.Name, u.EmployeeNo)
		}
		return u.Name
	}
}

func renderDayOffForm(req *dayoff.Request, name func(id string) string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Compensatory Day-Off Request")
	pdf.Ln(14)

	line := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(55, 7, label)
		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 7, value)
		pdf.Ln(7)
	}

	line("Request:", req.ID)
	line("Employee:", name(req.EmployeeID))
	line("Day off:", fmt.Sprintf("%s %s", req.CompensationDay, req.CompensationDate))
	line("Days requested:", req.RequestedBalance.String())
	if req.Remark != "" {
		line("Remark:", req.Remark)
	}
	line("Status:", string(req.Status))
	line("Submitted:", req.CreatedAt.Format("2006-01-02 15:04"))
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Credits used")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(90, 7, "Credit", "1", 0, "", false, 0, "")
	pdf.CellFormat(40, 7, "Days taken", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, "Remaining", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, a := range req.Allocations {
		pdf.CellFormat(90, 7, a.CreditID, "1", 0, "", false, 0, "")
		pdf.CellFormat(40, 7, a.Amount.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, a.ResultingBalance.String(), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Approvals")
	pdf.Ln(9)
	line("Team leader:", signature(name(req.TeamLeaderID), req.TeamLeaderApprovedBy, req.TeamLeaderApprovedAt, name))
	finalLabel := "Manager:"
	if req.Status == dayoff.StatusRejected {
		finalLabel = "Rejected by:"
	}
	line(finalLabel, signature(name(req.ManagerID), req.ApprovedBy, req.ApprovedAt, name))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render form: %w", err)
	}
	return buf.Bytes(), nil
}

// signature prints who signed and when, or who is expected to.
func signature(assigned, signedBy string, at *time.Time, name func(string) string) string {
	if signedBy == "" || at == nil {
		return assigned + " (awaiting)"
	}
	return fmt.Sprintf("%s, %s", name(signedBy), at.Format("2006-01-02 15:04"))
}
