package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/repository"
)

const sheet = "Presupuesto"

// Service is a tiny façade over the budget repository that produces XLSX bytes.
type Service struct {
	repo   repository.BudgetRepository
	logger *slog.Logger
}

func NewService(repo repository.BudgetRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportJobXLSX loads a finished job and renders it.
func (s *Service) ExportJobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, jobID)
	if err != nil {
		return nil, common.WrapError(err, "list items of job "+jobID.String())
	}
	res, err := ResultFromJob(job, items)
	if err != nil {
		return nil, err
	}
	return s.BudgetXLSX(res)
}

// BudgetXLSX renders items grouped by chapter followed by the summary block.
func (s *Service) BudgetXLSX(res entity.BudgetResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}

	headers := []string{
		"Code",
		"Description",
		"Unit",
		"Quantity",
		"Unit Price",
		"Total",
		"Confidence",
		"Match",
		"Page",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	_ = f.SetRowStyle(sheet, 1, 1, bold)

	row := 2
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	for _, group := range groupByChapter(res.Items) {
		write(2, group.chapter)
		_ = f.SetRowStyle(sheet, row, row, bold)
		row++

		var subtotal float64
		for _, it := range group.items {
			code := it.Code
			if code == "" {
				code = it.MatchedCode
			}
			write(1, code)
			write(2, it.Description)
			write(3, it.Unit)
			write(4, it.Quantity)
			write(5, it.UnitPrice)
			write(6, it.TotalPrice)
			write(7, it.MatchConfidence)
			write(8, matchLabel(it))
			write(9, it.Page)
			subtotal += it.TotalPrice
			row++
		}
		write(5, "Subtotal "+group.chapter)
		write(6, subtotal)
		_ = f.SetRowStyle(sheet, row, row, bold)
		row += 2
	}

	sum := res.Summary
	for _, line := range []struct {
		label string
		value float64
	}{
		{"Subtotal", sum.Subtotal},
		{"Overhead", sum.OverheadAmount},
		{"Profit", sum.ProfitAmount},
		{"Taxable base", sum.TaxableBase},
		{"Tax", sum.TaxAmount},
		{"Total", sum.Total},
	} {
		write(5, line.label)
		write(6, line.value)
		row++
	}
	_ = f.SetRowStyle(sheet, row-1, row-1, bold)

	last, _ := excelize.CoordinatesToCellName(6, row)
	_ = f.SetCellStyle(sheet, "E2", last, money)

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 12) // code
	_ = f.SetColWidth(sheet, "B", "B", 70) // description
	_ = f.SetColWidth(sheet, "C", "D", 10) // unit, quantity
	_ = f.SetColWidth(sheet, "E", "F", 18) // prices
	_ = f.SetColWidth(sheet, "G", "I", 12)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(res.Items),
		"chapters", len(groupByChapter(res.Items)),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

type chapterGroup struct {
	chapter string
	items   []entity.PricedMeasurementItem
}

// groupByChapter keeps first-seen chapter order and item order inside each chapter.
func groupByChapter(items []entity.PricedMeasurementItem) []chapterGroup {
	var groups []chapterGroup
	index := map[string]int{}
	for _, it := range items {
		ch := it.Chapter
		if ch == "" {
			ch = "Unknown"
		}
		i, ok := index[ch]
		if !ok {
			i = len(groups)
			index[ch] = i
			groups = append(groups, chapterGroup{chapter: ch})
		}
		groups[i].items = append(groups[i].items, it)
	}
	return groups
}

func matchLabel(it entity.PricedMeasurementItem) string {
	if it.IsEstimate {
		return "estimate"
	}
	if it.MatchedEntry != nil {
		return string(it.MatchKind) + " " + it.MatchedEntry.Code
	}
	return string(it.MatchKind)
}
