package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/budget"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/repository"
)

func item(order int, chapter, desc string, qty, price float64) entity.PricedMeasurementItem {
	return entity.NewPricedItem(entity.MeasurementItem{Order: order, Description: desc, Unit: "m2", Quantity: qty, Chapter: chapter}, price, constants.KindLabor, 85)
}

func sampleResult() entity.BudgetResult {
	items := []entity.PricedMeasurementItem{
		item(1, "01 DEMOLICIONES", "Demolición de tabique", 10, 10),
		item(2, "02 ALBAÑILERÍA", "Tabique de pladur", 5, 30),
		item(3, "01 DEMOLICIONES", "Retirada de escombros", 1, 50),
	}
	return entity.BudgetResult{Items: items, Summary: budget.Summarize(items, entity.DefaultMargins())}
}

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestBudgetXLSXGroupsByChapter(t *testing.T) {
	data, err := NewService(nil, nil).BudgetXLSX(sampleResult())
	require.NoError(t, err)
	rows := readRows(t, data)

	require.GreaterOrEqual(t, len(rows), 12)
	assert.Equal(t, "Description", rows[0][1])
	assert.Equal(t, "01 DEMOLICIONES", rows[1][1])
	assert.Equal(t, "Demolición de tabique", rows[2][1])
	assert.Equal(t, "Retirada de escombros", rows[3][1])
	assert.Equal(t, "Subtotal 01 DEMOLICIONES", rows[4][4])
	assert.Equal(t, "02 ALBAÑILERÍA", rows[6][1])
	assert.Equal(t, "Tabique de pladur", rows[7][1])

	last := rows[len(rows)-1]
	assert.Equal(t, "Total", last[4])
}

func TestExportJobXLSXFromRepository(t *testing.T) {
	ctx := context.Background()
	db, err := repository.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	repo := repository.NewBudgetRepository(db, nil)

	job, err := repo.Create(ctx, "mediciones.pdf", constants.MimePDF, "", constants.JobStatusRunning)
	require.NoError(t, err)
	res := sampleResult()
	require.NoError(t, repo.FinishSuccess(ctx, job.ID, res))

	data, err := NewService(repo, nil).ExportJobXLSX(ctx, job.ID)
	require.NoError(t, err)
	rows := readRows(t, data)
	assert.Equal(t, "Demolición de tabique", rows[2][1])

	stored, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	rebuilt, err := ResultFromJob(stored, res.Items)
	require.NoError(t, err)
	assert.Equal(t, res.Summary, rebuilt.Summary)
}

func TestWriteFileNamesBySourceAndJob(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	id := uuid.MustParse("1b4e28ba-2fa1-11d2-883f-0016d3cca427")

	path, err := NewService(nil, nil).WriteFile(dir, "obra/mediciones.pdf", id, sampleResult())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mediciones-1b4e28ba.xlsx"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows := readRows(t, data)
	assert.Equal(t, "Demolición de tabique", rows[2][1])
}
