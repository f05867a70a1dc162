package export

import (
	"encoding/json"
	"fmt"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
)

// ResultFromJob rebuilds the pipeline result from a persisted job.
func ResultFromJob(job *entity.BudgetJob, items []entity.PricedMeasurementItem) (entity.BudgetResult, error) {
	res := entity.BudgetResult{
		Items:            items,
		ProjectTypeGuess: entity.ProjectType(job.ProjectTypeGuess),
		PageCount:        job.PageCount,
		Path:             job.Path,
	}
	if len(job.Summary) > 0 {
		if err := json.Unmarshal(job.Summary, &res.Summary); err != nil {
			return res, fmt.Errorf("decode summary of job %s: %w", job.ID, err)
		}
	}
	return res, nil
}
