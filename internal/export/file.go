package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
)

// WriteFile renders res into dir as "<source stem>-<job id prefix>.xlsx" and
// returns the written path.
func (s *Service) WriteFile(dir, sourceName string, jobID uuid.UUID, res entity.BudgetResult) (string, error) {
	data, err := s.BudgetXLSX(res)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName))
	if stem == "" || stem == "." {
		stem = "budget"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.xlsx", stem, jobID.String()[:8]))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Info("export.file.written", "path", path, "job_id", jobID, "bytes", len(data))
	return path, nil
}
