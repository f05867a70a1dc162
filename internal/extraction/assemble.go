package extraction

import (
	"strings"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/llm"
)

// tailChars bounds the previous item excerpt handed to the next prompt.
const tailChars = 300

// assemble folds one unit's model output into the running item list and
// returns the updated list and context. Fragments are merged into the
// previous item so a description never spans two items.
func assemble(items []entity.MeasurementItem, res llm.ExtractionResult, ectx entity.ExtractionContext, page int) ([]entity.MeasurementItem, entity.ExtractionContext) {
	if ectx.Chapter == constants.UnknownContext {
		ectx = ectx.WithChapter(res.DetectedChapter)
	}
	if ectx.Section == constants.UnknownContext {
		ectx = ectx.WithSection(res.DetectedSection)
	}

	for _, ex := range res.Items {
		desc := strings.TrimSpace(ex.Description)
		if desc == "" {
			continue
		}
		if isFragment(ex) && len(items) > 0 {
			last := &items[len(items)-1]
			last.Description = joinDescription(last.Description, desc)
			continue
		}

		if ch := strings.TrimSpace(ex.Chapter); ch != "" {
			ectx = ectx.WithChapter(ch)
		}
		if sec := strings.TrimSpace(ex.Section); sec != "" {
			ectx = ectx.WithSection(sec)
		}
		items = append(items, ectx.Apply(entity.MeasurementItem{
			Order:       len(items) + 1,
			Code:        strings.TrimSpace(ex.Code),
			Description: desc,
			Unit:        strings.TrimSpace(ex.Unit),
			Quantity:    ex.Quantity,
			Page:        page,
		}))
	}

	ectx = ectx.WithChapter(res.DetectedChapter)
	ectx = ectx.WithSection(res.DetectedSection)
	return items, ectx
}

// isFragment reports whether an extracted entry continues the previous item
// instead of starting a new one.
func isFragment(ex llm.ExtractedItem) bool {
	if ex.ContinuesPrevious {
		return true
	}
	return strings.TrimSpace(ex.Code) == "" && strings.TrimSpace(ex.Unit) == "" && ex.Quantity == 0
}

func joinDescription(head, tail string) string {
	head = strings.TrimSpace(head)
	if strings.HasSuffix(head, "-") {
		return strings.TrimSuffix(head, "-") + tail
	}
	return head + " " + tail
}

// lastTail returns the end of the last item's description for the next prompt.
func lastTail(items []entity.MeasurementItem) string {
	if len(items) == 0 {
		return ""
	}
	d := []rune(items[len(items)-1].Description)
	if len(d) <= tailChars {
		return string(d)
	}
	return "..." + string(d[len(d)-tailChars:])
}
