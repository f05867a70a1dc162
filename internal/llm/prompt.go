package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/entity"
)


// ExtractionSystemPrompt is shared by the text and vision paths.
func ExtractionSystemPrompt() string {
	parts := []string{
		"You read construction bills of quantities (mediciones, presupuestos) and return ONLY JSON that matches the provided JSON Schema.",
		"Emit one entry in 'items' per line item (partida): its reference code if printed, the FULL description, the unit token as printed and the measured quantity.",
		"Never truncate or split a description. Join wrapped lines of the same line item into one description.",
		"If the first line item of this block is the continuation of the last line item of the previous block, emit it with 'continues_previous': true and only the continuation text as description.",
		"Chapter headings (e.g. '01 DEMOLICIONES') and section headings are NOT items: report the last chapter heading in 'detected_chapter' and the last section heading in 'detected_section'.",
		"Set 'chapter' and 'section' on each item to the headings it falls under; leave them out when the block shows no heading above the item.",
		"Quantities use a decimal point and no thousands separator: '1.200,50' becomes 1200.5 and '30,00' becomes 30. When a number is ambiguous, choose the interpretation with fewer digits.",
		"Ignore subtotals, totals, page headers, page footers and price columns.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildChunkPrompt packages one text-layer chunk with the carried-over context.
func BuildChunkPrompt(chunk string, page, total int, ctx entity.ExtractionContext, previousTail string) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Block %d of %d.\n", page, total)
	b.WriteString("Current chapter: ")
	b.WriteString(ctx.Chapter)
	b.WriteString("\nCurrent section: ")
	b.WriteString(ctx.Section)
	b.WriteString("\nConfirm these or override them if this block starts a new heading.\n")
	if tail := strings.TrimSpace(previousTail); tail != "" {
		b.WriteString("\nLast line item of the previous block (for continuation only, do not repeat it):\n")
		b.WriteString(tail)
		b.WriteString("\n")
	}
	b.WriteString("\nText:\n")
	b.WriteString(chunk)
	return Prompt{System: ExtractionSystemPrompt(), Text: b.String()}
}

// BuildPagePrompt packages one isolated page for a vision-capable call.
func BuildPagePrompt(page Media, pageNum, total int, ctx entity.ExtractionContext, previousTail string) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Page %d of %d of a scanned bill of quantities.\n", pageNum, total)
	fmt.Fprintf(&b, "Current chapter: %s\nCurrent section: %s\n", ctx.Chapter, ctx.Section)
	b.WriteString("Confirm these or override them if this page starts a new heading. Extract every line item on the page.\n")
	if tail := strings.TrimSpace(previousTail); tail != "" {
		b.WriteString("\nLast line item of the previous page (for continuation only, do not repeat it):\n")
		b.WriteString(tail)
		b.WriteString("\n")
	}
	return Prompt{System: ExtractionSystemPrompt(), Text: b.String(), Media: []Media{page}}
}

// BuildDimensionPrompt asks for literal dimensions printed in a description.
func BuildDimensionPrompt(item entity.MeasurementItem) Prompt {
	sys := strings.Join([]string{
		"You find literal physical dimensions written inside a construction line item description. Return ONLY JSON that matches the provided JSON Schema.",
		"Report only numbers that are printed in the text, converted to metres: an area in 'area_m2', a thickness or depth in 'thickness_m', a single length in 'length_m', a volume in 'volume_m3'.",
		"Centimetres and millimetres must be converted (10cm is 0.1).",
		"Do not multiply values together and do not guess. If no literal dimension is printed, return has_dimensions false.",
		"Explain in one short sentence in 'reasoning' which text you read.",
	}, " ")
	text := fmt.Sprintf("Description: %s\nPrinted unit: %s\nPrinted quantity: %s",
		item.Description, item.Unit, strconv.FormatFloat(item.Quantity, 'f', -1, 64))
	return Prompt{System: sys, Text: text}
}

// BuildVerificationPrompt asks the model to pick the catalog entry that fits the task.
func BuildVerificationPrompt(item entity.MeasurementItem, query string, candidates []entity.CatalogEntry) Prompt {
	sys := "You check construction price matches. Return ONLY JSON that matches the provided JSON Schema. " +
		"Pick the 1-based index of the candidate that describes the same work and unit as the task, or 0 if none is acceptable. " +
		"A candidate with an implausible price for the task is not acceptable."

	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\nUnit: %s\nQuantity: %s\n\nCandidates:\n",
		query, item.Unit, strconv.FormatFloat(item.Quantity, 'f', -1, 64))
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. [%s] %s | unit: %s | price: %.2f | kind: %s\n",
			i+1, c.Code, c.Description, c.Unit, c.Price, c.Kind)
	}
	return Prompt{System: sys, Text: b.String()}
}
