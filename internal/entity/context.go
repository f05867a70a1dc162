package entity

import (
	"strings"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
)

// minHeadingLen is the shortest heading text accepted as a context change.
const minHeadingLen = 4

// ExtractionContext is the running chapter/section state threaded through
// the page/chunk loop. Values are never mutated; With* return a copy.
type ExtractionContext struct {
	Chapter string
	Section string
}

// NewExtractionContext starts with both labels set to "Unknown".
func NewExtractionContext() ExtractionContext {
	return ExtractionContext{Chapter: constants.UnknownContext, Section: constants.UnknownContext}
}

// WithChapter returns a context with the chapter replaced when the heading is
// long enough. Changing chapter resets the section.
func (c ExtractionContext) WithChapter(heading string) ExtractionContext {
	h := strings.TrimSpace(heading)
	if len(h) < minHeadingLen || h == c.Chapter {
		return c
	}
	return ExtractionContext{Chapter: h, Section: constants.UnknownContext}
}

// WithSection returns a context with the section replaced when the heading is
// long enough.
func (c ExtractionContext) WithSection(heading string) ExtractionContext {
	h := strings.TrimSpace(heading)
	if len(h) < minHeadingLen {
		return c
	}
	c.Section = h
	return c
}

// Apply stamps the item with the context labels it does not carry itself.
func (c ExtractionContext) Apply(item MeasurementItem) MeasurementItem {
	if strings.TrimSpace(item.Chapter) == "" {
		item.Chapter = c.Chapter
	}
	if strings.TrimSpace(item.Section) == "" {
		item.Section = c.Section
	}
	return item
}
