package review

import "strings"

const (
	typeSeparator        = " & "
	descriptionSeparator = " | "
	defaultParagraph     = 1
)

// Merge collapses the issues reported against one span into a single
// Suggestion. Types and descriptions are joined in input order; the severity
// is the first one with the highest weight. It reports false when issues is
// empty.
func Merge(originalText, replaceTo string, paragraph int, issues []Issue) (Suggestion, bool) {
	if len(issues) == 0 {
		return Suggestion{}, false
	}
	if paragraph < 1 {
		paragraph = defaultParagraph
	}
	types := make([]string, len(issues))
	descs := make([]string, len(issues))
	dominant := issues[0].Severity
	for i, is := range issues {
		types[i] = is.Type
		descs[i] = is.Description
		if is.Severity.Weight() > dominant.Weight() {
			dominant = is.Severity
		}
	}
	return Suggestion{
		OriginalText: originalText,
		ReplaceTo:    replaceTo,
		Paragraph:    paragraph,
		Issues:       issues,
		Type:         strings.Join(types, typeSeparator),
		Severity:     dominant,
		Description:  strings.Join(descs, descriptionSeparator),
	}, true
}
