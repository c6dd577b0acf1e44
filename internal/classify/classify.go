// Package classify decides how an operator request should be handled:
// as a literal question, as a complex request that needs a structured
// plan, or as a simple one-shot interpretation.
package classify

import "strings"

// QuestionPrefix marks a request as a literal question when paired with
// a trailing question mark, e.g. "_list files?".
const QuestionPrefix = "_"

// ComplexityThreshold is the word count above which a non-question
// request is routed through the architecting pipeline.
const ComplexityThreshold = 4

// Classification describes the category of an operator request.
// It is derived purely from the request text and carries no state.
type Classification struct {
	IsQuestion bool `json:"is_question"`
	IsComplex  bool `json:"is_complex"`
	WordCount  int  `json:"word_count"`
}

// Classify categorizes a request. It is total: any input, including
// empty or whitespace-only strings, yields a valid Classification.
func Classify(request string) Classification {
	trimmed := strings.TrimSpace(request)
	words := strings.Fields(trimmed)

	c := Classification{WordCount: len(words)}
	if trimmed == "" {
		return c
	}

	c.IsQuestion = strings.HasPrefix(trimmed, QuestionPrefix) && strings.HasSuffix(trimmed, "?")
	c.IsComplex = !c.IsQuestion && c.WordCount > ComplexityThreshold
	return c
}

// StripQuestionMarkers removes the sentinel prefix and trailing question
// mark from a question-form request, leaving the literal text.
func StripQuestionMarkers(request string) string {
	trimmed := strings.TrimSpace(request)
	trimmed = strings.TrimPrefix(trimmed, QuestionPrefix)
	trimmed = strings.TrimSuffix(trimmed, "?")
	return strings.TrimSpace(trimmed)
}
