package dialogue

import "strings"

type IntentLabel string

const (
	IntentAccept   IntentLabel = "accept"
	IntentDecline  IntentLabel = "decline"
	IntentQuestion IntentLabel = "question"
	IntentUnclear  IntentLabel = "unclear"
)

// Intent is the result of classifying one executor utterance.
type Intent struct {
	Label      IntentLabel `json:"intent"`
	Confidence float64     `json:"confidence"`
}

// Keyword lists are matched as case-folded substrings, not tokens. The lists,
// the precedence (question > accept > decline > unclear) and the confidence
// values are a compatibility contract with the call scenarios; changing any
// of them changes which calls get confirmed.
var (
	positiveWords = []string{"да", "согласен", "принимаю", "готов", "хорошо", "ладно", "окей", "конечно"}
	negativeWords = []string{"нет", "не могу", "отказываюсь", "занят", "не готов", "не интересует"}
	questionWords = []string{"что", "какой", "когда", "где", "сколько", "почему", "как"}
)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// ClassifyIntent decides whether the executor accepted, declined, asked a
// question, or was unclear. An utterance matching both the affirmative and
// the negative list is unclear; a "?" alone makes it a question.
func ClassifyIntent(response string) Intent {
	lower := strings.ToLower(response)

	isPositive := containsAny(lower, positiveWords)
	isNegative := containsAny(lower, negativeWords)
	isQuestion := containsAny(lower, questionWords) || strings.Contains(response, "?")

	switch {
	case isQuestion:
		return Intent{Label: IntentQuestion, Confidence: 0.8}
	case isPositive && !isNegative:
		return Intent{Label: IntentAccept, Confidence: 0.9}
	case isNegative && !isPositive:
		return Intent{Label: IntentDecline, Confidence: 0.9}
	default:
		return Intent{Label: IntentUnclear, Confidence: 0.5}
	}
}
