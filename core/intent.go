package core

// Intent 是请求意图。
type Intent string

const (
	IntentSearch     Intent = "search"
	IntentExplore    Intent = "explore"
	IntentComfort    Intent = "comfort"
	IntentQuickWatch Intent = "quick_watch"
)

// ParseIntent 解析意图字符串，未知值返回 ("", false)。
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentSearch, IntentExplore, IntentComfort, IntentQuickWatch:
		return Intent(s), true
	default:
		return "", false
	}
}

// IntentResult 是意图阶段的输出，每个请求只产生一次。
type IntentResult struct {
	Intent                Intent   `json:"intent"`
	Confidence            float64  `json:"confidence"`
	NeedsClarification    bool     `json:"needs_clarification"`
	ClarificationQuestion string   `json:"clarification_question"`
	Trace                 []string `json:"trace"`
}
