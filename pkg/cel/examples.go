package cel

var FilterExpressionExamples = map[string]string{
	"text_only":          `!has_media`,
	"skip_protected":     `!protected`,
	"keyword":            `text.contains("EURUSD")`,
	"case_insensitive":   `!text.lowerAscii().contains("promo")`,
	"regex":              `!text.matches("(?i)\\bsponsored\\b")`,
	"single_source":      `source == -1003354980634`,
	"topic_allowlist":    `topic in [4, 5, 394]`,
	"minimum_length":     `size(text) >= 3 || has_media`,
	"combined":           `(topic == 5 || topic == 0) && !text.contains("ad:")`,
	"exclude_one_source": `source != -1003719256941`,
}
