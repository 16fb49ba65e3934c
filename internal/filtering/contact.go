package filtering

import "regexp"

// contactPattern matches links, handles and phone-like numbers.
var contactPattern = regexp.MustCompile(`(?i)` +
	`https?://\S+` +
	`|www\.\S+` +
	`|t\.me/` +
	`|@\w{3,}` +
	`|\+?\d(?:[ .\-]?\d){7,}`)

// ContainsContactInfo reports whether text carries something a reader could
// use to reach the author outside the chat.
func ContainsContactInfo(text string) bool {
	return contactPattern.MatchString(text)
}
