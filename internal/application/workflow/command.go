package workflow

import "strings"

// ParseCompletionArgument extracts the request id from the completion
// command text. Only the first token counts; ids are matched upper-case.
func ParseCompletionArgument(argument string) string {
	fields := strings.Fields(argument)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
