package prompt

import (
	_ "embed"
	"strings"

	"github.com/superbryn/echo-agent/agent/calendar"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/summary.txt
	summaryRaw string
)

// PromptSet holds loaded prompt content. System carries a {{today}} token so
// the caller's current date can be injected per call.
type PromptSet struct {
	System  string
	Summary string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// This is safe to call concurrently; the embed is compile-time, and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		System:  strings.TrimSpace(systemRaw),
		Summary: strings.TrimSpace(summaryRaw),
	}
}

// SystemFor renders the system prompt for the given calendar day.
func (p PromptSet) SystemFor(today calendar.Date) string {
	return strings.ReplaceAll(p.System, "{{today}}", today.Time().Format("January 2, 2006"))
}
