package prompt

import "strings"

const (
	// DefaultPreamble is the instruction block placed ahead of the static context
	DefaultPreamble = "You are a helpful AI assistant.\n\n" +
		"Use this company information to answer the user's question:"

	UserMarker      = "User:"
	AssistantMarker = "Assistant:"
)

// Template holds the fixed parts of a prompt
type Template struct {
	Preamble        string
	UserMarker      string
	AssistantMarker string
	// ExtraStops are stop markers beyond the user marker (e.g. "You:")
	ExtraStops []string
}

// Default is the template used when nothing else is configured
var Default = Template{
	Preamble:        DefaultPreamble,
	UserMarker:      UserMarker,
	AssistantMarker: AssistantMarker,
	ExtraStops:      []string{"You:"},
}

// Compose builds a prompt from the default template
func Compose(context, question string) string {
	return Default.Compose(context, question)
}

// Compose concatenates preamble, context and question and ends with the
// assistant marker for the model to complete. Input is never trimmed.
func (t Template) Compose(context, question string) string {
	var b strings.Builder
	b.Grow(len(t.Preamble) + len(context) + len(question) + len(t.UserMarker) + len(t.AssistantMarker) + 8)
	b.WriteString(t.Preamble)
	b.WriteString("\n\n")
	b.WriteString(context)
	b.WriteString("\n\n")
	b.WriteString(t.UserMarker)
	b.WriteString(" ")
	b.WriteString(question)
	b.WriteString("\n")
	b.WriteString(t.AssistantMarker)
	return b.String()
}

// StopMarkers returns the markers that end generation before the model
// starts writing another user turn
func (t Template) StopMarkers() []string {
	stops := make([]string, 0, len(t.ExtraStops)+1)
	stops = append(stops, t.UserMarker)
	for _, s := range t.ExtraStops {
		if s != "" && s != t.UserMarker {
			stops = append(stops, s)
		}
	}
	return stops
}

// WithPreamble returns a copy of t using the given preamble
func (t Template) WithPreamble(preamble string) Template {
	t.Preamble = preamble
	return t
}
