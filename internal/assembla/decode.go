package assembla

import (
	"fmt"
	"strings"
)

// EscapeMarker stands in for the backslash of an escaped quote while a row is
// split into fields. It never appears in real exports.
const EscapeMarker = '╣'

type Kind string

const (
	KindMilestone Kind = "milestones"
	KindLabel     Kind = "workflow_property_vals"
	KindStatus    Kind = "ticket_statuses"
	KindTicket    Kind = "tickets"
	KindComment   Kind = "ticket_comments"
)

// minFields is the number of columns each kind needs for the positions the
// builders read.
var minFields = map[Kind]int{
	KindMilestone: 10,
	KindLabel:     5,
	KindStatus:    4,
	KindTicket:    24,
	KindComment:   6,
}

func (k Kind) Known() bool {
	_, ok := minFields[k]
	return ok
}

// DecodeRow splits one export line of the form `tag, [f1,"f2",...]` into its
// fields and checks the column count for the kind.
func DecodeRow(kind Kind, line string) ([]string, error) {
	line = strings.TrimRight(line, "\r\n")
	start := len(kind) + 3
	if !strings.HasPrefix(line, string(kind)) || len(line) < start+1 {
		return nil, fmt.Errorf("%s: malformed line", kind)
	}
	payload := line[start : len(line)-1]
	payload = strings.ReplaceAll(payload, `\"`, string(EscapeMarker)+`"`)

	fields, err := splitRecord(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if want := minFields[kind]; len(fields) < want {
		return nil, fmt.Errorf("%s: expected at least %d fields, got %d", kind, want, len(fields))
	}
	return fields, nil
}

// splitRecord parses a single comma separated record where fields may be
// wrapped in double quotes. EscapeMarker makes the next rune literal and a
// doubled quote inside a quoted field is a literal quote.
func splitRecord(s string) ([]string, error) {
	var (
		fields     []string
		field      strings.Builder
		inQuotes   bool
		fieldStart = true
	)
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == EscapeMarker:
			if i+1 < len(runes) {
				i++
				field.WriteRune(runes[i])
			}
			fieldStart = false
		case inQuotes && c == '"':
			if i+1 < len(runes) && runes[i+1] == '"' {
				field.WriteRune('"')
				i++
			} else {
				inQuotes = false
			}
		case inQuotes:
			field.WriteRune(c)
		case c == '"' && fieldStart:
			inQuotes = true
			fieldStart = false
		case c == ',':
			fields = append(fields, field.String())
			field.Reset()
			fieldStart = true
		default:
			field.WriteRune(c)
			fieldStart = false
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quoted field")
	}
	return append(fields, field.String()), nil
}

// EncodeField quotes a decoded field the way the export writes it.
func EncodeField(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}
