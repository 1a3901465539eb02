package dataset

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Matches a possibly parenthesized number at the start of a cleaned cell.
var valuePattern = regexp.MustCompile(`^-?\(?\s*(-?\d+\.?\d*)\s*\)?`)

// CleanValue strips currency symbols and thousands separators and converts
// parenthesized or minus-signed numbers to negative floats. Values that do
// not start with a number are returned unchanged; empty cells become nil.
func CleanValue(value string) any {
	if value == "" {
		return nil
	}
	v := strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(value))

	m := valuePattern.FindStringSubmatch(v)
	if m == nil {
		return value
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return value
	}
	if strings.Contains(v, "-") || strings.Contains(v, "(") {
		num = -num
	}
	return num
}

// TableRow is one parsed table row keyed by column header. The first column
// is kept under "row_label".
type TableRow map[string]any

// ParseTable converts the raw list-of-lists table into structured rows. The
// first row holds the headers; its first cell labels the row-name column.
func ParseTable(table [][]string) []TableRow {
	if len(table) == 0 {
		return nil
	}
	headers := table[0]
	if len(headers) == 0 {
		return nil
	}
	colHeaders := headers[1:]

	var rows []TableRow
	for _, raw := range table[1:] {
		if len(raw) == 0 {
			continue
		}
		row := TableRow{"row_label": raw[0]}
		cells := raw[1:]
		for i, header := range colHeaders {
			var cell string
			if i < len(cells) {
				cell = cells[i]
			}
			row[header] = CleanValue(cell)
		}
		rows = append(rows, row)
	}
	return rows
}

// BuildContext renders an entry's narrative text and parsed table into the
// sectioned context handed to the model. Empty sections are skipped.
func BuildContext(e Entry) string {
	var b strings.Builder

	if pre := strings.Join(e.PreText, " "); pre != "" {
		b.WriteString("### Pre-Text\n")
		b.WriteString(pre)
		b.WriteString("\n\n")
	}
	if rows := ParseTable(e.Table); len(rows) > 0 {
		if data, err := json.MarshalIndent(rows, "", "  "); err == nil {
			b.WriteString("### Table\n")
			b.Write(data)
			b.WriteString("\n\n")
		}
	}
	if post := strings.Join(e.PostText, " "); post != "" {
		b.WriteString("### Post-Text\n")
		b.WriteString(post)
		b.WriteString("\n\n")
	}
	return b.String()
}
