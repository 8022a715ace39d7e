package kb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// docFields are the parts of a rendered entry. Empty fields are left out.
type docFields struct {
	Name         string
	Description  string
	Type         string
	Default      string
	Example      string
	ReadOnly     bool
	Declarations []string
}

// render produces the markdown shown on hover and in completion details.
func render(f docFields) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### `%s`\n", f.Name)
	if d := strings.TrimSpace(f.Description); d != "" {
		sb.WriteString("\n")
		sb.WriteString(d)
		sb.WriteString("\n")
	}

	var meta []string
	if f.Type != "" {
		meta = append(meta, fmt.Sprintf("*Type:* `%s`", f.Type))
	}
	if f.ReadOnly {
		meta = append(meta, "*Read only*")
	}
	if len(meta) > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(meta, "  \n"))
		sb.WriteString("\n")
	}

	codeBlock(&sb, "Default", f.Default)
	codeBlock(&sb, "Example", f.Example)

	if len(f.Declarations) > 0 {
		sb.WriteString("\n*Declared in:*\n")
		for _, d := range f.Declarations {
			fmt.Fprintf(&sb, "- %s\n", d)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func codeBlock(sb *strings.Builder, title, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	if !strings.Contains(body, "\n") {
		fmt.Fprintf(sb, "\n*%s:* `%s`\n", title, body)
		return
	}
	fmt.Fprintf(sb, "\n*%s:*\n```nix\n%s\n```\n", title, body)
}

// literalText renders an options.json value. Strings are used as they are,
// {_type, text} wrappers (literalExpression, literalMD, mdDoc) give their
// text, and anything else is shown as compact JSON.
func literalText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var wrapped struct {
		Type string  `json:"_type"`
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Type != "" && wrapped.Text != nil {
		return *wrapped.Text
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// declarationText renders one entry of an option's declarations list,
// either a plain path or {name, url}.
func declarationText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return "`" + s + "`"
	}
	var link struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(raw, &link); err == nil && link.Name != "" {
		if link.URL != "" {
			return fmt.Sprintf("[%s](%s)", link.Name, link.URL)
		}
		return "`" + link.Name + "`"
	}
	return ""
}

// cleanComment strips comment delimiters from a run of Nix comments and
// removes the common indentation.
func cleanComment(comments []string) string {
	var lines []string
	for _, c := range comments {
		switch {
		case strings.HasPrefix(c, "/*"):
			body := strings.TrimSuffix(strings.TrimPrefix(c, "/*"), "*/")
			body = strings.TrimPrefix(body, "*")
			for _, l := range strings.Split(body, "\n") {
				trimmed := strings.TrimLeft(l, " \t")
				if strings.HasPrefix(trimmed, "* ") || trimmed == "*" {
					l = strings.TrimPrefix(strings.TrimPrefix(trimmed, "*"), " ")
				}
				lines = append(lines, strings.TrimRight(l, " \t"))
			}
		case strings.HasPrefix(c, "#"):
			l := strings.TrimPrefix(c, "#")
			lines = append(lines, strings.TrimRight(l, " \t\r"))
		}
	}

	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, l := range lines {
		if len(l) >= indent && indent > 0 {
			lines[i] = l[indent:]
		}
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
