package campaign

import (
	"os"
	"regexp"
	"strings"
)

// placeholderRe matches named placeholders in the fixed bracket syntax,
// e.g. [FirstName] or [Company Name].
var placeholderRe = regexp.MustCompile(`\[([A-Za-z0-9_][A-Za-z0-9_ -]*)\]`)

// Template is a raw message body with named placeholders. A leading
// "Subject: ..." line splits off as the message subject and may itself
// carry placeholders.
type Template struct {
	Subject string
	Body    string
}

// LoadTemplate reads a template file.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTemplate(string(data)), nil
}

// ParseTemplate splits an optional subject line off the raw text.
func ParseTemplate(raw string) *Template {
	first, rest, found := strings.Cut(raw, "\n")
	if found && strings.HasPrefix(first, "Subject:") {
		return &Template{
			Subject: strings.TrimSpace(strings.TrimPrefix(first, "Subject:")),
			Body:    strings.TrimPrefix(rest, "\n"),
		}
	}
	return &Template{Body: raw}
}

// Render substitutes every placeholder with the contact's field value.
// A missing field substitutes the empty string: absent data is not a hard
// failure. Substitution is strictly by key.
func (t *Template) Render(c Contact) (subject, body string) {
	return renderText(t.Subject, c.Fields), renderText(t.Body, c.Fields)
}

func renderText(text string, fields map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		name := m[1 : len(m)-1]
		return fields[name]
	})
}

// Placeholders lists the distinct placeholder names in the template, in
// first-appearance order. Used for preflight reporting.
func (t *Template) Placeholders() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, text := range []string{t.Subject, t.Body} {
		for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
			if _, ok := seen[m[1]]; ok {
				continue
			}
			seen[m[1]] = struct{}{}
			names = append(names, m[1])
		}
	}
	return names
}
