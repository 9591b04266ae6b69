// Package prompt binds stage variables into prompt templates.
//
// Templates use single-brace placeholders such as {document}. Doubled braces ({{ and }})
// render as literal braces, which lets templates embed JSON snippets.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"sftgen/internal/util"
)

const (
	VarDocument          = "document"
	VarNumberOfQuestions = "number_of_questions"
	VarQuestion          = "question"
)

// Template is a parsed prompt template.
type Template struct {
	raw   string
	parts []part
	names []string
}

type part struct {
	text        string
	placeholder bool
}

// Parse splits raw into literal text and placeholders. Unbalanced braces are a configuration error.
func Parse(raw string) (*Template, error) {
	t := &Template{raw: raw}
	seen := map[string]struct{}{}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{text: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '{' && i+1 < len(raw) && raw[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(raw) && raw[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(raw[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed placeholder at offset %d", util.ErrConfiguration, i)
			}
			name := strings.TrimSpace(raw[i+1 : i+1+end])
			if name == "" || strings.ContainsAny(name, "{ \t\n") {
				return nil, fmt.Errorf("%w: invalid placeholder %q at offset %d", util.ErrConfiguration, raw[i:i+2+end], i)
			}
			flush()
			t.parts = append(t.parts, part{text: name, placeholder: true})
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				t.names = append(t.names, name)
			}
			i += end + 1
		case c == '}':
			return nil, fmt.Errorf("%w: single '}' at offset %d", util.ErrConfiguration, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

// Placeholders lists declared names in order of first appearance.
func (t *Template) Placeholders() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

func (t *Template) Raw() string { return t.raw }

// Bind substitutes vars. Every declared placeholder needs a value; extra vars are ignored.
func (t *Template) Bind(vars map[string]string) (string, error) {
	var missing []string
	for _, n := range t.names {
		if _, ok := vars[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: missing template variables %s", util.ErrConfiguration, strings.Join(missing, ", "))
	}
	var b strings.Builder
	for _, p := range t.parts {
		if p.placeholder {
			b.WriteString(vars[p.text])
			continue
		}
		b.WriteString(p.text)
	}
	return b.String(), nil
}

// Bind parses template and binds vars in one step.
func Bind(template string, vars map[string]string) (string, error) {
	t, err := Parse(template)
	if err != nil {
		return "", err
	}
	return t.Bind(vars)
}

// RequireOnly fails when the template declares a placeholder outside allowed.
func (t *Template) RequireOnly(allowed ...string) error {
	ok := map[string]struct{}{}
	for _, a := range allowed {
		ok[a] = struct{}{}
	}
	for _, n := range t.names {
		if _, found := ok[n]; !found {
			return fmt.Errorf("%w: template uses unknown variable %q (allowed: %s)", util.ErrConfiguration, n, strings.Join(allowed, ", "))
		}
	}
	return nil
}
