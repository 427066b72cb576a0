package template

import "regexp"

// tokenPattern matches {{name}} before {name} so double braces are consumed
// as one token.
var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}|\{([A-Za-z0-9_.-]+)\}`)

// Render substitutes {{name}} and {name} tokens from vars. Tokens without a
// matching variable are left verbatim.
func Render(body string, vars map[string]string) string {
	if len(vars) == 0 || body == "" {
		return body
	}

	return tokenPattern.ReplaceAllStringFunc(body, func(token string) string {
		m := tokenPattern.FindStringSubmatch(token)
		name := m[1]
		if name == "" {
			name = m[2]
		}

		if value, ok := vars[name]; ok {
			return value
		}
		return token
	})
}
