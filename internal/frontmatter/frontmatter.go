// Package frontmatter reads and writes markdown documents that start with a
// YAML block delimited by "---" lines.
package frontmatter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Split decodes the front matter of content into out and returns the body.
func Split(content string, out any) (string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, "---\n") {
		return content, fmt.Errorf("no frontmatter delimiter found")
	}

	rest := content[4:]
	idx := strings.Index(rest, "\n---\n")
	switch {
	case idx >= 0:
	case strings.HasSuffix(rest, "\n---"):
		idx = len(rest) - 4
	default:
		return content, fmt.Errorf("no closing frontmatter delimiter found")
	}

	body := ""
	if idx+5 <= len(rest) {
		body = strings.TrimLeft(rest[idx+5:], "\n")
	}
	if err := yaml.Unmarshal([]byte(rest[:idx]), out); err != nil {
		return body, fmt.Errorf("unmarshaling frontmatter: %w", err)
	}
	return body, nil
}

// Render produces a markdown document with fm as front matter.
func Render(fm any, body string) (string, error) {
	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(fmBytes)
	sb.WriteString("---\n")
	if body != "" {
		sb.WriteString("\n")
		sb.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
