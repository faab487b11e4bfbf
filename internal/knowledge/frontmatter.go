package knowledge

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeFrontmatter parses an optional YAML frontmatter block delimited
// by "---" lines at the top of content into out, and returns the
// remaining markdown body. A file without frontmatter is legal: out is
// left untouched and the whole content is returned as the body.
func DecodeFrontmatter(content []byte, out any) (body string, err error) {
	reader := bufio.NewReader(bytes.NewReader(content))

	firstLine, err := reader.ReadString('\n')
	if err != nil || strings.TrimSpace(firstLine) != "---" {
		return string(content), nil
	}

	var block strings.Builder
	for {
		line, err := reader.ReadString('\n')
		// The closing fence may be the last line of the file with no
		// trailing newline, so check the fragment before the error.
		if strings.TrimSpace(line) == "---" {
			break
		}
		block.WriteString(line)
		if err != nil {
			return "", fmt.Errorf("unterminated frontmatter: %w", err)
		}
	}

	if err := yaml.Unmarshal([]byte(block.String()), out); err != nil {
		return "", fmt.Errorf("invalid frontmatter: %w", err)
	}

	rest := new(bytes.Buffer)
	if _, err := rest.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return strings.TrimSpace(rest.String()), nil
}

// stringList accepts either a YAML list or a comma-separated scalar,
// since hand-edited frontmatter uses both forms.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = splitCommaList(s)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return fmt.Errorf("expected list or string, got yaml kind %d", value.Kind)
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
