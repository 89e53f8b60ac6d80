// Package export turns a completed wizard into downloadable documents and
// stores them as objects.
package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Format is a document encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat maps a query value to a Format; empty means Markdown.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatHTML:
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Extension is the file extension of f.
func (f Format) Extension() string {
	if f == FormatHTML {
		return ".html"
	}
	return ".md"
}

// ContentType is the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatHTML {
		return "text/html; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

// Section is one titled block of answers.
type Section struct {
	Title   string
	Answers map[string]any
}

// Document is the renderer's input.
type Document struct {
	Title    string
	Sections []Section
	Plan     string
}

// Markdown renders doc. Object keys are emitted in sorted order, so the output
// depends only on the input.
func Markdown(doc Document) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n", doc.Title)
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "\n## %s\n\n", s.Title)
		if len(s.Answers) == 0 {
			b.WriteString("_No answers recorded._\n")
			continue
		}
		writeObject(&b, s.Answers, 0)
	}
	if strings.TrimSpace(doc.Plan) != "" {
		b.WriteString("\n## Generated Plan\n\n")
		b.WriteString(strings.TrimSpace(doc.Plan))
		b.WriteByte('\n')
	}
	return b.Bytes()
}

var markdownToHTML = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML renders doc as an HTML fragment.
func HTML(doc Document) ([]byte, error) {
	var out bytes.Buffer
	if err := markdownToHTML.Convert(Markdown(doc), &out); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	return out.Bytes(), nil
}

// Render encodes doc in format f.
func Render(doc Document, f Format) ([]byte, error) {
	if f == FormatHTML {
		return HTML(doc)
	}
	return Markdown(doc), nil
}

func writeObject(b *bytes.Buffer, obj map[string]any, depth int) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	indent := strings.Repeat("  ", depth)
	for _, k := range keys {
		label := Humanize(k)
		switch v := obj[k].(type) {
		case map[string]any:
			fmt.Fprintf(b, "%s- **%s**\n", indent, label)
			writeObject(b, v, depth+1)
		case []any:
			fmt.Fprintf(b, "%s- **%s**\n", indent, label)
			for _, item := range v {
				fmt.Fprintf(b, "%s  - %s\n", indent, scalar(item))
			}
		case []string:
			fmt.Fprintf(b, "%s- **%s**\n", indent, label)
			for _, item := range v {
				fmt.Fprintf(b, "%s  - %s\n", indent, item)
			}
		default:
			fmt.Fprintf(b, "%s- **%s:** %s\n", indent, label, scalar(v))
		}
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "_(blank)_"
	case string:
		if strings.TrimSpace(t) == "" {
			return "_(blank)_"
		}
		return strings.Join(strings.Fields(t), " ")
	default:
		return fmt.Sprint(t)
	}
}

// Humanize turns a camelCase key into a sentence-case label:
// "idealCustomerProfile" becomes "Ideal customer profile".
func Humanize(key string) string {
	var b strings.Builder
	for i, r := range key {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
		case r == '_' || r == '-':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
