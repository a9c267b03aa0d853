package transcript

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/killallgit/loom/pkg/logger"
)

// HighlightCode applies syntax highlighting to a code fragment. Any
// failure falls back to the plain text, never an error.
func (r *Renderer) HighlightCode(code, language string) string {
	if code == "" || !r.opts.Color {
		return code
	}

	log := logger.WithComponent("transcript")

	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		log.Debug("Failed to tokenize code, using plain text", "error", err)
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, styles.Get(r.opts.Theme), iterator); err != nil {
		log.Debug("Failed to format code, using plain text", "error", err)
		return code
	}
	return buf.String()
}

// HighlightText walks message text and highlights the interior of fenced
// code blocks, leaving the fences and surrounding prose untouched.
func (r *Renderer) HighlightText(text string) string {
	if text == "" || !r.opts.Color || !strings.Contains(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	var out []string

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !strings.HasPrefix(strings.TrimSpace(line), "```") {
			out = append(out, line)
			continue
		}

		language := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "```"))
		out = append(out, line)

		var codeLines []string
		i++
		for i < len(lines) {
			if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
				break
			}
			codeLines = append(codeLines, lines[i])
			i++
		}

		if len(codeLines) > 0 {
			highlighted := r.HighlightCode(strings.Join(codeLines, "\n"), language)
			out = append(out, strings.Split(highlighted, "\n")...)
		}
		if i < len(lines) {
			out = append(out, lines[i])
		}
	}

	return strings.Join(out, "\n")
}
