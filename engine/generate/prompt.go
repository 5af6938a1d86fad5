package generate

import (
	"fmt"
	"strings"
)

// readmeDivider separates the generated page from the generated README in
// the model output. The output contract is documented in the prompt.
const readmeDivider = "---README.md---"

func buildPrompt(in Input) string {
	var b strings.Builder

	b.WriteString("You are a professional web developer assistant.\n\n")
	fmt.Fprintf(&b, "### Round\n%d\n\n", in.Round)
	fmt.Fprintf(&b, "### Task\n%s\n\n", in.Brief)

	if in.Round > 1 && in.PrevReadme != "" {
		fmt.Fprintf(&b, "### Previous README.md:\n%s\n\nRevise and enhance this project according to the new brief above.\n\n", in.PrevReadme)
	}

	fmt.Fprintf(&b, "### Attachments (if any)\n%s\n\n", in.AttachmentsMeta)
	fmt.Fprintf(&b, "### Evaluation checks\n%s\n\n", strings.Join(in.Checks, "\n"))

	b.WriteString(`### Output format rules:
1. Produce a complete web app (HTML/JS/CSS inline if needed) satisfying the brief.
2. Output must contain two parts only:
   - index.html (main code)
   - README.md (starts after a line containing exactly: ` + readmeDivider + `)
3. README.md must include Overview, Setup, and Usage sections.
   For revision rounds, describe improvements made from the previous version.
4. Do not include any commentary outside code or README.
`)

	return b.String()
}

func stripCodeBlock(text string) string {
	if strings.Contains(text, "```") {
		parts := strings.Split(text, "```")
		if len(parts) >= 2 {
			block := parts[1]
			// drop a language tag on the fence line
			if idx := strings.Index(block, "\n"); idx >= 0 && !strings.ContainsAny(block[:idx], " \t") {
				block = block[idx+1:]
			}
			return strings.TrimSpace(block)
		}
	}
	return strings.TrimSpace(text)
}

// SplitOutput separates the model response into the generated page and its
// README. When the divider is missing a fallback README is produced, so the
// published repo is never missing one.
func SplitOutput(text string, in Input) map[string]string {
	var page, readme string
	if strings.Contains(text, readmeDivider) {
		parts := strings.SplitN(text, readmeDivider, 2)
		page = stripCodeBlock(parts[0])
		readme = stripCodeBlock(parts[1])
	} else {
		page = stripCodeBlock(text)
		readme = fallbackReadme(in)
	}
	return map[string]string{
		"index.html": page,
		"README.md":  readme,
	}
}

func fallbackReadme(in Input) string {
	return fmt.Sprintf(`# Auto-generated README (Round %d)

**Project brief:** %s

**Attachments:**
%s

**Checks to meet:**
%s

## Setup
1. Open `+"`index.html`"+` in a browser.
2. No build steps required.

## Notes
This README was generated as a fallback (the model did not return an explicit README).
`, in.Round, in.Brief, in.AttachmentsMeta, strings.Join(in.Checks, "\n"))
}

// FallbackFiles is the minimal page used when generation fails outright.
func FallbackFiles(in Input) map[string]string {
	page := fmt.Sprintf(`<html>
  <head><title>Fallback App</title></head>
  <body>
    <h1>Hello (fallback)</h1>
    <p>This app was generated as a fallback because generation failed. Brief: %s</p>
  </body>
</html>`, in.Brief)

	return map[string]string{
		"index.html": page,
		"README.md":  fallbackReadme(in),
	}
}
