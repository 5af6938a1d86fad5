package generate

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Attachment is a file sent along with a submission, inlined as a data URI.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SavedAttachment describes an attachment decoded to local disk.
type SavedAttachment struct {
	Name string
	Path string
	Mime string
	Size int
}

var textExtensions = []string{".md", ".txt", ".json", ".csv"}

// IsTextAttachment reports whether an attachment should be treated as text,
// by MIME type or by a well-known extension.
func IsTextAttachment(name string, mime string) bool {
	if strings.HasPrefix(mime, "text") {
		return true
	}
	for _, ext := range textExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// DecodeAttachment parses a single data URI and returns its MIME type and
// decoded bytes.
func DecodeAttachment(att Attachment) (string, []byte, error) {
	if !strings.HasPrefix(att.URL, "data:") {
		return "", nil, fmt.Errorf("attachment %s is not a data URI", att.Name)
	}

	header, b64data, found := strings.Cut(att.URL, ",")
	if !found {
		return "", nil, fmt.Errorf("attachment %s has no data section", att.Name)
	}

	mime := strings.TrimPrefix(strings.SplitN(header, ";", 2)[0], "data:")
	data, err := base64.StdEncoding.DecodeString(b64data)
	if err != nil {
		return "", nil, fmt.Errorf("attachment %s has invalid base64 data: %v", att.Name, err)
	}

	return mime, data, nil
}

// DecodeAttachments writes each decodable attachment into dir and returns
// what was saved. Attachments that fail to decode are skipped with a warning
// so one bad file doesn't sink the whole build.
func DecodeAttachments(dir string, attachments []Attachment) ([]SavedAttachment, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory %s: %v", dir, err)
	}

	var saved []SavedAttachment
	for _, att := range attachments {
		name := att.Name
		if name == "" {
			name = "attachment"
		}
		name = filepath.Base(name) // no path escapes via attachment names

		mime, data, err := DecodeAttachment(att)
		if err != nil {
			slog.Warn("skipping attachment", "name", name, "error", err)
			continue
		}

		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			slog.Warn("failed to save attachment", "name", name, "error", err)
			continue
		}
		saved = append(saved, SavedAttachment{
			Name: name,
			Path: path,
			Mime: mime,
			Size: len(data),
		})
	}

	return saved, nil
}

// SummarizeAttachments renders attachment metadata for prompt context. Text
// files get a bounded content preview, everything else just a size.
func SummarizeAttachments(saved []SavedAttachment) string {
	var summaries []string
	for _, s := range saved {
		if IsTextAttachment(s.Name, s.Mime) {
			content, err := os.ReadFile(s.Path)
			if err != nil {
				summaries = append(summaries, fmt.Sprintf("- %s (%s): (could not read preview: %v)", s.Name, s.Mime, err))
				continue
			}
			preview := string(content)
			if len(preview) > 1000 {
				preview = preview[:1000]
			}
			preview = strings.ReplaceAll(preview, "\n", "\\n")
			summaries = append(summaries, fmt.Sprintf("- %s (%s): preview: %s", s.Name, s.Mime, preview))
		} else {
			summaries = append(summaries, fmt.Sprintf("- %s (%s): %d bytes", s.Name, s.Mime, s.Size))
		}
	}
	return strings.Join(summaries, "\n")
}
