package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Export formats supported at the boundary. Everything currently
// degrades to plain text; format-specific rendering is left to an
// external formatter.
const (
	FormatTXT  = "txt"
	FormatDOCX = "docx"
	FormatPDF  = "pdf"
)

var exportFormats = map[string]struct{}{
	FormatTXT:  {},
	FormatDOCX: {},
	FormatPDF:  {},
}

func KnownExportFormat(format string) bool {
	_, ok := exportFormats[strings.ToLower(strings.TrimSpace(format))]
	return ok
}

// Export renders a result for the given format. All formats currently
// produce the plain transcript text.
func Export(result Result, format string) (string, error) {
	if !KnownExportFormat(format) {
		return "", fmt.Errorf("unknown export format %q (known formats: %s, %s, %s)", format, FormatTXT, FormatDOCX, FormatPDF)
	}
	return result.Text, nil
}

// WriteExport writes the rendered transcript to dir as
// <basename>.<format> and returns the full path.
func WriteExport(result Result, dir, basename, format string) (string, error) {
	content, err := Export(result, format)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s.%s", basename, strings.ToLower(format)))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}

	return path, nil
}
