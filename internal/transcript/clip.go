package transcript

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// validMIMETypes is the accepted upload allow-list. Acceptance is by
// declared type only; content is not sniffed.
var validMIMETypes = map[string]struct{}{
	"audio/mpeg":  {},
	"audio/mp3":   {},
	"audio/wav":   {},
	"audio/x-wav": {},
	"audio/webm":  {},
	"audio/ogg":   {},
	"audio/x-m4a": {},
	"audio/m4a":   {},
	"audio/mp4":   {},
	"audio/x-mp4": {},
	"audio/aac":   {},
	"audio/flac":  {},
}

func IsAudioClip(c Clip) bool {
	_, ok := validMIMETypes[c.MIME]
	return ok
}

var extensionMIME = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".m4a":  "audio/x-m4a",
	".mp4":  "audio/mp4",
	".aac":  "audio/aac",
	".flac": "audio/flac",
}

// MIMEForFilename maps a file extension to its declared audio type.
// Returns "" for extensions outside the allow-list.
func MIMEForFilename(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return extensionMIME[strings.ToLower(name[idx:])]
}

// NewJobID returns a unique identifier for one transcription request.
func NewJobID() string {
	return uuid.NewString()
}

// FormatFileSize renders a byte count as a human-readable string,
// e.g. 1536 -> "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}

	const k = 1024
	units := []string{"Bytes", "KB", "MB", "GB", "TB"}

	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(k)))
	if i >= len(units) {
		i = len(units) - 1
	}

	value := float64(bytes) / math.Pow(k, float64(i))
	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + units[i]
}

// FormatTime renders whole seconds as MM:SS, e.g. 125 -> "02:05".
func FormatTime(seconds float64) string {
	total := int(math.Floor(seconds))
	minutes := total / 60
	remaining := total % 60
	return fmt.Sprintf("%02d:%02d", minutes, remaining)
}

// BaseName strips the final extension from a filename.
func BaseName(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name
	}
	return name[:idx]
}
