package decode

import (
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// Container formats recognised by the decoder
const (
	FormatWAV  = "wav"
	FormatMP3  = "mp3"
	FormatFLAC = "flac"
	FormatM4A  = "m4a"
	FormatAAC  = "aac"
	FormatOGG  = "ogg"
	FormatAIFF = "aiff"
	FormatMP4  = "mp4"
)

// aliases maps extensions and MIME subtypes onto container formats
var aliases = map[string]string{
	"wav":      FormatWAV,
	"wave":     FormatWAV,
	"x-wav":    FormatWAV,
	"vnd.wave": FormatWAV,
	"mp3":      FormatMP3,
	"mpeg":     FormatMP3,
	"mpeg3":    FormatMP3,
	"x-mpeg-3": FormatMP3,
	"flac":     FormatFLAC,
	"x-flac":   FormatFLAC,
	"m4a":      FormatM4A,
	"x-m4a":    FormatM4A,
	"mp4":      FormatMP4,
	"aac":      FormatAAC,
	"x-aac":    FormatAAC,
	"ogg":      FormatOGG,
	"oga":      FormatOGG,
	"opus":     FormatOGG,
	"aif":      FormatAIFF,
	"aiff":     FormatAIFF,
	"x-aiff":   FormatAIFF,
}

// NormalizeFormat maps a hint (".WAV", "clip.mp3", "audio/x-flac") onto a container format.
// It returns "" when the hint names nothing the decoder knows.
func NormalizeFormat(hint string) string {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" {
		return ""
	}

	if i := strings.IndexByte(h, ';'); i >= 0 {
		h = strings.TrimSpace(h[:i])
	}
	if strings.HasPrefix(h, "audio/") {
		h = strings.TrimPrefix(h, "audio/")
	} else if ext := filepath.Ext(h); ext != "" {
		h = ext
	}
	h = strings.TrimPrefix(h, ".")

	return aliases[h]
}

// Sniff identifies the container from its magic number, returning "" when unknown
func Sniff(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return aliases[kind.Extension]
}

// ResolveFormat prefers a recognised hint and falls back to sniffing the content
func ResolveFormat(data []byte, hint string) string {
	if format := NormalizeFormat(hint); format != "" {
		return format
	}
	return Sniff(data)
}
