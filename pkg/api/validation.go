package api

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// AudioExtensions are the file extensions accepted for the audio input path,
// matched case-insensitively.
var AudioExtensions = []string{
	".mp3", ".wav", ".flac", ".m4a", ".aac", ".ogg", ".opus", ".wma", ".aiff", ".ape", ".ac3",
}

// DocxExtension is the only accepted extension for template and output
// document paths.
const DocxExtension = ".docx"

var languagePattern = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z]{2,4})?$`)

// ValidateRelativePath checks that p is a relative path confined to the
// project root (no ".." segments, no leading "/") with one of the given
// allowed extensions (case-insensitive). An empty p is always accepted —
// callers treat empty as "use the default".
func ValidateRelativePath(field, p string, allowedExts []string) *APIError {
	if p == "" {
		return nil
	}
	if path.IsAbs(p) || strings.HasPrefix(p, "/") {
		return NewInvalidRequestError(field, "path must be relative to the project root")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return NewInvalidRequestError(field, "path must not contain \"..\" segments")
		}
	}
	ext := strings.ToLower(path.Ext(p))
	for _, allowed := range allowedExts {
		if ext == allowed {
			return nil
		}
	}
	return NewInvalidRequestError(field, fmt.Sprintf("unsupported file extension %q", ext))
}

// ValidateLanguageCode checks a language field against the spec's shape: an
// ISO-ish code (e.g. "en", "en-US") or, when allowAuto is true, the literal
// "auto". An empty code is accepted as "use the default".
func ValidateLanguageCode(field, code string, allowAuto bool) *APIError {
	if code == "" {
		return nil
	}
	if code == "auto" {
		if allowAuto {
			return nil
		}
		return NewInvalidRequestError(field, "\"auto\" is not allowed for this field")
	}
	if !languagePattern.MatchString(code) {
		return NewInvalidRequestError(field, fmt.Sprintf("invalid language code %q", code))
	}
	return nil
}
