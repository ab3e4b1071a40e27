package renamer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Media carries the matched attributes the renderer turns into a path.
type Media struct {
	Title   string
	Year    int
	Season  int
	Episode int
	Movie   bool
}

// Renderer produces deterministic, sanitized library-relative paths from
// matched media attributes. Templates use the tokens {title}, {year},
// {season}, and {episode}; season and episode numbers are zero padded to
// two digits.
type Renderer struct {
	movieTemplate   string
	episodeTemplate string
}

// New constructs a renderer with the given templates. Empty templates fall
// back to the repository defaults.
func New(movieTemplate, episodeTemplate string) *Renderer {
	if strings.TrimSpace(movieTemplate) == "" {
		movieTemplate = "{title} ({year})/{title} ({year})"
	}
	if strings.TrimSpace(episodeTemplate) == "" {
		episodeTemplate = "{title}/Season {season}/{title} - S{season}E{episode}"
	}
	return &Renderer{movieTemplate: movieTemplate, episodeTemplate: episodeTemplate}
}

// Render returns the library-relative destination path for the media,
// including the provided extension. Every path segment is sanitized
// independently; a segment that sanitizes to nothing becomes "Unknown".
func (r *Renderer) Render(media Media, ext string) string {
	template := r.movieTemplate
	if !media.Movie {
		template = r.episodeTemplate
	}

	expanded := expandTokens(template, media)
	segments := strings.Split(expanded, "/")
	for i, segment := range segments {
		segments[i] = Sanitize(segment)
	}
	return filepath.Join(segments...) + ext
}

func expandTokens(template string, media Media) string {
	year := ""
	if media.Year > 0 {
		year = strconv.Itoa(media.Year)
	}
	replacer := strings.NewReplacer(
		"{title}", media.Title,
		"{year}", year,
		"{season}", fmt.Sprintf("%02d", media.Season),
		"{episode}", fmt.Sprintf("%02d", media.Episode),
	)
	expanded := replacer.Replace(template)
	// A missing year leaves empty parentheses behind; drop them.
	expanded = strings.ReplaceAll(expanded, " ()", "")
	return expanded
}

// Sanitize strips characters that are illegal or troublesome in filenames,
// collapses whitespace, and normalizes to NFC so rendered paths compare
// stably across platforms. An empty result becomes "Unknown".
func Sanitize(value string) string {
	value = norm.NFC.String(strings.TrimSpace(value))
	if value == "" {
		return "Unknown"
	}
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
		"\n", " ",
		"\t", " ",
	)
	cleaned := replacer.Replace(value)
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return "Unknown"
	}
	return strings.Join(fields, " ")
}

const maxUniqueAttempts = 10000

// SuggestUnique returns path unchanged when it is free, otherwise the first
// variant with " (N)" appended before the extension that does not exist yet.
func SuggestUnique(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		return "", err
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for counter := 1; counter <= maxUniqueAttempts; counter++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, counter, ext)
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return candidate, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("exhausted unique name slots for %s", path)
}
