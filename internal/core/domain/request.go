package domain

import (
	"regexp"
	"strings"
)

var youtubeURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtu\.be/[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/embed/[\w-]+`),
}

// IsValidVideoURL reports whether url is a supported YouTube video URL.
func IsValidVideoURL(url string) bool {
	for _, p := range youtubeURLPatterns {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}

// ValidateURL trims url and checks it before any subprocess runs.
func ValidateURL(url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", InvalidInput(ErrMissingURL)
	}
	if !IsValidVideoURL(url) {
		return "", InvalidInput(ErrInvalidURL)
	}
	return url, nil
}

// IsAudioSelector reports whether selector asks for the audio-only workflow.
// "0" and the empty selector mean "no video".
func IsAudioSelector(selector string) bool {
	s := strings.TrimSpace(selector)
	return s == "" || s == "0"
}
