package measurementService

import (
	"facemeasure/internal/entity"
	"regexp"
)

var (
	iosPattern     = regexp.MustCompile(`(?i)iPhone|iPad|iPod`)
	androidPattern = regexp.MustCompile(`(?i)Android`)
)

// DetectPlatform classifies the client from its user agent string.
func DetectPlatform(userAgent string) entity.PlatformInfo {
	return entity.PlatformInfo{
		IsIOS:     iosPattern.MatchString(userAgent),
		IsAndroid: androidPattern.MatchString(userAgent),
	}
}
