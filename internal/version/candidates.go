package version

import (
	"strings"
)

// ReservedQualifiers mark environment-pinned images. An image whose segment
// after the app name starts with one of these is never a release candidate.
var ReservedQualifiers = []string{"prod", "stage", "dev", "test"}

// ImagePrefix returns the image name prefix for an application.
func ImagePrefix(configName, appName string) string {
	return configName + "-" + appName
}

// ImageName returns the repository path of a release image, without registry.
func ImageName(configName, appName string, tag Tag) string {
	return ImagePrefix(configName, appName) + "-" + tag.String()
}

// ParseImage extracts the tag from an image name of the form
// "[<registry>/]<prefix>-<commit>/v<version>". ok is false when the name does
// not conform or carries a reserved qualifier.
func ParseImage(prefix, image string) (Tag, bool) {
	image = strings.TrimSpace(image)

	// Drop the registry host and any ":<tag>" suffix docker may append.
	idx := strings.Index(image, prefix+"-")
	if idx < 0 || (idx > 0 && image[idx-1] != '/') {
		return Tag{}, false
	}
	rest := image[idx+len(prefix)+1:]
	if colon := strings.LastIndex(rest, ":"); colon >= 0 {
		rest = rest[:colon]
	}

	segment, ver, ok := strings.Cut(rest, "/")
	if !ok || segment == "" {
		return Tag{}, false
	}
	if isReserved(segment) || !isHex(segment) {
		return Tag{}, false
	}

	major, minor, patch, err := ParseVersion(ver)
	if err != nil {
		return Tag{}, false
	}
	return Tag{CommitID: segment, Major: major, Minor: minor, Patch: patch}, true
}

// Latest returns the highest release candidate among images.
func Latest(prefix string, images []string) (Tag, bool) {
	var best Tag
	found := false
	for _, image := range images {
		tag, ok := ParseImage(prefix, image)
		if !ok {
			continue
		}
		if !found || tag.Compare(best) > 0 {
			best = tag
			found = true
		}
	}
	return best, found
}

func isReserved(segment string) bool {
	first, _, _ := strings.Cut(segment, "-")
	for _, q := range ReservedQualifiers {
		if first == q {
			return true
		}
	}
	return false
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return s != ""
}
