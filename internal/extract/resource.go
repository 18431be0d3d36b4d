package extract

import (
	"net/url"
	"strings"
)

// staticPathPrefixes and staticExtensions are reused from the teacher's
// CRUD mapper's notion of "not an addressable resource" (crud_mapper.go's
// isStaticResource), repurposed here to avoid guessing parameter names
// for asset paths.
var staticPathPrefixes = []string{
	"/static/", "/assets/", "/css/", "/js/", "/img/", "/images/",
	"/public/", "/files/", "/uploads/", "/media/",
}

var staticExtensions = map[string]bool{
	"css": true, "js": true, "png": true, "jpg": true, "jpeg": true,
	"gif": true, "ico": true, "svg": true, "woff": true, "ttf": true,
}

// GuessFromPath turns a target URL's last resource segment into extra
// candidate parameter names: a REST path like "/api/v1/users/42" or
// "/users/42" suggests "id" and "user_id" are worth trying even if they
// never appear in the baseline body.
func GuessFromPath(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	path := strings.TrimSuffix(u.Path, "/")
	if path == "" || isStaticPath(path) {
		return nil
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	parts = trimAPIVersion(parts)
	if len(parts) == 0 {
		return nil
	}

	resource := parts[0]
	if len(parts) >= 2 && looksLikeID(parts[1]) {
		singular := strings.TrimSuffix(resource, "s")
		return []string{"id", singular + "_id"}
	}
	return nil
}

func trimAPIVersion(parts []string) []string {
	if len(parts) > 0 && parts[0] == "api" {
		parts = parts[1:]
	}
	if len(parts) > 0 && (parts[0] == "v1" || parts[0] == "v2" || parts[0] == "v3") {
		parts = parts[1:]
	}
	return parts
}

func isStaticPath(path string) bool {
	for _, prefix := range staticPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		ext := strings.ToLower(path[idx+1:])
		if staticExtensions[ext] {
			return true
		}
	}
	return false
}

func looksLikeID(s string) bool {
	if len(s) == 0 || len(s) > 36 {
		return false
	}
	if isNumeric(s) {
		return true
	}
	return len(s) >= 8 && isHexadecimal(s)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isHexadecimal(s string) bool {
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F') || r == '-') {
			return false
		}
	}
	return true
}
