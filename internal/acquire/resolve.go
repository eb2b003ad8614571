// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// IdentifierType classifies a model identifier.
type IdentifierType int

const (
	TypeUnknown IdentifierType = iota
	TypeBiGG
	TypeURL
)

func (t IdentifierType) String() string {
	switch t {
	case TypeBiGG:
		return "bigg"
	case TypeURL:
		return "url"
	default:
		return "unknown"
	}
}

// biggPattern matches BiGG model ids: "e_coli_core", "iML1515", "iMM904".
var biggPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// modelExts are the document formats the model loader reads.
var modelExts = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// Classify determines the identifier type and returns the normalized form.
func Classify(identifier string) (IdentifierType, string) {
	identifier = strings.TrimSpace(identifier)

	if u, err := url.Parse(identifier); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return TypeURL, identifier
	}
	if biggPattern.MatchString(identifier) {
		return TypeBiGG, identifier
	}
	return TypeUnknown, identifier
}

// Slug returns a filesystem-safe filename stem for the identifier.
func Slug(idType IdentifierType, normalized string) string {
	switch idType {
	case TypeBiGG:
		return normalized
	case TypeURL:
		u, err := url.Parse(normalized)
		if err != nil {
			return urlHashSlug(normalized)
		}
		base := path.Base(u.Path)
		base = strings.TrimSuffix(base, path.Ext(base))
		if base == "" || base == "." || base == "/" {
			return urlHashSlug(normalized)
		}
		return base
	default:
		return "unknown"
	}
}

// Ext returns the file extension the downloaded document is stored under.
// BiGG serves COBRA JSON; a URL keeps its own extension when the loader
// understands it.
func Ext(idType IdentifierType, normalized string) string {
	if idType == TypeURL {
		if u, err := url.Parse(normalized); err == nil {
			if ext := strings.ToLower(path.Ext(u.Path)); modelExts[ext] {
				return ext
			}
		}
	}
	return ".json"
}

// ModelURL returns the download URL for the identifier. BiGG ids resolve
// to the server's static JSON export; URLs are returned as is.
func ModelURL(baseURL string, idType IdentifierType, normalized string) string {
	switch idType {
	case TypeBiGG:
		return strings.TrimRight(baseURL, "/") + "/static/models/" + normalized + ".json"
	case TypeURL:
		return normalized
	default:
		return ""
	}
}

func urlHashSlug(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("url-%x", h[:8])
}
