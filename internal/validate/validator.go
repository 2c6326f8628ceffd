package validate

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/vkget/vk-archive-downloader/internal/model"
	"github.com/vkget/vk-archive-downloader/internal/platform"
)

// Validation errors. Rejection reasons wrap one of these sentinels.
var (
	ErrEmptyURL            = errors.New("empty URL")
	ErrMalformedURL        = errors.New("malformed URL")
	ErrRelativeURL         = errors.New("relative URL")
	ErrSchemeNotAllowed    = errors.New("scheme not allowed")
	ErrExtensionNotAllowed = errors.New("extension not allowed")
	ErrDuplicateURL        = errors.New("duplicate URL")
)

// allowedExtensions is the image extension allowlist, lowercase without dot
var allowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"webp": {},
}

// Synthesized filename parts
const (
	HashSuffixLength  = 8
	SynthesizedPrefix = "img_"
)

// Validator turns attachment references into deduplicated download targets.
// It remembers every URL and destination path claimed during a run, so it is
// not safe for concurrent use.
type Validator struct {
	downloadDir string
	seen        map[string]struct{}
	claimed     map[string]struct{}
}

// NewValidator creates a validator for one run rooted at downloadDir
func NewValidator(downloadDir string) *Validator {
	return &Validator{
		downloadDir: downloadDir,
		seen:        make(map[string]struct{}),
		claimed:     make(map[string]struct{}),
	}
}

// Validate checks one reference and claims its target. The same input
// sequence always yields the same targets.
func (v *Validator) Validate(ref model.AttachmentRef) (*model.ValidatedTarget, error) {
	normalized, err := normalizeURL(ref.SourceURL)
	if err != nil {
		return nil, err
	}

	if _, dup := v.seen[normalized]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateURL, normalized)
	}

	ext, ok := imageExtension(normalized)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExtensionNotAllowed, normalized)
	}

	filename := v.filenameFor(ref, normalized, ext)
	destPath := filepath.Join(v.downloadDir, platform.SanitizeFilename(ref.GroupName), filename)
	destPath = v.resolveCollision(destPath, normalized)

	v.seen[normalized] = struct{}{}
	v.claimed[destPath] = struct{}{}

	return &model.ValidatedTarget{URL: normalized, DestPath: destPath}, nil
}

// normalizeURL trims whitespace, requires an absolute http(s) URL, and strips
// the fragment. Query strings are preserved because they key CDN variants.
func normalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyURL
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedURL, trimmed)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("%w: %s", ErrRelativeURL, trimmed)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %s", ErrSchemeNotAllowed, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrMalformedURL, trimmed)
	}

	u.Fragment = ""
	return u.String(), nil
}

// imageExtension returns the lowercase extension of the URL path, reporting
// whether it is on the allowlist
func imageExtension(normalized string) (string, bool) {
	u, err := url.Parse(normalized)
	if err != nil {
		return "", false
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if ext == "" {
		return "", false
	}

	_, ok := allowedExtensions[ext]
	return ext, ok
}

// filenameFor picks the target filename: the extractor's suggestion first,
// then the URL's last path segment, then a name synthesized from the URL hash
func (v *Validator) filenameFor(ref model.AttachmentRef, normalized, ext string) string {
	if suggested := platform.SanitizeFilename(strings.TrimSpace(ref.SuggestedFilename)); suggested != "" {
		return suggested
	}

	u, err := url.Parse(normalized)
	if err == nil {
		base := path.Base(u.Path)
		if base != "" && base != "." && base != "/" && !strings.HasPrefix(base, ".") {
			return platform.SanitizeFilename(base)
		}
	}

	return fmt.Sprintf("%s%s.%s", SynthesizedPrefix, urlHash(normalized), ext)
}

// resolveCollision suffixes the filename with the URL hash when another URL
// already claimed the same destination in this run
func (v *Validator) resolveCollision(destPath, normalized string) string {
	if _, taken := v.claimed[destPath]; !taken {
		return destPath
	}

	ext := filepath.Ext(destPath)
	base := strings.TrimSuffix(destPath, ext)
	return fmt.Sprintf("%s_%s%s", base, urlHash(normalized), ext)
}

// urlHash returns a short stable digest of the normalized URL
func urlHash(normalized string) string {
	digest := fmt.Sprintf("%x", sha256.Sum256([]byte(normalized)))
	return digest[:HashSuffixLength]
}
