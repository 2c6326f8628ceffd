package archive

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vkget/vk-archive-downloader/internal/download"
	"github.com/vkget/vk-archive-downloader/internal/extract"
	"github.com/vkget/vk-archive-downloader/internal/model"
	"github.com/vkget/vk-archive-downloader/internal/platform"
	"github.com/vkget/vk-archive-downloader/internal/validate"
)

// Archive layout
const (
	MessagePagePrefix = "messages"
	PageExtension     = ".html"
	FirstMessagePage  = "messages0.html"
)

// Group name fallbacks for pages without a crumb trail
const (
	UnknownContact = "Unknown Contact"
	UnknownAlbum   = "Unknown Album"
)

// pageNumberPattern pulls the numeric suffix out of a page filename
var pageNumberPattern = regexp.MustCompile(`(\d+)\.html$`)

// pageFile is one discovered archive page
type pageFile struct {
	path  string
	index int
}

// Walker drives archive pages through extraction, validation and download.
// One walker covers one run; its validator carries the run-wide duplicate
// and filename state.
type Walker struct {
	downloadDir string
	engine      download.Downloader
	validator   *validate.Validator
}

// NewWalker creates a walker writing grouped files under downloadDir
func NewWalker(downloadDir string, engine download.Downloader) *Walker {
	return &Walker{
		downloadDir: downloadDir,
		engine:      engine,
		validator:   validate.NewValidator(downloadDir),
	}
}

// RunMessages processes every conversation directory under rootDir.
// Directories without a messages0.html entry page are skipped. Directories
// and pages are visited in a deterministic order, so repeated runs resolve
// filenames identically.
func (w *Walker) RunMessages(ctx context.Context, rootDir string) (*model.RunReport, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive root: %w", err)
	}

	report := model.NewRunReport()
	defer report.Finish()

	for _, entry := range entries {
		if ctx.Err() != nil {
			logrus.Warn("Run cancelled, stopping walk")
			break
		}
		if !entry.IsDir() {
			continue
		}
		w.processChat(ctx, filepath.Join(rootDir, entry.Name()), entry.Name(), report)
	}

	return report, nil
}

// RunAlbums processes album pages under rootDir. Exports place album pages
// either loose in the root or inside per-album subdirectories; both layouts
// are handled.
func (w *Walker) RunAlbums(ctx context.Context, rootDir string) (*model.RunReport, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive root: %w", err)
	}

	report := model.NewRunReport()
	defer report.Finish()

	for _, entry := range entries {
		if ctx.Err() != nil {
			logrus.Warn("Run cancelled, stopping walk")
			break
		}

		fullPath := filepath.Join(rootDir, entry.Name())
		if entry.IsDir() {
			for _, page := range listPages(fullPath, "") {
				if ctx.Err() != nil {
					break
				}
				w.processAlbumPage(ctx, page, entry.Name(), report)
			}
			continue
		}
		if strings.HasSuffix(entry.Name(), PageExtension) {
			w.processAlbumPage(ctx, pageFile{path: fullPath, index: pageIndexOf(entry.Name())}, "", report)
		}
	}

	return report, nil
}

// processChat handles one conversation directory: the group name comes from
// the entry page, then every message page runs through the pipeline in page
// order.
func (w *Walker) processChat(ctx context.Context, chatDir, dirName string, report *model.RunReport) {
	if !platform.FileExists(filepath.Join(chatDir, FirstMessagePage)) {
		logrus.WithField("dir", chatDir).Debug("No entry page, skipping directory")
		return
	}

	groupName := w.chatGroupName(chatDir, dirName)
	logrus.WithFields(logrus.Fields{
		"dir":   dirName,
		"group": groupName,
	}).Info("Processing conversation")

	for _, page := range listPages(chatDir, MessagePagePrefix) {
		if ctx.Err() != nil {
			return
		}

		loaded, err := loadArchivePage(page.path)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"page":  page.path,
				"error": err,
			}).Warn("Skipping unreadable page")
			continue
		}

		pctx := extract.PageContext{GroupName: groupName, PageIndex: page.index}
		w.processRefs(ctx, loaded.MessageRefs(pctx), pctx, report)
	}
}

// chatGroupName prefers the crumb trail of the entry page, then the
// directory name
func (w *Walker) chatGroupName(chatDir, dirName string) string {
	page, err := loadArchivePage(filepath.Join(chatDir, FirstMessagePage))
	if err == nil {
		if name, ok := page.GroupName(); ok {
			return name
		}
	}
	if strings.TrimSpace(dirName) != "" {
		return dirName
	}
	return UnknownContact
}

// processAlbumPage names the album from the page's own crumb trail, falling
// back to the containing directory name
func (w *Walker) processAlbumPage(ctx context.Context, page pageFile, dirName string, report *model.RunReport) {
	loaded, err := loadArchivePage(page.path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"page":  page.path,
			"error": err,
		}).Warn("Skipping unreadable page")
		return
	}

	groupName, ok := loaded.GroupName()
	if !ok {
		if strings.TrimSpace(dirName) != "" {
			groupName = dirName
		} else {
			groupName = UnknownAlbum
		}
	}

	pctx := extract.PageContext{GroupName: groupName, PageIndex: page.index}
	w.processRefs(ctx, loaded.AlbumRefs(pctx), pctx, report)
}

// processRefs validates one page's references and hands the surviving
// targets to the download engine
func (w *Walker) processRefs(ctx context.Context, refs []model.AttachmentRef, pctx extract.PageContext, report *model.RunReport) {
	report.AddPage(len(refs))

	targets := make([]model.ValidatedTarget, 0, len(refs))
	for _, ref := range refs {
		target, err := w.validator.Validate(ref)
		if err != nil {
			if errors.Is(err, validate.ErrDuplicateURL) {
				report.AddDuplicate()
				logrus.WithField("url", ref.SourceURL).Debug("Duplicate URL, skipping")
			} else {
				report.AddRejected()
				logrus.WithFields(logrus.Fields{
					"url":    ref.SourceURL,
					"reason": err,
				}).Debug("Rejected reference")
			}
			continue
		}
		targets = append(targets, *target)
	}

	for _, outcome := range w.engine.FetchAll(ctx, targets) {
		report.AddOutcome(pctx.GroupName, outcome)
	}
}

// listPages returns the .html pages directly under dir whose names carry the
// given prefix, ordered by numeric page index. An empty prefix matches every
// page.
func listPages(dir, prefix string) []pageFile {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"dir":   dir,
			"error": err,
		}).Warn("Cannot list directory")
		return nil
	}

	var pages []pageFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, PageExtension) {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		pages = append(pages, pageFile{
			path:  filepath.Join(dir, name),
			index: pageIndexOf(name),
		})
	}

	sort.Slice(pages, func(i, j int) bool {
		if pages[i].index != pages[j].index {
			return pages[i].index < pages[j].index
		}
		return pages[i].path < pages[j].path
	})

	return pages
}

// pageIndexOf parses the numeric suffix of a page filename. Pages without
// one sort after all numbered pages.
func pageIndexOf(name string) int {
	match := pageNumberPattern.FindStringSubmatch(name)
	if match == nil {
		return math.MaxInt
	}
	index, err := strconv.Atoi(match[1])
	if err != nil {
		return math.MaxInt
	}
	return index
}

// loadArchivePage reads one page from disk, tolerating the legacy cp1251
// encoding older exports use
func loadArchivePage(path string) (*extract.Page, error) {
	html, err := platform.ReadHTMLFile(path)
	if err != nil {
		return nil, err
	}
	return extract.LoadPage(html)
}
