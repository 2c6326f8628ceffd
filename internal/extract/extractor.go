package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vkget/vk-archive-downloader/internal/model"
)

// CSS selectors for archive pages
const (
	SelectorMessage        = ".message"
	SelectorMessageHeader  = ".message__header"
	SelectorAttachmentLink = ".attachment__link"
	SelectorHeaderCrumbs   = ".page_block_header_inner"
	SelectorCrumb          = "div.ui_crumb"
	SelectorImage          = "img"
)

// Header date formats: archive pages render "at 5:03:17 PM on 21 Aug 2023",
// filenames get the sortable form
const (
	HeaderDateLayout   = "2 Jan 2006 3:04:05 PM"
	FilenameDateLayout = "2006-01-02 15:04:05"
)

// DefaultAltName is used for album images without an alt attribute
const DefaultAltName = "unknown_image"

var (
	// headerDatePattern matches the "at <time> on <date>" message header
	headerDatePattern = regexp.MustCompile(`at (.+) on (.+)`)

	// imagePattern matches URLs ending in a known image extension, with an
	// optional query string
	imagePattern = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp)(\?.*)?$`)
)

// PageContext identifies the page being parsed
type PageContext struct {
	GroupName string
	PageIndex int
}

// Page is one parsed archive page. The underlying document is read-only, so
// extraction methods can be called any number of times.
type Page struct {
	doc *goquery.Document
}

// LoadPage parses page HTML into a queryable document
func LoadPage(html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &Page{doc: doc}, nil
}

// GroupName returns the chat or album title from the header crumbs. The
// second return reports whether a crumb was found.
func (p *Page) GroupName() (string, bool) {
	crumbs := p.doc.Find(SelectorHeaderCrumbs).First()
	if crumbs.Length() == 0 {
		return "", false
	}

	last := crumbs.Find(SelectorCrumb).Last()
	if last.Length() == 0 {
		return "", false
	}

	name := strings.TrimSpace(last.Text())
	if name == "" {
		return "", false
	}
	return name, true
}

// MessageRefs extracts attachment references from message blocks in document
// order. Blocks without an attachment link contribute nothing; whether a link
// points at an image is the validator's call. A block whose header date
// cannot be parsed still yields a reference, just without a naming hint.
func (p *Page) MessageRefs(pctx PageContext) []model.AttachmentRef {
	var refs []model.AttachmentRef

	p.doc.Find(SelectorMessage).Each(func(_ int, message *goquery.Selection) {
		href, ok := message.Find(SelectorAttachmentLink).First().Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		suggested := ""
		ext := imageExtension(href)
		if sentAt, ok := messageDate(message); ok && ext != "" {
			suggested = sentAt.Format(FilenameDateLayout) + ext
		}

		refs = append(refs, model.AttachmentRef{
			SourceURL:         href,
			GroupName:         pctx.GroupName,
			SuggestedFilename: suggested,
		})
	})
	return refs
}

// AlbumRefs extracts every img reference on an album page in document order,
// named after the image alt text
func (p *Page) AlbumRefs(pctx PageContext) []model.AttachmentRef {
	var refs []model.AttachmentRef

	p.doc.Find(SelectorImage).Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" {
			return
		}

		alt := strings.TrimSpace(img.AttrOr("alt", DefaultAltName))
		if alt == "" {
			alt = DefaultAltName
		}

		refs = append(refs, model.AttachmentRef{
			SourceURL:         src,
			GroupName:         pctx.GroupName,
			SuggestedFilename: alt + imageExtension(src),
		})
	})
	return refs
}

// messageDate parses the timestamp out of one message block header
func messageDate(message *goquery.Selection) (time.Time, bool) {
	header := message.Find(SelectorMessageHeader).First()
	if header.Length() == 0 {
		return time.Time{}, false
	}

	match := headerDatePattern.FindStringSubmatch(header.Text())
	if match == nil {
		return time.Time{}, false
	}

	timePart := strings.TrimSpace(match[1])
	datePart := strings.TrimSpace(match[2])

	sentAt, err := time.Parse(HeaderDateLayout, datePart+" "+timePart)
	if err != nil {
		return time.Time{}, false
	}
	return sentAt, true
}

// imageExtension returns the url's image extension including the dot,
// without any query string
func imageExtension(url string) string {
	match := imagePattern.FindStringSubmatch(url)
	if match == nil {
		return ""
	}
	return "." + match[1]
}
