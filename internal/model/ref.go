package model

// AttachmentRef is a candidate media reference discovered on one archive page.
// Uniqueness is not guaranteed at this stage; deduplication happens during
// validation.
type AttachmentRef struct {
	SourceURL         string // href or src exactly as found in the page
	GroupName         string // chat or album the reference belongs to
	SuggestedFilename string // extractor's naming hint, empty if none
}

// ValidatedTarget is a confirmed, deduplicated download instruction. DestPath
// is unique within a run.
type ValidatedTarget struct {
	URL      string // normalized absolute URL
	DestPath string // final location on disk
}
