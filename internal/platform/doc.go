package platform

// Package platform contains filesystem and encoding glue shared by the
// pipeline: filename sanitization, atomic file writes, and charset-tolerant
// reading of archive HTML pages.
