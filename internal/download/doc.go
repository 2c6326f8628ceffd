package download

// Package download implements the core fetch pipeline for validated targets.
// It manages a bounded parallel worker pool, transient/permanent error
// classification with capped exponential backoff, MIME verification, and
// atomic writes into the destination tree.
