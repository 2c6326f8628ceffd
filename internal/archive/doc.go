package archive

// Package archive walks an exported archive tree and drives each HTML page
// through the extract, validate, download pipeline. Unreadable pages and
// failed downloads are recorded in the run report rather than aborting the
// walk, so a single run covers everything it can reach.
