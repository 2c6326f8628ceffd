package model

// Package model defines domain data structures used across the app: attachment
// references, validated download targets, outcome enums, and per-run reports.
// Structures are designed for explicit state transitions and JSON reporting.
