package models

import "strings"

// Bucket is a named grouping of tasks. Names are unique ignoring case.
type Bucket struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// DefaultBuckets returns the buckets seeded into an empty board.
func DefaultBuckets() []Bucket {
	return []Bucket{
		{Name: "Personal", Description: "Your own tasks, reviews, and personal direction"},
		{Name: "Team", Description: "Onboarding, coordination, guiding your crew"},
		{Name: "Admin", Description: "Taxes, accounting, admin chores"},
	}
}

// SameBucketName reports whether a and b name the same bucket.
func SameBucketName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
