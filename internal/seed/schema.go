package seed

import "time"

// File is the top-level structure of a seed file.
//
//	links:
//	  - code: gh
//	    destination: https://github.com
//	    created_days_ago: 30
//	    clicks: 12
//	  - destination: https://example.com/promo
//	    active: false
//	    expires_in: 72h
type File struct {
	Links []LinkEntry `yaml:"links"`
}

// LinkEntry describes one seeded link.
type LinkEntry struct {
	// Code is optional; an empty code is generated.
	Code        string `yaml:"code,omitempty"`
	Destination string `yaml:"destination"`

	// Active defaults to true.
	Active *bool `yaml:"active,omitempty"`

	CreatedDaysAgo int `yaml:"created_days_ago,omitempty"`

	// ExpiresIn is relative to the seeding time and may be negative to seed
	// an already expired link.
	ExpiresIn time.Duration `yaml:"expires_in,omitempty"`

	// Clicks is the number of backdated click events spread between creation
	// and now.
	Clicks int `yaml:"clicks,omitempty"`
}
