package models

import "strings"

// Risk is the pre-trade risk checklist recorded when opening option trades.
type Risk struct {
	EconEvent   bool
	Earnings    bool
	BondAuction bool
	Note        string
}

// Empty reports whether no flag is set and the note is blank.
func (r *Risk) Empty() bool {
	return !r.EconEvent && !r.Earnings && !r.BondAuction && strings.TrimSpace(r.Note) == ""
}
