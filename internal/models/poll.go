package models

import (
	"github.com/steemit/feedclient/internal/apportion"
)

// PollOption is one choice of a poll
type PollOption struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Poll is attached to a post
type Poll struct {
	Title          string       `json:"title"`
	Options        []PollOption `json:"options"`
	SelectedOption *int         `json:"selected_option,omitempty"`
	VoteTotal      int          `json:"vote_total"`
}

// Percentages returns display percentages per option, summing to 100.
// The second value is false when percentages should not be rendered.
func (p Poll) Percentages() ([]int, bool) {
	if p.VoteTotal <= 0 || len(p.Options) == 0 {
		return nil, false
	}
	shares := make([]float64, len(p.Options))
	for i, o := range p.Options {
		shares[i] = float64(o.Votes) * apportion.Total / float64(p.VoteTotal)
	}
	return apportion.Apportion(shares)
}

// HasVoted reports whether the viewer picked an option
func (p Poll) HasVoted() bool {
	return p.SelectedOption != nil
}
