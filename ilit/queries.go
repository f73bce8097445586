package ilit

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Reminders returns the policies whose Crummey letter is due (send date on
// or before today) and not yet sent, earliest send date first.
func (s *Service) Reminders(ctx context.Context) ([]PolicyRecord, error) {
	records, err := s.Policies.ReadAll(ctx, PolicyFilter{SendOnOrBefore: s.today(), Unsent: true})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CrummeyLetterSendDate.Before(records[j].CrummeyLetterSendDate)
	})
	return records, nil
}

// LetterStatus is the letter-centric view of a policy.
type LetterStatus string

const (
	LetterDue  LetterStatus = "Letter Due"
	LetterSent LetterStatus = "Letter Sent"
)

// Letter pairs a scheduled Crummey letter with its state.
type Letter struct {
	Policy PolicyRecord
	State  LetterStatus
}

// Letters returns every scheduled Crummey letter, most recent send date first.
func (s *Service) Letters(ctx context.Context) ([]Letter, error) {
	records, err := s.Policies.ReadAll(ctx, PolicyFilter{HasSendDate: true})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CrummeyLetterSendDate.After(records[j].CrummeyLetterSendDate)
	})

	letters := make([]Letter, len(records))
	for i, r := range records {
		state := LetterDue
		if r.LetterSent() {
			state = LetterSent
		}
		letters[i] = Letter{Policy: r, State: state}
	}
	return letters, nil
}

// Dashboard summarizes upcoming obligations.
type Dashboard struct {
	AsOf           Date
	DueIn30        int
	DueIn60        int
	LettersPending int
	Outstanding    decimal.Decimal // unpaid premiums due within 60 days
	ByStatus       map[Status]int
}

// Dashboard computes the summary counters as of today.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	records, err := s.Policies.ReadAll(ctx, PolicyFilter{})
	if err != nil {
		return Dashboard{}, err
	}
	return Summarize(records, s.today()), nil
}

// Summarize is the pure part of Dashboard.
func Summarize(records []PolicyRecord, today Date) Dashboard {
	d := Dashboard{AsOf: today, Outstanding: decimal.Zero, ByStatus: make(map[Status]int)}
	for _, r := range records {
		d.ByStatus[r.Status.Status]++

		if r.HasDueDate() {
			days := DaysBetween(today, r.PremiumDueDate)
			if days >= 0 && days <= 30 {
				d.DueIn30++
			}
			if days >= 0 && days <= 60 {
				d.DueIn60++
				if r.Status.Status != StatusPaid && r.PremiumAmount.Valid {
					d.Outstanding = d.Outstanding.Add(r.PremiumAmount.Decimal)
				}
			}
		}

		if !r.LetterSent() && r.Status.Status != StatusLetterSent &&
			!r.CrummeyLetterSendDate.IsZero() && r.CrummeyLetterSendDate.BeforeOrEqual(today) {
			d.LettersPending++
		}
	}
	return d
}
