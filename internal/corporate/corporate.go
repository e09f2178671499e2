// Package corporate applies splits, mergers and ticker renames to
// transaction history.
package corporate

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"b3-tracker/internal/b3"
	apperrors "b3-tracker/internal/errors"
	"b3-tracker/internal/models"
)

// Policy decides which historical rows an action rewrites.
type Policy int

const (
	// ApplyAll rewrites every row of the old ticker regardless of date.
	ApplyAll Policy = iota
	// AfterEffectiveDate rewrites only rows dated on or after the action.
	AfterEffectiveDate
)

func (p Policy) String() string {
	switch p {
	case ApplyAll:
		return "apply_all"
	case AfterEffectiveDate:
		return "after_effective_date"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy parses a configuration value.
func ParsePolicy(s string) (Policy, error) {
	switch strings.TrimSpace(s) {
	case "", "apply_all":
		return ApplyAll, nil
	case "after_effective_date":
		return AfterEffectiveDate, nil
	}
	return ApplyAll, apperrors.NewValidationError("action_policy", s, "unknown corporate action policy")
}

// ParseRatio converts an "a:b" conversion ratio into the multiplier b/a.
// Anything malformed, zero or non-finite yields the identity 1.0.
func ParseRatio(ratio string) float64 {
	a, b, ok := strings.Cut(strings.TrimSpace(ratio), ":")
	if !ok {
		return 1.0
	}
	x, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	y, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA != nil || errB != nil || x == 0 {
		return 1.0
	}
	m := y / x
	if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return 1.0
	}
	return m
}

// NewAction builds an action, deriving the multiplier from the ratio.
func NewAction(oldTicker, newTicker string, effective time.Time, ratio string) models.CorporateAction {
	return models.CorporateAction{
		OldTicker:     strings.ToUpper(strings.TrimSpace(oldTicker)),
		NewTicker:     strings.ToUpper(strings.TrimSpace(newTicker)),
		EffectiveDate: effective,
		Ratio:         strings.TrimSpace(ratio),
		Multiplier:    ParseRatio(ratio),
	}
}

// Adjuster rewrites transactions according to a list of corporate actions.
type Adjuster struct {
	policy Policy
}

// NewAdjuster creates an adjuster with the given policy.
func NewAdjuster(policy Policy) *Adjuster {
	return &Adjuster{policy: policy}
}

// Policy returns the configured policy.
func (a *Adjuster) Policy() Policy {
	return a.policy
}

// Apply returns a new transaction slice with every action applied in the
// given order. Chained renames (A to B, then B to C) resolve only when
// supplied in that order. The input slice is never modified.
func (a *Adjuster) Apply(txs []models.Transaction, actions []models.CorporateAction) ([]models.Transaction, []apperrors.Warning) {
	out := make([]models.Transaction, len(txs))
	copy(out, txs)

	var warns []apperrors.Warning
	for _, act := range actions {
		mult := act.Multiplier
		if mult <= 0 || math.IsNaN(mult) || math.IsInf(mult, 0) {
			warns = append(warns, apperrors.Warning{
				Kind:    apperrors.KindParse,
				Ticker:  act.OldTicker,
				Field:   "fator_conversao",
				Message: fmt.Sprintf("invalid multiplier %v, using 1", mult),
			})
			mult = 1.0
		}

		gated := a.policy == AfterEffectiveDate
		if gated && act.EffectiveDate.IsZero() {
			warns = append(warns, apperrors.Warning{
				Kind:    apperrors.KindStructural,
				Ticker:  act.OldTicker,
				Field:   "data_vigencia",
				Message: "missing effective date, applying to all rows",
			})
			gated = false
		}

		for i := range out {
			if out[i].Ticker != act.OldTicker {
				continue
			}
			if gated && out[i].Date.Before(act.EffectiveDate) {
				continue
			}
			out[i].Ticker = act.NewTicker
			out[i].Quantity *= mult
		}
	}
	return out, warns
}

// Apply runs the default apply-all policy.
func Apply(txs []models.Transaction, actions []models.CorporateAction) []models.Transaction {
	out, _ := NewAdjuster(ApplyAll).Apply(txs, actions)
	return out
}

// actionRow is one row of the corporate-action reference table.
type actionRow struct {
	OldTicker     string `csv:"ativo_antigo"`
	NewTicker     string `csv:"ativo_novo"`
	EffectiveDate string `csv:"data_vigencia"`
	Ratio         string `csv:"fator_conversao"`
}

// LoadActions reads the reference table. Rows with an unparseable date keep
// a zero EffectiveDate; rows without tickers are skipped. Both are reported.
func LoadActions(r io.Reader) ([]models.CorporateAction, []apperrors.Warning, error) {
	records, err := b3.ReadRecords(r)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "reading corporate actions")
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	var rows []actionRow
	if err := b3.UnmarshalRecords(records, &rows); err != nil {
		return nil, nil, apperrors.Wrap(err, "decoding corporate actions")
	}

	var (
		actions []models.CorporateAction
		warns   []apperrors.Warning
	)
	for i, row := range rows {
		if strings.TrimSpace(row.OldTicker) == "" || strings.TrimSpace(row.NewTicker) == "" {
			warns = append(warns, apperrors.Warning{
				Kind:    apperrors.KindStructural,
				Row:     i + 1,
				Message: "corporate action without ticker skipped",
			})
			continue
		}
		date, ok := b3.ParseISODate(row.EffectiveDate)
		if !ok {
			warns = append(warns, apperrors.Warning{
				Kind:    apperrors.KindParse,
				Ticker:  row.OldTicker,
				Field:   "data_vigencia",
				Message: fmt.Sprintf("invalid date %q", row.EffectiveDate),
			})
		}
		act := NewAction(row.OldTicker, row.NewTicker, date, row.Ratio)
		if act.Multiplier == 1.0 && !isIdentityRatio(row.Ratio) {
			warns = append(warns, apperrors.Warning{
				Kind:    apperrors.KindParse,
				Ticker:  act.OldTicker,
				Field:   "fator_conversao",
				Message: fmt.Sprintf("malformed ratio %q, using 1:1", row.Ratio),
			})
		}
		actions = append(actions, act)
	}
	return actions, warns, nil
}

// LoadActionsFile opens and reads the reference table. An empty path
// means no actions.
func LoadActionsFile(path string) ([]models.CorporateAction, []apperrors.Warning, error) {
	if path == "" {
		return nil, nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return LoadActions(f)
}

func isIdentityRatio(ratio string) bool {
	a, b, ok := strings.Cut(strings.TrimSpace(ratio), ":")
	if !ok {
		return false
	}
	x, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	y, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	return errA == nil && errB == nil && x != 0 && x == y
}
