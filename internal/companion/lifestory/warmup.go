package lifestory

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/kiosk404/soulgraph/internal/companion/domain"
)

// WarmUp is the session-start maintenance pass (spec §4.K: "Runs at session
// start (warm-up)"): the unlock trigger check followed by the age-driven
// stage reconciliation. Errors from the reconciliation are returned; a role
// with no outline yet simply has nothing to warm up.
func (m *Machine) WarmUp(ctx context.Context, roleID string, now time.Time) error {
	if _, err := m.Advance(ctx, now); err != nil {
		return err
	}

	p, err := m.personas.Get(roleID)
	if err != nil {
		return err
	}
	outline, err := m.db.LatestOutline(ctx, roleID)
	if err != nil {
		return nil
	}
	return m.ReconcileStageStatuses(ctx, outline.OutlineID, p.Age, func(s *domain.Stage) int {
		return stageAgeFor(s, p.Age)
	})
}

var lifePeriodRE = regexp.MustCompile(`(\d+)\s*[-~—]\s*(\d+)`)
var singleAgeRE = regexp.MustCompile(`\d+`)

// parseLifePeriod reads an age range out of a life_period string such as
// "23-26岁"; a single bare number is treated as a one-year range.
func parseLifePeriod(period string) (start, end int, ok bool) {
	if m := lifePeriodRE.FindStringSubmatch(period); m != nil {
		start, _ = strconv.Atoi(m[1])
		end, _ = strconv.Atoi(m[2])
		if end < start {
			start, end = end, start
		}
		return start, end, true
	}
	if m := singleAgeRE.FindString(period); m != "" {
		n, _ := strconv.Atoi(m)
		return n, n, true
	}
	return 0, 0, false
}

// stageAgeFor maps a stage's life_period onto the reconciliation scale: the
// current age when the range contains it, the range end when the stage lies
// wholly in the past, the range start when it lies ahead. An unparseable
// period is treated as current, leaving the ordering rule to pick one Active.
func stageAgeFor(s *domain.Stage, currentAge int) int {
	start, end, ok := parseLifePeriod(s.LifePeriod)
	if !ok {
		return currentAge
	}
	switch {
	case end < currentAge:
		return end
	case start > currentAge:
		return start
	default:
		return currentAge
	}
}
