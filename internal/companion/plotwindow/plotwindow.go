// Package plotwindow implements Component B: resolving the ordered list of
// narrative lines a character has "already lived today" at a given instant.
// Grounded on the teacher's two-candidate-path resolution style (spec §9
// design note: "keep as two deterministic candidate paths in the resolver;
// the first existing one wins; never guess beyond that list"), applied here to
// spec §6's file layout and §4.B's parsing/selection algorithm.
package plotwindow

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/log"
)

var logger = log.For("plotwindow")

// Line is one parsed plot-window entry.
type Line struct {
	Start     int // minutes since midnight
	End       int // minutes since midnight; meaningless when OpenEnded
	OpenEnded bool
	Text      string
}

var lineRE = regexp.MustCompile(`^(\d{2}):(\d{2})-(?:(\d{2}):(\d{2})|xx:xx)\s+(.+)$`)

func parseLine(raw string) (Line, bool) {
	m := lineRE.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Line{}, false
	}
	startH, _ := strconv.Atoi(m[1])
	startM, _ := strconv.Atoi(m[2])
	start := startH*60 + startM
	if m[3] == "" {
		return Line{Start: start, OpenEnded: true, Text: m[5]}, true
	}
	endH, _ := strconv.Atoi(m[3])
	endM, _ := strconv.Atoi(m[4])
	return Line{Start: start, End: endH*60 + endM, Text: m[5]}, true
}

// Resolver resolves plot windows from on-disk plot files.
type Resolver struct {
	plotRoot string
}

// New builds a Resolver rooted at the configured plot path.
func New(paths config.PathsConfig) *Resolver {
	return &Resolver{plotRoot: paths.PlotRoot}
}

// candidatePaths returns the deterministic alias list for a role's plot
// directory — "<id>_plot" and "<first_token>_plot" — in priority order. The
// first one that exists on disk wins; we never guess beyond this list
// (spec §9).
func (r *Resolver) candidatePaths(roleID string) []string {
	dirs := []string{filepath.Join(r.plotRoot, roleID+"_plot")}
	tokens := strings.FieldsFunc(roleID, func(c rune) bool { return c == '_' || c == '-' })
	if len(tokens) > 0 && tokens[0] != roleID {
		dirs = append(dirs, filepath.Join(r.plotRoot, tokens[0]+"_plot"))
	}
	return dirs
}

// findDayFile locates the plot file for (roleID, day) under the first
// existing candidate directory, matching the "<YYYY-MM-DD>_<title>.txt" glob
// from spec §6.
func (r *Resolver) findDayFile(roleID string, day time.Time) (string, bool) {
	prefix := day.Format("2006-01-02")
	for _, dir := range r.candidatePaths(roleID) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasPrefix(e.Name(), prefix+"_") {
				return filepath.Join(dir, e.Name()), true
			}
		}
	}
	return "", false
}

// loadLines reads and parses a day's plot lines, sorted by Start. Malformed
// lines are silently ignored per spec §4.B.
func (r *Resolver) loadLines(roleID string, day time.Time) []Line {
	path, ok := r.findDayFile(roleID, day)
	if !ok {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("failed to open plot file")
		return nil
	}
	defer f.Close()

	var lines []Line
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if l, ok := parseLine(sc.Text()); ok {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Start < lines[j].Start })
	return lines
}

// endOrStart returns the value spec §4.B rule 2 compares against: End for a
// closed segment, Start for an open-ended one.
func (l Line) endOrStart() int {
	if l.OpenEnded {
		return l.Start
	}
	return l.End
}

// contains reports whether minute m falls inside this line's span.
func (l Line) contains(m int) bool {
	if l.OpenEnded {
		return m >= l.Start
	}
	return m >= l.Start && m < l.End
}

// Resolve returns the ordered plot lines for roleID as of now, applying spec
// §4.B's algorithm. The previous-day fallback is attempted at most once
// (spec §8 invariant).
func (r *Resolver) Resolve(roleID string, now time.Time) []Line {
	today := r.loadLines(roleID, now)
	if len(today) == 0 {
		prev := r.loadLines(roleID, now.AddDate(0, 0, -1))
		if len(prev) > 0 {
			return prev
		}
		return nil
	}

	nowMin := now.Hour()*60 + now.Minute()
	earliest := today[0]
	latest := today[len(today)-1]

	// Rule 1: before the earliest line starts.
	if nowMin < earliest.Start {
		prev := r.loadLines(roleID, now.AddDate(0, 0, -1))
		if len(prev) > 0 {
			return prev
		}
		return []Line{earliest}
	}

	// Rule 2: at or past the full day.
	if nowMin >= latest.endOrStart() {
		return append([]Line(nil), today...)
	}

	// Rule 3: inside some segment. Prefer a closed (non-open-ended) match
	// over an open-ended one — "the more specific match wins" (spec §4.B).
	matchIdx := -1
	for i, l := range today {
		if !l.OpenEnded && l.contains(nowMin) {
			matchIdx = i
			break
		}
	}
	if matchIdx == -1 {
		for i, l := range today {
			if l.OpenEnded && l.contains(nowMin) {
				matchIdx = i // later open-ended starts override earlier ones
			}
		}
	}
	if matchIdx != -1 {
		return append([]Line(nil), today[:matchIdx+1]...)
	}

	// Rule 4: closest start to now.
	closest := 0
	best := abs(today[0].Start - nowMin)
	for i, l := range today {
		if d := abs(l.Start - nowMin); d < best {
			best = d
			closest = i
		}
	}
	return append([]Line(nil), today[:closest+1]...)
}

// CurrentLine returns the single "current" line — the last element of the
// resolved window — and false when the window is empty. It does no
// formatting; RenderBlock marks that line for prompt assembly (spec §4.J
// step 5: "mark the most recent line as 'this moment'").
func (r *Resolver) CurrentLine(lines []Line) (Line, bool) {
	if len(lines) == 0 {
		return Line{}, false
	}
	return lines[len(lines)-1], true
}

// RenderBlock formats the resolved window for the system prompt, marking the
// current line.
func RenderBlock(lines []Line) string {
	if len(lines) == 0 {
		return "(no plot events lived yet today)"
	}
	var b strings.Builder
	for i, l := range lines {
		marker := ""
		if i == len(lines)-1 {
			marker = " (this moment)"
		}
		fmt.Fprintf(&b, "- %s%s\n", l.Text, marker)
	}
	return b.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
