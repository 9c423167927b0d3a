package lifestory

import (
	"os"
	"path/filepath"
	"strings"
)

// purgePlotBlobs removes every daily-plot text blob for a role, across both
// deterministic directory aliases ("<id>_plot" and "<first_token>_plot") —
// the same candidate list the Plot Window Resolver reads from. Only the files
// are removed; the directory stays for the regeneration that follows.
func purgePlotBlobs(plotRoot, roleID string) {
	dirs := []string{filepath.Join(plotRoot, roleID+"_plot")}
	tokens := strings.FieldsFunc(roleID, func(c rune) bool { return c == '_' || c == '-' })
	if len(tokens) > 0 && tokens[0] != roleID {
		dirs = append(dirs, filepath.Join(plotRoot, tokens[0]+"_plot"))
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				logger.WithError(err).WithField("path", filepath.Join(dir, e.Name())).Warn("failed to purge plot blob")
			}
		}
	}
}

// readPastLifeSummary reads the role's rolling past-life summary blob.
// A missing or unreadable summary is not an error — generation prompts simply
// run without it.
func readPastLifeSummary(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
