package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/multistream/internal/units"
	"github.com/smazurov/multistream/internal/units/store"
)

// CreateValidateCmd creates the validate command.
func CreateValidateCmd() *cobra.Command {
	var unitsFile string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a unit definitions file",
		Long: `Checks a units file for problems the daemon would only hit at start time: ` +
			`unknown platforms, missing stream keys, broken failover pairs and inconsistent policy settings.`,
		Run: func(_ *cobra.Command, _ []string) {
			os.Exit(runValidate(unitsFile, quiet))
		},
	}

	cmd.Flags().StringVar(&unitsFile, "units", "units.toml", "Path to unit definitions file")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the summary")

	return cmd
}

// issue is one validation finding. Warnings do not fail the run.
type issue struct {
	warning bool
	text    string
}

func runValidate(unitsFile string, quiet bool) int {
	unitStore := store.NewTOML(unitsFile)
	if err := unitStore.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load units file %s: %v\n", unitsFile, err)
		return 1
	}

	allUnits := unitStore.Units()
	templates := unitStore.CustomTemplates()

	var errorCount, warningCount int
	report := func(scope string, issues []issue) {
		if len(issues) == 0 {
			return
		}
		if !quiet {
			fmt.Printf("\n%s:\n", scope)
		}
		for _, is := range issues {
			label := "ERROR"
			if is.warning {
				label = "WARNING"
				warningCount++
			} else {
				errorCount++
			}
			if !quiet {
				fmt.Printf("  %s: %s\n", label, is.text)
			}
		}
	}

	seenUnitIDs := make(map[string]bool)
	for i := range allUnits {
		u := &allUnits[i]
		scope := fmt.Sprintf("unit %s (%s)", u.ID, u.Name)
		var issues []issue

		if u.ID == "" {
			issues = append(issues, issue{text: "missing id"})
		} else if seenUnitIDs[u.ID] {
			issues = append(issues, issue{text: "duplicate unit id"})
		}
		seenUnitIDs[u.ID] = true

		issues = append(issues, validateUnit(u)...)
		report(scope, issues)
	}

	seenTemplateIDs := make(map[string]bool)
	for i := range templates {
		t := &templates[i]
		scope := fmt.Sprintf("template %s (%s)", t.ID, t.Name)
		var issues []issue

		switch {
		case t.ID == "":
			issues = append(issues, issue{text: "missing id"})
		case seenTemplateIDs[t.ID]:
			issues = append(issues, issue{text: "duplicate template id"})
		case strings.HasPrefix(t.ID, "builtin_"):
			issues = append(issues, issue{text: "id collides with the built-in template namespace"})
		}
		seenTemplateIDs[t.ID] = true

		if t.Name == "" {
			issues = append(issues, issue{text: "missing name"})
		}
		if !t.Platform.Valid() {
			issues = append(issues, issue{text: fmt.Sprintf("unknown platform %q", t.Platform)})
		}
		if t.Orientation != "" && !validOrientation(t.Orientation) {
			issues = append(issues, issue{text: fmt.Sprintf("unknown orientation %q", t.Orientation)})
		}
		report(scope, issues)
	}

	fmt.Println("\n=== VALIDATION SUMMARY ===")
	fmt.Printf("File: %s\n", unitsFile)
	fmt.Printf("Units: %d, Custom templates: %d\n", len(allUnits), len(templates))
	fmt.Printf("Result: %d errors, %d warnings\n", errorCount, warningCount)

	if errorCount > 0 {
		return 1
	}
	return 0
}

// validateUnit checks a single unit definition the way the daemon's
// mutation paths would, plus cross-destination failover consistency that
// only matters when the file is edited by hand.
func validateUnit(u *units.StreamUnit) []issue {
	var issues []issue

	if u.Name == "" {
		issues = append(issues, issue{text: "missing name"})
	}
	if u.InputURL == "" {
		issues = append(issues, issue{warning: true, text: "no input URL, the daemon will use the default local ingest"})
	}
	if u.SourceOrientation != "" && !validOrientation(u.SourceOrientation) {
		issues = append(issues, issue{text: fmt.Sprintf("unknown source orientation %q", u.SourceOrientation)})
	}
	for name, v := range map[string]int{
		"reconnect_delay_sec":       u.ReconnectDelaySec,
		"max_reconnect_attempts":    u.MaxReconnectAttempts,
		"health_check_interval_sec": u.HealthCheckIntervalSec,
		"failure_threshold":         u.FailureThreshold,
	} {
		if v < 0 {
			issues = append(issues, issue{text: fmt.Sprintf("%s cannot be negative", name)})
		}
	}

	byID := make(map[string]*units.Destination, len(u.Destinations))
	for i := range u.Destinations {
		d := &u.Destinations[i]
		if d.ID == "" {
			issues = append(issues, issue{text: fmt.Sprintf("destination %d: missing id", i)})
			continue
		}
		if _, dup := byID[d.ID]; dup {
			issues = append(issues, issue{text: fmt.Sprintf("duplicate destination id %q", d.ID)})
		}
		byID[d.ID] = d
	}

	for i := range u.Destinations {
		d := &u.Destinations[i]
		label := d.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}

		if !d.Platform.Valid() {
			issues = append(issues, issue{text: fmt.Sprintf("destination %s: unknown platform %q", label, d.Platform)})
		}
		if d.TargetOrientation != "" && !validOrientation(d.TargetOrientation) {
			issues = append(issues, issue{text: fmt.Sprintf("destination %s: unknown target orientation %q", label, d.TargetOrientation)})
		}
		if d.Platform == units.PlatformCustom {
			if d.IngestURL == "" {
				issues = append(issues, issue{text: fmt.Sprintf("destination %s: custom destination needs an ingest URL", label)})
			}
		} else if d.StreamKey == "" {
			issues = append(issues, issue{text: fmt.Sprintf("destination %s: missing stream key", label)})
		}
		if neg := negativeEncodingField(d.Encoding); neg != "" {
			issues = append(issues, issue{text: fmt.Sprintf("destination %s: %s cannot be negative", label, neg)})
		}

		issues = append(issues, validateFailoverLinks(d, label, byID)...)
	}

	return issues
}

// validateFailoverLinks checks primary/backup pair consistency: both ends
// must exist, point at each other and agree on roles, and a backup cannot
// chain to another backup.
func validateFailoverLinks(d *units.Destination, label string, byID map[string]*units.Destination) []issue {
	var issues []issue

	if d.IsBackup {
		switch {
		case d.PrimaryID == "":
			issues = append(issues, issue{text: fmt.Sprintf("destination %s: backup without a primary_id", label)})
		default:
			primary, ok := byID[d.PrimaryID]
			switch {
			case !ok:
				issues = append(issues, issue{text: fmt.Sprintf("destination %s: primary %q does not exist", label, d.PrimaryID)})
			case primary.BackupID != d.ID:
				issues = append(issues, issue{text: fmt.Sprintf("destination %s: primary %q does not link back", label, d.PrimaryID)})
			case primary.IsBackup:
				issues = append(issues, issue{text: fmt.Sprintf("destination %s: primary %q is itself a backup", label, d.PrimaryID)})
			}
		}
		if d.BackupID != "" {
			issues = append(issues, issue{text: fmt.Sprintf("destination %s: backups cannot have their own backup", label)})
		}
	} else {
		if d.PrimaryID != "" {
			issues = append(issues, issue{text: fmt.Sprintf("destination %s: primary_id set on a non-backup destination", label)})
		}
		if d.BackupID != "" {
			backup, ok := byID[d.BackupID]
			switch {
			case !ok:
				issues = append(issues, issue{text: fmt.Sprintf("destination %s: backup %q does not exist", label, d.BackupID)})
			case !backup.IsBackup:
				issues = append(issues, issue{text: fmt.Sprintf("destination %s: backup %q is not marked is_backup", label, d.BackupID)})
			case backup.PrimaryID != d.ID:
				issues = append(issues, issue{text: fmt.Sprintf("destination %s: backup %q does not link back", label, d.BackupID)})
			}
		}
	}

	return issues
}

func validOrientation(o units.Orientation) bool {
	switch o {
	case units.OrientationAuto, units.OrientationHorizontal, units.OrientationVertical, units.OrientationSquare:
		return true
	}
	return false
}

// negativeEncodingField returns the name of the first negative numeric
// encoding field, or "".
func negativeEncodingField(e units.EncodingSettings) string {
	for name, v := range map[string]int{
		"video_bitrate_kbps": e.VideoBitrateKbps,
		"audio_bitrate_kbps": e.AudioBitrateKbps,
		"width":              e.Width,
		"height":             e.Height,
		"fps_num":            e.FPSNum,
		"fps_den":            e.FPSDen,
		"max_bandwidth_kbps": e.MaxBandwidthKbps,
	} {
		if v < 0 {
			return name
		}
	}
	return ""
}
