package cmd

import (
	"fmt"
	"time"

	"github.com/Inna0915/obsidian-confluence-flow/internal/sync"
)

const (
	// Time duration constants for relative time formatting.
	hoursPerDay  = 24
	daysPerWeek  = 7
	daysPerMonth = 30
)

// displaySyncResult prints the outcome of a sync pass.
//
//nolint:forbidigo // CLI user output function
func displaySyncResult(result *sync.Result) {
	if result.Success {
		fmt.Println("Sync completed successfully")
	} else {
		fmt.Println("Sync completed with errors")
	}

	fmt.Printf("  Created: %d\n", result.Created)
	fmt.Printf("  Updated: %d\n", result.Updated)
	fmt.Printf("  Skipped: %d\n", result.Skipped)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, docErr := range result.Errors {
			fmt.Printf("    - %s (%s): %v\n", docErr.Title, docErr.ID, docErr.Err)
		}
	}
}

// displayStatus prints the current sync state.
//
//nolint:forbidigo // CLI user output function
func displayStatus(state *sync.StateStore) {
	fmt.Printf("Tracked pages: %d\n", state.RecordCount())
	fmt.Printf("Last full sync: %s\n", formatTimeSince(state.Watermark()))

	roots := state.SyncedRoots()
	if len(roots) == 0 {
		fmt.Println("Synced roots: none")
		return
	}

	fmt.Printf("Synced roots: %d\n", len(roots))
	for _, rootID := range roots {
		fmt.Printf("  - %s\n", rootID)
	}
}

// displayPageSynced confirms a single-page resync.
//
//nolint:forbidigo // CLI user output function
func displayPageSynced(pageID string) {
	fmt.Printf("Page %s synced\n", pageID)
}

// displayConnectionOK confirms a successful connection test.
//
//nolint:forbidigo // CLI user output function
func displayConnectionOK(baseURL string) {
	fmt.Printf("Connection to %s OK\n", baseURL)
}

// displayStateCleared confirms a state reset.
//
//nolint:forbidigo // CLI user output function
func displayStateCleared() {
	fmt.Println("Sync state cleared")
}

// formatTimeSince formats a time as a human-readable relative duration.
func formatTimeSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	case duration < hoursPerDay*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < daysPerWeek*hoursPerDay*time.Hour:
		days := int(duration.Hours() / hoursPerDay)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case duration < daysPerMonth*hoursPerDay*time.Hour:
		weeks := int(duration.Hours() / hoursPerDay / daysPerWeek)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	default:
		months := int(duration.Hours() / hoursPerDay / daysPerMonth)
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	}
}
