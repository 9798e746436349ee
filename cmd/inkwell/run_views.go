package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"inkwell/internal/api"
)

func buildRunStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildRunListRows(list []api.Run) [][]string {
	if len(list) == 0 {
		return nil
	}
	sorted := make([]api.Run, len(list))
	copy(sorted, list)

	sort.Slice(sorted, func(i, j int) bool {
		ti := parseRunTime(sorted[i].CreatedAt)
		tj := parseRunTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})

	rows := make([][]string, 0, len(sorted))
	for _, run := range sorted {
		rows = append(rows, []string{
			run.ID,
			run.Template,
			formatStatusLabel(run.Status),
			formatProgress(run.Progress),
			formatDisplayTime(run.CreatedAt),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	titler := cases.Title(language.Und)
	parts := strings.Split(status, "_")
	for i, part := range parts {
		parts[i] = titler.String(strings.ToLower(part))
	}
	return strings.Join(parts, " ")
}

func formatProgress(progress api.RunProgress) string {
	stage := strings.TrimSpace(progress.Stage)
	if stage == "" && progress.Percent <= 0 {
		return "-"
	}
	if stage == "" {
		return fmt.Sprintf("%.0f%%", progress.Percent)
	}
	return fmt.Sprintf("%s %.0f%%", stage, progress.Percent)
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func parseRunTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

func formatRunID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatQuality(quality float64) string {
	if quality <= 0 {
		return "-"
	}
	return strconv.FormatFloat(quality, 'f', 1, 64)
}

func formatDurationMS(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).String()
}
