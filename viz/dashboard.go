// ABOUTME: Terminal moderation dashboard with per-status counts
// ABOUTME: Counts come from the resource API so it works for both backends
package viz

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/harperreed/devicedrop/engine"
	"github.com/harperreed/devicedrop/models"
	"github.com/harperreed/devicedrop/moderation"
)

type DashboardStats struct {
	Kinds []KindStats
}

type KindStats struct {
	Kind     models.Kind
	Total    int
	ByStatus map[models.Status]int
}

// Pending is the number of records waiting on an admin decision.
func (k KindStats) Pending() int {
	return k.ByStatus[models.StatusPending]
}

// GenerateDashboardStats asks api for the total of every (kind, status) pair.
func GenerateDashboardStats(ctx context.Context, api engine.API) (*DashboardStats, error) {
	stats := &DashboardStats{Kinds: make([]KindStats, len(models.AllKinds))}

	g, ctx := errgroup.WithContext(ctx)
	for i, kind := range models.AllKinds {
		g.Go(func() error {
			ks := KindStats{Kind: kind, ByStatus: make(map[models.Status]int)}
			for _, status := range moderation.Statuses(kind) {
				spec := engine.BuildQuery(kind, 1, 1, map[string]string{"status": string(status)}, "")
				res, err := api.List(ctx, spec)
				if err != nil {
					return fmt.Errorf("failed to count %s %s: %w", status, kind.Collection(), err)
				}
				ks.ByStatus[status] = res.Total
				ks.Total += res.Total
			}
			stats.Kinds[i] = ks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func RenderDashboard(stats *DashboardStats) string {
	var out strings.Builder

	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	out.WriteString("  DEVICEDROP MODERATION DASHBOARD\n")
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	waiting := 0
	for _, ks := range stats.Kinds {
		out.WriteString(fmt.Sprintf("%s (%d)\n", strings.ToUpper(ks.Kind.Label()), ks.Total))
		renderStatuses(&out, ks)
		out.WriteString("\n")
		waiting += ks.Pending()
	}

	if waiting > 0 {
		out.WriteString("NEEDS ATTENTION\n")
		for _, ks := range stats.Kinds {
			if n := ks.Pending(); n > 0 {
				out.WriteString(fmt.Sprintf("  ⚠️  %d %s awaiting review\n", n, strings.ToLower(ks.Kind.Label())))
			}
		}
	}
	return out.String()
}

func renderStatuses(out *strings.Builder, ks KindStats) {
	maxCount := 1
	for _, n := range ks.ByStatus {
		if n > maxCount {
			maxCount = n
		}
	}

	for _, status := range moderation.Statuses(ks.Kind) {
		n := ks.ByStatus[status]
		barLength := (n * 10) / maxCount
		bar := strings.Repeat("█", barLength) + strings.Repeat("░", 10-barLength)
		out.WriteString(fmt.Sprintf("  %-10s %s  %3d\n", status, bar, n))
	}
}
