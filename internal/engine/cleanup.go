package engine

import (
	"context"
	"time"
)

// CleanupResult summarises one retention pass.
type CleanupResult struct {
	AnomaliesDeleted     int64    `json:"anomaliesDeleted"`
	NotificationsDeleted int64    `json:"notificationsDeleted"`
	HistoryPruned        int64    `json:"historyPruned"`
	Errors               []string `json:"errors,omitempty"`
}

// CleanupOldData applies the retention policy: resolved anomalies past
// their retention, acknowledged notifications past theirs, and history
// rows beyond the newest N per plant. The three categories are
// isolated; one failing delete never blocks the others. The returned
// error is non-nil only if every category failed.
func (e *Engine) CleanupOldData(ctx context.Context) (*CleanupResult, error) {
	now := e.now()
	result := &CleanupResult{}
	failures := 0

	deleted, err := e.deps.AnomalyStore.DeleteResolvedBefore(ctx, now.Add(-e.policy.AnomalyRetention))
	if err != nil {
		e.logger.Warn("deleting old anomalies", "error", err)
		result.Errors = append(result.Errors, err.Error())
		failures++
	} else {
		result.AnomaliesDeleted = deleted
	}

	deleted, err = e.deps.Notifications.DeleteAcknowledgedBefore(ctx, now.Add(-e.policy.NotificationRetention))
	if err != nil {
		e.logger.Warn("deleting old notifications", "error", err)
		result.Errors = append(result.Errors, err.Error())
		failures++
	} else {
		result.NotificationsDeleted = deleted
	}

	pruned, err := e.pruneHistory(ctx)
	if err != nil {
		e.logger.Warn("pruning history", "error", err)
		result.Errors = append(result.Errors, err.Error())
		failures++
	} else {
		result.HistoryPruned = pruned
	}

	if failures == 3 {
		return result, errAllCategoriesFailed
	}

	e.logger.Info("cleanup complete",
		"anomalies_deleted", result.AnomaliesDeleted,
		"notifications_deleted", result.NotificationsDeleted,
		"history_pruned", result.HistoryPruned,
		"duration", time.Since(now).String(),
	)
	return result, nil
}

// pruneHistory trims each plant's history to the newest N rows. The
// cap is applied per plant, not globally.
func (e *Engine) pruneHistory(ctx context.Context) (int64, error) {
	plantIDs, err := e.deps.History.DistinctPlantIDs(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, plantID := range plantIDs {
		pruned, pruneErr := e.deps.History.PruneKeepNewest(ctx, plantID, e.policy.HistoryKeepPerPlant)
		if pruneErr != nil {
			e.logger.Warn("pruning plant history", "plant_id", plantID, "error", pruneErr)
			continue
		}
		total += pruned
	}
	return total, nil
}
