package newsletter

// ShouldTrigger decides whether a status transition warrants an automated
// newsletter. Pure: the caller supplies a settings snapshot already loaded,
// so the decision is testable without I/O and cannot race a concurrent
// settings update.
//
// Matching against TriggerStatuses is a case-sensitive exact comparison of
// status display labels.
func ShouldTrigger(oldStatus, newStatus string, settings AutomationSettings) bool {
	if oldStatus == newStatus {
		return false
	}
	if !settings.Enabled {
		return false
	}
	for _, s := range settings.TriggerStatuses {
		if s == newStatus {
			return true
		}
	}
	return false
}
