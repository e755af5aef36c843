package app

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/taikolights/internal/eventbus"
	"github.com/dokzlo13/taikolights/internal/ledger"
)

var ledgerTypes = map[eventbus.EventType]ledger.EventType{
	eventbus.EventTypeSession:     ledger.EventSessionState,
	eventbus.EventTypeDiscovery:   ledger.EventDevicesFound,
	eventbus.EventTypeBroadcast:   ledger.EventBroadcast,
	eventbus.EventTypeFlushFailed: ledger.EventBroadcastError,
}

// RecordToLedger subscribes handlers that copy bus events into l. source names the
// lighting host the events came from.
func RecordToLedger(bus *eventbus.Bus, l *ledger.Ledger, source string) {
	for busType, ledgerType := range ledgerTypes {
		ledgerType := ledgerType
		bus.Subscribe(busType, func(e eventbus.Event) {
			if err := l.Append(ledgerType, source, e.Data); err != nil {
				log.Warn().
					Str("component", "app").
					Err(err).
					Str("event_type", string(ledgerType)).
					Msg("Failed to append ledger entry")
			}
		})
	}
}

// LastSessionState returns the most recent host session entry written by an earlier
// run, or nil when there is none.
func LastSessionState(l *ledger.Ledger) (*ledger.Entry, error) {
	entries, err := l.GetByType(ledger.EventSessionState, 1)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	if entries[0].SessionID == l.SessionID() {
		return nil, nil
	}
	return entries[0], nil
}

// SummarizeRun counts this run's ledger entries by type.
func SummarizeRun(l *ledger.Ledger) (map[ledger.EventType]int, error) {
	// A negative LIMIT is unbounded in SQLite.
	entries, err := l.GetBySession(l.SessionID(), -1)
	if err != nil {
		return nil, err
	}
	counts := make(map[ledger.EventType]int)
	for _, e := range entries {
		counts[e.EventType]++
	}
	return counts, nil
}

func logPreviousRun(l *ledger.Ledger) {
	prev, err := LastSessionState(l)
	if err != nil {
		log.Warn().Str("component", "app").Err(err).Msg("Failed to read ledger history")
		return
	}
	if prev == nil {
		return
	}
	state, _ := prev.Payload["state"].(string)
	log.Info().
		Str("component", "app").
		Str("state", state).
		Str("source", prev.Source).
		Time("at", prev.Timestamp).
		Msg("Previous run's last host session state")
}

func logRunSummary(l *ledger.Ledger) {
	counts, err := SummarizeRun(l)
	if err != nil {
		log.Warn().Str("component", "app").Err(err).Msg("Failed to summarize ledger")
		return
	}
	log.Info().
		Str("component", "app").
		Str("session_id", l.SessionID()).
		Int("broadcasts", counts[ledger.EventBroadcast]).
		Int("flush_failures", counts[ledger.EventBroadcastError]).
		Int("session_changes", counts[ledger.EventSessionState]).
		Msg("Ledger run summary")
}

// PruneLedger applies the retention policy.
func PruneLedger(l *ledger.Ledger, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	n, err := l.DeleteOlderThan(time.Duration(retentionDays) * 24 * time.Hour)
	if err != nil {
		log.Warn().Str("component", "app").Err(err).Msg("Ledger retention cleanup failed")
		return
	}
	if n > 0 {
		log.Info().Str("component", "app").Int64("deleted", n).Int("retention_days", retentionDays).Msg("Pruned old ledger entries")
	}
}
