package roompush

import (
	"context"

	"chiptally/internal/roompush/platforms"

	"github.com/rs/zerolog/log"
)

type panelMessageCleaner interface {
	ForgetPanel(endpoint, panelKey string)
}

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case job := <-m.dispatchCh:
			metricPushQueueLen.Set(int64(len(m.dispatchCh)))
			m.deliver(ctx, job)
		}
	}
}

// deliver sends one job. Failed and circuit-blocked jobs go back through the
// retry queue until RetryMax attempts are used up.
func (m *Manager) deliver(ctx context.Context, job pushJob) {
	adapter, ok := m.adapters[job.Target.Platform]
	if !ok {
		metricPushDroppedTotal.Add(1)
		log.Warn().Str("platform", job.Target.Platform).Msg("room push platform unknown")
		return
	}
	key := job.key()
	if err := m.breakers.allow(key, m.clock.Now()); err != nil {
		metricPushCircuitOpenTotal.Add(1)
		m.retryLater(job, err)
		return
	}
	if err := adapter.Send(ctx, job.Target.Endpoint, job.Target.Secret, job.Formatted.platformMessage()); err != nil {
		metricPushFailedTotal.Add(1)
		m.breakers.failure(key, m.clock.Now())
		m.retryLater(job, err)
		return
	}
	metricPushSentTotal.Add(1)
	m.breakers.success(key)
	if cleaner, ok := adapter.(panelMessageCleaner); ok && job.PanelTerminal {
		cleaner.ForgetPanel(job.Target.Endpoint, job.Formatted.PanelKey)
	}
}

// retryLater reschedules job with exponential backoff and reports whether it
// did.
func (m *Manager) retryLater(job pushJob, cause error) bool {
	if job.Attempt >= m.cfg.RetryMax {
		metricPushRetryDroppedTotal.Add(1)
		log.Warn().Err(cause).
			Str("platform", job.Target.Platform).
			Str("room_id", job.Target.RoomID).
			Int("attempts", job.Attempt+1).
			Msg("room push dropped")
		return false
	}
	job.Attempt++
	metricPushRetryTotal.Add(1)
	m.retryQ.Enqueue(job, m.cfg.RetryBase<<(job.Attempt-1))
	return true
}

func (msg FormattedMessage) platformMessage() platforms.Message {
	out := platforms.Message{
		PanelKey:    msg.PanelKey,
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
		Timestamp:   msg.Timestamp,
		Footer:      msg.Footer,
		Fields:      make([]platforms.Field, len(msg.Fields)),
	}
	for i, f := range msg.Fields {
		out.Fields[i] = platforms.Field(f)
	}
	return out
}
