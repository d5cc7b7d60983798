package observability

import "github.com/prometheus/client_golang/prometheus"

// Link attempt outcomes used as the "outcome" label.
const (
	OutcomeLinked           = "linked"
	OutcomeInvalidInput     = "invalid_input"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeNonceMissing     = "nonce_missing"
	OutcomeStorageFailure   = "storage_failure"
)

var (
	// NoncesIssued counts challenges handed out.
	NoncesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "walletlink_nonces_issued_total",
		Help: "Total number of nonce challenges issued.",
	})

	// LinkAttempts counts SubmitLink calls by outcome.
	LinkAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletlink_link_attempts_total",
			Help: "Total number of wallet link attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// BotUpdates counts dispatched bot updates by parsed command.
	BotUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletlink_bot_updates_total",
			Help: "Total number of bot updates dispatched by command.",
		},
		[]string{"command"},
	)

	// BotSendFailures counts outbound messages the bot transport rejected.
	BotSendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "walletlink_bot_send_failures_total",
		Help: "Total number of outbound bot messages that failed to send.",
	})

	// BotPollErrors counts failed update fetches in polling mode.
	BotPollErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "walletlink_bot_poll_errors_total",
		Help: "Total number of failed update fetches.",
	})
)

func init() {
	prometheus.MustRegister(NoncesIssued, LinkAttempts, BotUpdates, BotSendFailures, BotPollErrors)
}
