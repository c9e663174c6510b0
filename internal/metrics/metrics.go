package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Общее количество доставленных напоминаний
	RemindersSentGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminders_sent_total",
			Help: "Total number of reminders delivered by the notification bot",
		},
	)

	RemindersFailedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_failed_total",
			Help: "Number of reminders that could not be delivered or acknowledged",
		},
		[]string{"stage"},
	)
)

func Init() {
	prometheus.MustRegister(RemindersSentGauge)
	prometheus.MustRegister(RemindersFailedCounter)
}

func SendReminders(count int) {
	RemindersSentGauge.Add(float64(count))
}

func FailReminder(stage string) {
	RemindersFailedCounter.WithLabelValues(stage).Inc()
}
