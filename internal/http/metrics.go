package http

import "github.com/prometheus/client_golang/prometheus"

var loginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "readaloud_login_attempts_total",
		Help: "Login attempts by protocol and outcome.",
	},
	[]string{"protocol", "outcome"},
)

func init() {
	prometheus.MustRegister(loginAttempts)
}
