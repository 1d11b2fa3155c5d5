package convo

import (
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// timerChan returns the timer's channel, or nil if the timer is nil.
// A nil channel blocks forever in select, which is the desired behavior
// when the digest is not enabled.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
