// Package notification delivers the outcome of a finalized job batch over email, Microsoft Teams and AMQP.
//
// The runner builds a [Summary] once the job log row is final and hands it to a [Notifier].
// Delivery failures are logged and returned but never change the recorded batch status.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
)

const moduleName = "notification"

// Notifier delivers a job summary to one channel.
type Notifier interface {
	Notify(ctx context.Context, summary *Summary) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, summary *Summary) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, summary *Summary) error { return f(ctx, summary) }

var statusEmoji = map[string]string{
	string(model.TaskStatusSuccess): "✅",
	string(model.TaskStatusFailure): "❌",
	string(model.TaskStatusWarning): "⚠️",
	string(model.TaskStatusSkipped): "⏭️",
	string(model.JobStatusError):    "🛑",
	string(model.JobStatusStopped):  "⛔",
	string(model.JobStatusTimeout):  "⏱️",
	string(model.JobStatusInActive): "💤",
}

// Summary is everything a notification reports about a finalized batch.
type Summary struct {
	RunID      string
	Production bool
	Job        model.JobConfig
	Log        model.JobLogEntry
	Tasks      []model.TaskLogEntry
}

// EnvironmentLabel is LIVE in production and TEST everywhere else.
func (s *Summary) EnvironmentLabel() string {
	if s.Production {
		return "LIVE"
	}
	return "TEST"
}

// Status is the validation status of a completed batch and the job status otherwise.
func (s *Summary) Status() string {
	return s.Log.NotificationStatus()
}

// Emoji marks the status in subjects and cards.
func (s *Summary) Emoji() string {
	return statusEmoji[s.Status()]
}

// Succeeded reports whether the batch completed with every executed task successful.
func (s *Summary) Succeeded() bool {
	return s.Status() == string(model.TaskStatusSuccess)
}

// Title is "<emoji> <job_name> - <status>".
func (s *Summary) Title() string {
	return fmt.Sprintf("%s %s - %s", s.Emoji(), s.Job.JobName, s.Status())
}

// Subject is the email subject line.
func (s *Summary) Subject() string {
	return fmt.Sprintf("%s [Data Quality] %s | Batch ID: %s", s.EnvironmentLabel(), s.Title(), s.Log.BatchID)
}

// Owners joins the local parts of the job's email recipients with " / ".
func (s *Summary) Owners() string {
	owners := make([]string, 0, len(s.Job.EmailTo))
	for _, addr := range s.Job.EmailTo {
		local, _, _ := strings.Cut(addr, "@")
		owners = append(owners, local)
	}
	return strings.Join(owners, " / ")
}

// Tags classifies the batch for chat channels.
func (s *Summary) Tags() string {
	tags := []string{"#JobStart"}
	if s.Log.IsRestart != nil && *s.Log.IsRestart {
		tags[0] = "#JobRestart"
	}
	if s.Log.FailFast != nil && *s.Log.FailFast {
		tags = append(tags, "#JobFailFast")
	}
	switch s.Log.JobStatus {
	case model.JobStatusError:
		tags = append(tags, "#JobInternalError")
	case model.JobStatusTimeout:
		tags = append(tags, "#JobTimeOut")
	case model.JobStatusStopped:
		tags = append(tags, "#JobTerminated")
	}
	return strings.Join(tags, " ")
}

// FormatDuration renders a duration as H:MM:SS.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	sec := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
}

const timestampLayout = "2006-01-02 03:04:05 PM MST"

func formatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format(timestampLayout)
}

func formatOptional[T ~string](v *T) string {
	if v == nil {
		return "-"
	}
	return string(*v)
}

func formatFlag(v *bool) string {
	if v == nil {
		return "-"
	}
	if *v {
		return "Yes"
	}
	return "No"
}
