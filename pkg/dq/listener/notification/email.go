package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"mime"
	"strconv"
	"strings"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

//go:embed templates/job_status_email.html
var templateFS embed.FS

var emailTemplate = template.Must(template.ParseFS(templateFS, "templates/job_status_email.html"))

// Message is a rendered email.
type Message struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	HTML    string
}

// Recipients returns the envelope recipients, To followed by Cc.
func (m *Message) Recipients() []string {
	return append(append([]string{}, m.To...), m.Cc...)
}

// Bytes renders the message in RFC 5322 form with an HTML body.
func (m *Message) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.To, ", "))
	if len(m.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(m.Cc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.HTML)
	return b.Bytes()
}

// Sender transports a rendered email.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

type emailTask struct {
	TaskID      int
	TaskName    string
	TaskRule    string
	TaskStatus  string
	StatusClass string
	TimeTaken   string
}

type emailView struct {
	Title            string
	JobID            int
	JobName          string
	BatchID          string
	BatchDate        string
	BatchSeq         int
	BatchType        string
	JobStatus        string
	ValidationStatus string
	IsActive         string
	IsRestart        string
	FailFast         string
	AlertChannel     string
	Created          string
	Updated          string
	TimeTaken        string
	ExceptionType    string
	ExceptionMessage string
	Tasks            []emailTask
}

func newEmailView(s *Summary) emailView {
	log := s.Log
	v := emailView{
		Title:            s.Title(),
		JobID:            log.JobID,
		JobName:          log.JobName,
		BatchID:          log.BatchID,
		BatchDate:        log.BatchDate.Format("2006-01-02"),
		BatchSeq:         log.BatchSeq,
		BatchType:        string(log.BatchType),
		JobStatus:        string(log.JobStatus),
		ValidationStatus: formatOptional(log.ValidationStatus),
		IsActive:         formatFlag(&s.Job.IsActive),
		IsRestart:        formatFlag(log.IsRestart),
		FailFast:         formatFlag(log.FailFast),
		AlertChannel:     s.Job.AlertChannel,
		Created:          formatTimestamp(&log.DWCreatedTS),
		Updated:          formatTimestamp(log.DWUpdatedTS),
		TimeTaken:        FormatDuration(log.TimeTaken()),
	}
	if log.JobExceptionMessage != nil {
		v.ExceptionType = formatOptional(log.JobExceptionType)
		v.ExceptionMessage = *log.JobExceptionMessage
	}
	for _, t := range s.Tasks {
		v.Tasks = append(v.Tasks, emailTask{
			TaskID:      t.TaskID,
			TaskName:    t.TaskName,
			TaskRule:    string(t.TaskRule),
			TaskStatus:  string(t.TaskStatus),
			StatusClass: "status-" + strings.ToLower(string(t.TaskStatus)),
			TimeTaken:   FormatDuration(t.TimeTaken()),
		})
	}
	if v.AlertChannel == "" {
		v.AlertChannel = "-"
	}
	return v
}

// RenderEmail renders the HTML report of a batch.
func RenderEmail(s *Summary) (string, error) {
	var b bytes.Buffer
	if err := emailTemplate.Execute(&b, newEmailView(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// EmailNotifier mails the batch report to the job's recipients.
type EmailNotifier struct {
	sender   Sender
	from     string
	executor *retry.Executor
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(sender Sender, from string, executor *retry.Executor) *EmailNotifier {
	return &EmailNotifier{sender: sender, from: from, executor: executor}
}

// Notify implements Notifier.
func (n *EmailNotifier) Notify(ctx context.Context, s *Summary) error {
	if len(s.Job.EmailTo) == 0 {
		logger.Warnf("Job %d has no email recipients, skipping email notification.", s.Job.JobID)
		return nil
	}
	body, err := RenderEmail(s)
	if err != nil {
		return err
	}
	msg := &Message{
		From:    n.from,
		To:      s.Job.EmailTo,
		Cc:      s.Job.EmailCC,
		Subject: s.Subject(),
		HTML:    body,
	}
	err = n.executor.Do(ctx, "send email notification", func(ctx context.Context) error {
		return n.sender.Send(ctx, msg)
	})
	if err != nil {
		return err
	}
	logger.Infof("Email notification sent for batch %s to %d recipient(s).", s.Log.BatchID, len(msg.Recipients()))
	return nil
}

func statusCount(tasks []model.TaskLogEntry) string {
	counts := map[model.TaskStatus]int{}
	for _, t := range tasks {
		counts[t.TaskStatus]++
	}
	parts := make([]string, 0, 4)
	for _, st := range []model.TaskStatus{model.TaskStatusSuccess, model.TaskStatusWarning, model.TaskStatusFailure, model.TaskStatusSkipped} {
		if counts[st] > 0 {
			parts = append(parts, string(st)+": "+strconv.Itoa(counts[st]))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
