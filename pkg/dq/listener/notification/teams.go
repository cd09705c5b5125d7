package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tigerroll/surfin-dq/pkg/dq/engine/retry"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// TeamsCard is the legacy Office 365 connector card accepted by Teams incoming webhooks.
type TeamsCard struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Sections   []TeamsSection `json:"sections"`
}

// TeamsSection is one section of a TeamsCard.
type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle"`
	ActivitySubtitle string      `json:"activitySubtitle"`
	Facts            []TeamsFact `json:"facts"`
	Markdown         bool        `json:"markdown"`
}

// TeamsFact is a name/value row of a TeamsSection.
type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var themeColors = map[string]string{
	"FAILURE": "C50F1F",
	"WARNING": "BC4B09",
	"SKIPPED": "616161",
	"ERROR":   "C50F1F",
	"STOPPED": "8B0000",
	"TIMEOUT": "BC4B09",
}

// BuildTeamsCard renders the card posted for a batch.
func BuildTeamsCard(s *Summary) TeamsCard {
	color, ok := themeColors[s.Status()]
	if !ok {
		color = "616161"
	}
	facts := []TeamsFact{
		{Name: "Job Owners", Value: s.Owners()},
		{Name: "Tasks", Value: statusCount(s.Tasks)},
		{Name: "Tags", Value: s.Tags()},
	}
	if s.Log.JobExceptionMessage != nil {
		facts = append(facts, TeamsFact{Name: "Exception", Value: *s.Log.JobExceptionMessage})
	}
	return TeamsCard{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: color,
		Summary:    s.Subject(),
		Sections: []TeamsSection{{
			ActivityTitle:    fmt.Sprintf("%s [Data Quality] %s", s.EnvironmentLabel(), s.Title()),
			ActivitySubtitle: "Batch ID: " + s.Log.BatchID,
			Facts:            facts,
			Markdown:         true,
		}},
	}
}

// TeamsNotifier posts a card to the webhook named by the job's alert channel.
// Successful batches are not posted.
type TeamsNotifier struct {
	client   *http.Client
	lookup   func(string) (string, bool)
	executor *retry.Executor
}

// NewTeamsNotifier creates a TeamsNotifier. A nil lookup reads the process environment.
func NewTeamsNotifier(client *http.Client, lookup func(string) (string, bool), executor *retry.Executor) *TeamsNotifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &TeamsNotifier{client: client, lookup: lookup, executor: executor}
}

// Notify implements Notifier.
func (n *TeamsNotifier) Notify(ctx context.Context, s *Summary) error {
	if s.Succeeded() {
		return nil
	}
	channel := strings.TrimSpace(s.Job.AlertChannel)
	if channel == "" {
		logger.Warnf("Job %d has no alert channel, skipping Teams notification.", s.Job.JobID)
		return nil
	}
	webhook, ok := n.lookup(channel)
	if !ok || strings.TrimSpace(webhook) == "" {
		return exception.NewConfigurationError(moduleName,
			fmt.Sprintf("Environment value can't be empty for %s: %s, please check `.env` or `.bashrc` file.", channel, webhook), nil)
	}
	body, err := json.Marshal(BuildTeamsCard(s))
	if err != nil {
		return err
	}
	err = n.executor.Do(ctx, "send teams notification", func(ctx context.Context) error {
		return n.post(ctx, webhook, body)
	})
	if err != nil {
		return err
	}
	logger.Infof("Teams notification sent for batch %s.", s.Log.BatchID)
	return nil
}

func (n *TeamsNotifier) post(ctx context.Context, webhook string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return exception.NewConfigurationError(moduleName, "Invalid Teams webhook URL", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("Teams webhook returned %s: %s", resp.Status, string(snippet))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return exception.NewTransientError(moduleName, msg, nil)
	}
	return exception.NewDQError(moduleName, exception.KindUnhandled, msg, nil)
}
