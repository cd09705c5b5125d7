package configmodel

import (
	"time"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
)

// Options tune record validation.
type Options struct {
	// EmailDomain is the organizational domain every recipient must belong to.
	EmailDomain string
	// Location is the timezone timestamps are converted into.
	Location *time.Location
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

var jobConfigKeys = []string{
	"job_id", "job_name", "email_to", "email_cc", "alert_channel", "job_wait_minute",
	"is_restart", "is_active", "dw_created_ts", "dw_updated_ts",
}

type rawJobConfig struct {
	JobID         *int        `mapstructure:"job_id"`
	JobName       *string     `mapstructure:"job_name"`
	EmailTo       interface{} `mapstructure:"email_to"`
	EmailCC       interface{} `mapstructure:"email_cc"`
	AlertChannel  *string     `mapstructure:"alert_channel"`
	JobWaitMinute *int        `mapstructure:"job_wait_minute"`
	IsRestart     *bool       `mapstructure:"is_restart"`
	IsActive      *bool       `mapstructure:"is_active"`
	DWCreatedTS   interface{} `mapstructure:"dw_created_ts"`
	DWUpdatedTS   interface{} `mapstructure:"dw_updated_ts"`
}

// ParseJobConfig validates a job configuration record.
func ParseJobConfig(record map[string]interface{}, opts Options) (*model.JobConfig, error) {
	rec := Normalize(record)
	errs := newFieldErrors("")
	errs.require(rec, jobConfigKeys...)

	var raw rawJobConfig
	if err := decodeStrict(rec, &raw); err != nil {
		errs.add(err)
		return nil, errs.err()
	}

	cfg := &model.JobConfig{
		JobName:      errs.requiredString("job_name", raw.JobName),
		AlertChannel: errs.requiredString("alert_channel", raw.AlertChannel),
	}
	switch {
	case raw.JobID == nil:
		errs.addf("job_id: input should be a valid integer")
	case *raw.JobID < 0:
		errs.addf("job_id: input should be greater than or equal to 0")
	default:
		cfg.JobID = *raw.JobID
	}
	switch {
	case raw.JobWaitMinute == nil:
		errs.addf("job_wait_minute: input should be a valid integer")
	case *raw.JobWaitMinute < 0:
		errs.addf("job_wait_minute: input should be greater than or equal to 0")
	default:
		cfg.JobWaitMinute = *raw.JobWaitMinute
	}
	cfg.IsRestart = requiredBool(errs, "is_restart", raw.IsRestart)
	cfg.IsActive = requiredBool(errs, "is_active", raw.IsActive)

	emailTo, err := ValidateEmails("email_to", raw.EmailTo, opts.EmailDomain)
	errs.add(err)
	if err == nil && emailTo == nil {
		errs.addf("email_to: input should be a valid list")
	}
	cfg.EmailTo = emailTo

	emailCC, err := ValidateEmails("email_cc", raw.EmailCC, opts.EmailDomain)
	errs.add(err)
	cfg.EmailCC = emailCC

	created, err := toTime("dw_created_ts", raw.DWCreatedTS, opts.location())
	errs.add(err)
	if err == nil && created == nil {
		errs.addf("dw_created_ts: input should be a valid datetime")
	} else if created != nil {
		cfg.DWCreatedTS = *created
	}
	updated, err := toTime("dw_updated_ts", raw.DWUpdatedTS, opts.location())
	errs.add(err)
	cfg.DWUpdatedTS = updated

	if err := errs.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func requiredBool(errs *fieldErrors, field string, value *bool) bool {
	if value == nil {
		errs.addf("%s: input should be a valid boolean", field)
		return false
	}
	return *value
}
