package configmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseJob() map[string]interface{} {
	return map[string]interface{}{
		"job_id":          int64(101),
		"job_name":        " Daily Orders Reconciliation ",
		"email_to":        "a.owner@altimetrik.com, b.owner@ALTIMETRIK.COM",
		"email_cc":        nil,
		"alert_channel":   "TEAMS_WEBHOOK_ORDERS",
		"job_wait_minute": int64(5),
		"is_restart":      true,
		"is_active":       true,
		"dw_created_ts":   "2026-01-02T03:04:05Z",
		"dw_updated_ts":   "",
	}
}

func TestParseJobConfig(t *testing.T) {
	ist := time.FixedZone("IST", 19800)
	job, err := ParseJobConfig(baseJob(), Options{EmailDomain: "altimetrik.com", Location: ist})
	require.NoError(t, err)

	assert.Equal(t, 101, job.JobID)
	assert.Equal(t, "Daily Orders Reconciliation", job.JobName)
	assert.Equal(t, []string{"a.owner@altimetrik.com", "b.owner@ALTIMETRIK.COM"}, job.EmailTo)
	assert.Nil(t, job.EmailCC)
	assert.Equal(t, 5, job.JobWaitMinute)
	assert.Equal(t, 8, job.DWCreatedTS.Hour(), "converted into the configured zone")
	assert.Nil(t, job.DWUpdatedTS)
}

func TestParseJobConfigRejections(t *testing.T) {
	tests := map[string]struct {
		mutate func(map[string]interface{})
		want   string
	}{
		"foreign email": {func(r map[string]interface{}) { r["email_cc"] = []interface{}{"x@gmail.com"} },
			"Invalid email: 'x@gmail.com'. Must belong to 'altimetrik.com' domain."},
		"negative wait": {func(r map[string]interface{}) { r["job_wait_minute"] = -1 },
			"job_wait_minute: input should be greater than or equal to 0"},
		"negative id": {func(r map[string]interface{}) { r["job_id"] = -3 },
			"job_id: input should be greater than or equal to 0"},
		"missing recipients": {func(r map[string]interface{}) { r["email_to"] = " " },
			"email_to: input should be a valid list"},
		"bad timestamp": {func(r map[string]interface{}) { r["dw_created_ts"] = "yesterday" },
			"dw_created_ts: input should be a valid datetime"},
		"fractional id": {func(r map[string]interface{}) { r["job_id"] = 1.5 },
			"'job_id': input should be a valid integer, got a number with a fractional part"},
		"fractional wait": {func(r map[string]interface{}) { r["job_wait_minute"] = float32(2.25) },
			"'job_wait_minute': input should be a valid integer, got a number with a fractional part"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := baseJob()
			tt.mutate(rec)
			_, err := ParseJobConfig(rec, Options{EmailDomain: "altimetrik.com"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNormalize(t *testing.T) {
	out := Normalize(map[string]interface{}{
		"name":   "  x ",
		"empty":  "   ",
		"list":   []interface{}{" a ", "", 3},
		"nested": map[string]interface{}{" k ": " v ", "n": 1, "e": ""},
		"num":    7,
	})
	assert.Equal(t, "x", out["name"])
	assert.Nil(t, out["empty"])
	assert.Equal(t, []interface{}{"a", nil, 3}, out["list"])
	assert.Equal(t, map[string]interface{}{"k": "v", "n": 1, "e": nil}, out["nested"])
	assert.Equal(t, 7, out["num"])
}

func TestValidateTableUsedInQuery(t *testing.T) {
	schema := "sales"
	assert.NoError(t, ValidateTableUsedInQuery(&schema, "orders", "select * from SALES.ORDERS where id > 1"))
	assert.NoError(t, ValidateTableUsedInQuery(nil, "orders", "SELECT c.* FROM customers c JOIN orders o ON o.cid = c.id"))
	assert.Error(t, ValidateTableUsedInQuery(nil, "orders", "SELECT * FROM customers WHERE note = 'orders'"))
	assert.Error(t, ValidateTableUsedInQuery(&schema, "orders", "SELECT * FROM salesXorders"))
}
