// Package archive exports the task log of a finalized batch to parquet files in object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/surfin-dq/pkg/dq/adapter/storage"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/domain/repository"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

const moduleName = "archive"

// TaskLogRecord is the parquet row of a task log entry.
type TaskLogRecord struct {
	BatchID      string `parquet:"name=batch_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	JobID        int32  `parquet:"name=job_id,type=INT32"`
	JobName      string `parquet:"name=job_name,type=BYTE_ARRAY,convertedtype=UTF8"`
	TaskID       int32  `parquet:"name=task_id,type=INT32"`
	TaskName     string `parquet:"name=task_name,type=BYTE_ARRAY,convertedtype=UTF8"`
	TaskRule     string `parquet:"name=task_rule,type=BYTE_ARRAY,convertedtype=UTF8"`
	TaskStatus   string `parquet:"name=task_status,type=BYTE_ARRAY,convertedtype=UTF8"`
	TaskResults  string `parquet:"name=task_results,type=BYTE_ARRAY,convertedtype=UTF8"`
	ConfigPassed string `parquet:"name=config_passed,type=BYTE_ARRAY,convertedtype=UTF8"`
	StartTime    int64  `parquet:"name=start_time,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	EndTime      int64  `parquet:"name=end_time,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
}

// Archiver writes one parquet file per batch.
type Archiver struct {
	audit       repository.AuditLog
	conn        storage.Connection
	bucket      string
	prefix      string
	compression parquet.CompressionCodec
}

// NewArchiver creates an Archiver.
//
// Parameters:
//
//	audit: Source of the job and task log rows.
//	conn: Destination storage.
//	bucket: Destination bucket. Empty uses the connection default.
//	prefix: Object name prefix, e.g. "task_log".
//	compression: SNAPPY, GZIP, or NONE/UNCOMPRESSED.
//
// Returns:
//
//	The archiver or a configuration error for an unknown compression.
func NewArchiver(audit repository.AuditLog, conn storage.Connection, bucket, prefix, compression string) (*Archiver, error) {
	codec, err := compressionCodec(compression)
	if err != nil {
		return nil, err
	}
	return &Archiver{
		audit:       audit,
		conn:        conn,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		compression: codec,
	}, nil
}

// ObjectName returns <prefix>/job_id=<id>/dt=<YYYY-MM-DD>/<batch_id>.parquet.
func (a *Archiver) ObjectName(entry *model.JobLogEntry) string {
	return path.Join(
		a.prefix,
		fmt.Sprintf("job_id=%d", entry.JobID),
		"dt="+entry.BatchDate.Format("2006-01-02"),
		entry.BatchID+".parquet",
	)
}

// ArchiveBatch exports the task log of batchID and returns the object name written.
// A batch without task rows writes nothing and returns an empty name.
func (a *Archiver) ArchiveBatch(ctx context.Context, batchID string) (string, error) {
	entry, err := a.audit.FindJobLog(ctx, batchID)
	if err != nil {
		return "", err
	}
	tasks, err := a.audit.FindTaskLogs(ctx, batchID)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		logger.Infof("Archive: batch '%s' has no task log rows, skipping.", batchID)
		return "", nil
	}

	records := make([]TaskLogRecord, 0, len(tasks))
	for _, t := range tasks {
		rec, err := toRecord(entry, t)
		if err != nil {
			return "", err
		}
		records = append(records, rec)
	}

	buf, err := a.encode(records)
	if err != nil {
		return "", err
	}
	objectName := a.ObjectName(entry)
	size := buf.Len()
	if err := a.conn.Upload(ctx, a.bucket, objectName, buf, "application/octet-stream"); err != nil {
		return "", exception.NewDQError(moduleName, exception.KindUnhandled,
			fmt.Sprintf("Failed to upload archive of batch '%s' to '%s'", batchID, objectName), err)
	}
	logger.Infof("Archive: wrote %d task rows (%d bytes) of batch '%s' to %s.", len(records), size, batchID, objectName)
	return objectName, nil
}

func (a *Archiver) encode(records []TaskLogRecord) (buf *bytes.Buffer, err error) {
	buf = new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(TaskLogRecord), int64(len(records)))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = a.compression
	for _, rec := range records {
		if err := pw.Write(rec); err != nil {
			return nil, fmt.Errorf("failed to write parquet row of '%s': %w", rec.BatchID, err)
		}
	}
	// WriteStop can panic on malformed schemas.
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return buf, nil
}

func toRecord(job *model.JobLogEntry, t model.TaskLogEntry) (TaskLogRecord, error) {
	results, err := json.Marshal(t.TaskResults)
	if err != nil {
		return TaskLogRecord{}, fmt.Errorf("failed to encode task results of '%s': %w", t.BatchID, err)
	}
	configPassed, err := json.Marshal(t.ConfigPassed)
	if err != nil {
		return TaskLogRecord{}, fmt.Errorf("failed to encode config of '%s': %w", t.BatchID, err)
	}
	return TaskLogRecord{
		BatchID:      t.BatchID,
		JobID:        int32(job.JobID),
		JobName:      job.JobName,
		TaskID:       int32(t.TaskID),
		TaskName:     t.TaskName,
		TaskRule:     string(t.TaskRule),
		TaskStatus:   string(t.TaskStatus),
		TaskResults:  string(results),
		ConfigPassed: string(configPassed),
		StartTime:    t.StartTime.UnixMilli(),
		EndTime:      t.EndTime.UnixMilli(),
	}, nil
}

func compressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(name) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "", "NONE", "UNCOMPRESSED":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, exception.NewConfigurationError(moduleName, fmt.Sprintf("Unsupported compression type: %s", name), nil)
	}
}
