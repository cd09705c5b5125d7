package configmodel

import (
	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
)

var (
	sourceTableKeys = []string{"src_dbtype", "src_dbname", "src_schema", "src_table", "src_query"}
	sourceAPIKeys   = []string{"src_base_url", "src_auth_key"}
	targetTableKeys = []string{"tgt_dbtype", "tgt_dbname", "tgt_schema", "tgt_table", "tgt_query"}
)

type rawTable struct {
	DBType *string `mapstructure:"dbtype"`
	DBName *string `mapstructure:"dbname"`
	Schema *string `mapstructure:"schema"`
	Table  *string `mapstructure:"table"`
	Query  *string `mapstructure:"query"`
}

// stripPrefix maps src_*/tgt_* keys onto the shared rawTable shape.
func stripPrefix(record map[string]interface{}, prefix string) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out[k[len(prefix):]] = v
		} else {
			out[k] = v
		}
	}
	return out
}

// parseTable validates a src_* or tgt_* table configuration.
func parseTable(field, prefix string, record map[string]interface{}, keys []string) (model.TableRef, error) {
	rec := Normalize(record)
	errs := newFieldErrors(field)
	errs.require(rec, keys...)
	if errs.forbidExtra(rec, keys...) {
		return model.TableRef{}, errs.err()
	}

	var raw rawTable
	if err := decodeStrict(stripPrefix(rec, prefix), &raw); err != nil {
		errs.add(err)
		return model.TableRef{}, errs.err()
	}

	ref := model.TableRef{
		DBName: errs.requiredString(prefix+"dbname", raw.DBName),
		Table:  errs.requiredString(prefix+"table", raw.Table),
		Schema: raw.Schema,
		Query:  raw.Query,
	}
	dbType, err := model.ParseDBType(errs.requiredString(prefix+"dbtype", raw.DBType), prefix+"dbtype")
	if raw.DBType != nil {
		errs.add(err)
	}
	ref.DBType = dbType

	if err == nil {
		errs.add(ValidateSchema(dbType, ref.Schema))
	}
	if ref.Query != nil && ref.Table != "" {
		errs.add(ValidateTableUsedInQuery(ref.Schema, ref.Table, *ref.Query))
	}
	return ref, errs.err()
}

// ParseSourceTable validates the src_config of a TBL task.
func ParseSourceTable(record map[string]interface{}) (*model.SourceTable, error) {
	ref, err := parseTable("src_config", "src_", record, sourceTableKeys)
	if err != nil {
		return nil, err
	}
	return &model.SourceTable{DBType: ref.DBType, DBName: ref.DBName, Schema: ref.Schema, Table: ref.Table, Query: ref.Query}, nil
}

// ParseTargetTable validates the tgt_config of a task whose rule needs a target.
func ParseTargetTable(record map[string]interface{}) (*model.TargetTable, error) {
	ref, err := parseTable("tgt_config", "tgt_", record, targetTableKeys)
	if err != nil {
		return nil, err
	}
	return &model.TargetTable{DBType: ref.DBType, DBName: ref.DBName, Schema: ref.Schema, Table: ref.Table, Query: ref.Query}, nil
}

// ParseTargetNone validates the tgt_config of a single-table task: every key present and null.
func ParseTargetNone(record map[string]interface{}) (model.TargetNone, error) {
	rec := Normalize(record)
	errs := newFieldErrors("tgt_config")
	errs.require(rec, targetTableKeys...)
	errs.forbidExtra(rec, targetTableKeys...)

	for _, k := range targetTableKeys {
		if v, ok := rec[k]; ok && v != nil {
			errs.addf("%s: input should be None", k)
		}
	}
	return model.TargetNone{}, errs.err()
}

type rawSourceAPI struct {
	BaseURL *string `mapstructure:"src_base_url"`
	AuthKey *string `mapstructure:"src_auth_key"`
}

// ParseSourceAPI validates the src_config of an API task.
func ParseSourceAPI(record map[string]interface{}) (*model.SourceAPI, error) {
	rec := Normalize(record)
	errs := newFieldErrors("src_config")
	errs.require(rec, sourceAPIKeys...)

	var raw rawSourceAPI
	if err := decodeStrict(rec, &raw); err != nil {
		errs.add(err)
		return nil, errs.err()
	}
	out := &model.SourceAPI{BaseURL: errs.requiredString("src_base_url", raw.BaseURL)}
	if raw.AuthKey == nil {
		errs.addf("src_auth_key: input should be a valid string")
	} else {
		key, err := model.ParseAuthKey(*raw.AuthKey)
		errs.add(err)
		out.AuthKey = key
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return out, nil
}
