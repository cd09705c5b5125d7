package configmodel

import (
	"fmt"
	"regexp"
	"strings"

	model "github.com/tigerroll/surfin-dq/pkg/dq/core/domain/model"
)

// ValidateEmails checks every recipient belongs to domain.
// value may be a list of addresses or a comma separated string. A nil value is passed through.
func ValidateEmails(field string, value interface{}, domain string) ([]string, error) {
	var raw []string
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: expected a string or a list of strings", field)
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("%s: expected a string or a list of strings", field)
	}
	if len(raw) == 0 {
		return raw, nil
	}

	pattern := regexp.MustCompile(`(?i)@(` + regexp.QuoteMeta(domain) + `)$`)
	out := make([]string, 0, len(raw))
	for _, email := range raw {
		cleaned := strings.TrimSpace(email)
		if !pattern.MatchString(cleaned) {
			return nil, fmt.Errorf("%s: Invalid email: '%s'. Must belong to '%s' domain.", field, cleaned, domain)
		}
		out = append(out, cleaned)
	}
	return out, nil
}

// ValidateSchema enforces that schema-qualified database types get a schema and others do not.
func ValidateSchema(dbType model.DBType, schema *string) error {
	if dbType.RequiresSchema() && schema == nil {
		return fmt.Errorf("Schema is required for database type '%s'. "+
			"Please provide 'schema' when using this database type.", dbType)
	}
	if !dbType.RequiresSchema() && schema != nil {
		return fmt.Errorf("Schema is not required for database type '%s'. "+
			"Please don't provide 'schema' when using this database type.", dbType)
	}
	return nil
}

// ValidateTableUsedInQuery checks the table appears right after FROM or JOIN in query.
func ValidateTableUsedInQuery(schema *string, table string, query string) error {
	identifier := table
	if schema != nil && *schema != "" {
		identifier = *schema + "." + table
	}
	quoted := regexp.QuoteMeta(identifier)
	pattern := regexp.MustCompile(`(?i)\bFROM\s+` + quoted + `\b|\bJOIN\s+` + quoted + `\b`)
	if !pattern.MatchString(query) {
		return fmt.Errorf("The table '%s' is not used correctly in the SQL query '%s', please check.", identifier, query)
	}
	return nil
}
