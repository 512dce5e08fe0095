package repository

import (
	"os"
	"strings"
	"testing"
)

// loadSchemaColumns parses the initial migration into table -> column set so
// the select lists below can be checked against the DDL they run on.
func loadSchemaColumns(t *testing.T) map[string]map[string]bool {
	t.Helper()

	data, err := os.ReadFile("../../migrations/0001_init.up.sql")
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}

	tables := map[string]map[string]bool{}
	var current map[string]bool
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)

		if rest, ok := strings.CutPrefix(line, "CREATE TABLE IF NOT EXISTS "); ok {
			name := strings.TrimSpace(strings.TrimSuffix(rest, "("))
			current = map[string]bool{}
			tables[name] = current
			continue
		}
		if current == nil {
			continue
		}
		if strings.HasPrefix(line, ");") {
			current = nil
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "UNIQUE", "PRIMARY", "FOREIGN", "CHECK":
			continue
		}
		current[fields[0]] = true
	}
	return tables
}

func splitColumns(list string) []string {
	parts := strings.Split(list, ",")
	columns := make([]string, 0, len(parts))
	for _, part := range parts {
		column := strings.TrimSpace(part)
		column = strings.TrimPrefix(column, "i.")
		column = strings.TrimPrefix(column, "cf.")
		if column != "" {
			columns = append(columns, column)
		}
	}
	return columns
}

// TestSelectListsMatchSchema pins every column the repositories read or
// write to a column the initial migration actually creates, so a select
// list and the DDL cannot drift apart unnoticed.
func TestSelectListsMatchSchema(t *testing.T) {
	schema := loadSchemaColumns(t)

	queries := map[string]string{
		"users":              "id, login, name, anonymous",
		"projects":           "id, name, identifier",
		"trackers":           "id, name",
		"statuses":           "id, name, is_closed",
		"priorities":         "id, name",
		"versions":           "id, project_id, name, shared",
		"categories":         "id, project_id, name",
		"custom_fields":      "cf.id, cf.name, cf.format, cf.multiple",
		"issues":             issueColumns,
		"custom_values":      "issue_id, custom_field_id, value",
		"relations":          "id, issue_from_id, issue_to_id, relation_type",
		"watchers":           "issue_id, user_id",
		"journals":           "id, issue_id, user_id, notes, created_at",
		"journal_details":    "journal_id, property, prop_key, old_value, new_value",
		"import_in_progress": "id, user_id, file_name, encoding, delimiter, quote_char, data, created_at",
		"import_logs":        "id, batch_id, project_id, file_name, row_number, message, created_at",
	}

	for table, list := range queries {
		columns, ok := schema[table]
		if !ok {
			t.Fatalf("migration creates no table %q", table)
		}
		for _, column := range splitColumns(list) {
			if !columns[column] {
				t.Fatalf("table %q has no column %q", table, column)
			}
		}
	}

	for field, column := range uniqueFieldColumns {
		column = strings.TrimPrefix(column, "i.")
		if !schema["issues"][column] {
			t.Fatalf("unique field %q maps to missing issues column %q", field, column)
		}
	}
}
