package tablestore

import "testing"

func TestValidateWhere(t *testing.T) {
	tests := []struct {
		name    string
		where   string
		wantErr bool
	}{
		{"simple comparison", "age > 30", false},
		{"string equality", "name = 'Alice'", false},
		{"conjunction", "age > 30 AND name LIKE 'A%'", false},
		{"null check", "email IS NOT NULL", false},
		{"in list", "status IN ('active', 'pending')", false},
		{"parenthesized", "(age > 30 OR age < 10) AND id > 0", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"statement injection", "1; DROP TABLE users", true},
		{"trailing semicolon", "age > 30;", true},
		{"unbalanced parens", "(age > 30", true},
		{"bare keyword", "SELECT", true},
		{"not a condition", "ORDER BY age", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWhere(tt.where)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateWhere(%q) accepted an invalid expression", tt.where)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateWhere(%q) rejected a valid expression: %v", tt.where, err)
			}
		})
	}
}
