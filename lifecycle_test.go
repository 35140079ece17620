package pgutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCreateStatement(t *testing.T) {
	tests := []struct {
		name    string
		stmt    string
		wantErr string
	}{
		{
			name: "create table",
			stmt: "create table analytics.events (id bigint, score double precision)",
		},
		{
			name: "create table as",
			stmt: "create table tmp as select * from analytics.events",
		},
		{
			name: "multiple statements with a create",
			stmt: "create table t (id int); create index t_id on t (id)",
		},
		{
			name:    "empty",
			stmt:    "   ",
			wantErr: "empty create statement",
		},
		{
			name:    "syntax error",
			stmt:    "create table (",
			wantErr: "parsing create statement",
		},
		{
			name:    "no create table",
			stmt:    "select 1",
			wantErr: "contains no CREATE TABLE",
		},
		{
			name:    "drop only",
			stmt:    "drop table analytics.events",
			wantErr: "contains no CREATE TABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkCreateStatement(tt.stmt)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
