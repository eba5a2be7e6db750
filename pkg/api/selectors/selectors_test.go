package selectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		reqs []Requirement
		want string
	}{
		{
			name: "empty",
			reqs: nil,
			want: "",
		},
		{
			name: "equality",
			reqs: []Requirement{Eq("app", "nginx")},
			want: "app=nginx",
		},
		{
			name: "inequality",
			reqs: []Requirement{Neq("env", "dev")},
			want: "env!=dev",
		},
		{
			name: "set membership",
			reqs: []Requirement{In("app", "nginx", "httpd")},
			want: "app in (nginx,httpd)",
		},
		{
			name: "negated set membership",
			reqs: []Requirement{NotIn("env", "dev", "qa")},
			want: "env notin (dev,qa)",
		},
		{
			name: "existence",
			reqs: []Requirement{Exists("app")},
			want: "app",
		},
		{
			name: "negated existence",
			reqs: []Requirement{DoesNotExist("app")},
			want: "!app",
		},
		{
			name: "conjunction keeps caller order",
			reqs: []Requirement{Exists("app"), Neq("app", "nginx"), In("env", "dev", "qa")},
			want: "app,app!=nginx,env in (dev,qa)",
		},
		{
			name: "duplicate keys forwarded verbatim",
			reqs: []Requirement{Eq("app", "a"), Eq("app", "b")},
			want: "app=a,app=b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.reqs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeRejects(t *testing.T) {
	tests := []struct {
		name string
		reqs []Requirement
	}{
		{"in with no values", []Requirement{In("app")}},
		{"notin with no values", []Requirement{NotIn("app")}},
		{"empty key", []Requirement{Eq("", "v")}},
		{"invalid value", []Requirement{Eq("app", "no spaces allowed")}},
		{"invalid value in set", []Requirement{In("app", "ok", "né")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.reqs)
			require.Error(t, err)
		})
	}
}

func TestEncodeFields(t *testing.T) {
	got, err := EncodeFields([]FieldRequirement{
		FieldEq("status.phase", "Running"),
		FieldNeq("metadata.namespace", "kube-system"),
	})
	require.NoError(t, err)
	assert.Equal(t, "status.phase=Running,metadata.namespace!=kube-system", got)

	got, err = EncodeFields(nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = EncodeFields([]FieldRequirement{{Path: "", Operator: OpEquals}})
	require.Error(t, err)
}
