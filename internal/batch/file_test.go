package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFile = `
queries:
  - name: iss
    class: gp
    where:
      NORAD_CAT_ID: "25544"
      EPOCH: ">now-30"
    order_by: [EPOCH desc]
    limit: 1
    format: 3le
  - class: satcat
    fields: [NORAD_CAT_ID, OBJECT_NAME]
    limit: 10
    offset: 20
  - where:
      OBJECT_NAME: "~~STARLINK"
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleFile))
	require.NoError(t, err)
	require.Len(t, f.Queries, 3)

	assert.Equal(t, "iss", f.Queries[0].Name)
	assert.Equal(t, "satcat_2", f.Queries[1].Name)
	assert.Equal(t, "tle_3", f.Queries[2].Name)
}

func TestSpecBuilder(t *testing.T) {
	f, err := Parse([]byte(sampleFile))
	require.NoError(t, err)

	tests := []struct {
		name string
		want string
	}{
		{
			"iss",
			"basicspacedata/query/class/gp/EPOCH/>now-30/NORAD_CAT_ID/25544/format/3le/metadata/false/orderby/EPOCH desc/limit/1/",
		},
		{
			"satcat_2",
			"basicspacedata/query/class/satcat/predicates/NORAD_CAT_ID,OBJECT_NAME/format/json/metadata/false/limit/10,20/",
		},
		{
			"tle_3",
			"basicspacedata/query/class/tle/OBJECT_NAME/~~STARLINK/format/json/metadata/false/",
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := f.Queries[i].Builder()
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Path())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty", "queries: []", "no queries"},
		{"malformed", "queries: [", "failed to parse"},
		{"duplicate", "queries:\n  - name: a\n  - name: a\n", `duplicate name "a"`},
		{"unknown class", "queries:\n  - class: starlink\n", "not supported"},
		{"bad format", "queries:\n  - format: pdf\n", "unknown format"},
		{"bad sort", "queries:\n  - sort: sideways\n", "sort must be"},
		{"negative limit", "queries:\n  - limit: -1\n", "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte("queries:\n  - class: nope\n  - format: pdf\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Contains(t, err.Error(), "pdf")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0644))

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Queries, 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestJobs(t *testing.T) {
	f := &File{Queries: []Spec{
		{Name: "iss", Class: "gp", Where: map[string]string{"NORAD_CAT_ID": "25544"}},
		{Name: "bad", Class: "nope"},
	}}

	jobs, errs := f.Jobs()
	require.Len(t, jobs, 2)

	assert.Equal(t, 0, jobs[0].Index)
	assert.Equal(t, "iss", jobs[0].Name)
	require.NotNil(t, jobs[0].Query)
	assert.Equal(t, "gp", jobs[0].Query.Entity())

	assert.Equal(t, 1, jobs[1].Index)
	assert.Nil(t, jobs[1].Query)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[1].Error(), "nope")
}
