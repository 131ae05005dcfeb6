package batch

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
	"spacetrack/pkg/query"
)

// File is a batch of named queries, as written in YAML:
//
//	queries:
//	  - name: iss
//	    class: gp
//	    where:
//	      NORAD_CAT_ID: "25544"
//	    order_by: [EPOCH desc]
//	    limit: 1
//	    format: 3le
type File struct {
	Queries []Spec `yaml:"queries"`
}

// Spec is one query of a batch file.
type Spec struct {
	Name     string            `yaml:"name"`
	Class    string            `yaml:"class"`
	Where    map[string]string `yaml:"where"`
	Fields   []string          `yaml:"fields"`
	OrderBy  []string          `yaml:"order_by"`
	Sort     string            `yaml:"sort"`
	Limit    int               `yaml:"limit"`
	Offset   int               `yaml:"offset"`
	Format   string            `yaml:"format"`
	Metadata bool              `yaml:"metadata"`
	Distinct bool              `yaml:"distinct"`
}

// LoadFile reads and checks a batch file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a batch file. Unnamed queries are named after their class
// and position; every query must build and names must be unique.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if len(f.Queries) == 0 {
		return nil, errors.New("batch file has no queries")
	}

	seen := make(map[string]bool, len(f.Queries))
	var errs []error
	for i := range f.Queries {
		spec := &f.Queries[i]
		if spec.Name == "" {
			class := spec.Class
			if class == "" {
				class = query.EntityTLE
			}
			spec.Name = fmt.Sprintf("%s_%d", class, i+1)
		}
		if seen[spec.Name] {
			errs = append(errs, fmt.Errorf("query %d: duplicate name %q", i+1, spec.Name))
		}
		seen[spec.Name] = true

		if _, err := spec.Builder(); err != nil {
			errs = append(errs, fmt.Errorf("query %q: %w", spec.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &f, nil
}

// Builder turns s into a validated query. Predicates are added in
// sorted field order so paths are stable.
func (s Spec) Builder() (*query.Builder, error) {
	q := query.New(s.Class)

	fields := make([]string, 0, len(s.Where))
	for field := range s.Where {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		q.Where(field, s.Where[field])
	}

	if len(s.Fields) > 0 {
		q.Fields(s.Fields...)
	}
	if len(s.OrderBy) > 0 {
		q.OrderBy(s.OrderBy...)
	}
	if s.Sort != "" {
		q.Sort(s.Sort)
	}
	if s.Format != "" {
		q.Format(query.Format(s.Format))
	}
	q.Limit(s.Limit).Offset(s.Offset).Metadata(s.Metadata).Distinct(s.Distinct)

	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// Jobs builds one job per query, indexed by file position. A query that
// does not build comes back with a nil Query and its error in errs.
func (f *File) Jobs() (jobs []Job, errs map[int]error) {
	jobs = make([]Job, len(f.Queries))
	for i, spec := range f.Queries {
		q, err := spec.Builder()
		if err != nil {
			if errs == nil {
				errs = make(map[int]error)
			}
			errs[i] = err
		}
		jobs[i] = Job{Index: i, Name: spec.Name, Query: q}
	}
	return jobs, errs
}
