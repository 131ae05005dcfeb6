package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	errs "spacetrack/pkg/errors"
)

// Supported query classes.
const (
	EntityTLE          = "tle"
	EntityTLELatest    = "tle_latest"
	EntityTLEPublish   = "tle_publish"
	EntityOMM          = "omm"
	EntityBoxScore     = "boxscore"
	EntitySatCat       = "satcat"
	EntityLaunchSite   = "launch_site"
	EntitySatCatChange = "satcat_change"
	EntitySatCatDebut  = "satcat_debut"
	EntityDecay        = "decay"
	EntityTIP          = "tip"
	EntityGP           = "gp"
	EntityGPHistory    = "gp_history"
	EntityCDMPublic    = "cdm_public"
)

var supportedEntities = map[string]bool{
	EntityTLE: true, EntityTLELatest: true, EntityTLEPublish: true,
	EntityOMM: true, EntityBoxScore: true, EntitySatCat: true,
	EntityLaunchSite: true, EntitySatCatChange: true, EntitySatCatDebut: true,
	EntityDecay: true, EntityTIP: true, EntityGP: true,
	EntityGPHistory: true, EntityCDMPublic: true,
}

// Entities lists the supported classes in sorted order.
func Entities() []string {
	out := make([]string, 0, len(supportedEntities))
	for e := range supportedEntities {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// IsSupported reports whether entity is a class the catalog serves.
func IsSupported(entity string) bool {
	return supportedEntities[entity]
}

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

type predicate struct {
	field  string
	values []string
}

// Builder assembles a basicspacedata query path. The zero value is not
// usable; start from New.
type Builder struct {
	entity     string
	predicates []predicate
	fields     []string
	orderBy    []string
	sort       string
	limit      int
	offset     int
	format     Format
	metadata   bool
	distinct   bool
}

// New starts a query against entity with json output, ascending sort and
// no metadata. An empty entity means tle.
func New(entity string) *Builder {
	if entity == "" {
		entity = EntityTLE
	}
	return &Builder{
		entity: entity,
		sort:   SortAsc,
		format: FormatJSON,
	}
}

// Entity returns the query class.
func (b *Builder) Entity() string { return b.entity }

// SetEntity changes the query class.
func (b *Builder) SetEntity(entity string) *Builder {
	b.entity = entity
	return b
}

// Where adds a predicate. Values for one field are joined with commas,
// and repeated calls for the same field append to it. Predicates render
// in the order their fields were first added.
func (b *Builder) Where(field string, values ...interface{}) *Builder {
	strs := make([]string, 0, len(values))
	for _, v := range values {
		strs = append(strs, fmt.Sprint(v))
	}

	for i := range b.predicates {
		if b.predicates[i].field == field {
			b.predicates[i].values = append(b.predicates[i].values, strs...)
			return b
		}
	}
	b.predicates = append(b.predicates, predicate{field: field, values: strs})
	return b
}

// Fields restricts the returned columns.
func (b *Builder) Fields(names ...string) *Builder {
	b.fields = append(b.fields, names...)
	return b
}

// OrderBy sets the ordering columns. A column may carry its own direction
// ("EPOCH desc"); bare columns use the builder's sort.
func (b *Builder) OrderBy(fields ...string) *Builder {
	b.orderBy = append(b.orderBy, fields...)
	return b
}

// Sort sets the default direction for OrderBy columns.
func (b *Builder) Sort(direction string) *Builder {
	b.sort = strings.ToLower(direction)
	return b
}

// Limit caps the number of rows. Zero means no limit.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset skips rows; it only applies together with Limit.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// Format sets the response format.
func (b *Builder) Format(f Format) *Builder {
	b.format = f
	return b
}

// GetFormat returns the response format.
func (b *Builder) GetFormat() Format { return b.format }

// Metadata asks for the metadata envelope in the response.
func (b *Builder) Metadata(on bool) *Builder {
	b.metadata = on
	return b
}

// Distinct removes duplicate rows.
func (b *Builder) Distinct(on bool) *Builder {
	b.distinct = on
	return b
}

// Validate checks the query can be sent.
func (b *Builder) Validate() error {
	if !IsSupported(b.entity) {
		return errs.EntityNotSupported(b.entity)
	}
	if !b.format.Known() {
		return errs.New(errs.ErrorTypeInvalidQuery, 0, fmt.Sprintf("unknown format %q", b.format))
	}
	if b.sort != SortAsc && b.sort != SortDesc {
		return errs.New(errs.ErrorTypeInvalidQuery, 0, fmt.Sprintf("sort must be asc or desc, got %q", b.sort))
	}
	if b.limit < 0 || b.offset < 0 {
		return errs.New(errs.ErrorTypeInvalidQuery, 0, "limit and offset must not be negative")
	}
	for _, p := range b.predicates {
		if p.field == "" || len(p.values) == 0 {
			return errs.New(errs.ErrorTypeInvalidQuery, 0, fmt.Sprintf("predicate %q has no value", p.field))
		}
	}
	return nil
}

// Path renders the query relative to the service root, for example
//
//	basicspacedata/query/class/gp/NORAD_CAT_ID/25544,25541/format/json/metadata/false/orderby/EPOCH desc/limit/5/
func (b *Builder) Path() string {
	var sb strings.Builder
	sb.WriteString("basicspacedata/query/class/")
	sb.WriteString(b.entity)
	sb.WriteByte('/')

	for _, p := range b.predicates {
		sb.WriteString(p.field)
		sb.WriteByte('/')
		sb.WriteString(strings.Join(p.values, ","))
		sb.WriteByte('/')
	}
	if len(b.fields) > 0 {
		sb.WriteString("predicates/")
		sb.WriteString(strings.Join(b.fields, ","))
		sb.WriteByte('/')
	}

	fmt.Fprintf(&sb, "format/%s/metadata/%t/", b.format, b.metadata)

	if b.distinct {
		sb.WriteString("distinct/true/")
	}
	if len(b.orderBy) > 0 {
		cols := make([]string, len(b.orderBy))
		for i, col := range b.orderBy {
			if strings.Contains(strings.TrimSpace(col), " ") {
				cols[i] = col
			} else {
				cols[i] = col + " " + b.sort
			}
		}
		sb.WriteString("orderby/")
		sb.WriteString(strings.Join(cols, ","))
		sb.WriteByte('/')
	}
	if b.limit > 0 {
		sb.WriteString("limit/")
		sb.WriteString(strconv.Itoa(b.limit))
		if b.offset > 0 {
			sb.WriteByte(',')
			sb.WriteString(strconv.Itoa(b.offset))
		}
		sb.WriteByte('/')
	}

	return sb.String()
}

func (b *Builder) String() string {
	return b.Path()
}

// Clone returns an independent copy.
func (b *Builder) Clone() *Builder {
	c := *b
	c.predicates = make([]predicate, len(b.predicates))
	for i, p := range b.predicates {
		c.predicates[i] = predicate{field: p.field, values: append([]string(nil), p.values...)}
	}
	c.fields = append([]string(nil), b.fields...)
	c.orderBy = append([]string(nil), b.orderBy...)
	return &c
}

// Reserved parameter names understood by FromValues. Every other key
// becomes a predicate.
var reserved = map[string]bool{
	"class": true, "entity": true, "orderby": true, "order_by": true,
	"sort": true, "limit": true, "offset": true, "format": true, "fmt": true,
	"metadata": true, "fields": true, "predicates": true, "distinct": true,
}

// FromValues builds a query from URL parameters, the way the proxy
// receives them. Predicate keys are applied in sorted order so the same
// parameters always produce the same path.
func FromValues(v url.Values) (*Builder, error) {
	entity := v.Get("class")
	if entity == "" {
		entity = v.Get("entity")
	}
	b := New(entity)

	for _, key := range []string{"orderby", "order_by"} {
		for _, col := range v[key] {
			b.OrderBy(splitList(col)...)
		}
	}
	if s := v.Get("sort"); s != "" {
		b.Sort(s)
	}
	for _, key := range []string{"fields", "predicates"} {
		for _, f := range v[key] {
			b.Fields(splitList(f)...)
		}
	}
	if f := v.Get("format"); f != "" {
		b.Format(Format(strings.ToLower(f)))
	} else if f := v.Get("fmt"); f != "" {
		b.Format(Format(strings.ToLower(f)))
	}
	b.Metadata(parseBool(v.Get("metadata")))
	b.Distinct(parseBool(v.Get("distinct")))

	for key, dst := range map[string]func(int) *Builder{"limit": b.Limit, "offset": b.Offset} {
		raw := v.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrorTypeInvalidQuery, 0, fmt.Sprintf("invalid %s %q", key, raw))
		}
		dst(n)
	}

	keys := make([]string, 0, len(v))
	for key := range v {
		if !reserved[strings.ToLower(key)] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, raw := range v[key] {
			for _, val := range splitList(raw) {
				b.Where(key, val)
			}
		}
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(s string) bool {
	ok, _ := strconv.ParseBool(s)
	return ok
}
