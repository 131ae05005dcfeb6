package query

// Format is a response format the catalog can produce.
type Format string

const (
	FormatJSON   Format = "json"
	FormatXML    Format = "xml"
	FormatHTML   Format = "html"
	FormatCSV    Format = "csv"
	FormatTLE    Format = "tle"
	Format3LE    Format = "3le"
	FormatKVN    Format = "kvn"
	FormatStream Format = "stream"
)

// Kind says how a response body should be decoded.
type Kind int

const (
	KindBinary Kind = iota
	KindJSON
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindText:
		return "text"
	default:
		return "binary"
	}
}

// DecodeKind maps a format to its decoding. Unknown formats are binary.
func DecodeKind(f Format) Kind {
	switch f {
	case FormatJSON:
		return KindJSON
	case FormatXML, FormatHTML, FormatCSV, FormatTLE, Format3LE, FormatKVN:
		return KindText
	default:
		return KindBinary
	}
}

// Known reports whether f is one of the catalog's formats.
func (f Format) Known() bool {
	switch f {
	case FormatJSON, FormatXML, FormatHTML, FormatCSV, FormatTLE, Format3LE, FormatKVN, FormatStream:
		return true
	}
	return false
}

// Extension is the file extension used when a result is saved.
func (f Format) Extension() string {
	switch f {
	case FormatStream, "":
		return "bin"
	case Format3LE:
		return "3le"
	default:
		return string(f)
	}
}

// ContentType is what the proxy answers with for f.
func (f Format) ContentType() string {
	switch DecodeKind(f) {
	case KindJSON:
		return "application/json"
	case KindText:
		switch f {
		case FormatXML:
			return "application/xml"
		case FormatHTML:
			return "text/html; charset=utf-8"
		case FormatCSV:
			return "text/csv; charset=utf-8"
		}
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
