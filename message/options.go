package message

import (
	"sort"
	"strings"
)

// OptionID is an absolute CoAP option number. Numbers above the IANA
// registry are representable because the wire format admits deltas up to
// MaxOptionNumber.
type OptionID uint32

// Option numbers from RFC 7252 §12.2.
const (
	IfMatch       OptionID = 1
	URIHost       OptionID = 3
	ETag          OptionID = 4
	IfNoneMatch   OptionID = 5
	URIPort       OptionID = 7
	LocationPath  OptionID = 8
	URIPath       OptionID = 11
	ContentFormat OptionID = 12
	MaxAge        OptionID = 14
	URIQuery      OptionID = 15
	Accept        OptionID = 17
	LocationQuery OptionID = 20
	ProxyURI      OptionID = 35
	ProxyScheme   OptionID = 39
	Size1         OptionID = 60
)

// Option is a single (number, value) record. The value slice is borrowed
// from the parse buffer for parsed messages and retained as given for
// built messages.
type Option struct {
	ID    OptionID
	Value []byte
}

// Options is an ordered sequence of options. Insertion order is preserved;
// ascending wire order is produced only when serializing. Repeated options
// with the same number are legal and keep their relative order on the wire
// (the sort is stable).
type Options []Option

// Add appends an option after validating its number and value length.
func (o *Options) Add(id OptionID, value []byte) error {
	if id > MaxOptionNumber {
		return ErrBadOptionNumber
	}
	if len(value) > MaxOptionValueLength {
		return ErrOptionValueTooLong
	}
	*o = append(*o, Option{ID: id, Value: value})
	return nil
}

// Get returns the value of the first option with the given number.
// ok is false when the option is absent.
func (o Options) Get(id OptionID) (value []byte, ok bool) {
	for _, opt := range o {
		if opt.ID == id {
			return opt.Value, true
		}
	}
	return nil, false
}

// GetAll returns the values of every option with the given number, in
// insertion order.
func (o Options) GetAll(id OptionID) [][]byte {
	var values [][]byte
	for _, opt := range o {
		if opt.ID == id {
			values = append(values, opt.Value)
		}
	}
	return values
}

// Path joins the Uri-Path options into a "/"-separated path.
func (o Options) Path() string {
	var sb strings.Builder
	for _, opt := range o {
		if opt.ID != URIPath {
			continue
		}
		sb.WriteByte('/')
		sb.Write(opt.Value)
	}
	if sb.Len() == 0 {
		return "/"
	}
	return sb.String()
}

// SetPath appends one Uri-Path option per non-empty path segment.
func (o *Options) SetPath(path string) error {
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		if err := o.Add(URIPath, []byte(segment)); err != nil {
			return err
		}
	}
	return nil
}

// SetQuery appends one Uri-Query option per non-empty "&"-separated
// argument of query. A leading "?" is tolerated.
func (o *Options) SetQuery(query string) error {
	query = strings.TrimPrefix(query, "?")
	for _, argument := range strings.Split(query, "&") {
		if argument == "" {
			continue
		}
		if err := o.Add(URIQuery, []byte(argument)); err != nil {
			return err
		}
	}
	return nil
}

// Query joins the Uri-Query options into an "&"-separated string, empty
// when there are none.
func (o Options) Query() string {
	var sb strings.Builder
	for _, opt := range o {
		if opt.ID != URIQuery {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.Write(opt.Value)
	}
	return sb.String()
}

// sortedForWire returns a copy ordered ascending by option number, ties
// keeping insertion order as RFC 7252 requires for repeated options.
func (o Options) sortedForWire() Options {
	if len(o) <= 1 {
		return o
	}
	sorted := make(Options, len(o))
	copy(sorted, o)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
