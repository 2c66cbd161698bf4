package lineage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leaplineage/pkg/parser"
)

// TableRef is a table mention as found in SQL text or warehouse metadata.
// Schema may itself be qualified with a database ("db.schema").
type TableRef struct {
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	Name   string `json:"name" yaml:"name"`
}

// String joins the non-empty parts with dots.
func (t TableRef) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ParseTableRef splits a dotted name; everything before the last dot is the
// schema.
func ParseTableRef(name string) TableRef {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return TableRef{Schema: name[:i], Name: name[i+1:]}
	}
	return TableRef{Name: name}
}

// tableRefFromName converts a parsed table name, folding catalog and schema
// into Schema.
func tableRefFromName(t *parser.TableName) *TableRef {
	if t == nil || t.Name == "" {
		return nil
	}
	schema := t.Schema
	if t.Catalog != "" {
		schema = t.Catalog + "." + schema
	}
	return &TableRef{Schema: schema, Name: t.Name}
}

// bigQueryTable is the table reference shape used in BigQuery job metadata.
type bigQueryTable struct {
	ProjectID string `json:"projectId"`
	DatasetID string `json:"datasetId"`
	TableID   string `json:"tableId"`
}

func (b bigQueryTable) ref() TableRef {
	schema := b.DatasetID
	if b.ProjectID != "" {
		schema = b.ProjectID + "." + schema
	}
	return TableRef{Schema: schema, Name: b.TableID}
}

// UnmarshalJSON accepts the {"schema","name"} form and the
// {"projectId","datasetId","tableId"} form found in BigQuery job metadata.
func (t *TableRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		Schema string `json:"schema"`
		Name   string `json:"name"`
		bigQueryTable
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding table reference: %w", err)
	}
	if raw.TableID != "" {
		*t = raw.bigQueryTable.ref()
		return nil
	}
	*t = TableRef{Schema: raw.Schema, Name: raw.Name}
	return nil
}

// QueryContext is the metadata observed alongside one statement. It is
// built once with NewQueryContext and never changes afterwards. A nil
// *QueryContext behaves like an empty one.
type QueryContext struct {
	queriedDatabase  string
	queriedSchema    string
	queryTime        time.Time
	queryType        string
	destinationTable *TableRef
	referencedTables []TableRef
	duration         time.Duration
	user             string
	role             string
}

// ContextOption sets one QueryContext field.
type ContextOption func(*QueryContext)

// NewQueryContext creates a QueryContext from options.
func NewQueryContext(opts ...ContextOption) *QueryContext {
	qc := &QueryContext{}
	for _, opt := range opts {
		opt(qc)
	}
	return qc
}

// WithQueriedDatabase sets the database the statement ran in.
func WithQueriedDatabase(db string) ContextOption {
	return func(qc *QueryContext) { qc.queriedDatabase = db }
}

// WithQueriedSchema sets the schema the statement ran in.
func WithQueriedSchema(schema string) ContextOption {
	return func(qc *QueryContext) { qc.queriedSchema = schema }
}

// WithQueryTime sets when the statement started.
func WithQueryTime(t time.Time) ContextOption {
	return func(qc *QueryContext) { qc.queryTime = t }
}

// WithQueryType sets the warehouse statement kind, e.g. INSERT or CREATE_VIEW.
func WithQueryType(kind string) ContextOption {
	return func(qc *QueryContext) { qc.queryType = strings.ToUpper(kind) }
}

// WithDestinationTable sets the table the warehouse reports as written.
func WithDestinationTable(ref *TableRef) ContextOption {
	return func(qc *QueryContext) {
		if ref == nil {
			qc.destinationTable = nil
			return
		}
		r := *ref
		qc.destinationTable = &r
	}
}

// WithReferencedTables sets the tables the warehouse reports as read.
func WithReferencedTables(refs ...TableRef) ContextOption {
	return func(qc *QueryContext) {
		qc.referencedTables = append([]TableRef(nil), refs...)
	}
}

// WithDuration sets how long the statement ran.
func WithDuration(d time.Duration) ContextOption {
	return func(qc *QueryContext) { qc.duration = d }
}

// WithUser sets the user that ran the statement.
func WithUser(user string) ContextOption {
	return func(qc *QueryContext) { qc.user = user }
}

// WithRole sets the role the statement ran under.
func WithRole(role string) ContextOption {
	return func(qc *QueryContext) { qc.role = role }
}

func (qc *QueryContext) QueriedDatabase() string {
	if qc == nil {
		return ""
	}
	return qc.queriedDatabase
}

func (qc *QueryContext) QueriedSchema() string {
	if qc == nil {
		return ""
	}
	return qc.queriedSchema
}

func (qc *QueryContext) QueryTime() time.Time {
	if qc == nil {
		return time.Time{}
	}
	return qc.queryTime
}

// QueryType returns the upper-cased statement kind, or "".
func (qc *QueryContext) QueryType() string {
	if qc == nil {
		return ""
	}
	return qc.queryType
}

// DestinationTable returns a copy of the destination, or nil.
func (qc *QueryContext) DestinationTable() *TableRef {
	if qc == nil || qc.destinationTable == nil {
		return nil
	}
	r := *qc.destinationTable
	return &r
}

// ReferencedTables returns a copy of the referenced tables.
func (qc *QueryContext) ReferencedTables() []TableRef {
	if qc == nil {
		return nil
	}
	return append([]TableRef(nil), qc.referencedTables...)
}

func (qc *QueryContext) Duration() time.Duration {
	if qc == nil {
		return 0
	}
	return qc.duration
}

func (qc *QueryContext) User() string {
	if qc == nil {
		return ""
	}
	return qc.user
}

func (qc *QueryContext) Role() string {
	if qc == nil {
		return ""
	}
	return qc.role
}

// hasStructuredTables reports whether the warehouse supplied table metadata.
func (qc *QueryContext) hasStructuredTables() bool {
	return qc.DestinationTable() != nil || len(qc.ReferencedTables()) > 0
}

// QueryContextRecord is the serialized form of a QueryContext, as stored in
// the query history cache.
type QueryContextRecord struct {
	QueriedDatabase  string     `json:"queried_database,omitempty"`
	QueriedSchema    string     `json:"queried_schema,omitempty"`
	QueryTime        *time.Time `json:"query_time,omitempty"`
	QueryType        string     `json:"query_type,omitempty"`
	DestinationTable *TableRef  `json:"destination_table,omitempty"`
	ReferencedTables []TableRef `json:"referenced_tables,omitempty"`
	DurationMS       int64      `json:"duration_ms,omitempty"`
	User             string     `json:"user,omitempty"`
	Role             string     `json:"role,omitempty"`
}

// Record returns the serializable form of qc.
func (qc *QueryContext) Record() QueryContextRecord {
	rec := QueryContextRecord{
		QueriedDatabase:  qc.QueriedDatabase(),
		QueriedSchema:    qc.QueriedSchema(),
		QueryType:        qc.QueryType(),
		DestinationTable: qc.DestinationTable(),
		ReferencedTables: qc.ReferencedTables(),
		DurationMS:       qc.Duration().Milliseconds(),
		User:             qc.User(),
		Role:             qc.Role(),
	}
	if t := qc.QueryTime(); !t.IsZero() {
		rec.QueryTime = &t
	}
	return rec
}

// Context rebuilds an immutable QueryContext from a record.
func (r QueryContextRecord) Context() *QueryContext {
	opts := []ContextOption{
		WithQueriedDatabase(r.QueriedDatabase),
		WithQueriedSchema(r.QueriedSchema),
		WithQueryType(r.QueryType),
		WithDestinationTable(r.DestinationTable),
		WithReferencedTables(r.ReferencedTables...),
		WithDuration(time.Duration(r.DurationMS) * time.Millisecond),
		WithUser(r.User),
		WithRole(r.Role),
	}
	if r.QueryTime != nil {
		opts = append(opts, WithQueryTime(*r.QueryTime))
	}
	return NewQueryContext(opts...)
}

// MarshalJSON encodes qc as a QueryContextRecord.
func (qc *QueryContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(qc.Record())
}

// UnmarshalJSON decodes a QueryContextRecord into qc.
func (qc *QueryContext) UnmarshalJSON(data []byte) error {
	var rec QueryContextRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*qc = *rec.Context()
	return nil
}
