package dialect

// Builtin dialect names.
const (
	Generic   = "generic"
	BigQuery  = "bigquery"
	Snowflake = "snowflake"
)

var commonGenerators = []string{
	"CURRENT_DATE", "CURRENT_TIME", "CURRENT_TIMESTAMP",
	"CURRENT_USER", "CURRENT_ROLE", "CURRENT_SCHEMA", "CURRENT_DATABASE",
	"LOCALTIME", "LOCALTIMESTAMP", "SESSION_USER",
}

// builtinGeneric accepts both ANSI and backtick quoting so history from an
// unknown warehouse still lexes.
var builtinGeneric = NewDialect(Generic).
	Quotes(QuotePair{'"', '"'}, QuotePair{'`', '`'}).
	AddKeyword("QUALIFY", TokenQualify).
	AddKeyword("ILIKE", TokenIlike).
	Generators(commonGenerators...).
	Build()

var builtinBigQuery = NewDialect(BigQuery).
	Quotes(QuotePair{'`', '`'}).
	HashComments().
	DoubleQuotedStrings().
	AddKeyword("QUALIFY", TokenQualify).
	Generators(commonGenerators...).
	Build()

var builtinSnowflake = NewDialect(Snowflake).
	Quotes(QuotePair{'"', '"'}).
	AddKeyword("QUALIFY", TokenQualify).
	AddKeyword("ILIKE", TokenIlike).
	Generators(append(commonGenerators, "SYSDATE", "CURRENT_WAREHOUSE", "CURRENT_ACCOUNT")...).
	Build()

func init() {
	Register(builtinGeneric)
	Register(builtinBigQuery)
	Register(builtinSnowflake)
}

// Default returns the generic dialect.
func Default() *Dialect {
	return MustGet(Generic)
}
