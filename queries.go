package pgutils

// Catalog queries are parameterized; identifiers in generated analytical SQL
// are interpolated as-is, the way callers wrote them, because they are
// validated against catalog metadata before any statement is built.

// queryColumnMetadata fetches column names and data types in ordinal order.
// The catalog reports every array column as the generic ARRAY type, so those
// are rewritten to "<element_type>[]" using the udt_name alias.
// $1 = schema, $2 = table_name.
const queryColumnMetadata = `
	select column_name,
	       case
	           when lower(data_type) = 'array' then column_alias || '[]'
	           else data_type
	       end as data_type
	from (
	    select column_name,
	           data_type,
	           translate(udt_name, '0123456789_', '') as column_alias,
	           ordinal_position
	    from information_schema.columns
	    where table_schema = $1
	      and table_name = $2
	) a
	order by ordinal_position`

// queryTableExists counts catalog entries for a (schema, table) pair.
// $1 = schema, $2 = table_name.
const queryTableExists = `
	select count(1)
	from information_schema.tables
	where table_schema = $1
	  and table_name = $2`

// queryBinCounts counts rows per equal-width bucket over [$1, $2] with $3
// buckets. width_bucket assigns values equal to the upper bound to bucket
// $3+1, so it is folded back into the last bucket; the generate_series left
// join keeps zero-count buckets in the result. The three %s placeholders are
// column, table, column.
const queryBinCounts = `
	select n.bucket, coalesce(c.freq, 0) as freq
	from generate_series(1, $3::int) as n(bucket)
	left join (
	    select least(width_bucket(%s, $1::double precision, $2::double precision, $3::int), $3::int) as bucket,
	           count(*) as freq
	    from %s
	    where %s is not null
	    group by 1
	) c using (bucket)
	order by n.bucket`

// queryIsUnique returns a row iff some value of the column occurs more than
// once. Format arguments are column, table.
const queryIsUnique = `select 1 from %[2]s group by %[1]s having count(*) > 1 limit 1`

// numericTypes is the fixed set of data type names treated as numeric.
var numericTypes = map[string]bool{
	"smallint":         true,
	"integer":          true,
	"bigint":           true,
	"decimal":          true,
	"numeric":          true,
	"real":             true,
	"double precision": true,
	"serial":           true,
	"bigserial":        true,
	"float":            true,
}
