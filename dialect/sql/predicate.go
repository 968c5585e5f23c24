package sql

// Field is a typed column handle. Generated relation packages declare one
// per column so server code builds filters against the column's Go type:
//
//	var Email = sql.Field[string]("email")
//	sel = sel.Where(person.Email.EQ("ann@example.com"))
//
// The filters it returns follow the Filter rendering rules.
type Field[T any] string

// Name returns the column name.
func (f Field[T]) Name() string { return string(f) }

// Col returns the untyped column reference.
func (f Field[T]) Col() Column { return Col(string(f)) }

// Of returns the column qualified by the given table or alias.
func (f Field[T]) Of(table string) Column { return Col(string(f)).Of(table) }

// EQ returns a filter that checks if the field equals the given value.
func (f Field[T]) EQ(v T) Filter { return f.filter(OpEQ, v) }

// NEQ returns a filter that checks if the field does not equal the given value.
func (f Field[T]) NEQ(v T) Filter { return f.filter(OpNEQ, v) }

// GT returns a filter that checks if the field is greater than the given value.
func (f Field[T]) GT(v T) Filter { return f.filter(OpGT, v) }

// GTE returns a filter that checks if the field is greater than or equal to the given value.
func (f Field[T]) GTE(v T) Filter { return f.filter(OpGTE, v) }

// LT returns a filter that checks if the field is less than the given value.
func (f Field[T]) LT(v T) Filter { return f.filter(OpLT, v) }

// LTE returns a filter that checks if the field is less than or equal to the given value.
func (f Field[T]) LTE(v T) Filter { return f.filter(OpLTE, v) }

// IsNull returns a filter that checks if the field is NULL.
func (f Field[T]) IsNull() Filter { return Filter{Column: f.Col(), Op: OpIsNull} }

// Contains returns a filter that checks if an array field contains every element of v.
func (f Field[T]) Contains(v T) Filter { return f.filter(OpContains, v) }

// Asc returns an ascending order on the field, for use with SelectBuilder.OrderBy.
func (f Field[T]) Asc() (Column, Order) { return f.Col(), Asc }

// Desc returns a descending order on the field.
func (f Field[T]) Desc() (Column, Order) { return f.Col(), Desc }

func (f Field[T]) filter(op Op, v T) Filter {
	return Filter{Column: f.Col(), Op: op, Value: any(v)}
}
