package domain

import (
	"fmt"
	"reflect"
	"sync"
)

// FieldKind is the target type of a schema field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindAmount
)

// Field describes one leaf field of the FundRecord schema: where it comes
// from in the filing, what it is called, and how it is typed. The schema is
// derived once from the FundRecord struct tags, so struct order defines the
// canonical field order used for export and diff reports.
type Field struct {
	Name     string // json name, canonical identifier in reports
	Path     string // source selector into the filing document
	Group    string
	Kind     FieldKind
	Required bool

	index int // struct field index
}

var (
	schemaOnce sync.Once
	schema     []Field
)

// Schema returns the ordered leaf-field schema of FundRecord.
func Schema() []Field {
	schemaOnce.Do(buildSchema)
	return schema
}

func buildSchema() {
	t := reflect.TypeOf(FundRecord{})
	amountType := reflect.TypeOf(Amount{})

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		path := sf.Tag.Get("source")
		if path == "" {
			continue
		}

		f := Field{
			Name:     jsonName(sf),
			Path:     path,
			Group:    sf.Tag.Get("group"),
			Required: sf.Tag.Get("required") == "true",
			index:    i,
		}
		switch sf.Type {
		case amountType:
			f.Kind = KindAmount
		default:
			f.Kind = KindString
		}
		schema = append(schema, f)
	}
}

func jsonName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i]
		}
	}
	if tag != "" {
		return tag
	}
	return sf.Name
}

// Amount returns the field's value on r. It panics if the field is not an
// amount field; callers dispatch on Kind first.
func (f Field) Amount(r *FundRecord) Amount {
	if f.Kind != KindAmount {
		panic(fmt.Sprintf("field %s is not numeric", f.Name))
	}
	return reflect.ValueOf(r).Elem().Field(f.index).Interface().(Amount)
}

// String returns the field's string value on r.
func (f Field) String(r *FundRecord) string {
	if f.Kind != KindString {
		panic(fmt.Sprintf("field %s is not a string", f.Name))
	}
	return reflect.ValueOf(r).Elem().Field(f.index).String()
}

// SetAmount stores an amount into the field on r.
func (f Field) SetAmount(r *FundRecord, a Amount) {
	reflect.ValueOf(r).Elem().Field(f.index).Set(reflect.ValueOf(a))
}

// SetString stores a string into the field on r.
func (f Field) SetString(r *FundRecord, s string) {
	reflect.ValueOf(r).Elem().Field(f.index).SetString(s)
}
