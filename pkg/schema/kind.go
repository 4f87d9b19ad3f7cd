package schema

import "fmt"

// Kind identifies the type of a schema node.
type Kind uint8

const (
	KindNone Kind = iota
	KindString
	KindBytes
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat
	KindDouble
	KindDecimal
	KindBool
	KindGeo4
	KindGeo8
	KindGeo16
	KindUUID
	KindKSUID
	KindDate
	KindEnum
	KindTable
	KindMap
	KindList
	KindTuple
)

var kindNames = [...]string{
	KindNone:    "none",
	KindString:  "string",
	KindBytes:   "bytes",
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindFloat:   "float",
	KindDouble:  "double",
	KindDecimal: "decimal",
	KindBool:    "bool",
	KindGeo4:    "geo4",
	KindGeo8:    "geo8",
	KindGeo16:   "geo16",
	KindUUID:    "uuid",
	KindKSUID:   "ksuid",
	KindDate:    "date",
	KindEnum:    "enum",
	KindTable:   "table",
	KindMap:     "map",
	KindList:    "list",
	KindTuple:   "tuple",
}

// aliases accepted in descriptions besides the canonical names.
var kindAliases = map[string]Kind{
	"str":     KindString,
	"utf8":    KindString,
	"u8":      KindUint8,
	"u16":     KindUint16,
	"u32":     KindUint32,
	"u64":     KindUint64,
	"i8":      KindInt8,
	"i16":     KindInt16,
	"i32":     KindInt32,
	"i64":     KindInt64,
	"f32":     KindFloat,
	"f64":     KindDouble,
	"dec":     KindDecimal,
	"boolean": KindBool,
	"option":  KindEnum,
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames)+len(kindAliases))
	for k, name := range kindNames {
		if Kind(k) == KindNone {
			continue
		}
		m[name] = Kind(k)
	}
	for alias, k := range kindAliases {
		m[alias] = k
	}
	return m
}()

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// KindOf returns the kind with the given name or alias.
func KindOf(name string) (Kind, bool) {
	k, ok := kindByName[name]
	return k, ok
}

// IsCollection reports whether values of k hold other values.
func (k Kind) IsCollection() bool {
	switch k {
	case KindTable, KindMap, KindList, KindTuple:
		return true
	}
	return false
}

// IsScalar reports whether k is a leaf kind.
func (k Kind) IsScalar() bool {
	return k != KindNone && !k.IsCollection()
}

// width returns the encoded size of fixed-width scalar kinds, or 0 when the
// width depends on the node (strings and bytes) or the kind is a collection.
func (k Kind) width() int {
	switch k {
	case KindInt8, KindUint8, KindBool, KindEnum:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat, KindGeo4:
		return 4
	case KindInt64, KindUint64, KindDouble, KindDecimal, KindGeo8, KindDate:
		return 8
	case KindGeo16, KindUUID:
		return 16
	case KindKSUID:
		return 20
	}
	return 0
}
