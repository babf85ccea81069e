package pset

import "fmt"

// Kind is the element type of a Value.
type Kind int

const (
	KindBool Kind = iota
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindDouble
	KindString
	KindInputTag
	KindPSet
)

var kindNames = map[Kind]string{
	KindBool:     "bool",
	KindInt32:    "int32",
	KindUint32:   "uint32",
	KindInt64:    "int64",
	KindUint64:   "uint64",
	KindDouble:   "double",
	KindString:   "string",
	KindInputTag: "inputtag",
	KindPSet:     "pset",
}

// String returns the configuration-language keyword for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a keyword such as "uint32" back to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter kind %q", name)
}

// IsInteger reports whether the kind holds signed or unsigned integers.
func (k Kind) IsInteger() bool {
	switch k {
	case KindInt32, KindUint32, KindInt64, KindUint64:
		return true
	}
	return false
}

// IsNumeric reports whether the kind is an integer or a double.
func (k Kind) IsNumeric() bool {
	return k.IsInteger() || k == KindDouble
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindBool, KindInt32, KindUint32, KindInt64, KindUint64, KindDouble, KindString, KindInputTag, KindPSet}
}
