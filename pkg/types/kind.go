package types

import (
	"strings"

	"github.com/google/uuid"
)

// Kind identifies a syncable entity type. Car, Truck and Bus are root kinds;
// Note is the single child kind and always belongs to exactly one root.
type Kind string

const (
	KindCar   Kind = "Car"
	KindTruck Kind = "Truck"
	KindBus   Kind = "Bus"
	KindNote  Kind = "Note"
)

// validKinds is the set of recognized kind values.
var validKinds = map[Kind]bool{
	KindCar:   true,
	KindTruck: true,
	KindBus:   true,
	KindNote:  true,
}

// Valid reports whether k is a recognized kind.
func (k Kind) Valid() bool {
	return validKinds[k]
}

// IsRoot reports whether k is a root kind. Root kinds own their remote zone;
// the Note child kind is stored inside its owner's zone.
func (k Kind) IsRoot() bool {
	return k == KindCar || k == KindTruck || k == KindBus
}

// RootKinds returns the root kinds in stable order.
func RootKinds() []Kind {
	return []Kind{KindCar, KindTruck, KindBus}
}

// AllKinds returns every syncable kind, roots first.
func AllKinds() []Kind {
	return []Kind{KindCar, KindTruck, KindBus, KindNote}
}

// NewRecordName generates a record name for the given kind in the fixed
// "Kind.uuid" format shared by the local store and the remote store.
func NewRecordName(k Kind) string {
	return string(k) + "." + uuid.New().String()
}

// KindFromRecordName derives the kind from a record name by parsing its
// "Kind.uuid" prefix. Returns ErrInvalidRecordName if the name has no prefix
// or the prefix is not a recognized kind.
func KindFromRecordName(recordName string) (Kind, error) {
	prefix, _, ok := strings.Cut(recordName, ".")
	if !ok {
		return "", ErrInvalidRecordName
	}
	k := Kind(prefix)
	if !k.Valid() {
		return "", ErrInvalidRecordName
	}
	return k, nil
}
