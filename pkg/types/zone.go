package types

// Zone is an isolated remote namespace holding the records of one root kind.
// Notes travel in their owner's zone and never get a zone of their own.
type Zone string

const (
	ZoneCar   Zone = "CarZone"
	ZoneTruck Zone = "TruckZone"
	ZoneBus   Zone = "BusZone"

	// DefaultZone is the server's implicit zone. It is never created or
	// deleted by the reconciler, even when it shows up unexpected.
	DefaultZone Zone = "_defaultZone"
)

// kindZones maps each root kind to its zone.
var kindZones = map[Kind]Zone{
	KindCar:   ZoneCar,
	KindTruck: ZoneTruck,
	KindBus:   ZoneBus,
}

// AllZones returns the zones the engine expects to exist, in stable order.
func AllZones() []Zone {
	return []Zone{ZoneCar, ZoneTruck, ZoneBus}
}

// Valid reports whether z is one of the engine's expected zones.
func (z Zone) Valid() bool {
	switch z {
	case ZoneCar, ZoneTruck, ZoneBus:
		return true
	}
	return false
}

// Kind returns the root kind stored in this zone.
// Returns ErrUnknownZone for the default zone or an unrecognized name.
func (z Zone) Kind() (Kind, error) {
	switch z {
	case ZoneCar:
		return KindCar, nil
	case ZoneTruck:
		return KindTruck, nil
	case ZoneBus:
		return KindBus, nil
	}
	return "", ErrUnknownZone
}

// ZoneForKind returns the zone that stores records of the given root kind.
// Returns ErrUnknownZone for the Note child kind and unrecognized kinds.
func ZoneForKind(k Kind) (Zone, error) {
	z, ok := kindZones[k]
	if !ok {
		return "", ErrUnknownZone
	}
	return z, nil
}
