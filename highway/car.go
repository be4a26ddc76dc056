package highway

import (
	"strconv"
)

type carIDKind uint8

const (
	noCar carIDKind = iota
	userCar
	generatedCar
)

// CarID identifies a car on the highway. It is either the user's car or
// a generated car with a monotonically increasing sequence number. The
// zero value identifies no car.
type CarID struct {
	kind carIDKind
	seq  uint64
}

var UserCarID = CarID{kind: userCar}

func GeneratedCarID(seq uint64) CarID {
	return CarID{kind: generatedCar, seq: seq}
}

func (id CarID) IsZero() bool { return id.kind == noCar }

func (id CarID) IsUser() bool { return id.kind == userCar }

// Seq returns the sequence number of a generated car.
func (id CarID) Seq() (uint64, bool) {
	return id.seq, id.kind == generatedCar
}

func (id CarID) String() string {
	switch id.kind {
	case userCar:
		return "user"
	case generatedCar:
		return strconv.FormatUint(id.seq, 10)
	default:
		return "-"
	}
}

func (id CarID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// Car is a vehicle with a current speed that may temporarily differ from
// its free-flow (baseline) speed.
type Car struct {
	isUser    bool
	speed     Speed
	baseline  Speed
	direction Direction
}

func NewCar(isUser bool, speed Speed, direction Direction) *Car {
	return &Car{
		isUser:    isUser,
		speed:     speed,
		baseline:  speed,
		direction: direction,
	}
}

func (c *Car) IsUser() bool { return c.isUser }

func (c *Car) Speed() Speed { return c.speed }

func (c *Car) Baseline() Speed { return c.baseline }

func (c *Car) Direction() Direction { return c.direction }

// ChangeSpeed sets the current speed and reports whether it changed.
func (c *Car) ChangeSpeed(s Speed) bool {
	if s == c.speed {
		return false
	}
	c.speed = s
	return true
}

// RestoreSpeed returns the car to its free-flow speed.
func (c *Car) RestoreSpeed() {
	c.speed = c.baseline
}

// setBaseline is used for the user car, whose speed changes are permanent.
func (c *Car) setBaseline(s Speed) {
	c.speed = s
	c.baseline = s
}

// CarRecord places a car on the highway. Patch is the front of the car
// relative to the user's front: positive is ahead, negative behind.
type CarRecord struct {
	ID    CarID
	Car   *Car
	Lane  int
	Patch int
}
