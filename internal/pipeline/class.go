package pipeline

import "fmt"

// ClassType is an ASPRS point classification code the pipeline separates on.
type ClassType int

const (
	ClassDefault    ClassType = 1
	ClassGround     ClassType = 2
	ClassVegetation ClassType = 5
	ClassBuilding   ClassType = 6
)

// Classes is every class the separation stages fan out over, in code order.
var Classes = []ClassType{ClassDefault, ClassGround, ClassVegetation, ClassBuilding}

// Code returns the numeric classification code.
func (c ClassType) Code() int { return int(c) }

// Dir returns the class subdirectory name, e.g. "02-Ground".
func (c ClassType) Dir() string {
	switch c {
	case ClassDefault:
		return "01-Default"
	case ClassGround:
		return "02-Ground"
	case ClassVegetation:
		return "05-Vegetation"
	case ClassBuilding:
		return "06-Building"
	}
	return fmt.Sprintf("%02d-Class", int(c))
}

func (c ClassType) String() string { return c.Dir() }
