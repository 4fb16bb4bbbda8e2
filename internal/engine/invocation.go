// Package engine describes calls to the LAStools command-line executables as
// typed values and renders them into argument vectors.
//
// Nothing here formats a shell string. An Invocation is a tool plus an ordered
// list of parameters; Engine.Command turns it into a tactile.Command with the
// manifest, core count, output directory and output format filled in.
package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Tool names a LAStools executable without platform suffix.
type Tool string

const (
	Lasinfo      Tool = "lasinfo"
	Lastile      Tool = "lastile"
	LasgroundNew Tool = "lasground_new"
	Lasheight    Tool = "lasheight"
	Lasclassify  Tool = "lasclassify"
	Las2las      Tool = "las2las"
	Lasclip      Tool = "lasclip"
	Lasduplicate Tool = "lasduplicate"
)

// Units selects the horizontal and vertical units passed to the tools that
// care about them.
type Units string

const (
	Metric Units = "metric"
	USFeet Units = "us_feet"
)

// ParseUnits accepts "metric" and "us_feet" (case-insensitive).
func ParseUnits(s string) (Units, error) {
	switch Units(strings.ToLower(strings.TrimSpace(s))) {
	case Metric:
		return Metric, nil
	case USFeet:
		return USFeet, nil
	}
	return "", fmt.Errorf("unknown units %q (valid: metric, us_feet)", s)
}

// Params returns the unit switches. Metric is the tools' default.
func (u Units) Params() []Param {
	if u == USFeet {
		return []Param{Switch("-feet"), Switch("-elevation_feet")}
	}
	return nil
}

// Format is the point-cloud output format.
type Format string

const (
	LAS Format = "las"
	LAZ Format = "laz"
)

// ParseFormat accepts "las" and "laz" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case LAS:
		return LAS, nil
	case LAZ:
		return LAZ, nil
	}
	return "", fmt.Errorf("unknown output format %q (valid: las, laz)", s)
}

// Flag is the output switch, -olas or -olaz.
func (f Format) Flag() string { return "-o" + string(f) }

// TileName is the base name lastile numbers its tiles from.
func (f Format) TileName() string { return "tile." + string(f) }

// Param is one command-line parameter. An empty Value makes it a switch.
type Param struct {
	Flag  string
	Value string
}

// Switch returns a parameter without a value.
func Switch(flag string) Param { return Param{Flag: flag} }

// Value returns a parameter with a string value.
func Value(flag, value string) Param { return Param{Flag: flag, Value: value} }

// Float returns a parameter with a float value in its shortest form.
func Float(flag string, v float64) Param {
	return Param{Flag: flag, Value: strconv.FormatFloat(v, 'f', -1, 64)}
}

// Int returns a parameter with an integer value.
func Int(flag string, v int) Param { return Param{Flag: flag, Value: strconv.Itoa(v)} }

// Invocation is a tool with its stage-specific parameters. The manifest,
// -cores, -odir and output format are added by Engine.Command.
type Invocation struct {
	Tool   Tool
	Params []Param

	// InPlace tools write their artifacts next to the inputs, so they get
	// neither -odir nor an output format switch.
	InPlace bool

	// NoCores suppresses -cores for tools that run as a single batch.
	NoCores bool
}

// Args flattens the stage-specific parameters in order.
func (i Invocation) Args() []string {
	args := make([]string, 0, len(i.Params)*2)
	for _, p := range i.Params {
		args = append(args, p.Flag)
		if p.Value != "" {
			args = append(args, p.Value)
		}
	}
	return args
}

// String renders the tool and its parameters for display.
func (i Invocation) String() string {
	if len(i.Params) == 0 {
		return string(i.Tool)
	}
	return string(i.Tool) + " " + strings.Join(i.Args(), " ")
}

// GroundParams is one lasground_new parameter set.
type GroundParams struct {
	Step      float64 `yaml:"step" toml:"step"`
	Bulge     float64 `yaml:"bulge" toml:"bulge"`
	Spike     float64 `yaml:"spike" toml:"spike"`
	DownSpike float64 `yaml:"down_spike" toml:"down_spike"`
	Offset    float64 `yaml:"offset" toml:"offset"`
}

// Declassify resets every point to class 1 and writes a lasinfo report with
// computed density (-cd) next to each file.
func Declassify() Invocation {
	return Invocation{
		Tool: Lasinfo,
		Params: []Param{
			Int("-set_classification", 1),
			Switch("-otxt"),
			Switch("-cd"),
		},
		InPlace: true,
		NoCores: true,
	}
}

// Census writes a lasinfo report next to each file without modifying it.
func Census() Invocation {
	return Invocation{
		Tool:    Lasinfo,
		Params:  []Param{Switch("-otxt")},
		InPlace: true,
		NoCores: true,
	}
}

// Tile cuts the inputs into square tiles with the given buffer.
func Tile(f Format, size, buffer int) Invocation {
	return Invocation{
		Tool: Lastile,
		Params: []Param{
			Value("-o", f.TileName()),
			Int("-tile_size", size),
			Int("-buffer", buffer),
			Switch("-faf"),
		},
	}
}

// Merge retiles the inputs without buffer, combining overlapping files.
func Merge(f Format, size int) Invocation {
	return Invocation{
		Tool: Lastile,
		Params: []Param{
			Value("-o", f.TileName()),
			Int("-tile_size", size),
			Switch("-faf"),
		},
	}
}

// Ground runs lasground_new with one parameter set.
func Ground(u Units, p GroundParams) Invocation {
	params := append([]Param{}, u.Params()...)
	params = append(params,
		Float("-step", p.Step),
		Float("-bulge", p.Bulge),
		Float("-spike", p.Spike),
		Float("-down_spike", p.DownSpike),
		Float("-offset", p.Offset),
		Switch("-hyper_fine"),
	)
	return Invocation{Tool: LasgroundNew, Params: params}
}

// Height computes height above ground.
func Height() Invocation {
	return Invocation{Tool: Lasheight}
}

// Classify assigns vegetation and building classes.
func Classify(u Units) Invocation {
	return Invocation{Tool: Lasclassify, Params: u.Params()}
}

// RemoveBuffer strips tile buffers.
func RemoveBuffer() Invocation {
	return Invocation{Tool: Lastile, Params: []Param{Switch("-remove_buffer")}}
}

// KeepClass keeps only the points of one classification code.
func KeepClass(code int) Invocation {
	return Invocation{Tool: Las2las, Params: []Param{Int("-keep_classification", code)}}
}

// Clip clips against a polygon, honoring holes. keepOutside selects the
// points outside the polygon (-interior removes the interior).
func Clip(polygon string, keepOutside bool) Invocation {
	params := []Param{Value("-poly", polygon)}
	if keepOutside {
		params = append(params, Switch("-interior"))
	}
	params = append(params, Switch("-donuts"))
	return Invocation{Tool: Lasclip, Params: params}
}

// Deduplicate drops duplicate xy points, keeping the lowest z.
func Deduplicate() Invocation {
	return Invocation{Tool: Lasduplicate, Params: []Param{Switch("-lowest_z")}}
}
