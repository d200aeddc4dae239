package glcd

import (
	"fmt"
)

// PinMap names the host pins each panel line is wired to. Names are backend
// specific: GPIO numbers for host and board pins, "A0".."B7" for expanders.
type PinMap struct {
	Reset string    `yaml:"reset"`
	CS1   string    `yaml:"cs1"`
	CS2   string    `yaml:"cs2"`
	DI    string    `yaml:"di"`
	RW    string    `yaml:"rw"`
	E     string    `yaml:"e"`
	DB    [8]string `yaml:"db,flow"`
}

// DefaultPinMap is the wiring of the reference board.
func DefaultPinMap() PinMap {
	return PinMap{
		Reset: "22",
		E:     "23",
		CS1:   "24",
		CS2:   "25",
		DI:    "26",
		RW:    "27",
		DB:    [8]string{"28", "29", "30", "31", "32", "33", "34", "35"},
	}
}

// Open resolves every entry of the map with open and assembles the pin set.
func (m PinMap) Open(open func(name string) (Line, error)) (Pins, error) {
	var pins Pins
	targets := []struct {
		line string
		name string
		dst  *Line
	}{
		{"RST", m.Reset, &pins.Reset},
		{"CS1", m.CS1, &pins.CS1},
		{"CS2", m.CS2, &pins.CS2},
		{"DI", m.DI, &pins.DI},
		{"RW", m.RW, &pins.RW},
		{"E", m.E, &pins.E},
	}
	for i := range m.DB {
		targets = append(targets, struct {
			line string
			name string
			dst  *Line
		}{fmt.Sprintf("DB%d", i), m.DB[i], &pins.DB[i]})
	}
	for _, t := range targets {
		if t.name == "" {
			return pins, fmt.Errorf("%s: %w", t.line, ErrMissingLine)
		}
		l, err := open(t.name)
		if err != nil {
			return pins, fmt.Errorf("could not open %s on pin %q: %w", t.line, t.name, err)
		}
		*t.dst = l
	}
	return pins, nil
}
