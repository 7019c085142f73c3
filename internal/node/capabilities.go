package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/acolita/openswitch-harness/internal/ports"
)

// ErrMissingCapacity is matched by every *MissingCapacityError.
var ErrMissingCapacity = errors.New("missing capacity")

// MissingCapacityError reports a capacity the image does not declare.
type MissingCapacityError struct {
	Name string
}

func (e *MissingCapacityError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingCapacity, e.Name)
}

// Is reports whether target is ErrMissingCapacity.
func (e *MissingCapacityError) Is(target error) bool {
	return target == ErrMissingCapacity
}

// Capabilities is the set of features the image supports. Absent features
// are unsupported.
type Capabilities map[string]bool

// Has reports whether name is supported.
func (c Capabilities) Has(name string) bool {
	return c[name]
}

// Capacities holds the numeric limits of the image.
type Capacities map[string]int

// Get returns the capacity called name.
func (c Capacities) Get(name string) (int, error) {
	v, ok := c[name]
	if !ok {
		return 0, &MissingCapacityError{Name: name}
	}
	return v, nil
}

type capabilitiesFile struct {
	Capabilities []string       `json:"capabilities"`
	Capacities   map[string]int `json:"capacities"`
}

// loadCapabilities reads the capabilities artifact at path. A missing file
// yields empty sets.
func loadCapabilities(fsys ports.FileSystem, path string) (Capabilities, Capacities, error) {
	caps := Capabilities{}
	capacities := Capacities{}

	data, err := fsys.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return caps, capacities, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read capabilities: %w", err)
	}

	var f capabilitiesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parse capabilities %s: %w", path, err)
	}
	for _, name := range f.Capabilities {
		caps[name] = true
	}
	for name, v := range f.Capacities {
		capacities[name] = v
	}
	return caps, capacities, nil
}
