package guard

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"github.com/MrEthical07/portalAuth/permission"
	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var defaultRoutes []byte

type tableFile struct {
	Paths  *Paths      `yaml:"paths"`
	Routes []RouteSpec `yaml:"routes"`
}

// LoadTable reads a YAML route table. Unknown keys, unknown roles and
// permission tags missing from catalog are errors. Omitted paths fall back
// to [DefaultPaths].
func LoadTable(r io.Reader, catalog *permission.Catalog) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f tableFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	paths := DefaultPaths()
	if f.Paths != nil {
		paths = *f.Paths
	}
	return NewTable(f.Routes, paths, catalog)
}

// DefaultTable returns the DVSS-PPA console route table, checked against
// [permission.DefaultCatalog].
func DefaultTable() *Table {
	t, err := LoadTable(bytes.NewReader(defaultRoutes), permission.DefaultCatalog())
	if err != nil {
		panic(err)
	}
	return t
}
