package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
)

const geometryExtensionName = "geoarrow.wkb"

// GeometryType is the GeoArrow WKB extension type of geometry columns. Rows
// carry GeoJSON geometries; Arrow columns carry their WKB encoding. The SRID
// travels in the extension metadata as an EPSG code.
type GeometryType struct {
	arrow.ExtensionBase
	SRID int
}

// NewGeometryType returns the geometry type for srid. Zero means unknown.
func NewGeometryType(srid int) *GeometryType {
	return &GeometryType{
		ExtensionBase: arrow.ExtensionBase{Storage: arrow.BinaryTypes.Binary},
		SRID:          srid,
	}
}

// GeometryArray holds WKB geometries.
type GeometryArray struct {
	array.ExtensionArrayBase
}

func (g *GeometryType) ArrayType() reflect.Type { return reflect.TypeOf(GeometryArray{}) }

func (g *GeometryType) ExtensionName() string { return geometryExtensionName }

func (g *GeometryType) String() string {
	if g.SRID == 0 {
		return "extension<" + geometryExtensionName + ">"
	}
	return fmt.Sprintf("extension<%s, EPSG:%d>", geometryExtensionName, g.SRID)
}

type geometryMetadata struct {
	CRS      string `json:"crs,omitempty"`
	Encoding string `json:"encoding"`
}

// Serialize writes the GeoArrow metadata.
func (g *GeometryType) Serialize() string {
	meta := geometryMetadata{Encoding: "WKB"}
	if g.SRID != 0 {
		meta.CRS = "EPSG:" + strconv.Itoa(g.SRID)
	}
	b, _ := json.Marshal(meta)
	return string(b)
}

// Deserialize reads metadata written by Serialize. Empty metadata yields an
// unknown SRID.
func (g *GeometryType) Deserialize(storageType arrow.DataType, data string) (arrow.ExtensionType, error) {
	if !arrow.TypeEqual(storageType, arrow.BinaryTypes.Binary) {
		return nil, fmt.Errorf("geometry storage must be binary, got %s", storageType)
	}
	if data == "" {
		return NewGeometryType(0), nil
	}
	var meta geometryMetadata
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, fmt.Errorf("geometry metadata: %w", err)
	}
	srid, err := parseCRS(meta.CRS)
	if err != nil {
		return nil, err
	}
	return NewGeometryType(srid), nil
}

func (g *GeometryType) ExtensionEquals(other arrow.ExtensionType) bool {
	o, ok := other.(*GeometryType)
	return ok && o.SRID == g.SRID
}

func parseCRS(crs string) (int, error) {
	if crs == "" {
		return 0, nil
	}
	code, ok := strings.CutPrefix(crs, "EPSG:")
	if !ok {
		return 0, fmt.Errorf("unsupported crs %q", crs)
	}
	srid, err := strconv.Atoi(code)
	if err != nil {
		return 0, fmt.Errorf("unsupported crs %q", crs)
	}
	return srid, nil
}

// NewGeometryField returns a geometry column. The srid is also exposed as
// plain field metadata for clients that ignore extension types.
func NewGeometryField(name string, nullable bool, srid int) arrow.Field {
	typ := NewGeometryType(srid)
	return arrow.Field{
		Name:     name,
		Type:     typ,
		Nullable: nullable,
		Metadata: arrow.NewMetadata([]string{"srid"}, []string{strconv.Itoa(srid)}),
	}
}

// IsGeometry reports whether dt is a geometry column type.
func IsGeometry(dt arrow.DataType) bool {
	_, ok := dt.(*GeometryType)
	return ok
}

var errNoGeometry = errors.New("no geometry")

// EncodeGeometry returns the WKB encoding of geom.
func EncodeGeometry(geom orb.Geometry) ([]byte, error) {
	if geom == nil {
		return nil, errNoGeometry
	}
	return wkb.Marshal(geom)
}

// DecodeGeometry parses WKB.
func DecodeGeometry(b []byte) (orb.Geometry, error) {
	if len(b) == 0 {
		return nil, errNoGeometry
	}
	return wkb.Unmarshal(b)
}

// GeometryFromGeoJSON converts a GeoJSON geometry object, as written by the
// payload encoder, to WKB.
func GeometryFromGeoJSON(data []byte) ([]byte, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("invalid GeoJSON geometry: %w", err)
	}
	return EncodeGeometry(g.Geometry())
}

func init() {
	_ = arrow.RegisterExtensionType(NewGeometryType(0))
}
