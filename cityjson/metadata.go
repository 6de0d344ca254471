package cityjson

import (
	"encoding/json"
	"fmt"
	"strings"
)

const defaultCRSBaseURL = "https://www.opengis.net/def/crs"

// ReferenceSystem is an OGC Name Type Specification CRS reference of the
// form {base}/{authority}/{version}/{code}. It serializes as the URL string.
type ReferenceSystem struct {
	BaseURL   string
	Authority string
	Version   string
	Code      string
}

func NewReferenceSystem(authority, version, code string) ReferenceSystem {
	return ReferenceSystem{
		BaseURL:   defaultCRSBaseURL,
		Authority: authority,
		Version:   version,
		Code:      code,
	}
}

func (rs ReferenceSystem) URL() string {
	return fmt.Sprintf("%s/%s/%s/%s", rs.BaseURL, rs.Authority, rs.Version, rs.Code)
}

func ParseReferenceSystem(url string) (ReferenceSystem, error) {
	i := strings.Index(url, "/def/crs/")
	if i < 0 {
		return ReferenceSystem{}, fmt.Errorf("invalid reference system URL %q", url)
	}
	base := url[:i+len("/def/crs")]
	parts := strings.Split(url[i+len("/def/crs/"):], "/")
	if len(parts) != 3 {
		return ReferenceSystem{}, fmt.Errorf("invalid reference system URL %q", url)
	}
	return ReferenceSystem{
		BaseURL:   base,
		Authority: parts[0],
		Version:   parts[1],
		Code:      parts[2],
	}, nil
}

func (rs ReferenceSystem) MarshalJSON() ([]byte, error) {
	return json.Marshal(rs.URL())
}

func (rs *ReferenceSystem) UnmarshalJSON(data []byte) error {
	var url string
	if err := json.Unmarshal(data, &url); err != nil {
		return err
	}
	parsed, err := ParseReferenceSystem(url)
	if err != nil {
		return err
	}
	*rs = parsed
	return nil
}

type Address struct {
	ThoroughfareNumber int64  `json:"thoroughfareNumber"`
	ThoroughfareName   string `json:"thoroughfareName"`
	Locality           string `json:"locality"`
	PostalCode         string `json:"postalCode"`
	Country            string `json:"country"`
}

type PointOfContact struct {
	ContactName  string   `json:"contactName"`
	ContactType  string   `json:"contactType,omitempty"`
	Role         string   `json:"role,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	EmailAddress string   `json:"emailAddress"`
	Website      string   `json:"website,omitempty"`
	Address      *Address `json:"address,omitempty"`
}

type Metadata struct {
	GeographicalExtent []float64        `json:"geographicalExtent,omitempty"`
	Identifier         string           `json:"identifier,omitempty"`
	PointOfContact     *PointOfContact  `json:"pointOfContact,omitempty"`
	ReferenceDate      string           `json:"referenceDate,omitempty"`
	ReferenceSystem    *ReferenceSystem `json:"referenceSystem,omitempty"`
	Title              string           `json:"title,omitempty"`
}

// Extension is a reference to an external extension schema. Fetching the
// schema itself is outside this module.
type Extension struct {
	URL     string `json:"url"`
	Version string `json:"version"`
}

// GeometryTemplates is the document-level template block referenced by
// GeometryInstance geometries.
type GeometryTemplates struct {
	Templates         []Geometry   `json:"templates"`
	VerticesTemplates [][3]float64 `json:"vertices-templates"`
}

func (gt *GeometryTemplates) Clone() *GeometryTemplates {
	if gt == nil {
		return nil
	}
	out := &GeometryTemplates{
		Templates:         make([]Geometry, len(gt.Templates)),
		VerticesTemplates: append([][3]float64(nil), gt.VerticesTemplates...),
	}
	for i := range gt.Templates {
		out.Templates[i] = gt.Templates[i].Clone()
	}
	return out
}
