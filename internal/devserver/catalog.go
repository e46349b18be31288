package devserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Catalog lists the export destinations the server advertises.
type Catalog struct {
	Systems    []model.ExternalSystem                     `yaml:"systems"`
	Parameters map[string][]model.ExternalSystemParameter `yaml:"parameters"`
	Variables  map[string][]model.ExternalSystemVariable  `yaml:"variables"`
}

// DefaultCatalog advertises a CSV file export and a generic REST push.
func DefaultCatalog() Catalog {
	return Catalog{
		Systems: []model.ExternalSystem{
			{Name: "ExternalSystemCsv", Label: "CSV file", Description: "Writes one row per object"},
			{Name: "ExternalSystemGenericRestCall", Label: "REST call", Description: "Posts objects to a URL"},
		},
		Parameters: map[string][]model.ExternalSystemParameter{
			"ExternalSystemCsv": {
				{Name: "csv_filename", Required: true, Description: "target file"},
				{Name: "csv_delimiter", Default: ";", Description: "column delimiter"},
			},
			"ExternalSystemGenericRestCall": {
				{Name: "url", Required: true, Description: "target URL"},
				{Name: "timeout", Default: 30, Description: "request timeout in seconds"},
			},
		},
		Variables: map[string][]model.ExternalSystemVariable{
			"ExternalSystemCsv": {
				{Name: "column", Description: "column header"},
			},
			"ExternalSystemGenericRestCall": {
				{Name: "payload_key", Description: "JSON key of the value"},
			},
		},
	}
}

func (s *Server) externalSystems(c echo.Context) error {
	systems := s.catalog.Systems
	if systems == nil {
		systems = []model.ExternalSystem{}
	}
	return c.JSON(http.StatusOK, systems)
}

func (s *Server) externalParameters(c echo.Context) error {
	params, ok := s.catalog.Parameters[c.Param("name")]
	if !ok && !s.knownSystem(c.Param("name")) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown external system "+c.Param("name"))
	}
	if params == nil {
		params = []model.ExternalSystemParameter{}
	}
	return c.JSON(http.StatusOK, params)
}

func (s *Server) externalVariables(c echo.Context) error {
	vars, ok := s.catalog.Variables[c.Param("name")]
	if !ok && !s.knownSystem(c.Param("name")) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown external system "+c.Param("name"))
	}
	if vars == nil {
		vars = []model.ExternalSystemVariable{}
	}
	return c.JSON(http.StatusOK, vars)
}

func (s *Server) knownSystem(name string) bool {
	for _, system := range s.catalog.Systems {
		if system.Name == name {
			return true
		}
	}
	return false
}
