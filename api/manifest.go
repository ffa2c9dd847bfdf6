package api

import "github.com/jaym/shelf/catalog"

const (
	movieCatalogID  = "my-movies"
	seriesCatalogID = "my-series"
)

// ManifestConfig holds the configurable parts of the addon descriptor.
type ManifestConfig struct {
	ID          string `mapstructure:"id"`
	Version     string `mapstructure:"version"`
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Logo        string `mapstructure:"logo"`
	Background  string `mapstructure:"background"`
	CatalogName string `mapstructure:"catalog_name"`
}

type ManifestCatalog struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Manifest is the addon descriptor served at /manifest.json.
type Manifest struct {
	ID          string            `json:"id"`
	Version     string            `json:"version"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Logo        string            `json:"logo,omitempty"`
	Background  string            `json:"background,omitempty"`
	Types       []string          `json:"types"`
	Catalogs    []ManifestCatalog `json:"catalogs"`
	Resources   []string          `json:"resources"`
	IDPrefixes  []string          `json:"idPrefixes"`
}

func (c ManifestConfig) build() Manifest {
	if c.ID == "" {
		c.ID = "com.shelf.addon"
	}
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.Name == "" {
		c.Name = "Shelf"
	}
	if c.Description == "" {
		c.Description = "Personal movie and series catalog"
	}
	if c.CatalogName == "" {
		c.CatalogName = "Recomendación"
	}
	return Manifest{
		ID:          c.ID,
		Version:     c.Version,
		Name:        c.Name,
		Description: c.Description,
		Logo:        c.Logo,
		Background:  c.Background,
		Types:       []string{catalog.TypeMovie, catalog.TypeSeries},
		Catalogs: []ManifestCatalog{
			{Type: catalog.TypeMovie, ID: movieCatalogID, Name: c.CatalogName},
			{Type: catalog.TypeSeries, ID: seriesCatalogID, Name: c.CatalogName},
		},
		Resources:  []string{"catalog", "meta", "stream"},
		IDPrefixes: []string{"tt", "custom"},
	}
}
