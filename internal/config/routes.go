package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/punchamoorthee/visaops/internal/domain"
)

// Routes maps each visa type to its default ordered approver usernames.
type Routes map[domain.VisaType][]string

type routesFile struct {
	Routes map[string][]string `yaml:"routes"`
}

// LoadRoutes reads an approval route file:
//
//	routes:
//	  Cover: [sales.manager, finance.head]
//	  Regular: [sales.manager]
func LoadRoutes(path string) (Routes, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read approval routes: %w", err)
	}
	return ParseRoutes(raw)
}

func ParseRoutes(raw []byte) (Routes, error) {
	var f routesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse approval routes: %w", err)
	}
	routes := make(Routes, len(f.Routes))
	for name, approvers := range f.Routes {
		t, err := domain.ParseVisaType(name)
		if err != nil {
			return nil, fmt.Errorf("approval routes: %w", err)
		}
		routes[t] = approvers
	}
	return routes, nil
}

// For returns a copy of the default route of t.
func (r Routes) For(t domain.VisaType) []string {
	return append([]string(nil), r[t]...)
}
