package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/runoshun/boardsync/internal/domain"
)

// rosterFile is the YAML layout of a roster file:
//
//	users:
//	  - id: alice
//	    name: Alice
//	    roles: [tech-lead]
type rosterFile struct {
	Users []struct {
		ID    string   `yaml:"id"`
		Name  string   `yaml:"name"`
		Roles []string `yaml:"roles"`
	} `yaml:"users"`
}

// LoadRoster reads the seed roster. An empty path returns nil, which selects
// the built-in roster. Relative paths resolve against baseDir.
func LoadRoster(path, baseDir string) ([]domain.User, error) {
	if path == "" {
		return nil, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	users := make([]domain.User, 0, len(file.Users))
	seen := make(map[string]bool, len(file.Users))
	for _, u := range file.Users {
		if u.ID == "" || seen[u.ID] {
			return nil, fmt.Errorf("%w: missing or duplicate roster id %q", domain.ErrValidation, u.ID)
		}
		seen[u.ID] = true
		user := domain.User{ID: u.ID, Name: u.Name, Roles: make([]domain.Role, 0, len(u.Roles))}
		for _, r := range u.Roles {
			role := domain.Role(r)
			switch role {
			case domain.RoleTechLead, domain.RoleSalesLead, domain.RoleViewer:
			default:
				return nil, fmt.Errorf("%w: user %s has unknown role %q", domain.ErrValidation, u.ID, r)
			}
			user.Roles = append(user.Roles, role)
		}
		users = append(users, user)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: roster %s has no users", domain.ErrValidation, path)
	}
	return users, nil
}
