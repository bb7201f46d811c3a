// Package resolver decides which connections a run acts on and where the
// backups go. Sources are consulted in a fixed order: identifiers given on
// the command line plus the selected profile's identifiers, then the
// configured default identifiers, then the whole registry. The directory
// comes from the profile, then --path, then the configured default.
package resolver

import (
	"fmt"
	"strings"

	"dbdump/internal/config"
	"dbdump/internal/database"
	"dbdump/internal/errors"
	"dbdump/internal/logging"
)

// Source names where the identifier set came from
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceDefaults Source = "defaults"
	SourceRegistry Source = "registry"
)

// Result is the outcome of one resolution pass
type Result struct {
	Set       *ResolvedSet
	Directory string
	Source    Source
}

// Resolver merges CLI input, profiles and the registry
type Resolver struct {
	cfg      *config.Config
	registry *database.Registry
	logger   *logging.Logger
}

// New creates a resolver over an immutable configuration and registry
func New(cfg *config.Config, registry *database.Registry, logger *logging.Logger) *Resolver {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Resolver{cfg: cfg, registry: registry, logger: logger}
}

// Resolve returns the ordered connection set and the backup directory.
// Empty profile and directory mean "not given". An empty set is not an error here.
func (r *Resolver) Resolve(cliIdentifiers []string, profile, directory string) (*Result, error) {
	identifiers := ParseIdentifiers(cliIdentifiers)

	var selected *config.Profile
	if profile != "" {
		p, ok := r.cfg.FindProfile(profile)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeProfileNotFound, "profile %q is not configured", profile).
				WithContext("profile", profile).
				WithUserMessage(fmt.Sprintf("Could not resolve profile '%s'.", profile))
		}
		selected = &p
		identifiers = ParseIdentifiers(append(identifiers, p.Connections...))
	}

	result := &Result{
		Set:       NewResolvedSet(),
		Directory: r.directory(selected, directory),
	}

	switch {
	case len(identifiers) > 0:
		result.Source = SourceExplicit
		r.lookupAll(result.Set, identifiers)
	case len(r.cfg.Connections) > 0:
		result.Source = SourceDefaults
		r.lookupAll(result.Set, ParseIdentifiers(r.cfg.Connections))
	default:
		result.Source = SourceRegistry
		for _, conn := range r.registry.All() {
			result.Set.Add(conn.Identifier(), conn)
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"source":      string(result.Source),
		"connections": strings.Join(result.Set.Identifiers(), ","),
		"unresolved":  len(result.Set.Unresolved()),
		"directory":   result.Directory,
		"profile":     profile,
	}).Debug("Resolved connection set")

	return result, nil
}

func (r *Resolver) lookupAll(set *ResolvedSet, identifiers []string) {
	for _, id := range identifiers {
		conn, ok := r.registry.Lookup(id)
		if !ok {
			set.Add(id, nil)
			continue
		}
		set.Add(id, conn)
	}
}

func (r *Resolver) directory(profile *config.Profile, cliDirectory string) string {
	if profile != nil && strings.TrimSpace(profile.Directory) != "" {
		return profile.Directory
	}
	if strings.TrimSpace(cliDirectory) != "" {
		return cliDirectory
	}
	if strings.TrimSpace(r.cfg.Directory) != "" {
		return r.cfg.Directory
	}
	return config.DefaultDirectory
}

// ParseIdentifiers splits comma-separated values, trims them, drops empties
// and removes duplicates while keeping first-seen order.
func ParseIdentifiers(values []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			id := strings.TrimSpace(part)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
