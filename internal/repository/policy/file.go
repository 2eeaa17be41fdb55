package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/building-safety/internal/config"
	"github.com/oshokin/building-safety/internal/domain/access"
)

// Repository defines access to the authorization policy.
type Repository interface {
	Load(ctx context.Context) (access.Policy, error)
	Save(ctx context.Context, policy access.Policy) error
}

var (
	// ErrNotFound is returned when the policy file does not exist.
	ErrNotFound = errors.New("policy not found")
	// ErrDuplicateReader is returned when a reader is connected to two doors.
	ErrDuplicateReader = errors.New("card reader connected twice")
	// ErrEmptyCode is returned for authorizations without a card code.
	ErrEmptyCode = errors.New("empty card code")
)

// document is the YAML layout of the policy file.
type document struct {
	Authorizations []authorization `yaml:"authorizations"`
	Connections    []connection    `yaml:"connections"`
}

type authorization struct {
	Code  string `yaml:"code"`
	Doors []int  `yaml:"doors"`
}

type connection struct {
	Reader int `yaml:"reader"`
	Door   int `yaml:"door"`
}

// FileRepository keeps the policy in a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the policy file.
	path string
	// mu serialises file access.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the policy from disk. Every call rereads the file, so edits
// take effect on the next decision.
func (r *FileRepository) Load(_ context.Context) (access.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return access.Policy{}, ErrNotFound
		}

		return access.Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	var doc document
	if err = yaml.Unmarshal(contents, &doc); err != nil {
		return access.Policy{}, fmt.Errorf("decode policy file: %w", err)
	}

	return fromDocument(&doc)
}

// Save writes the policy to disk.
func (r *FileRepository) Save(_ context.Context, policy access.Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(toDocument(policy))
	if err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write policy file: %w", err)
	}

	return nil
}

// fromDocument converts the YAML layout into the domain policy.
func fromDocument(doc *document) (access.Policy, error) {
	policy := access.Policy{
		Authorizations: make(map[string][]int, len(doc.Authorizations)),
		Connections:    make(map[int]int, len(doc.Connections)),
	}

	for _, a := range doc.Authorizations {
		code := strings.TrimSpace(a.Code)
		if code == "" {
			return access.Policy{}, ErrEmptyCode
		}

		policy.Authorizations[code] = append(policy.Authorizations[code], a.Doors...)
	}

	for _, c := range doc.Connections {
		if _, ok := policy.Connections[c.Reader]; ok {
			return access.Policy{}, fmt.Errorf("%w: reader %d", ErrDuplicateReader, c.Reader)
		}

		policy.Connections[c.Reader] = c.Door
	}

	return policy, nil
}

// toDocument converts the domain policy into the YAML layout with a stable order.
func toDocument(policy access.Policy) *document {
	doc := &document{
		Authorizations: make([]authorization, 0, len(policy.Authorizations)),
		Connections:    make([]connection, 0, len(policy.Connections)),
	}

	for code, doors := range policy.Authorizations {
		doc.Authorizations = append(doc.Authorizations, authorization{Code: code, Doors: doors})
	}

	for reader, doorID := range policy.Connections {
		doc.Connections = append(doc.Connections, connection{Reader: reader, Door: doorID})
	}

	sort.Slice(doc.Authorizations, func(i, j int) bool {
		return doc.Authorizations[i].Code < doc.Authorizations[j].Code
	})
	sort.Slice(doc.Connections, func(i, j int) bool {
		return doc.Connections[i].Reader < doc.Connections[j].Reader
	})

	return doc
}
