package resources

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/errors"
)

const (
	// ErrInvalidUTF8 is returned when the resources data isn't valid UTF-8.
	ErrInvalidUTF8 errors.Error = "invalid utf-8 in resources"

	// ErrInvalidJSON is returned when the resources data isn't valid JSON.
	ErrInvalidJSON errors.Error = "invalid json in resources"

	// ErrInvalidResource is returned when a resource is structurally invalid.
	ErrInvalidResource errors.Error = "invalid resource"

	// ErrNotFound is returned when there is no resource with the given name.
	ErrNotFound errors.Error = "resource not found"

	// ErrPermission is returned when a filter list isn't allowed to inject a
	// resource.
	ErrPermission errors.Error = "resource permission denied"
)

// stored is a resource with the decoded content.
type stored struct {
	res     *Resource
	content []byte
}

// Storage is an immutable set of resources addressable by names and aliases.
// It is safe for concurrent use.
type Storage struct {
	byName map[string]*stored
	all    []*Resource
}

// NewStorage validates rs and returns a storage containing them.  Names and
// aliases must be unique.
func NewStorage(rs []*Resource) (s *Storage, err error) {
	s = &Storage{
		byName: make(map[string]*stored, len(rs)),
		all:    make([]*Resource, 0, len(rs)),
	}

	var errs []error
	for i, r := range rs {
		err = s.add(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("resource at index %d: %w", i, err))
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResource, err)
	}

	return s, nil
}

// add validates and adds r to s.
func (s *Storage) add(r *Resource) (err error) {
	if r == nil {
		return errors.ErrNoValue
	} else if r.Name == "" {
		return fmt.Errorf("name: %w", errors.ErrEmptyValue)
	} else if !r.Kind.Template && r.Kind.MIME == "" {
		return fmt.Errorf("kind: %w", errors.ErrEmptyValue)
	}

	content, err := base64.StdEncoding.DecodeString(r.Content)
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}

	st := &stored{
		res:     r,
		content: content,
	}

	for _, name := range append([]string{r.Name}, r.Aliases...) {
		if _, ok := s.byName[name]; ok {
			return fmt.Errorf("name %q: %w", name, errors.ErrDuplicated)
		}

		s.byName[name] = st
	}

	s.all = append(s.all, r)

	return nil
}

// Parse parses the JSON array of resources.  Encoding errors are reported as
// [ErrInvalidUTF8] or [ErrInvalidJSON], structural ones as
// [ErrInvalidResource].
func Parse(data []byte) (s *Storage, err error) {
	if !utf8.Valid(data) {
		return nil, ErrInvalidUTF8
	}

	var rs []*Resource
	err = json.Unmarshal(data, &rs)
	if err != nil {
		var synErr *json.SyntaxError
		if errors.As(err, &synErr) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}

		return nil, fmt.Errorf("%w: %w", ErrInvalidResource, err)
	}

	return NewStorage(rs)
}

// Len returns the number of resources in s.
func (s *Storage) Len() (n int) {
	if s == nil {
		return 0
	}

	return len(s.all)
}

// Resources returns a copy of the resources in s in their original order.
func (s *Storage) Resources() (rs []*Resource) {
	if s == nil {
		return nil
	}

	return slices.Clone(s.all)
}

// get returns the resource by its name or alias.  Scriptlet names are also
// looked up with the ".js" suffix.
func (s *Storage) get(name string) (st *stored, ok bool) {
	if s == nil {
		return nil, false
	}

	st, ok = s.byName[name]
	if !ok && !strings.HasSuffix(name, ".js") {
		st, ok = s.byName[name+".js"]
	}

	return st, ok
}

// Get returns the resource by its name or alias.
func (s *Storage) Get(name string) (r *Resource, ok bool) {
	st, ok := s.get(name)
	if !ok {
		return nil, false
	}

	return st.res, true
}

// RedirectURL returns the data URL with the content of the redirect resource
// name.  ok is false if there is no such resource or it's a template.
func (s *Storage) RedirectURL(name string) (dataURL string, ok bool) {
	st, ok := s.get(name)
	if !ok || st.res.Kind.Template {
		return "", false
	}

	return "data:" + st.res.Kind.MIME + ";base64," + st.res.Content, true
}

// Scriptlet returns the code of the scriptlet template name with args
// substituted.  perm is the permission mask of the filter list of the rule
// that injects the scriptlet.
func (s *Storage) Scriptlet(name string, args []string, perm rules.PermissionMask) (code string, err error) {
	st, ok := s.get(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	} else if !st.res.Kind.Template {
		return "", fmt.Errorf("%q: %w: not a template", name, ErrInvalidResource)
	} else if !perm.Has(st.res.Permission) {
		return "", fmt.Errorf("%q: %w", name, ErrPermission)
	}

	return fillTemplate(string(st.content), args), nil
}
