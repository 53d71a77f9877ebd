// Package resources contains the storage of the resources that rules can
// substitute: redirect targets and scriptlet templates.
package resources

import (
	"encoding/json"
	"fmt"

	"github.com/AdguardTeam/blockengine/rules"
	"github.com/AdguardTeam/golibs/errors"
)

// kindTemplate is the JSON form of the scriptlet template kind.
const kindTemplate = "template"

// Kind is the kind of a resource.  In JSON it is either the string "template"
// or an object like {"mime": "application/javascript"}.
type Kind struct {
	// MIME is the content type of a redirect resource.  It is empty for
	// templates.
	MIME string

	// Template is true if the resource is a scriptlet template with {{1}}-like
	// placeholders.
	Template bool
}

// kindJSON is the object form of [Kind].
type kindJSON struct {
	MIME string `json:"mime"`
}

// type check
var _ json.Unmarshaler = (*Kind)(nil)

// UnmarshalJSON implements the [json.Unmarshaler] interface for *Kind.
func (k *Kind) UnmarshalJSON(b []byte) (err error) {
	var s string
	if json.Unmarshal(b, &s) == nil {
		if s != kindTemplate {
			return fmt.Errorf("kind: %w: %q", errors.ErrBadEnumValue, s)
		}

		*k = Kind{Template: true}

		return nil
	}

	var obj kindJSON
	err = json.Unmarshal(b, &obj)
	if err != nil {
		return fmt.Errorf("kind: %w", err)
	} else if obj.MIME == "" {
		return fmt.Errorf("kind: mime: %w", errors.ErrEmptyValue)
	}

	*k = Kind{MIME: obj.MIME}

	return nil
}

// type check
var _ json.Marshaler = Kind{}

// MarshalJSON implements the [json.Marshaler] interface for Kind.
func (k Kind) MarshalJSON() (b []byte, err error) {
	if k.Template {
		return json.Marshal(kindTemplate)
	}

	return json.Marshal(kindJSON{MIME: k.MIME})
}

// Resource is a single substitutable resource.
type Resource struct {
	// Name is the main name of the resource used by rules.
	Name string `json:"name"`

	// Content is the base64-encoded body of the resource.
	Content string `json:"content"`

	// Aliases are the other names of the resource.
	Aliases []string `json:"aliases,omitempty"`

	// Kind is the kind of the resource.
	Kind Kind `json:"kind"`

	// Permission is the set of permission bits a filter list must have to
	// inject this resource as a scriptlet.
	Permission rules.PermissionMask `json:"permission,omitempty"`
}
