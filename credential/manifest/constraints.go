package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmware-labs/yaml-jsonpath/pkg/yamlpath"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/pilacorp/go-credential-exchange/credential/common/util"
	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
	"github.com/pilacorp/go-credential-exchange/credential/vc"
)

// document is a JSON value parsed into a YAML node tree so JSONPath
// expressions can be evaluated on it.
type document struct {
	root yaml.Node
}

func newDocument(v any) (*document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	d := &document{}
	if err := yaml.Unmarshal(data, &d.root); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return d, nil
}

// find evaluates path and returns the decoded matches.
func (d *document) find(path string) ([]any, error) {
	p, err := yamlpath.NewPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	nodes, err := p.Find(&d.root)
	if err != nil {
		return nil, fmt.Errorf("cannot evaluate path %q: %w", path, err)
	}
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// resolveInput returns the object a descriptor points at. A jwt_vc
// descriptor that resolves to a token string is replaced by the decoded
// credential claims.
func resolveInput(doc *document, desc Descriptor) (any, error) {
	matches, err := doc.find(desc.Path)
	if err != nil {
		return nil, verification.Wrap(err, verification.KindConstraintViolation, "descriptor "+desc.ID)
	}
	if len(matches) == 0 {
		return nil, verification.Newf(verification.KindConstraintViolation, "descriptor %s: path %s matches nothing", desc.ID, desc.Path)
	}
	input := matches[0]
	if token, ok := input.(string); ok && desc.Format == FormatJWTVC && strings.Count(token, ".") == 2 {
		cred, err := vc.Decode(token)
		if err != nil {
			return nil, err
		}
		return util.ToMap(cred.Claims)
	}
	return input, nil
}

// checkConstraints applies an input descriptor's field constraints to input.
func checkConstraints(input any, desc *InputDescriptor) error {
	if desc.Constraints == nil || len(desc.Constraints.Fields) == 0 {
		return nil
	}
	doc, err := newDocument(input)
	if err != nil {
		return verification.Wrap(err, verification.KindConstraintViolation, "input descriptor "+desc.ID)
	}

	for i, field := range desc.Constraints.Fields {
		value, found, err := firstMatch(doc, field.Path)
		if err != nil {
			return verification.Wrap(err, verification.KindConstraintViolation, "input descriptor "+desc.ID)
		}
		if !found {
			if field.Optional {
				continue
			}
			return verification.Newf(verification.KindConstraintViolation, "input descriptor %s: field %d not found at %v", desc.ID, i, field.Path)
		}
		if field.Filter == nil {
			continue
		}
		if err := applyFilter(value, field.Filter); err != nil {
			return &verification.Error{
				Kind:    verification.KindConstraintViolation,
				Message: fmt.Sprintf("input descriptor %s: field %d fails filter", desc.ID, i),
				Err:     err,
			}
		}
	}
	return nil
}

func firstMatch(doc *document, paths []string) (any, bool, error) {
	for _, path := range paths {
		matches, err := doc.find(path)
		if err != nil {
			return nil, false, err
		}
		if len(matches) > 0 {
			return matches[0], true, nil
		}
	}
	return nil, false, nil
}

func applyFilter(value any, filter map[string]any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(filter), gojsonschema.NewGoLoader(value))
	if err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
