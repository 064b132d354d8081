package typeddata

import (
	"fmt"
	"sort"

	tdmodel "gitee.com/czyczk/claimlink/pkg/models/typeddata"
)

// Normalize prepares a signer-supplied template for signing. It drops the explicit `EIP712Domain` type and every domain field whose value is an empty string. The message is carried over untouched. The input is not modified and normalizing twice yields the same result.
func Normalize(template *tdmodel.TypedDataTemplate) *tdmodel.TypedDataTemplate {
	normalized := &tdmodel.TypedDataTemplate{
		Domain:      make(map[string]interface{}, len(template.Domain)),
		Types:       make(map[string][]tdmodel.TypedField, len(template.Types)),
		PrimaryType: template.PrimaryType,
		Message:     template.Message,
	}

	for key, value := range template.Domain {
		if isEmptyDomainValue(value) {
			continue
		}
		normalized.Domain[key] = value
	}

	for name, fields := range template.Types {
		if name == tdmodel.DomainTypeName {
			continue
		}
		copied := make([]tdmodel.TypedField, len(fields))
		copy(copied, fields)
		normalized.Types[name] = copied
	}

	return normalized
}

func isEmptyDomainValue(value interface{}) bool {
	if value == nil {
		return true
	}

	str, ok := value.(string)
	return ok && str == ""
}

// InferPrimaryType returns the explicit primary type, or the only struct type no other type refers to.
func InferPrimaryType(template *tdmodel.TypedDataTemplate) (string, error) {
	if template.PrimaryType != "" {
		if _, ok := template.Types[template.PrimaryType]; !ok {
			return "", fmt.Errorf("primary type '%v' is not defined", template.PrimaryType)
		}
		return template.PrimaryType, nil
	}

	referenced := make(map[string]bool)
	for _, fields := range template.Types {
		for _, field := range fields {
			referenced[baseTypeName(field.Type)] = true
		}
	}

	var candidates []string
	for name := range template.Types {
		if name == tdmodel.DomainTypeName || referenced[name] {
			continue
		}
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)

	if len(candidates) != 1 {
		return "", fmt.Errorf("cannot infer primary type, candidates: %v", candidates)
	}

	return candidates[0], nil
}

// baseTypeName strips array suffixes, e.g. `Transfer[2][]` -> `Transfer`.
func baseTypeName(typeName string) string {
	for i, ch := range typeName {
		if ch == '[' {
			return typeName[:i]
		}
	}

	return typeName
}
