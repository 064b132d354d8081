package typeddata

// DomainTypeName is the reserved type describing the EIP-712 domain.
const DomainTypeName = "EIP712Domain"

// TypedField is one member of a struct type.
type TypedField struct {
	Name string `json:"name" mapstructure:"name"`
	Type string `json:"type" mapstructure:"type"`
}

// TypedDataTemplate is typed data as supplied by the signer: loosely shaped, possibly carrying an explicit domain type and empty domain fields.
type TypedDataTemplate struct {
	Domain      map[string]interface{}  `json:"domain" mapstructure:"domain"`
	Types       map[string][]TypedField `json:"types" mapstructure:"types"`
	PrimaryType string                  `json:"primaryType,omitempty" mapstructure:"primaryType"`
	Message     map[string]interface{}  `json:"message" mapstructure:"message"`
}
