package controller

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParameterErrorList contains a list of human-readable errors about parameters.
type ParameterErrorList []string

// AppendIfEmptyOrBlankSpaces appends the error message specified if `str` is empty or contains only blank spaces.
//
// Parameters:
//   the string to be checked
//   the error message to append
//
// Returns:
//   the trimmed string
func (pel *ParameterErrorList) AppendIfEmptyOrBlankSpaces(str string, errMsg string) string {
	if str = strings.TrimSpace(str); str == "" {
		*pel = append(*pel, errMsg)
	}

	return str
}

// AppendIfNotHexAddress appends the error message specified if `str` is not a 20-byte hex address. Empty strings are left to `AppendIfEmptyOrBlankSpaces`.
//
// Parameters:
//   the string to be checked
//   the error message to append
//
// Returns:
//   the parsed address or the zero address if it can't be parsed
func (pel *ParameterErrorList) AppendIfNotHexAddress(str string, errMsg string) common.Address {
	if str == "" {
		return common.Address{}
	}
	if !common.IsHexAddress(str) {
		*pel = append(*pel, errMsg)
		return common.Address{}
	}

	return common.HexToAddress(str)
}
