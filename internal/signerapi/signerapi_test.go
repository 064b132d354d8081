package signerapi

import (
	"encoding/json"
	"testing"

	"gitee.com/czyczk/claimlink/pkg/errorcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseBodyEnvelope(t *testing.T) {
	requestID, result, err := ParseResponseBody(CommandGetDepositParams, []byte(`{"requestId":"r1","success":true,"result":{"to":"0x01","value":1000000000000000000000}}`))
	if isNoError := assert.NoError(t, err); !isNoError {
		t.FailNow()
	}

	assert.Equal(t, "r1", requestID)
	resultMap, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, json.Number("1000000000000000000000"), resultMap["value"])
}

func TestParseResponseBodyBareResult(t *testing.T) {
	requestID, result, err := ParseResponseBody(CommandGetRecoveredLinkTypedData, []byte(`{"domain":{},"types":{},"message":{}}`))
	require.NoError(t, err)

	assert.Empty(t, requestID)
	assert.Contains(t, result, "domain")
}

func TestParseResponseBodyClassifiesFailures(t *testing.T) {
	cases := map[string]struct {
		body string
		kind errorcode.SignerErrorKind
	}{
		"rejection":         {`{"success":false,"error":"deposit not found"}`, errorcode.SignerRejected},
		"not json":          {`<html>`, errorcode.SignerMalformedResponse},
		"empty":             {``, errorcode.SignerMalformedResponse},
		"success not bool":  {`{"success":"yes","result":{}}`, errorcode.SignerMalformedResponse},
		"success no result": {`{"success":true}`, errorcode.SignerMalformedResponse},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseResponseBody(CommandRegisterDeposit, []byte(c.body))
			signerErr, ok := errorcode.AsSignerError(err)
			require.True(t, ok)
			assert.Equal(t, c.kind, signerErr.Kind)
			assert.Equal(t, string(CommandRegisterDeposit), signerErr.Operation)
		})
	}

	_, _, err := ParseResponseBody(CommandRegisterDeposit, []byte(`{"success":false,"error":"deposit not found"}`))
	signerErr, _ := errorcode.AsSignerError(err)
	assert.Equal(t, "deposit not found", signerErr.Reason)
	assert.False(t, errorcode.IsRetryable(err))
}

func TestCommandIsKnown(t *testing.T) {
	assert.True(t, CommandRegisterDeposit.IsKnown())
	assert.False(t, Command("redeem").IsKnown())
}
