package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperborea-net/hyperborea/identity"
	"github.com/hyperborea-net/hyperborea/protoerr"
)

func TestSignedRequestValidates(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	req := SignedRequest(kp, 42, json.RawMessage(`{"foo":"bar"}`))
	assert.Nil(t, req.Validate())
}

func TestRequestJSONRoundTrip(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	req := SignedRequest(kp, 12345678901234, json.RawMessage(`{"a":1}`))
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var out Request
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, req.PublicKey, out.PublicKey)
	assert.Equal(t, req.Proof.Seed, out.Proof.Seed)
	assert.Equal(t, req.Proof.Sign, out.Proof.Sign)
	assert.Nil(t, out.Validate())
}

func TestValidateRejectsWrongStandard(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	req := SignedRequest(kp, 1, json.RawMessage(`{}`))
	req.Standard = 2

	perr := req.Validate()
	require.NotNil(t, perr)
	assert.Equal(t, protoerr.KindSchema, perr.Kind)
}

func TestValidateRejectsBadProof(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	req := SignedRequest(kp, 1, json.RawMessage(`{}`))
	req.Proof.Seed = 2 // signature no longer matches this seed

	perr := req.Validate()
	require.NotNil(t, perr)
	assert.Equal(t, protoerr.KindIntegrity, perr.Kind)
	assert.Equal(t, protoerr.StatusCertificateValidationFailed, perr.Status())
}

func TestResponseSuccessVerifiesAgainstRequestSeed(t *testing.T) {
	serverKP, err := identity.Generate()
	require.NoError(t, err)
	clientKP, err := identity.Generate()
	require.NoError(t, err)

	req := SignedRequest(clientKP, 999, json.RawMessage(`{}`))
	resp := Success(serverKP, req, json.RawMessage(`{"ok":true}`))

	assert.True(t, resp.Verify(req.Proof.Seed))
	assert.False(t, resp.Verify(req.Proof.Seed+1))
}

func TestResponseJSONRoundTrip(t *testing.T) {
	serverKP, err := identity.Generate()
	require.NoError(t, err)

	req := SignedRequest(serverKP, 7, json.RawMessage(`{}`))
	resp := Success(serverKP, req, json.RawMessage(`{"ok":true}`))

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var out Response
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Verify(req.Proof.Seed))
}

func TestFailureEnvelopeOmitsProof(t *testing.T) {
	resp := Failure(protoerr.StatusClientNotFound, "client not found")
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	_, hasPK := raw["public_key"]
	assert.False(t, hasPK)
	assert.Equal(t, "client not found", raw["reason"])
}
