package dynamo

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrKey(t *testing.T) {
	key := strKey("user_id", "u1")
	v, ok := key["user_id"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "u1", v.Value)
}

func TestCompositeKey(t *testing.T) {
	key := compositeKey("email", "a@x.com", "sk", "otp#registration")
	pk, ok := key["email"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	sk, ok := key["sk"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "a@x.com", pk.Value)
	assert.Equal(t, "otp#registration", sk.Value)
}

func TestBuildUpdateExpr(t *testing.T) {
	expr, names, values, err := buildUpdateExpr(map[string]interface{}{"email_verified": true})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", expr)
	assert.Equal(t, map[string]string{"#f0": "email_verified"}, names)
	assert.Len(t, values, 1)
}

func TestBuildUpdateExpr_Empty(t *testing.T) {
	_, _, _, err := buildUpdateExpr(map[string]interface{}{})
	assert.Error(t, err)
}

func TestOTPSortKey(t *testing.T) {
	assert.Equal(t, "otp#password_reset", otpSK("password_reset"))
}
