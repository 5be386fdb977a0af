package dynamo

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds the primary key for single-hash-key tables (users: user_id).
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// compositeKey builds the PK+SK key used by the otps table
// (email + "otp#<purpose>" / "attempt#<ulid>").
func compositeKey(pkName, pkValue, skName, skValue string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pkValue},
		skName: &types.AttributeValueMemberS{Value: skValue},
	}
}

// buildUpdateExpr converts a field->value map into a SET expression with
// placeholder names, so callers can update reserved-word attributes
// (e.g. role) without caring about DynamoDB naming rules.
func buildUpdateExpr(updates map[string]interface{}) (string, map[string]string, map[string]types.AttributeValue, error) {
	if len(updates) == 0 {
		return "", nil, nil, fmt.Errorf("no fields to update")
	}
	names := make(map[string]string, len(updates))
	values := make(map[string]types.AttributeValue, len(updates))

	var expr strings.Builder
	expr.WriteString("SET ")
	i := 0
	for field, value := range updates {
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return "", nil, nil, fmt.Errorf("marshal field %s: %w", field, err)
		}
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		names[nameKey] = field
		values[valueKey] = av
		if i > 0 {
			expr.WriteString(", ")
		}
		fmt.Fprintf(&expr, "%s = %s", nameKey, valueKey)
		i++
	}
	return expr.String(), names, values, nil
}
