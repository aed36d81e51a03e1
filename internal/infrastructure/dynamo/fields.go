package dynamo

// DynamoDB attribute names used in keys, conditions and update expressions.
const (
	fieldUserID          = "user_id"
	fieldPhoneNumber     = "phone_number"
	fieldPhoneIsVerified = "phone_is_verified"
	fieldIsDeleted       = "is_deleted"
	fieldUpdatedAt       = "updated_at"
	fieldKind            = "kind"
	fieldTokenID         = "token_id"
	fieldKeyID           = "key_id"
	fieldName            = "name"
	fieldJTI             = "jti"
	fieldExpiresAt       = "expires_at"
)

const (
	indexPhoneNumber = "phone_number-index"
	indexKeyID       = "key_id-index"
)
