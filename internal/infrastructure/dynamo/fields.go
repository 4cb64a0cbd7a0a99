package dynamo

// DynamoDB attribute names used in keys and update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID    = "user_id"
	fieldStoreID   = "store_id"
	fieldRatingKey = "rating_key"
	fieldEmail     = "email"
	fieldUsername  = "username"
	fieldOwnerID   = "owner_id"
	fieldRating    = "rating"
	fieldUpdatedAt = "updated_at"
	fieldName      = "name"
	fieldSeq       = "seq"
	fieldUniqueKey = "unique_key"
)

// Index names.
const (
	indexEmail    = "email-index"
	indexUsername = "username-index"
	indexRatingBy = "user_id-index"
)
