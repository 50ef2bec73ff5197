package store

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

func IsDuplicateKeyError(err error) bool {
	var serverError mongo.ServerError
	if errors.As(err, &serverError) {
		return serverError.HasErrorCode(11000) || serverError.HasErrorCode(11001) || serverError.HasErrorCode(12582) ||
			serverError.HasErrorCodeWithMessage(16460, " E11000 ")
	}
	return false
}
