package requestdata

import (
	"context"

	"github.com/google/uuid"
)

var requestDataKey = struct{}{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestData carries the authenticated identity for one request.
// PartnerID is uuid.Nil for staff users with no partner link.
type RequestData struct {
	TokenString  string
	RefreshToken string
	UserID       uuid.UUID
	PartnerID    uuid.UUID
	IsStaff      bool
}
