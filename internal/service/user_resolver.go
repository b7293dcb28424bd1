package service

import (
	"context"

	"github.com/google/uuid"

	"creator-auth/internal/util"
)

// UserResolver maps a verified email to the marketplace user id. The user directory lives
// outside this service.
type UserResolver interface {
	ResolveUser(ctx context.Context, email string) (string, error)
}

var defaultUserNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("users.creator-auth"))

// EmailUserResolver derives a stable UUIDv5 from the normalized email, so the same address
// always maps to the same user id without a lookup.
type EmailUserResolver struct {
	Namespace uuid.UUID
}

func NewEmailUserResolver() *EmailUserResolver {
	return &EmailUserResolver{Namespace: defaultUserNamespace}
}

func (r *EmailUserResolver) ResolveUser(ctx context.Context, email string) (string, error) {
	return uuid.NewSHA1(r.Namespace, []byte(util.NormalizeEmail(email))).String(), nil
}
