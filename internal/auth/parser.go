package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/veyra/fleet-collections/internal/model"
)

// Parser validates access tokens issued by the upstream identity service.
// The token is trusted once the signature checks out; no further lookup.
type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

type claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
}

func (p *Parser) Parse(token string) (model.Principal, error) {
	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return model.Principal{}, err
	}

	userID, err := uuid.Parse(parsed.UserID)
	if err != nil {
		return model.Principal{}, fmt.Errorf("invalid user_id claim: %w", err)
	}

	role := model.ActorRole(parsed.Role)
	if role != model.ActorRoleOperator && role != model.ActorRoleClient {
		return model.Principal{}, fmt.Errorf("unknown role claim %q", parsed.Role)
	}

	principal := model.Principal{UserID: userID, Role: role}
	if parsed.ClientID != "" {
		clientID, err := uuid.Parse(parsed.ClientID)
		if err != nil {
			return model.Principal{}, fmt.Errorf("invalid client_id claim: %w", err)
		}
		principal.ClientID = clientID
	}
	if role == model.ActorRoleClient && principal.ClientID == uuid.Nil {
		return model.Principal{}, fmt.Errorf("client token without client_id claim")
	}
	return principal, nil
}
